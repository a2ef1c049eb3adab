// README: Fare quote returned to passengers and to settlement.
package fare

type Quote struct {
	// Fare is what the passenger pays.
	Fare int
	// Discount is the amount actually subtracted, never more than the metered part.
	Discount int
	Breakdown Breakdown
}

type Breakdown struct {
	Initial int
	Metered int
}

package ride

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusMatching, StatusEnroute, true},
		{StatusMatching, StatusMatching, true},
		{StatusEnroute, StatusPickup, true},
		{StatusEnroute, StatusMatching, true},
		{StatusPickup, StatusCarrying, true},
		{StatusCarrying, StatusArrived, true},
		{StatusArrived, StatusCompleted, true},
		{StatusCarrying, StatusCanceled, true},
		{StatusMatching, StatusCarrying, false},
		{StatusPickup, StatusArrived, false},
		{StatusArrived, StatusMatching, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusMatching, false},
		{StatusCompleted, StatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestCanDriverRequest(t *testing.T) {
	assert.True(t, CanDriverRequest(StatusMatching, StatusEnroute))
	assert.True(t, CanDriverRequest(StatusEnroute, StatusMatching))
	assert.True(t, CanDriverRequest(StatusPickup, StatusCarrying))

	// Location and passenger driven steps are not chair requests.
	assert.False(t, CanDriverRequest(StatusEnroute, StatusPickup))
	assert.False(t, CanDriverRequest(StatusCarrying, StatusArrived))
	assert.False(t, CanDriverRequest(StatusArrived, StatusCompleted))
	assert.False(t, CanDriverRequest(StatusMatching, StatusCarrying))
	assert.False(t, CanDriverRequest(StatusPickup, StatusMatching))

	for from, targets := range driverTransitions {
		for _, to := range targets {
			assert.True(t, CanTransition(from, to), "chair request %s->%s must be in the lifecycle table", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range allStatuses {
		if s.Terminal() {
			assert.Empty(t, AllowedTransitions[s], "%s is terminal", s)
			continue
		}
		assert.True(t, CanTransition(s, StatusCanceled), "%s can be canceled", s)
	}
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("CARRYING")
	assert.True(t, ok)
	assert.Equal(t, StatusCarrying, s)

	_, ok = ParseStatus("carrying")
	assert.False(t, ok)
	_, ok = ParseStatus("")
	assert.False(t, ok)
}

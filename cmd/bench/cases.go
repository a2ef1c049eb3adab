// README: Bench cases; environment checks, ride lifecycle, dispatch and invitation races, owner reports and a ping soak.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg     Config
	api     *apiClient
	db      *pgxpool.Pool
	redis   *redis.Client
	gateway *paymentGateway

	// completed is the ride finished by the lifecycle case, reused by the
	// owner report case.
	completed *completedRide
}

type completedRide struct {
	owner *benchOwner
	chair *benchChair
	fare  int
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg: cfg,
		api: &apiClient{base: cfg.BaseURL, httpc: &http.Client{Timeout: 10 * time.Second}},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}
	r.gateway = newPaymentGateway(r.cfg.PaymentListen)
	if err := r.gateway.Start(); err != nil {
		fmt.Printf("payment gateway: %v\n", err)
		r.gateway = nil
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		start := time.Now()
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
		results = append(results, res)
		fmt.Printf("%-5s %s (%s)", res.Status, tc.Name, res.Latency.Round(time.Millisecond))
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.gateway != nil {
		r.gateway.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

func pass(note string) Result {
	return Result{Status: statusPass, Note: note}
}

func fail(err error) Result {
	return Result{Status: statusFail, Note: err.Error()}
}

func skip(note string) Result {
	return Result{Status: statusSkip, Note: note}
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Focus: "database reachable", Run: caseDBConnect},
		{Name: "Env: Redis connect", Focus: "session cache reachable", Run: caseRedisConnect},
		{Name: "Migration: apply (optional)", Focus: "apply migration SQL", Run: caseApplyMigration},
		{Name: "Migration: tables exist", Focus: "every table in the migration exists", Run: caseTablesExist},
		{Name: "API: health", Focus: "server reachable", Run: caseHealth},
		{Name: "API: initialize", Focus: "payment gateway points at the bench", Run: caseInitialize},
		{Name: "Registration: user, owner, chair", Focus: "sessions work for every role", Run: caseRegistration},
		{Name: "Ride: full lifecycle", Focus: "dispatch, auto transitions, settlement charged once", Run: caseLifecycle},
		{Name: "Ride: one active ride per user", Focus: "second request conflicts, cancel frees the user", Run: caseActiveRide},
		{Name: "Owner: sales and odometer", Focus: "completed ride appears in owner reports", Run: caseOwnerReports},
		{Name: "Concurrency: many chairs, one ride", Focus: "a ride is dispatched exactly once", Run: caseDispatchRace},
		{Name: "Concurrency: invitation cap", Focus: "an invitation code is redeemed at most 3 times", Run: caseInvitationCap},
		{Name: "Perf: location ping soak", Focus: "ping throughput", Run: casePingSoak},
	}
}

func caseDBConnect(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return fail(err)
	}
	return pass("")
}

func caseRedisConnect(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fail(err)
	}
	return pass("")
}

func caseApplyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return skip("apply-migration=false")
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return fail(err)
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return fail(err)
		}
	}
	return pass("")
}

func caseTablesExist(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return fail(err)
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
		).Scan(&exists)
		if err != nil {
			return fail(err)
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return pass(fmt.Sprintf("tables=%d", len(tables)))
}

func caseHealth(ctx context.Context, r *Runner) Result {
	if err := r.api.expect(ctx, http.StatusOK, http.MethodGet, "/health", "", nil, nil); err != nil {
		return fail(err)
	}
	return pass("")
}

func caseInitialize(ctx context.Context, r *Runner) Result {
	if r.gateway == nil {
		return Result{Status: statusFail, Note: "fake payment gateway not running"}
	}
	if err := r.api.expect(ctx, http.StatusOK, http.MethodPost, "/api/initialize", "",
		map[string]string{"payment_server": r.cfg.PaymentURL}, nil); err != nil {
		return fail(err)
	}
	return pass(r.cfg.PaymentURL)
}

func caseRegistration(ctx context.Context, r *Runner) Result {
	u, err := r.api.registerPayingUser(ctx)
	if err != nil {
		return fail(err)
	}
	o, err := r.api.registerOwner(ctx)
	if err != nil {
		return fail(err)
	}
	c, err := r.api.registerChair(ctx, o, "isu-standard")
	if err != nil {
		return fail(err)
	}

	var fare struct {
		Fare     int `json:"fare"`
		Discount int `json:"discount"`
	}
	route := rideRoute{Pickup: coordinate{0, 0}, Destination: coordinate{10, 10}}
	if err := r.api.expect(ctx, http.StatusOK, http.MethodPost, "/api/app/rides/estimated-fare", u.AccessToken, route, &fare); err != nil {
		return fail(err)
	}
	if fare.Discount == 0 {
		return fail(fmt.Errorf("new user has no signup discount"))
	}
	if err := r.api.expect(ctx, http.StatusUnauthorized, http.MethodGet, "/api/owner/chairs", c.AccessToken, nil, nil); err != nil {
		return fail(fmt.Errorf("chair token accepted as owner: %w", err))
	}
	return pass(fmt.Sprintf("estimate=%d discount=%d", fare.Fare, fare.Discount))
}

func caseLifecycle(ctx context.Context, r *Runner) Result {
	if r.gateway == nil {
		return skip("fake payment gateway not running")
	}
	o, err := r.api.registerOwner(ctx)
	if err != nil {
		return fail(err)
	}
	c, err := r.api.registerChair(ctx, o, "isu-lifecycle")
	if err != nil {
		return fail(err)
	}
	u, err := r.api.registerPayingUser(ctx)
	if err != nil {
		return fail(err)
	}

	pickup, destination := coordinate{20, 20}, coordinate{25, 30}
	if err := r.api.ping(ctx, c, coordinate{18, 20}); err != nil {
		return fail(err)
	}
	rideID, quoted, err := r.api.requestRide(ctx, u, rideRoute{Pickup: pickup, Destination: destination})
	if err != nil {
		return fail(err)
	}
	if err := r.api.claim(ctx, c, rideID); err != nil {
		return fail(err)
	}

	steps := []struct {
		name string
		run  func() error
		want string
	}{
		{name: "accept", run: func() error { return r.api.setStatus(ctx, c, rideID, "ENROUTE") }, want: "ENROUTE"},
		{name: "reach pickup", run: func() error { return r.api.ping(ctx, c, pickup) }, want: "PICKUP"},
		{name: "depart", run: func() error { return r.api.setStatus(ctx, c, rideID, "CARRYING") }, want: "CARRYING"},
		{name: "reach destination", run: func() error { return r.api.ping(ctx, c, destination) }, want: "ARRIVED"},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fail(fmt.Errorf("%s: %w", step.name, err))
		}
		got, err := r.api.rideStatus(ctx, u, rideID)
		if err != nil {
			return fail(err)
		}
		if got != step.want {
			return fail(fmt.Errorf("%s: status=%s want %s", step.name, got, step.want))
		}
	}

	var settled struct {
		Fare        int   `json:"fare"`
		CompletedAt int64 `json:"completed_at"`
	}
	if err := r.api.expect(ctx, http.StatusOK, http.MethodPost, "/api/app/rides/"+rideID+"/evaluation", u.AccessToken,
		map[string]int{"evaluation": 5}, &settled); err != nil {
		return fail(err)
	}
	if settled.Fare != quoted {
		return fail(fmt.Errorf("settled fare %d differs from quoted %d", settled.Fare, quoted))
	}
	charges := r.gateway.Charges(u.PaymentToken)
	if len(charges) != 1 || charges[0].Amount != settled.Fare {
		return fail(fmt.Errorf("charges=%v want one of %d", charges, settled.Fare))
	}

	// Evaluating again must neither succeed nor charge twice.
	status, err := r.api.do(ctx, http.MethodPost, "/api/app/rides/"+rideID+"/evaluation", u.AccessToken, map[string]int{"evaluation": 4}, nil)
	if err != nil {
		return fail(err)
	}
	if status < 400 || len(r.gateway.Charges(u.PaymentToken)) != 1 {
		return fail(fmt.Errorf("second evaluation status=%d charges=%d", status, len(r.gateway.Charges(u.PaymentToken))))
	}

	var history struct {
		Rides []struct {
			ID   string `json:"id"`
			Fare int    `json:"fare"`
		} `json:"rides"`
	}
	if err := r.api.expect(ctx, http.StatusOK, http.MethodGet, "/api/app/rides", u.AccessToken, nil, &history); err != nil {
		return fail(err)
	}
	if len(history.Rides) != 1 || history.Rides[0].ID != rideID || history.Rides[0].Fare != settled.Fare {
		return fail(fmt.Errorf("history=%+v", history.Rides))
	}

	r.completed = &completedRide{owner: o, chair: c, fare: settled.Fare}
	return pass(fmt.Sprintf("ride=%s fare=%d", rideID, settled.Fare))
}

func caseActiveRide(ctx context.Context, r *Runner) Result {
	u, err := r.api.registerPayingUser(ctx)
	if err != nil {
		return fail(err)
	}
	route := rideRoute{Pickup: coordinate{-40, -40}, Destination: coordinate{-30, -45}}
	rideID, _, err := r.api.requestRide(ctx, u, route)
	if err != nil {
		return fail(err)
	}
	if err := r.api.expect(ctx, http.StatusConflict, http.MethodPost, "/api/app/rides", u.AccessToken, route, nil); err != nil {
		return fail(err)
	}
	if err := r.api.expect(ctx, http.StatusNoContent, http.MethodPost, "/api/app/rides/"+rideID+"/cancel", u.AccessToken, nil, nil); err != nil {
		return fail(err)
	}
	again, _, err := r.api.requestRide(ctx, u, route)
	if err != nil {
		return fail(fmt.Errorf("request after cancel: %w", err))
	}
	if err := r.api.expect(ctx, http.StatusNoContent, http.MethodPost, "/api/app/rides/"+again+"/cancel", u.AccessToken, nil, nil); err != nil {
		return fail(err)
	}
	return pass("")
}

func caseOwnerReports(ctx context.Context, r *Runner) Result {
	if r.completed == nil {
		return skip("lifecycle case did not complete a ride")
	}
	o := r.completed.owner

	var sales struct {
		TotalSales int `json:"total_sales"`
		Models     []struct {
			Model string `json:"model"`
			Sales int    `json:"sales"`
		} `json:"models"`
	}
	if err := r.api.expect(ctx, http.StatusOK, http.MethodGet, "/api/owner/sales", o.AccessToken, nil, &sales); err != nil {
		return fail(err)
	}
	// Sales are reported before coupon discounts.
	if sales.TotalSales < r.completed.fare {
		return fail(fmt.Errorf("total_sales=%d below settled fare %d", sales.TotalSales, r.completed.fare))
	}

	var chairs struct {
		Chairs []struct {
			ID            string `json:"id"`
			TotalDistance int    `json:"total_distance"`
		} `json:"chairs"`
	}
	if err := r.api.expect(ctx, http.StatusOK, http.MethodGet, "/api/owner/chairs", o.AccessToken, nil, &chairs); err != nil {
		return fail(err)
	}
	// Pings went (18,20) -> (20,20) -> (25,30).
	if len(chairs.Chairs) != 1 || chairs.Chairs[0].TotalDistance != 17 {
		return fail(fmt.Errorf("chairs=%+v", chairs.Chairs))
	}
	return pass(fmt.Sprintf("total_sales=%d", sales.TotalSales))
}

func caseDispatchRace(ctx context.Context, r *Runner) Result {
	o, err := r.api.registerOwner(ctx)
	if err != nil {
		return fail(err)
	}
	chairs := make([]*benchChair, r.cfg.Concurrency)
	for i := range chairs {
		if chairs[i], err = r.api.registerChair(ctx, o, "isu-race"); err != nil {
			return fail(err)
		}
	}
	u, err := r.api.registerPayingUser(ctx)
	if err != nil {
		return fail(err)
	}
	rideID, _, err := r.api.requestRide(ctx, u, rideRoute{Pickup: coordinate{50, 50}, Destination: coordinate{60, 60}})
	if err != nil {
		return fail(err)
	}

	var winners atomic.Int32
	var g errgroup.Group
	for _, c := range chairs {
		c := c
		g.Go(func() error {
			var n chairNotification
			status, err := r.api.do(ctx, http.MethodGet, "/api/chair/notification", c.AccessToken, nil, &n)
			if err != nil {
				return err
			}
			if status == http.StatusOK && n.RideID == rideID {
				winners.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	if got := winners.Load(); got != 1 {
		return fail(fmt.Errorf("ride claimed by %d chairs", got))
	}
	if err := r.api.expect(ctx, http.StatusNoContent, http.MethodPost, "/api/app/rides/"+rideID+"/cancel", u.AccessToken, nil, nil); err != nil {
		return fail(err)
	}
	return pass(fmt.Sprintf("chairs=%d", len(chairs)))
}

func caseInvitationCap(ctx context.Context, r *Runner) Result {
	inviter, status, err := r.api.registerUser(ctx, "")
	if err != nil {
		return fail(err)
	}
	if inviter == nil {
		return fail(fmt.Errorf("register inviter: status=%d", status))
	}

	var mu sync.Mutex
	statuses := map[int]int{}
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for i := 0; i < r.cfg.Concurrency; i++ {
		g.Go(func() error {
			_, status, err := r.api.registerUser(ctx, inviter.InvitationCode)
			if err != nil {
				return err
			}
			mu.Lock()
			statuses[status]++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}
	want := min(3, r.cfg.Concurrency)
	if statuses[http.StatusCreated] != want || statuses[http.StatusCreated]+statuses[http.StatusConflict] != r.cfg.Concurrency {
		return fail(fmt.Errorf("statuses=%v want %d created", statuses, want))
	}
	return pass(fmt.Sprintf("statuses=%v", statuses))
}

func casePingSoak(ctx context.Context, r *Runner) Result {
	o, err := r.api.registerOwner(ctx)
	if err != nil {
		return fail(err)
	}
	c, err := r.api.registerChair(ctx, o, "isu-soak")
	if err != nil {
		return fail(err)
	}

	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for step := 0; time.Now().Before(end) && ctx.Err() == nil; step++ {
				if err := r.api.ping(ctx, c, coordinate{Latitude: i, Longitude: step % 100}); err != nil {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return pass(fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load()))
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// README: Postgres helpers for DB-backed tests; skipped unless ISURIDE_TEST_DSN is set.
package testutil

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"isuride/internal/types"
)

var tables = []string{
	"ride_statuses", "coupons", "payment_tokens", "rides",
	"chair_locations", "chairs", "owners", "users",
}

// NewPool connects to ISURIDE_TEST_DSN, applies migrations and truncates every table.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("ISURIDE_TEST_DSN")
	if dsn == "" {
		t.Skip("ISURIDE_TEST_DSN not set; skipping DB-backed test")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}

func applyMigrations(ctx context.Context, db *pgxpool.Pool) error {
	root, err := RepoRoot()
	if err != nil {
		return err
	}
	files, err := filepath.Glob(filepath.Join(root, "migrations", "*.sql"))
	if err != nil {
		return err
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		for _, stmt := range SplitSQL(StripSQLComments(string(content))) {
			if _, err := db.Exec(ctx, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

// RepoRoot walks up from the working directory to the directory holding go.mod.
func RepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func StripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func SplitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// InsertUser creates a user row directly and returns its id.
func InsertUser(t *testing.T, db *pgxpool.Pool, username string) types.ID {
	t.Helper()
	id := types.NewID()
	_, err := db.Exec(context.Background(), `
		INSERT INTO users (id, username, firstname, lastname, date_of_birth, access_token, invitation_code)
		VALUES ($1, $2, 'Taro', 'Isu', '2000-01-01', $3, $4)`,
		string(id), username, types.RandomToken(32), types.RandomToken(15),
	)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return id
}

// InsertOwnerAndChair creates an owner with one chair and returns the chair id.
func InsertOwnerAndChair(t *testing.T, db *pgxpool.Pool, name string) (ownerID, chairID types.ID) {
	t.Helper()
	ctx := context.Background()
	ownerID = types.NewID()
	chairID = types.NewID()
	if _, err := db.Exec(ctx, `
		INSERT INTO owners (id, name, access_token, chair_register_token)
		VALUES ($1, $2, $3, $4)`,
		string(ownerID), name+"-owner", types.RandomToken(32), types.RandomToken(32),
	); err != nil {
		t.Fatalf("insert owner: %v", err)
	}
	if _, err := db.Exec(ctx, `
		INSERT INTO chairs (id, owner_id, name, model, is_active, access_token)
		VALUES ($1, $2, $3, 'isu-standard', TRUE, $4)`,
		string(chairID), string(ownerID), name, types.RandomToken(32),
	); err != nil {
		t.Fatalf("insert chair: %v", err)
	}
	return ownerID, chairID
}

// InsertCoupon grants a coupon at the given time.
func InsertCoupon(t *testing.T, db *pgxpool.Pool, userID types.ID, code string, discount int, at time.Time) types.ID {
	t.Helper()
	id := types.NewID()
	if _, err := db.Exec(context.Background(), `
		INSERT INTO coupons (id, user_id, code, discount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(id), string(userID), code, discount, at,
	); err != nil {
		t.Fatalf("insert coupon: %v", err)
	}
	return id
}

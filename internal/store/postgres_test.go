package store

import (
	"context"
	"os"
	"reflect"
	"strings"
	"testing"

	"housemarket/internal/db"
	"housemarket/internal/market"
)

// Runs only when HOUSEMARKET_TEST_DATABASE_URL points at a disposable database.
func newTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := strings.TrimSpace(os.Getenv("HOUSEMARKET_TEST_DATABASE_URL"))
	if url == "" {
		t.Skip("HOUSEMARKET_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	pg := NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return pg
}

func TestPostgresRoundTrip(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	snap := sampleSnapshot(t)
	if err := pg.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := pg.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded, snap) {
		t.Fatalf("snapshot changed across round trip")
	}
}

func TestPostgresSaveUsersKeepsHoldings(t *testing.T) {
	pg := newTestPostgres(t)
	ctx := context.Background()
	snap := sampleSnapshot(t)
	if err := pg.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	users := append([]market.UserRecord(nil), snap.Users...)
	users[0].PointsBalance += 50
	if err := pg.SaveUsers(ctx, users); err != nil {
		t.Fatalf("save users: %v", err)
	}
	loaded, err := pg.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Users[0].PointsBalance != users[0].PointsBalance {
		t.Fatalf("expected %v, got %v", users[0].PointsBalance, loaded.Users[0].PointsBalance)
	}
	if !reflect.DeepEqual(loaded.Portfolios, snap.Portfolios) {
		t.Fatalf("portfolios changed")
	}
}

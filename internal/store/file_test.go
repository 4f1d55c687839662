package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"housemarket/internal/market"
)

func sampleSnapshot(t *testing.T) market.Snapshot {
	t.Helper()
	src := market.NewSource(17)
	m, err := market.New(market.DefaultHouses(), src, market.DefaultDynamics(), nil)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	cfg := market.DefaultSimulationConfig(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC))
	cfg.Days = 5
	if _, err := market.NewSimulator(m, nil, cfg, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	return m.Snapshot()
}

func writeDocs(t *testing.T, dir string, docs map[string]string) {
	t.Helper()
	for name, body := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestFileRoundTrip(t *testing.T) {
	snap := sampleSnapshot(t)
	fs := NewFile(t.TempDir())
	ctx := context.Background()
	if err := fs.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Houses, snap.Houses) {
		t.Fatalf("houses changed across round trip")
	}
	if !reflect.DeepEqual(loaded.Users, snap.Users) {
		t.Fatalf("users changed across round trip")
	}
	if !reflect.DeepEqual(loaded.Portfolios, snap.Portfolios) {
		t.Fatalf("portfolios changed across round trip")
	}
}

func TestFilePreservesDocumentOrder(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, map[string]string{
		HousesFile: `{"Voi": {"current_price": 120, "volume": 800, "price_history": []},
			"Ho": {"current_price": 110.5, "volume": 1100, "price_history": [{"date": "2024-01-01", "price": 110.5}]}}`,
		UsersFile:      `{"zed_9": {"house": "Ho", "points_balance": 1000}, "amy_1": {"house": "Voi", "points_balance": 1000.0}}`,
		PortfoliosFile: `{"zed_9": {"Ho": {"shares": 0}, "Voi": {"shares": 3}}, "amy_1": {"Voi": {"shares": 0}}}`,
	})
	snap, err := NewFile(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Houses[0].Name != "Voi" || snap.Houses[1].Name != "Ho" {
		t.Fatalf("house order %+v", snap.Houses)
	}
	if snap.Users[0].Username != "zed_9" || snap.Users[1].Username != "amy_1" {
		t.Fatalf("user order %+v", snap.Users)
	}
	if h := snap.Portfolios[0].Holdings; h[0].House != "Ho" || h[1].House != "Voi" || h[1].Shares != 3 {
		t.Fatalf("holding order %+v", h)
	}

	m, err := market.FromSnapshot(snap, market.NewSource(1), market.DefaultDynamics(), nil)
	if err != nil {
		t.Fatalf("from snapshot: %v", err)
	}
	rows := m.Leaderboard()
	if rows[0].Username != "zed_9" {
		t.Fatalf("tie should keep document order, got %s first", rows[0].Username)
	}
}

func TestFileWritesIndentedDocuments(t *testing.T) {
	dir := t.TempDir()
	fs := NewFile(dir)
	users := []market.UserRecord{{Username: "b_user", House: "Ho", PointsBalance: 12.5}, {Username: "a_user", House: "Voi", PointsBalance: 3}}
	if err := fs.SaveUsers(context.Background(), users); err != nil {
		t.Fatalf("save users: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, UsersFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "{\n    \"b_user\": {\n        \"house\": \"Ho\",\n        \"points_balance\": 12.5\n    },\n    \"a_user\": {\n        \"house\": \"Voi\",\n        \"points_balance\": 3\n    }\n}\n"
	if string(raw) != want {
		t.Fatalf("unexpected document:\n%s", raw)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestFileLoadRejectsMalformed(t *testing.T) {
	good := map[string]string{
		HousesFile:     `{"Ho": {"current_price": 110, "volume": 1100, "price_history": []}}`,
		UsersFile:      `{"amy_1": {"house": "Ho", "points_balance": 1000}}`,
		PortfoliosFile: `{"amy_1": {"Ho": {"shares": 0}}}`,
	}
	tests := []struct {
		name string
		file string
		body string
	}{
		{name: "not json", file: UsersFile, body: `{"amy_1":`},
		{name: "array", file: HousesFile, body: `[]`},
		{name: "duplicate key", file: UsersFile, body: `{"amy_1": {"house": "Ho", "points_balance": 1}, "amy_1": {"house": "Ho", "points_balance": 2}}`},
		{name: "unknown field", file: UsersFile, body: `{"amy_1": {"house": "Ho", "points_balance": 1, "admin": true}}`},
		{name: "string points", file: UsersFile, body: `{"amy_1": {"house": "Ho", "points_balance": "lots"}}`},
		{name: "missing points", file: UsersFile, body: `{"amy_1": {"house": "Ho"}}`},
		{name: "missing price", file: HousesFile, body: `{"Ho": {"volume": 1}}`},
		{name: "bad date", file: HousesFile, body: `{"Ho": {"current_price": 1, "volume": 1, "price_history": [{"date": "01/02/2024", "price": 1}]}}`},
		{name: "fractional shares", file: PortfoliosFile, body: `{"amy_1": {"Ho": {"shares": 1.5}}}`},
		{name: "missing shares", file: PortfoliosFile, body: `{"amy_1": {"Ho": {}}}`},
		{name: "trailing data", file: PortfoliosFile, body: `{"amy_1": {"Ho": {"shares": 1}}} {}`},
	}
	for _, tc := range tests {
		dir := t.TempDir()
		writeDocs(t, dir, good)
		writeDocs(t, dir, map[string]string{tc.file: tc.body})
		_, err := NewFile(dir).Load(context.Background())
		if !errors.Is(err, market.ErrInvalidSnapshot) {
			t.Fatalf("%s: expected invalid snapshot, got %v", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.file) {
			t.Fatalf("%s: error should name %s: %v", tc.name, tc.file, err)
		}
	}
}

func TestFileLoadFailsOnMissingDocument(t *testing.T) {
	dir := t.TempDir()
	writeDocs(t, dir, map[string]string{
		HousesFile: `{"Ho": {"current_price": 110, "volume": 1100}}`,
		UsersFile:  `{}`,
	})
	_, err := NewFile(dir).Load(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestFileSaveRestoresOnFailedReplace(t *testing.T) {
	snap := sampleSnapshot(t)
	dir := t.TempDir()
	fs := NewFile(dir)
	ctx := context.Background()
	if err := fs.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	before := map[string][]byte{}
	for _, name := range []string{UsersFile, PortfoliosFile, HousesFile} {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		before[name] = raw
	}

	m, err := market.FromSnapshot(snap, market.NewSource(1), market.DefaultDynamics(), nil)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if _, err := m.Register("carol", "Ho"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// A non-empty directory in place of the last document makes its replace fail.
	houses := filepath.Join(dir, HousesFile)
	if err := os.Remove(houses); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(houses, "busy"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := fs.Save(ctx, m.Snapshot()); err == nil {
		t.Fatalf("expected save error")
	}
	for _, name := range []string{UsersFile, PortfoliosFile} {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(raw) != string(before[name]) {
			t.Fatalf("%s not restored after failed save", name)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}

	if err := os.RemoveAll(houses); err != nil {
		t.Fatalf("remove dir: %v", err)
	}
	writeDocs(t, dir, map[string]string{HousesFile: string(before[HousesFile])})
	loaded, err := fs.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(loaded.Users, snap.Users) || !reflect.DeepEqual(loaded.Portfolios, snap.Portfolios) {
		t.Fatalf("reloaded snapshot mixes old and new documents")
	}
}

package market

import (
	"errors"
	"math"
	"testing"
	"time"
)

type scriptedSource struct {
	floats []float64
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedSource) Intn(n int) int {
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v % n
}

func (s *scriptedSource) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i)
	}
	return len(p), nil
}

func quietDynamics() Dynamics {
	dyn := DefaultDynamics()
	dyn.NoiseScale = 0
	return dyn
}

func newTestMarket(t *testing.T, src Source, dyn Dynamics) *Market {
	t.Helper()
	m, err := New(DefaultHouses(), src, dyn, nil)
	if err != nil {
		t.Fatalf("new market: %v", err)
	}
	return m
}

func mustRegister(t *testing.T, m *Market, username, house string) {
	t.Helper()
	if _, err := m.Register(username, house); err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
}

func TestNewRejectsBadHouses(t *testing.T) {
	tests := []struct {
		name  string
		seeds []HouseSeed
	}{
		{name: "empty", seeds: nil},
		{name: "duplicate", seeds: []HouseSeed{{Name: "Voi", Price: 1}, {Name: "Voi", Price: 2}}},
		{name: "zero price", seeds: []HouseSeed{{Name: "Voi", Price: 0}}},
		{name: "blank name", seeds: []HouseSeed{{Name: "  ", Price: 5}}},
	}
	for _, tc := range tests {
		if _, err := New(tc.seeds, NewSource(1), DefaultDynamics(), nil); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestRegisterCreatesUserAndPortfolio(t *testing.T) {
	m := newTestMarket(t, NewSource(1), DefaultDynamics())
	u, err := m.Register("alice_1", "Voi")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.PointsBalance != StartingPoints || u.House != "Voi" {
		t.Fatalf("unexpected user %+v", u)
	}
	holdings, err := m.Portfolio("alice_1")
	if err != nil {
		t.Fatalf("portfolio: %v", err)
	}
	if len(holdings) != 1 || holdings[0].House != "Voi" || holdings[0].Shares != 0 {
		t.Fatalf("unexpected holdings %+v", holdings)
	}

	if _, err := m.Register("alice_1", "Ho"); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if _, err := m.Register("bob_22", "Atlantis"); !errors.Is(err, ErrHouseNotFound) {
		t.Fatalf("expected house not found, got %v", err)
	}
	if _, err := m.Register("x", "Ho"); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("expected invalid username, got %v", err)
	}
}

func TestRegisterRandomIsReproducible(t *testing.T) {
	run := func() []User {
		src := NewSource(42)
		m := newTestMarket(t, src, DefaultDynamics())
		names := NewNameGenerator(src)
		for i := 0; i < 10; i++ {
			if _, err := m.RegisterRandom(names); err != nil {
				t.Fatalf("register random: %v", err)
			}
		}
		return m.Users()
	}
	a, b := run(), run()
	if len(a) != 10 {
		t.Fatalf("expected 10 users, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("user %d differs: %+v vs %+v", i, a[i], b[i])
		}
		if err := ValidateUsername(a[i].Username); err != nil {
			t.Fatalf("generated username %q invalid: %v", a[i].Username, err)
		}
	}
}

func TestSubmitNewsTargetsOneHouse(t *testing.T) {
	src := &scriptedSource{ints: []int{3}, floats: []float64{0.5}}
	m := newTestMarket(t, src, quietDynamics())
	if err := m.SetImpact("Voi", 0.02); err != nil {
		t.Fatalf("set impact: %v", err)
	}

	ev := m.SubmitNews()
	if ev.House != "Ho" {
		t.Fatalf("expected Ho, got %s", ev.House)
	}
	if math.Abs(ev.Impact-0.025) > 1e-12 {
		t.Fatalf("expected impact 0.025, got %f", ev.Impact)
	}
	if m.PendingImpact("Ho") != ev.Impact {
		t.Fatalf("pending impact not stored")
	}
	if m.PendingImpact("Voi") != 0.02 {
		t.Fatalf("other house impact should be retained, got %f", m.PendingImpact("Voi"))
	}
	if m.PendingImpact("Rua_Bien") != 0 {
		t.Fatalf("untouched house should stay at zero")
	}
}

func TestSubmitNewsImpactRange(t *testing.T) {
	m := newTestMarket(t, NewSource(7), DefaultDynamics())
	for i := 0; i < 500; i++ {
		ev := m.SubmitNews()
		if ev.Impact < -0.05 || ev.Impact >= 0.10 {
			t.Fatalf("impact %f out of range", ev.Impact)
		}
	}
}

func TestAdjustStockPricesAppliesNewsImpact(t *testing.T) {
	m := newTestMarket(t, NewSource(1), quietDynamics())
	if err := m.SetImpact("Ho", 0.10); err != nil {
		t.Fatalf("set impact: %v", err)
	}
	date := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	m.AdjustStockPrices(date)

	ho, err := m.House("Ho")
	if err != nil {
		t.Fatalf("house: %v", err)
	}
	if ho.CurrentPrice != 121.00 {
		t.Fatalf("expected 121.00, got %v", ho.CurrentPrice)
	}
	last, ok := ho.LastPoint()
	if !ok || last.Price != 121.00 || last.Date.Format(DateLayout) != "2024-03-05" {
		t.Fatalf("unexpected last point %+v", last)
	}
	if m.PendingImpact("Ho") != 0 {
		t.Fatalf("impact should be reset")
	}
	voi, _ := m.House("Voi")
	if voi.CurrentPrice != 120 {
		t.Fatalf("house without news should not move without noise, got %v", voi.CurrentPrice)
	}
}

func TestAdjustStockPricesAppendsOnePointPerHouse(t *testing.T) {
	m := newTestMarket(t, NewSource(99), DefaultDynamics())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 30; day++ {
		if day%3 == 0 {
			m.SubmitNews()
		}
		before := m.Houses()
		date := start.AddDate(0, 0, day)
		m.AdjustStockPrices(date)
		for i, h := range m.Houses() {
			if len(h.PriceHistory) != len(before[i].PriceHistory)+1 {
				t.Fatalf("day %d house %s: history grew by %d", day, h.Name, len(h.PriceHistory)-len(before[i].PriceHistory))
			}
			last, _ := h.LastPoint()
			if last.Price != h.CurrentPrice {
				t.Fatalf("day %d house %s: last %v current %v", day, h.Name, last.Price, h.CurrentPrice)
			}
			if !last.Date.Equal(date) {
				t.Fatalf("day %d house %s: date %v", day, h.Name, last.Date)
			}
			if RoundPrice(h.CurrentPrice) != h.CurrentPrice {
				t.Fatalf("price %v not rounded to cents", h.CurrentPrice)
			}
		}
	}
}

func TestAdjustPoints(t *testing.T) {
	m := newTestMarket(t, NewSource(1), DefaultDynamics())
	mustRegister(t, m, "alice_1", "Ho")
	u, err := m.AdjustPoints("alice_1", 25)
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if u.PointsBalance != 1025 {
		t.Fatalf("expected 1025, got %v", u.PointsBalance)
	}
	if _, err := m.AdjustPoints("ghost", 1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestLeaderboardOrdersByPointsWithStableTies(t *testing.T) {
	m := newTestMarket(t, NewSource(1), DefaultDynamics())
	mustRegister(t, m, "user_a", "Ho")
	mustRegister(t, m, "user_b", "Voi")
	mustRegister(t, m, "user_c", "Te_Giac")
	if _, err := m.AdjustPoints("user_a", -500); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	rows := m.Leaderboard()
	want := []string{"user_b", "user_c", "user_a"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, name := range want {
		if rows[i].Username != name {
			t.Fatalf("row %d: got %s want %s", i, rows[i].Username, name)
		}
		if rows[i].Rank != int64(i+1) {
			t.Fatalf("row %d: rank %d", i, rows[i].Rank)
		}
	}
}

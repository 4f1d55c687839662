package market

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type Dynamics struct {
	MinImpact      float64
	MaxImpact      float64
	NoiseScale     float64
	MinShares      int
	MaxShares      int
	StartingPoints float64
}

func DefaultDynamics() Dynamics {
	return Dynamics{
		MinImpact:      -0.05,
		MaxImpact:      0.10,
		NoiseScale:     0.01,
		MinShares:      MinTradeShares,
		MaxShares:      MaxTradeShares,
		StartingPoints: StartingPoints,
	}
}

// Market owns the house, user and portfolio registries. It is not safe for
// concurrent use.
type Market struct {
	log  *slog.Logger
	rand Source
	dyn  Dynamics

	houses     map[string]*House
	houseOrder []string
	impact     map[string]float64

	users     map[string]*User
	userOrder []string

	portfolios   map[string]map[string]*Holding
	holdingOrder map[string][]string
}

func New(seeds []HouseSeed, src Source, dyn Dynamics, logger *slog.Logger) (*Market, error) {
	m := newMarket(src, dyn, logger)
	if len(seeds) == 0 {
		return nil, ErrNoHouses
	}
	for _, seed := range seeds {
		if err := m.addHouse(&House{Name: seed.Name, CurrentPrice: seed.Price, Volume: seed.Volume}); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newMarket(src Source, dyn Dynamics, logger *slog.Logger) *Market {
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		src = NewTimeSource()
	}
	return &Market{
		log:          logger,
		rand:         src,
		dyn:          dyn,
		houses:       make(map[string]*House),
		impact:       make(map[string]float64),
		users:        make(map[string]*User),
		portfolios:   make(map[string]map[string]*Holding),
		holdingOrder: make(map[string][]string),
	}
}

func (m *Market) addHouse(h *House) error {
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return errors.New("house name is required")
	}
	if _, dup := m.houses[h.Name]; dup {
		return fmt.Errorf("duplicate house %q", h.Name)
	}
	if !validPrice(h.CurrentPrice) {
		return fmt.Errorf("house %q: price must be > 0", h.Name)
	}
	m.houses[h.Name] = h
	m.houseOrder = append(m.houseOrder, h.Name)
	m.impact[h.Name] = 0
	return nil
}

func (m *Market) Register(username, house string) (User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return User{}, err
	}
	if _, dup := m.users[username]; dup {
		return User{}, ErrDuplicateUser
	}
	if _, ok := m.houses[house]; !ok {
		return User{}, ErrHouseNotFound
	}
	u := &User{Username: username, House: house, PointsBalance: m.dyn.StartingPoints}
	m.users[username] = u
	m.userOrder = append(m.userOrder, username)
	m.portfolios[username] = map[string]*Holding{house: {House: house}}
	m.holdingOrder[username] = []string{house}
	return *u, nil
}

// RegisterRandom registers a generated username affiliated with a uniformly
// chosen house. Collisions are retried a bounded number of times.
func (m *Market) RegisterRandom(names NameGenerator) (User, error) {
	const maxAttempts = 8
	for attempt := 0; attempt < maxAttempts; attempt++ {
		username, err := names.Username()
		if err != nil {
			return User{}, err
		}
		if _, taken := m.users[username]; taken {
			continue
		}
		return m.Register(username, m.randomHouse())
	}
	return User{}, fmt.Errorf("register: %w after %d attempts", ErrDuplicateUser, maxAttempts)
}

func (m *Market) randomHouse() string {
	return m.houseOrder[m.rand.Intn(len(m.houseOrder))]
}

func (m *Market) House(name string) (House, error) {
	h, ok := m.houses[name]
	if !ok {
		return House{}, ErrHouseNotFound
	}
	return copyHouse(h), nil
}

func (m *Market) Houses() []House {
	out := make([]House, 0, len(m.houseOrder))
	for _, name := range m.houseOrder {
		out = append(out, copyHouse(m.houses[name]))
	}
	return out
}

func (m *Market) HouseNames() []string {
	return append([]string(nil), m.houseOrder...)
}

func (m *Market) PendingImpact(house string) float64 {
	return m.impact[house]
}

func (m *Market) User(username string) (User, error) {
	u, ok := m.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return *u, nil
}

func (m *Market) Users() []User {
	out := make([]User, 0, len(m.userOrder))
	for _, name := range m.userOrder {
		out = append(out, *m.users[name])
	}
	return out
}

func (m *Market) UserCount() int {
	return len(m.userOrder)
}

func (m *Market) Portfolio(username string) ([]Holding, error) {
	holdings, ok := m.portfolios[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := make([]Holding, 0, len(holdings))
	for _, house := range m.holdingOrder[username] {
		out = append(out, *holdings[house])
	}
	return out, nil
}

func (m *Market) Shares(username, house string) int64 {
	if h, ok := m.portfolios[username][house]; ok {
		return h.Shares
	}
	return 0
}

// AdjustPoints adds delta to a user's balance. It is the only balance change
// outside of trading.
func (m *Market) AdjustPoints(username string, delta int64) (User, error) {
	u, ok := m.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	u.PointsBalance = addPoints(u.PointsBalance, decimal.NewFromInt(delta))
	return *u, nil
}

// Leaderboard ranks users by points balance, highest first. Ties keep
// registration order.
func (m *Market) Leaderboard() []LeaderboardRow {
	users := m.Users()
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].PointsBalance > users[j].PointsBalance
	})
	out := make([]LeaderboardRow, 0, len(users))
	for i, u := range users {
		out = append(out, LeaderboardRow{
			Rank:          int64(i + 1),
			Username:      u.Username,
			House:         u.House,
			PointsBalance: u.PointsBalance,
		})
	}
	return out
}

func copyHouse(h *House) House {
	out := *h
	out.PriceHistory = append([]PricePoint(nil), h.PriceHistory...)
	return out
}

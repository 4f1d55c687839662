package market

import (
	"fmt"
	"log/slog"
	"strings"
)

// Snapshot is the serialisable form of the three registries. Slice order is
// registry insertion order.
type Snapshot struct {
	Houses     []HouseRecord
	Users      []UserRecord
	Portfolios []PortfolioRecord
}

type HouseRecord struct {
	Name         string
	CurrentPrice float64
	Volume       int64
	PriceHistory []PricePoint
}

type UserRecord struct {
	Username      string
	House         string
	PointsBalance float64
}

type PortfolioRecord struct {
	Username string
	Holdings []Holding
}

func (m *Market) Snapshot() Snapshot {
	snap := Snapshot{
		Houses:     make([]HouseRecord, 0, len(m.houseOrder)),
		Users:      make([]UserRecord, 0, len(m.userOrder)),
		Portfolios: make([]PortfolioRecord, 0, len(m.userOrder)),
	}
	for _, h := range m.Houses() {
		snap.Houses = append(snap.Houses, HouseRecord(h))
	}
	snap.Users = m.UserRecords()
	for _, username := range m.userOrder {
		holdings, _ := m.Portfolio(username)
		snap.Portfolios = append(snap.Portfolios, PortfolioRecord{Username: username, Holdings: holdings})
	}
	return snap
}

func (m *Market) UserRecords() []UserRecord {
	out := make([]UserRecord, 0, len(m.userOrder))
	for _, u := range m.Users() {
		out = append(out, UserRecord(u))
	}
	return out
}

// FromSnapshot rebuilds a market from persisted records, rejecting any
// document that violates the registry invariants. Every error wraps
// ErrInvalidSnapshot. Names are trimmed before they are matched.
func FromSnapshot(snap Snapshot, src Source, dyn Dynamics, logger *slog.Logger) (*Market, error) {
	m := newMarket(src, dyn, logger)
	if len(snap.Houses) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, ErrNoHouses)
	}
	for _, rec := range snap.Houses {
		if err := validateHistory(rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		h := House(rec)
		h.PriceHistory = append([]PricePoint(nil), rec.PriceHistory...)
		if err := m.addHouse(&h); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
	}

	for _, rec := range snap.Users {
		name := strings.TrimSpace(rec.Username)
		if name == "" {
			return nil, fmt.Errorf("%w: empty username", ErrInvalidSnapshot)
		}
		if _, dup := m.users[name]; dup {
			return nil, fmt.Errorf("%w: duplicate user %q", ErrInvalidSnapshot, name)
		}
		house := strings.TrimSpace(rec.House)
		if _, ok := m.houses[house]; !ok {
			return nil, fmt.Errorf("%w: user %q references unknown house %q", ErrInvalidSnapshot, name, rec.House)
		}
		if !finite(rec.PointsBalance) {
			return nil, fmt.Errorf("%w: user %q has non-finite points balance", ErrInvalidSnapshot, name)
		}
		m.users[name] = &User{Username: name, House: house, PointsBalance: rec.PointsBalance}
		m.userOrder = append(m.userOrder, name)
		m.portfolios[name] = make(map[string]*Holding)
	}

	seen := make(map[string]struct{}, len(snap.Portfolios))
	for _, rec := range snap.Portfolios {
		name := strings.TrimSpace(rec.Username)
		if _, ok := m.users[name]; !ok {
			return nil, fmt.Errorf("%w: portfolio for unknown user %q", ErrInvalidSnapshot, rec.Username)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate portfolio %q", ErrInvalidSnapshot, name)
		}
		seen[name] = struct{}{}
		for _, holding := range rec.Holdings {
			house := strings.TrimSpace(holding.House)
			if _, ok := m.houses[house]; !ok {
				return nil, fmt.Errorf("%w: portfolio %q references unknown house %q", ErrInvalidSnapshot, name, holding.House)
			}
			if holding.Shares < 0 {
				return nil, fmt.Errorf("%w: portfolio %q has negative shares in %q", ErrInvalidSnapshot, name, house)
			}
			if _, dup := m.portfolios[name][house]; dup {
				return nil, fmt.Errorf("%w: portfolio %q lists %q twice", ErrInvalidSnapshot, name, house)
			}
			m.holding(name, house).Shares = holding.Shares
		}
	}
	return m, nil
}

func validateHistory(rec HouseRecord) error {
	for i, p := range rec.PriceHistory {
		if !validPrice(p.Price) {
			return fmt.Errorf("house %q: history entry %d has invalid price", rec.Name, i)
		}
		if p.Date.IsZero() {
			return fmt.Errorf("house %q: history entry %d has no date", rec.Name, i)
		}
	}
	if n := len(rec.PriceHistory); n > 0 && rec.PriceHistory[n-1].Price != rec.CurrentPrice {
		return fmt.Errorf("house %q: current price %.2f does not match last close %.2f", rec.Name, rec.CurrentPrice, rec.PriceHistory[n-1].Price)
	}
	return nil
}

package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"housemarket/internal/auth"
	"housemarket/internal/market"
	"housemarket/internal/store"
)

type Options struct {
	// LiveTrading routes register, buy and sell through the engine instead of
	// answering with DemoMessage.
	LiveTrading bool
	Source      market.Source
	Dynamics    market.Dynamics
}

// Service answers queries over a loaded market and applies the few writes the
// API exposes. All access is serialised on one mutex; every successful write
// is persisted before the call returns.
type Service struct {
	mu     sync.Mutex
	market *market.Market
	store  store.Store
	codes  *auth.CodeVerifier
	opts   Options
	log    *slog.Logger
}

// Open loads the snapshot from st. Any missing or malformed document is an
// error; there is no partial startup.
func Open(ctx context.Context, st store.Store, codes *auth.CodeVerifier, opts Options, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = withDefaults(opts)
	snap, err := st.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	m, err := market.FromSnapshot(snap, opts.Source, opts.Dynamics, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("snapshot loaded", "houses", len(snap.Houses), "users", len(snap.Users))
	return &Service{market: m, store: st, codes: codes, opts: opts, log: logger}, nil
}

func New(m *market.Market, st store.Store, codes *auth.CodeVerifier, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{market: m, store: st, codes: codes, opts: withDefaults(opts), log: logger}
}

func withDefaults(opts Options) Options {
	if opts.Source == nil {
		opts.Source = market.NewTimeSource()
	}
	if opts.Dynamics == (market.Dynamics{}) {
		opts.Dynamics = market.DefaultDynamics()
	}
	return opts
}

func (s *Service) LiveTrading() bool {
	return s.opts.LiveTrading
}

func (s *Service) Houses(name string) (map[string]HouseView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	if name == "" {
		return s.allHouses(), nil
	}
	h, err := s.market.House(name)
	if err != nil {
		return nil, err
	}
	return map[string]HouseView{h.Name: houseView(h)}, nil
}

func (s *Service) AllHouses() map[string]HouseView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allHouses()
}

func (s *Service) allHouses() map[string]HouseView {
	houses := s.market.Houses()
	out := make(map[string]HouseView, len(houses))
	for _, h := range houses {
		out[h.Name] = houseView(h)
	}
	return out
}

func (s *Service) Portfolio(username string) (PortfolioView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.market.User(username)
	if err != nil {
		return PortfolioView{}, err
	}
	holdings, err := s.market.Portfolio(username)
	if err != nil {
		return PortfolioView{}, err
	}
	out := PortfolioView{Portfolio: make(map[string]HoldingView, len(holdings)), PointsBalance: u.PointsBalance}
	for _, h := range holdings {
		out.Portfolio[h.House] = HoldingView{Shares: h.Shares}
	}
	return out, nil
}

func (s *Service) PriceHistory(house string) ([]PricePointView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, err := s.market.House(house)
	if err != nil {
		return nil, err
	}
	return priceHistoryView(h.PriceHistory), nil
}

func (s *Service) Leaderboard() []LeaderboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.market.Leaderboard()
	out := make([]LeaderboardEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, LeaderboardEntry(r))
	}
	return out
}

// EarnPoints adds points to username when code matches. The change is
// written to the user document before returning and undone if that write
// fails. Repeated calls add the points again.
func (s *Service) EarnPoints(ctx context.Context, username, points, code string) (Ack, error) {
	if err := s.codes.Verify(code); err != nil {
		return Ack{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.market.User(username); err != nil {
		return Ack{}, err
	}
	delta, err := strconv.ParseInt(strings.TrimSpace(points), 10, 64)
	if err != nil {
		return Ack{}, market.ErrInvalidPoints
	}

	err = s.commit(ctx, func() error {
		_, err := s.market.AdjustPoints(username, delta)
		return err
	}, func(ctx context.Context) error {
		return s.store.SaveUsers(ctx, s.market.UserRecords())
	})
	if err != nil {
		return Ack{}, err
	}
	s.log.Info("points adjusted", "username", username, "points", delta)
	return Ack{Message: fmt.Sprintf("%d points added to %s", delta, username)}, nil
}

func (s *Service) Register(ctx context.Context, in RegisterRequest) (Ack, error) {
	if !s.opts.LiveTrading {
		return Ack{Message: DemoMessage}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var u market.User
	err := s.commit(ctx, func() error {
		var err error
		u, err = s.market.Register(in.Username, strings.TrimSpace(in.House))
		return err
	}, s.saveAll)
	if err != nil {
		return Ack{}, err
	}
	s.log.Info("user registered", "username", u.Username, "house", u.House)
	return Ack{Message: fmt.Sprintf("registered %s in %s", u.Username, u.House)}, nil
}

func (s *Service) Buy(ctx context.Context, in TradeRequest) (Ack, error) {
	return s.trade(ctx, market.SideBuy, in)
}

func (s *Service) Sell(ctx context.Context, in TradeRequest) (Ack, error) {
	return s.trade(ctx, market.SideSell, in)
}

func (s *Service) trade(ctx context.Context, side market.Side, in TradeRequest) (Ack, error) {
	if !s.opts.LiveTrading {
		return Ack{Message: DemoMessage}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var res market.TradeResult
	err := s.commit(ctx, func() error {
		var err error
		if side == market.SideBuy {
			res, err = s.market.Buy(in.Username, in.House, in.Shares)
		} else {
			res, err = s.market.Sell(in.Username, in.House, in.Shares)
		}
		return err
	}, s.saveAll)
	if err != nil {
		return Ack{}, err
	}
	u, _ := s.market.User(in.Username)
	s.log.Info("trade executed", "username", in.Username, "house", in.House, "side", side, "shares", in.Shares, "price", res.Price)
	return Ack{
		Message: fmt.Sprintf("%s %d %s", side, res.Shares, res.House),
		Trade: &TradeView{
			House:         res.House,
			Side:          string(res.Side),
			Shares:        res.Shares,
			Price:         res.Price,
			Notional:      res.Notional,
			PointsBalance: u.PointsBalance,
			SharesHeld:    s.market.Shares(in.Username, in.House),
		},
	}, nil
}

func (s *Service) saveAll(ctx context.Context) error {
	return s.store.Save(ctx, s.market.Snapshot())
}

// commit runs mutate then persist with s.mu held. If persist fails the market
// is restored to its state before mutate.
func (s *Service) commit(ctx context.Context, mutate func() error, persist func(context.Context) error) error {
	before := s.market.Snapshot()
	if err := mutate(); err != nil {
		return err
	}
	if err := persist(ctx); err != nil {
		restored, rerr := market.FromSnapshot(before, s.opts.Source, s.opts.Dynamics, s.log)
		if rerr != nil {
			return fmt.Errorf("persist: %v; restore: %w", err, rerr)
		}
		s.market = restored
		s.log.Error("persist failed, change rolled back", "err", err)
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

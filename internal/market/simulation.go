package market

import (
	"context"
	"log/slog"
	"time"
)

type SimulationConfig struct {
	Days        int
	UsersPerDay int
	// NewsEvery submits news on days where day%NewsEvery == 0. Zero disables news.
	NewsEvery int
	StartDate time.Time
}

func DefaultSimulationConfig(now time.Time) SimulationConfig {
	const days = 14
	return SimulationConfig{
		Days:        days,
		UsersPerDay: 5,
		NewsEvery:   2,
		StartDate:   DayOf(now).AddDate(0, 0, -days),
	}
}

type DayReport struct {
	Day             int
	Date            time.Time
	Registered      []string
	News            *NewsEvent
	TradesAttempted int
	TradesExecuted  int
}

type Simulator struct {
	market *Market
	names  NameGenerator
	cfg    SimulationConfig
	log    *slog.Logger
}

func NewSimulator(m *Market, names NameGenerator, cfg SimulationConfig, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	if names == nil {
		names = NewNameGenerator(m.rand)
	}
	return &Simulator{market: m, names: names, cfg: cfg, log: logger}
}

// Run advances the market through every configured day, stopping early when
// ctx is done.
func (s *Simulator) Run(ctx context.Context) ([]DayReport, error) {
	reports := make([]DayReport, 0, s.cfg.Days)
	for day := 0; day < s.cfg.Days; day++ {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.RunDay(day)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Simulator) RunDay(day int) (DayReport, error) {
	m := s.market
	report := DayReport{Day: day, Date: DayOf(s.cfg.StartDate).AddDate(0, 0, day)}

	for i := 0; i < s.cfg.UsersPerDay; i++ {
		u, err := m.RegisterRandom(s.names)
		if err != nil {
			return report, err
		}
		report.Registered = append(report.Registered, u.Username)
	}

	if s.cfg.NewsEvery > 0 && day%s.cfg.NewsEvery == 0 {
		ev := m.SubmitNews()
		report.News = &ev
	}

	// userOrder only grows during registration, so each user trades once.
	for _, username := range m.userOrder {
		report.TradesAttempted++
		if m.UserTrade(username).Executed {
			report.TradesExecuted++
		}
	}

	m.AdjustStockPrices(report.Date)

	attrs := []any{
		"day", day,
		"date", report.Date.Format(DateLayout),
		"registered", len(report.Registered),
		"trades_attempted", report.TradesAttempted,
		"trades_executed", report.TradesExecuted,
	}
	if report.News != nil {
		attrs = append(attrs, "news_house", report.News.House, "news_impact", report.News.Impact)
	}
	s.log.Info("simulated day", attrs...)
	return report, nil
}

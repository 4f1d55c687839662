package main

import (
	"context"
	"errors"
	"testing"

	"housemarket/internal/exchange"

	tea "github.com/charmbracelet/bubbletea"
)

func TestFormatPoints(t *testing.T) {
	cases := map[float64]string{
		0:         "0.00",
		900.01:    "900.01",
		1234567.5: "1,234,567.50",
		-42.1:     "-42.10",
		99.999:    "100.00",
	}
	for in, want := range cases {
		if got := formatPoints(in); got != want {
			t.Errorf("formatPoints(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestCommaAndTruncate(t *testing.T) {
	if got := comma(1200); got != "1,200" {
		t.Fatalf("comma: %q", got)
	}
	if got := comma(-1000000); got != "-1,000,000" {
		t.Fatalf("negative comma: %q", got)
	}
	if got := truncate("Rua_Bien_Extended", 10); got != "Rua_Bie..." {
		t.Fatalf("truncate: %q", got)
	}
}

func TestTrend(t *testing.T) {
	history := []exchange.PricePointView{{Date: "2024-06-01", Price: 100}, {Date: "2024-06-02", Price: 110}}
	if got := trend(history); got < 9.999 || got > 10.001 {
		t.Fatalf("trend: %v", got)
	}
	if got := trend(history[:1]); got != 0 {
		t.Fatalf("single point trend: %v", got)
	}
}

func TestWatchModelUpdate(t *testing.T) {
	m := newWatchModel(context.Background(), nil, 0)

	next, _ := m.Update(boardMsg{
		houses: map[string]exchange.HouseView{"Voi": {CurrentPrice: 121, Volume: 800}},
		rows:   []exchange.LeaderboardEntry{{Rank: 1, Username: "alice", House: "Voi", PointsBalance: 1000}},
	})
	m = next.(watchModel)
	if len(m.houses) != 1 || len(m.rows) != 1 || m.err != nil {
		t.Fatalf("board not applied: %+v", m)
	}

	next, _ = m.Update(boardMsg{err: errors.New("connection refused")})
	m = next.(watchModel)
	if m.err == nil || len(m.houses) != 1 {
		t.Fatalf("error should keep last board: %+v", m)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(watchModel)
	if !m.leaders {
		t.Fatalf("tab should switch to leaderboard")
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
}

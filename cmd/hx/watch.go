package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	cl "housemarket/internal/cli"
	"housemarket/internal/exchange"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type watchKeys struct {
	Refresh key.Binding
	Toggle  key.Binding
	Quit    key.Binding
}

func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Refresh, k.Toggle, k.Quit}
}

func (k watchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Toggle:  key.NewBinding(key.WithKeys("tab", "l"), key.WithHelp("tab", "houses/leaderboard")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

type boardMsg struct {
	houses map[string]exchange.HouseView
	rows   []exchange.LeaderboardEntry
	at     time.Time
	err    error
}

type tickMsg time.Time

type watchModel struct {
	client   *cl.Client
	ctx      context.Context
	every    time.Duration
	keys     watchKeys
	help     help.Model
	houses   map[string]exchange.HouseView
	rows     []exchange.LeaderboardEntry
	leaders  bool
	loadedAt time.Time
	err      error
}

func newWatchModel(ctx context.Context, client *cl.Client, every time.Duration) watchModel {
	return watchModel{
		client: client,
		ctx:    ctx,
		every:  every,
		keys:   defaultWatchKeys(),
		help:   help.New(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.fetch, m.tick())
}

func (m watchModel) tick() tea.Cmd {
	return tea.Tick(m.every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) fetch() tea.Msg {
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()
	houses, err := m.client.AllHouses(ctx)
	if err != nil {
		return boardMsg{err: err}
	}
	rows, err := m.client.Leaderboard(ctx)
	if err != nil {
		return boardMsg{err: err}
	}
	return boardMsg{houses: houses, rows: rows, at: time.Now()}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch
		case key.Matches(msg, m.keys.Toggle):
			m.leaders = !m.leaders
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	case tickMsg:
		return m, tea.Batch(m.fetch, m.tick())
	case boardMsg:
		m.err = msg.err
		if msg.err == nil {
			m.houses = msg.houses
			m.rows = msg.rows
			m.loadedAt = msg.at
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	if m.leaders {
		b.WriteString(titleStyle.Render("LEADERBOARD"))
		b.WriteString("\n\n")
		b.WriteString(m.leaderboardView())
	} else {
		b.WriteString(titleStyle.Render("HOUSE MARKET"))
		b.WriteString("\n\n")
		b.WriteString(m.housesView())
	}

	status := dimStyle.Render("waiting for data...")
	if !m.loadedAt.IsZero() {
		status = dimStyle.Render("updated " + m.loadedAt.Format("15:04:05"))
	}
	if m.err != nil {
		status = downStyle.Render("error: " + m.err.Error())
	}
	return panelStyle.Render(b.String()) + "\n" + status + "\n" + m.help.View(m.keys) + "\n"
}

func (m watchModel) housesView() string {
	if len(m.houses) == 0 {
		return dimStyle.Render("no houses")
	}
	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%-14s %12s %10s %9s", "HOUSE", "PRICE", "VOLUME", "DAY")))
	b.WriteString("\n")
	for _, name := range slices.Sorted(maps.Keys(m.houses)) {
		h := m.houses[name]
		fmt.Fprintf(&b, "%-14s %12s %10s %9s\n", truncate(name, 14), formatPoints(h.CurrentPrice), comma(h.Volume), dayChange(h.PriceHistory))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m watchModel) leaderboardView() string {
	if len(m.rows) == 0 {
		return dimStyle.Render("no users")
	}
	var b strings.Builder
	b.WriteString(headStyle.Render(fmt.Sprintf("%-5s %-28s %-12s %12s", "RANK", "USER", "HOUSE", "POINTS")))
	b.WriteString("\n")
	limit := min(len(m.rows), 15)
	for _, row := range m.rows[:limit] {
		fmt.Fprintf(&b, "%-5d %-28s %-12s %12s\n", row.Rank, truncate(row.Username, 28), truncate(row.House, 12), formatPoints(row.PointsBalance))
	}
	return strings.TrimRight(b.String(), "\n")
}

func dayChange(history []exchange.PricePointView) string {
	n := len(history)
	if n < 2 || history[n-2].Price == 0 {
		return dimStyle.Render(fmt.Sprintf("%9s", "-"))
	}
	pct := (history[n-1].Price - history[n-2].Price) / history[n-2].Price * 100
	text := fmt.Sprintf("%+8.2f%%", pct)
	switch {
	case pct > 0:
		return upStyle.Render(text)
	case pct < 0:
		return downStyle.Render(text)
	default:
		return text
	}
}

func newWatchCmd(apiBase *string) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live board of house prices and the leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if every < time.Second {
				every = time.Second
			}
			model := newWatchModel(cmd.Context(), newClient(apiBase), every)
			_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&every, "every", 5*time.Second, "poll interval")
	return cmd
}

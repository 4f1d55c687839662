package main

import (
	"bufio"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"housemarket/internal/exchange"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptSecret reads without echo when stdin is a terminal.
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(string(raw))
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func renderHouses(houses map[string]exchange.HouseView) error {
	accent.Println("\n== HOUSES ==")
	if len(houses) == 0 {
		printInfo("No houses found.")
		return nil
	}
	fmt.Printf("%-14s %12s %10s %10s %6s\n", "HOUSE", "PRICE", "VOLUME", "TREND", "DAYS")
	for _, name := range slices.Sorted(maps.Keys(houses)) {
		h := houses[name]
		fmt.Printf("%-14s %12s %10s %10s %6d\n",
			truncate(name, 14),
			formatPoints(h.CurrentPrice),
			comma(h.Volume),
			colorizePercent(trend(h.PriceHistory)),
			len(h.PriceHistory),
		)
	}
	fmt.Println()
	return nil
}

func renderHouseDetail(name string, h exchange.HouseView) error {
	accent.Printf("\n== %s ==\n", name)
	fmt.Printf("Current Price: %s\n", formatPoints(h.CurrentPrice))
	fmt.Printf("Volume:        %s\n", comma(h.Volume))
	if len(h.PriceHistory) > 1 {
		fmt.Printf("Trend:         %s\n", colorizePercent(trend(h.PriceHistory)))
	}
	fmt.Println()
	return nil
}

func renderHistory(house string, history []exchange.PricePointView) error {
	accent.Printf("\n== %s PRICE HISTORY ==\n", house)
	if len(history) == 0 {
		printInfo("No closes recorded yet.")
		return nil
	}
	fmt.Printf("%-12s %12s %10s\n", "DATE", "CLOSE", "CHANGE")
	prev := 0.0
	for i, p := range history {
		change := neutral.Sprint("-")
		if i > 0 && prev != 0 {
			change = colorizePercent((p.Price - prev) / prev * 100)
		}
		fmt.Printf("%-12s %12s %10s\n", p.Date, formatPoints(p.Price), change)
		prev = p.Price
	}
	fmt.Println()
	return nil
}

func renderPortfolio(username string, p exchange.PortfolioView) error {
	accent.Printf("\n== PORTFOLIO: %s ==\n", username)
	fmt.Printf("Points: %s\n\n", formatPoints(p.PointsBalance))
	if len(p.Portfolio) == 0 {
		printInfo("No holdings yet.")
		return nil
	}
	fmt.Printf("%-14s %10s\n", "HOUSE", "SHARES")
	for _, house := range slices.Sorted(maps.Keys(p.Portfolio)) {
		fmt.Printf("%-14s %10s\n", truncate(house, 14), comma(p.Portfolio[house].Shares))
	}
	fmt.Println()
	return nil
}

func renderLeaderboard(rows []exchange.LeaderboardEntry) error {
	accent.Println("\n== LEADERBOARD ==")
	if len(rows) == 0 {
		printInfo("No users yet.")
		return nil
	}
	fmt.Printf("%-6s %-32s %-14s %14s\n", "RANK", "USER", "HOUSE", "POINTS")
	for _, row := range rows {
		fmt.Printf("%-6d %-32s %-14s %14s\n",
			row.Rank,
			truncate(row.Username, 32),
			truncate(row.House, 14),
			formatPoints(row.PointsBalance),
		)
	}
	fmt.Println()
	return nil
}

func renderTrade(ack exchange.Ack) error {
	if ack.Trade == nil {
		printWarn(ack.Message)
		return nil
	}
	t := ack.Trade
	printSuccess(fmt.Sprintf("%s %d %s @ %s", strings.ToUpper(t.Side), t.Shares, t.House, formatPoints(t.Price)))
	fmt.Printf("Notional:   %s\n", formatPoints(t.Notional))
	fmt.Printf("Points:     %s\n", formatPoints(t.PointsBalance))
	fmt.Printf("Shares now: %s\n", comma(t.SharesHeld))
	return nil
}

func trend(history []exchange.PricePointView) float64 {
	if len(history) < 2 || history[0].Price == 0 {
		return 0
	}
	first, last := history[0].Price, history[len(history)-1].Price
	return (last - first) / first * 100
}

func colorizePercent(v float64) string {
	text := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func formatPoints(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.IntPart()
	frac := d.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()
	return fmt.Sprintf("%s%s.%02d", sign, comma(whole), frac)
}

func comma(v int64) string {
	if v < 0 {
		return "-" + comma(-v)
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

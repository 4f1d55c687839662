package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	cl "housemarket/internal/cli"
	"housemarket/internal/config"
	"housemarket/internal/exchange"
	"housemarket/internal/market"

	"github.com/spf13/cobra"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "hx",
		Short:        "House market CLI client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newHousesCmd(&apiBase),
		newHistoryCmd(&apiBase),
		newPortfolioCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newEarnCmd(&apiBase),
		newCodeCmd(),
		newRegisterCmd(&apiBase),
		newTradeCmd(&apiBase, market.SideBuy),
		newTradeCmd(&apiBase, market.SideSell),
		newWatchCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func newHousesCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "houses [name]",
		Short: "List houses or show one house",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = strings.TrimSpace(args[0])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			houses, err := newClient(apiBase).Houses(ctx, name)
			if err != nil {
				return err
			}
			if name != "" {
				return renderHouseDetail(name, houses[name])
			}
			return renderHouses(houses)
		},
	}
}

func newHistoryCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "history [house]",
		Short: "Show the daily closes of a house",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			house, err := argOrPrompt(args, 0, "House")
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			history, err := newClient(apiBase).PriceHistory(ctx, house)
			if err != nil {
				return err
			}
			return renderHistory(house, history)
		},
	}
}

func newPortfolioCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio [username]",
		Short: "Show a user's holdings and points",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := usernameFromArgsOrProfile(args)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			p, err := newClient(apiBase).Portfolio(ctx, username)
			if err != nil {
				return err
			}
			return renderPortfolio(username, p)
		},
	}
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by points balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rows, err := newClient(apiBase).Leaderboard(ctx)
			if err != nil {
				return err
			}
			return renderLeaderboard(rows)
		},
	}
}

func newEarnCmd(apiBase *string) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "earn <username> <points>",
		Short: "Award points to a user with the shared code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			points, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil {
				return market.ErrInvalidPoints
			}
			secret, err := earnCode(code)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ack, err := newClient(apiBase).EarnPoints(ctx, username, points, secret)
			if err != nil {
				var apiErr *cl.APIError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
					printWarn("Code rejected. Update it with `hx code set`.")
				}
				return err
			}
			printSuccess(ack.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "code", "", "shared earn code (defaults to the saved profile)")
	return cmd
}

func newCodeCmd() *cobra.Command {
	code := &cobra.Command{
		Use:   "code",
		Short: "Manage the saved earn code",
	}
	code.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Save the earn code to ~/.hx",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := promptSecret("Earn code")
			if err != nil {
				return err
			}
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			profile.EarnCode = secret
			if err := cl.SaveProfile(profile); err != nil {
				return err
			}
			printSuccess("Earn code saved.")
			return nil
		},
	})
	code.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the saved profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Profile cleared.")
			return nil
		},
	})
	return code
}

func newRegisterCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "register <username> <house>",
		Short: "Register a user in a house",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := exchange.RegisterRequest{
				Username: strings.TrimSpace(args[0]),
				House:    strings.TrimSpace(args[1]),
			}
			if err := market.ValidateUsername(in.Username); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			ack, err := newClient(apiBase).Register(ctx, in)
			if err != nil {
				return err
			}
			if ack.Message == exchange.DemoMessage {
				printWarn(ack.Message)
				return nil
			}
			profile, err := cl.LoadProfile()
			if err == nil && profile.Username == "" {
				profile.Username = in.Username
				_ = cl.SaveProfile(profile)
			}
			printSuccess(ack.Message)
			return nil
		},
	}
}

func newTradeCmd(apiBase *string, side market.Side) *cobra.Command {
	return &cobra.Command{
		Use:   string(side) + " <house> <shares> [username]",
		Short: strings.ToUpper(string(side[:1])) + string(side[1:]) + " shares of a house",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			shares, err := strconv.ParseInt(strings.TrimSpace(args[1]), 10, 64)
			if err != nil || shares <= 0 {
				return market.ErrInvalidShares
			}
			username, err := usernameFromArgsOrProfile(args[2:])
			if err != nil {
				return err
			}
			in := exchange.TradeRequest{Username: username, House: strings.TrimSpace(args[0]), Shares: shares}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := newClient(apiBase)
			var ack exchange.Ack
			if side == market.SideBuy {
				ack, err = client.Buy(ctx, in)
			} else {
				ack, err = client.Sell(ctx, in)
			}
			if err != nil {
				return err
			}
			return renderTrade(ack)
		},
	}
}

func earnCode(flagValue string) (string, error) {
	if code := strings.TrimSpace(flagValue); code != "" {
		return code, nil
	}
	profile, err := cl.LoadProfile()
	if err != nil {
		return "", err
	}
	if profile.EarnCode != "" {
		return profile.EarnCode, nil
	}
	return promptSecret("Earn code")
}

func usernameFromArgsOrProfile(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	profile, err := cl.LoadProfile()
	if err == nil && profile.Username != "" {
		return profile.Username, nil
	}
	return promptRequired("Username")
}

func argOrPrompt(args []string, idx int, label string) (string, error) {
	if len(args) > idx {
		return strings.TrimSpace(args[idx]), nil
	}
	return promptRequired(label)
}

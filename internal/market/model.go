package market

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StartingPoints = 1000.0
	PricePlaces    = 2

	MinTradeShares = 1
	MaxTradeShares = 10

	DateLayout = "2006-01-02"
)

var (
	ErrHouseNotFound      = errors.New("house not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("username already registered")
	ErrInvalidUsername    = errors.New("username must be 3-32 letters, digits, dots or underscores")
	ErrInvalidShares      = errors.New("shares must be > 0")
	ErrInsufficientFunds  = errors.New("insufficient points")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrInvalidPoints      = errors.New("points must be a whole number")
	ErrInvalidSnapshot    = errors.New("invalid snapshot")
	ErrUnauthorized       = errors.New("invalid code")
	ErrNoHouses           = errors.New("at least one house is required")
)

var usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,32}$`)

func ValidateUsername(username string) error {
	if !usernameRE.MatchString(strings.TrimSpace(username)) {
		return ErrInvalidUsername
	}
	return nil
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type PricePoint struct {
	Date  time.Time
	Price float64
}

type House struct {
	Name         string
	CurrentPrice float64
	Volume       int64
	PriceHistory []PricePoint
}

func (h *House) LastPoint() (PricePoint, bool) {
	if len(h.PriceHistory) == 0 {
		return PricePoint{}, false
	}
	return h.PriceHistory[len(h.PriceHistory)-1], true
}

type HouseSeed struct {
	Name   string  `yaml:"name"`
	Price  float64 `yaml:"price"`
	Volume int64   `yaml:"volume"`
}

// DefaultHouses is the fixed house set of the reference game.
func DefaultHouses() []HouseSeed {
	return []HouseSeed{
		{Name: "Rua_Bien", Price: 100, Volume: 1000},
		{Name: "Voi", Price: 120, Volume: 800},
		{Name: "Te_Giac", Price: 90, Volume: 1200},
		{Name: "Ho", Price: 110, Volume: 1100},
	}
}

type User struct {
	Username      string
	House         string
	PointsBalance float64
}

type Holding struct {
	House  string
	Shares int64
}

type NewsEvent struct {
	House  string
	Impact float64
}

type TradeResult struct {
	Username string
	House    string
	Side     Side
	Shares   int64
	Price    float64
	Notional float64
	Executed bool
}

type LeaderboardRow struct {
	Rank          int64
	Username      string
	House         string
	PointsBalance float64
}

func RoundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(PricePlaces).InexactFloat64()
}

func decimalOf(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func notional(price float64, shares int64) decimal.Decimal {
	return decimalOf(price).Mul(decimal.NewFromInt(shares))
}

func addPoints(balance float64, delta decimal.Decimal) float64 {
	return decimalOf(balance).Add(delta).InexactFloat64()
}

func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

func validPrice(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

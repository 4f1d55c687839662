package exchange

import "housemarket/internal/market"

// DemoMessage acknowledges register, buy and sell when live trading is off.
const DemoMessage = "This endpoint is for demonstration only."

type HouseView struct {
	CurrentPrice float64          `json:"current_price"`
	Volume       int64            `json:"volume"`
	PriceHistory []PricePointView `json:"price_history"`
}

type PricePointView struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type HoldingView struct {
	Shares int64 `json:"shares"`
}

type PortfolioView struct {
	Portfolio     map[string]HoldingView `json:"portfolio"`
	PointsBalance float64                `json:"points_balance"`
}

type LeaderboardEntry struct {
	Rank          int64   `json:"rank"`
	Username      string  `json:"username"`
	House         string  `json:"house"`
	PointsBalance float64 `json:"points_balance"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	House    string `json:"house"`
}

type TradeRequest struct {
	Username string `json:"username"`
	House    string `json:"house"`
	Shares   int64  `json:"shares"`
}

type TradeView struct {
	House         string  `json:"house"`
	Side          string  `json:"side"`
	Shares        int64   `json:"shares"`
	Price         float64 `json:"price"`
	Notional      float64 `json:"notional"`
	PointsBalance float64 `json:"points_balance"`
	SharesHeld    int64   `json:"shares_held"`
}

type Ack struct {
	Message string     `json:"message"`
	Trade   *TradeView `json:"trade,omitempty"`
}

func houseView(h market.House) HouseView {
	out := HouseView{
		CurrentPrice: h.CurrentPrice,
		Volume:       h.Volume,
		PriceHistory: priceHistoryView(h.PriceHistory),
	}
	return out
}

func priceHistoryView(points []market.PricePoint) []PricePointView {
	out := make([]PricePointView, 0, len(points))
	for _, p := range points {
		out = append(out, PricePointView{Date: p.Date.Format(market.DateLayout), Price: p.Price})
	}
	return out
}

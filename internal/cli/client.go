package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"housemarket/internal/exchange"

	"github.com/google/uuid"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// APIError is a non-2xx response. Message is the server's "error" field when
// the body carries one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Status, e.Message)
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Houses(ctx context.Context, name string) (map[string]exchange.HouseView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		var out struct {
			Houses map[string]exchange.HouseView `json:"houses"`
		}
		err := c.jsonRequest(ctx, http.MethodGet, "/houses", nil, &out)
		return out.Houses, err
	}
	var out map[string]exchange.HouseView
	err := c.jsonRequest(ctx, http.MethodGet, "/houses?"+url.Values{"house_name": {name}}.Encode(), nil, &out)
	return out, err
}

func (c *Client) AllHouses(ctx context.Context) (map[string]exchange.HouseView, error) {
	var out struct {
		Houses map[string]exchange.HouseView `json:"houses"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/all-houses", nil, &out)
	return out.Houses, err
}

func (c *Client) Portfolio(ctx context.Context, username string) (exchange.PortfolioView, error) {
	var out exchange.PortfolioView
	err := c.jsonRequest(ctx, http.MethodGet, "/portfolio?"+url.Values{"username": {username}}.Encode(), nil, &out)
	return out, err
}

func (c *Client) PriceHistory(ctx context.Context, house string) ([]exchange.PricePointView, error) {
	var out struct {
		PriceHistory []exchange.PricePointView `json:"price_history"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/price-history/"+url.PathEscape(house), nil, &out)
	return out.PriceHistory, err
}

func (c *Client) Leaderboard(ctx context.Context) ([]exchange.LeaderboardEntry, error) {
	var out struct {
		Leaderboard []exchange.LeaderboardEntry `json:"leaderboard"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/leaderboard", nil, &out)
	return out.Leaderboard, err
}

func (c *Client) EarnPoints(ctx context.Context, username string, points int64, code string) (exchange.Ack, error) {
	q := url.Values{
		"username": {username},
		"points":   {fmt.Sprintf("%d", points)},
		"code":     {code},
	}
	var out exchange.Ack
	err := c.jsonRequest(ctx, http.MethodPost, "/earn-points?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, in exchange.RegisterRequest) (exchange.Ack, error) {
	var out exchange.Ack
	err := c.jsonRequest(ctx, http.MethodPost, "/register", in, &out)
	return out, err
}

func (c *Client) Buy(ctx context.Context, in exchange.TradeRequest) (exchange.Ack, error) {
	var out exchange.Ack
	err := c.jsonRequest(ctx, http.MethodPost, "/buy", in, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, in exchange.TradeRequest) (exchange.Ack, error) {
	var out exchange.Ack
	err := c.jsonRequest(ctx, http.MethodPost, "/sell", in, &out)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return apiError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(status int, raw []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: status, Message: msg}
}

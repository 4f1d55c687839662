package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"housemarket/internal/market"
)

type userDoc struct {
	House         *string  `json:"house"`
	PointsBalance *float64 `json:"points_balance"`
}

type holdingDoc struct {
	Shares *int64 `json:"shares"`
}

type houseDoc struct {
	CurrentPrice *float64       `json:"current_price"`
	Volume       *int64         `json:"volume"`
	PriceHistory []pricePointDoc `json:"price_history"`
}

type pricePointDoc struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// entry and object keep key order when encoding; encoding/json sorts map keys.
type entry struct {
	Key   string
	Value any
}

type object []entry

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalDocument(o object) ([]byte, error) {
	raw, err := json.MarshalIndent(o, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(raw, '\n'), nil
}

// decodeObject walks a JSON object in document order, decoding each value
// into T. Duplicate keys, unknown fields and trailing data are rejected.
func decodeObject[T any](r io.Reader, fn func(key string, v T) error) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected a JSON object")
	}
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.New("expected an object key")
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = struct{}{}
		var v T
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
		if err := fn(key, v); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}

func encodeUsers(users []market.UserRecord) ([]byte, error) {
	doc := make(object, 0, len(users))
	for _, u := range users {
		house, points := u.House, u.PointsBalance
		doc = append(doc, entry{Key: u.Username, Value: userDoc{House: &house, PointsBalance: &points}})
	}
	return marshalDocument(doc)
}

func decodeUsers(r io.Reader) ([]market.UserRecord, error) {
	var out []market.UserRecord
	err := decodeObject(r, func(username string, d userDoc) error {
		if d.House == nil || d.PointsBalance == nil {
			return errors.New("house and points_balance are required")
		}
		out = append(out, market.UserRecord{Username: username, House: *d.House, PointsBalance: *d.PointsBalance})
		return nil
	})
	return out, err
}

func encodePortfolios(portfolios []market.PortfolioRecord) ([]byte, error) {
	doc := make(object, 0, len(portfolios))
	for _, p := range portfolios {
		holdings := make(object, 0, len(p.Holdings))
		for _, h := range p.Holdings {
			shares := h.Shares
			holdings = append(holdings, entry{Key: h.House, Value: holdingDoc{Shares: &shares}})
		}
		doc = append(doc, entry{Key: p.Username, Value: holdings})
	}
	return marshalDocument(doc)
}

func decodePortfolios(r io.Reader) ([]market.PortfolioRecord, error) {
	var out []market.PortfolioRecord
	err := decodeObject(r, func(username string, raw json.RawMessage) error {
		rec := market.PortfolioRecord{Username: username}
		err := decodeObject(bytes.NewReader(raw), func(house string, d holdingDoc) error {
			if d.Shares == nil {
				return errors.New("shares is required")
			}
			rec.Holdings = append(rec.Holdings, market.Holding{House: house, Shares: *d.Shares})
			return nil
		})
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func encodeHouses(houses []market.HouseRecord) ([]byte, error) {
	doc := make(object, 0, len(houses))
	for _, h := range houses {
		price, volume := h.CurrentPrice, h.Volume
		history := make([]pricePointDoc, 0, len(h.PriceHistory))
		for _, p := range h.PriceHistory {
			history = append(history, pricePointDoc{Date: p.Date.Format(market.DateLayout), Price: p.Price})
		}
		doc = append(doc, entry{Key: h.Name, Value: houseDoc{CurrentPrice: &price, Volume: &volume, PriceHistory: history}})
	}
	return marshalDocument(doc)
}

func decodeHouses(r io.Reader) ([]market.HouseRecord, error) {
	var out []market.HouseRecord
	err := decodeObject(r, func(name string, d houseDoc) error {
		if d.CurrentPrice == nil || d.Volume == nil {
			return errors.New("current_price and volume are required")
		}
		rec := market.HouseRecord{Name: name, CurrentPrice: *d.CurrentPrice, Volume: *d.Volume}
		for _, p := range d.PriceHistory {
			date, err := market.ParseDate(p.Date)
			if err != nil {
				return err
			}
			rec.PriceHistory = append(rec.PriceHistory, market.PricePoint{Date: date, Price: p.Price})
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

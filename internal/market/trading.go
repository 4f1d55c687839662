package market

// UserTrade makes one random trade attempt for username: a uniformly chosen
// house, share count and side. An attempt whose precondition fails is
// dropped without error.
func (m *Market) UserTrade(username string) TradeResult {
	house := m.randomHouse()
	shares := int64(uniformInt(m.rand, m.dyn.MinShares, m.dyn.MaxShares))
	side := SideBuy
	if m.rand.Intn(2) == 1 {
		side = SideSell
	}

	var (
		res TradeResult
		err error
	)
	if side == SideBuy {
		res, err = m.Buy(username, house, shares)
	} else {
		res, err = m.Sell(username, house, shares)
	}
	if err != nil {
		m.log.Debug("trade skipped", "username", username, "house", house, "side", side, "shares", shares, "reason", err)
	}
	return res
}

func (m *Market) Buy(username, house string, shares int64) (TradeResult, error) {
	res := TradeResult{Username: username, House: house, Side: SideBuy, Shares: shares}
	u, h, err := m.tradeParties(username, house, shares)
	if err != nil {
		return res, err
	}
	res.Price = h.CurrentPrice
	cost := notional(h.CurrentPrice, shares)
	res.Notional = cost.InexactFloat64()
	if cost.GreaterThan(decimalOf(u.PointsBalance)) {
		return res, ErrInsufficientFunds
	}

	u.PointsBalance = addPoints(u.PointsBalance, cost.Neg())
	m.holding(username, house).Shares += shares
	// Volume is not floored: buys are not limited by seller-side liquidity.
	h.Volume -= shares
	res.Executed = true
	return res, nil
}

func (m *Market) Sell(username, house string, shares int64) (TradeResult, error) {
	res := TradeResult{Username: username, House: house, Side: SideSell, Shares: shares}
	u, h, err := m.tradeParties(username, house, shares)
	if err != nil {
		return res, err
	}
	res.Price = h.CurrentPrice
	proceeds := notional(h.CurrentPrice, shares)
	res.Notional = proceeds.InexactFloat64()
	held, ok := m.portfolios[username][house]
	if !ok || held.Shares < shares {
		return res, ErrInsufficientShares
	}

	u.PointsBalance = addPoints(u.PointsBalance, proceeds)
	held.Shares -= shares
	h.Volume += shares
	res.Executed = true
	return res, nil
}

func (m *Market) tradeParties(username, house string, shares int64) (*User, *House, error) {
	if shares <= 0 {
		return nil, nil, ErrInvalidShares
	}
	u, ok := m.users[username]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	h, ok := m.houses[house]
	if !ok {
		return nil, nil, ErrHouseNotFound
	}
	return u, h, nil
}

func (m *Market) holding(username, house string) *Holding {
	holdings := m.portfolios[username]
	if holdings == nil {
		holdings = make(map[string]*Holding)
		m.portfolios[username] = holdings
	}
	if h, ok := holdings[house]; ok {
		return h
	}
	h := &Holding{House: house}
	holdings[house] = h
	m.holdingOrder[username] = append(m.holdingOrder[username], house)
	return h
}

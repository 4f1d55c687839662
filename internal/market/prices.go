package market

import "time"

// AdjustStockPrices closes the day for every house: the pending news impact
// plus background noise moves the price, the rounded close is appended to the
// history under date, and the impact is cleared.
func (m *Market) AdjustStockPrices(date time.Time) {
	day := DayOf(date)
	for _, name := range m.houseOrder {
		h := m.houses[name]
		ret := m.impact[name] + m.noise()
		h.CurrentPrice = RoundPrice(h.CurrentPrice + h.CurrentPrice*ret)
		h.PriceHistory = append(h.PriceHistory, PricePoint{Date: day, Price: h.CurrentPrice})
		m.impact[name] = 0
	}
}

func (m *Market) noise() float64 {
	if m.dyn.NoiseScale == 0 {
		return 0
	}
	return uniform(m.rand, -m.dyn.NoiseScale, m.dyn.NoiseScale)
}

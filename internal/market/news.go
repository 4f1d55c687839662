package market

// SubmitNews targets one uniformly chosen house with an impact drawn from
// [MinImpact, MaxImpact). The impact replaces any pending impact on that
// house and is consumed by the next price update.
func (m *Market) SubmitNews() NewsEvent {
	house := m.randomHouse()
	impact := uniform(m.rand, m.dyn.MinImpact, m.dyn.MaxImpact)
	m.impact[house] = impact
	return NewsEvent{House: house, Impact: impact}
}

func (m *Market) SetImpact(house string, impact float64) error {
	if _, ok := m.houses[house]; !ok {
		return ErrHouseNotFound
	}
	m.impact[house] = impact
	return nil
}

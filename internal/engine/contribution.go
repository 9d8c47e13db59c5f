package engine

import "shalyse/internal/domain"

// TotalContribution returns the money paid in over the horizon: the initial
// amount plus one top-up per Period entries. The top-up count is fractional
// (HorizonDays / Period), matching the denominator used for percentages.
func TotalContribution(s domain.Scenario) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	return totalContribution(s, s.HorizonDays()), nil
}

func totalContribution(s domain.Scenario, horizon int) float64 {
	if s.Period == 0 {
		return s.Initial
	}
	return s.Initial + s.Topup*(float64(horizon)/float64(s.Period))
}

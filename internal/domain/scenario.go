package domain

import "fmt"

// DaysPerYear converts a horizon in years to index offsets.
const DaysPerYear = 365

// Scenario describes one periodic-investment strategy. It is a comparable
// value type: a changed parameter means a new Scenario.
type Scenario struct {
	Initial float64 `json:"initial" yaml:"initial"` // lump sum at the start index
	Topup   float64 `json:"topup" yaml:"topup"`     // amount added every Period entries
	Period  int     `json:"period" yaml:"period"`   // entries between top-ups, 0 disables them
	Horizon int     `json:"horizon" yaml:"horizon"` // holding period in years
}

// HorizonDays returns the holding period in index offsets.
func (s Scenario) HorizonDays() int { return s.Horizon * DaysPerYear }

// Validate reports ErrInvalidScenario for negative amounts, a negative
// period, or a non-positive horizon.
func (s Scenario) Validate() error {
	switch {
	case s.Initial < 0:
		return fmt.Errorf("%w: initial %v is negative", ErrInvalidScenario, s.Initial)
	case s.Topup < 0:
		return fmt.Errorf("%w: topup %v is negative", ErrInvalidScenario, s.Topup)
	case s.Period < 0:
		return fmt.Errorf("%w: period %d is negative", ErrInvalidScenario, s.Period)
	case s.Horizon <= 0:
		return fmt.Errorf("%w: horizon %d must be positive", ErrInvalidScenario, s.Horizon)
	}
	return nil
}

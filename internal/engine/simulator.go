package engine

import (
	"fmt"

	"shalyse/internal/domain"
)

// Simulate evaluates the scenario from every start index i with a full
// horizon ahead of it, i in [0, N-1-HorizonDays], and returns the realized
// profit of each window in order.
//
// Offsets are index positions: Period and HorizonDays count entries of the
// series, not calendar days, so gaps in the series (weekends, holidays)
// shift contribution timing relative to the calendar.
//
// The principal earns (final-start)/start*Initial. Each top-up at
// j = i+Period, i+2*Period, ... while j < end earns (final-p[j])/p[j]*Topup.
func Simulate(series domain.PriceSeries, s domain.Scenario) (domain.SimulationResult, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return simulate(series, s, s.HorizonDays())
}

// simulate runs the window walk for a horizon given in index offsets.
func simulate(series domain.PriceSeries, s domain.Scenario, horizon int) (domain.SimulationResult, error) {
	n := series.Len()
	if n <= horizon {
		return nil, fmt.Errorf("%w: %s has %d prices, a horizon of %d entries needs more",
			domain.ErrInsufficientData, series.Symbol, n, horizon)
	}

	windows := n - horizon
	result := make(domain.SimulationResult, 0, windows)
	for i := 0; i < windows; i++ {
		end := i + horizon

		startPrice, err := priceAt(series, i)
		if err != nil {
			return nil, err
		}
		finalPrice, err := priceAt(series, end)
		if err != nil {
			return nil, err
		}

		profit := (finalPrice - startPrice) / startPrice * s.Initial

		if s.Period > 0 {
			topupProfit := 0.0
			for j := i + s.Period; j < end; j += s.Period {
				p, err := priceAt(series, j)
				if err != nil {
					return nil, err
				}
				topupProfit += (finalPrice - p) / p * s.Topup
			}
			profit += topupProfit
		}

		result = append(result, profit)
	}
	return result, nil
}

// priceAt returns the price at index i, rejecting values that cannot be used
// as a divisor.
func priceAt(series domain.PriceSeries, i int) (float64, error) {
	p := series.Price(i)
	if !(p > 0) {
		return 0, fmt.Errorf("%w: %s price %v at index %d (%s) is not positive",
			domain.ErrDataIntegrity, series.Symbol, p, i, series.Points[i].Date.Format("2006-01-02"))
	}
	return p, nil
}

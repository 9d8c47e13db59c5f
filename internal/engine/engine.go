// Package engine is the backtesting core: it derives the total contribution
// of a scenario, simulates every feasible holding window over a price
// series, and summarizes the resulting profit distribution.
//
// Everything here is a pure function of its inputs. There is no shared state,
// no I/O and no logging, so calls for different tickers or scenarios may run
// concurrently.
package engine

import "shalyse/internal/domain"

// Report bundles the outputs of one engine run.
type Report struct {
	Scenario          domain.Scenario            `json:"scenario"`
	TotalContribution float64                    `json:"totalContrib"`
	Result            domain.SimulationResult    `json:"result"`
	Summary           domain.DistributionSummary `json:"summary"`
}

// Run validates the scenario, simulates it over series and summarizes the
// result. It returns no partial report: any failure yields a nil Report.
func Run(series domain.PriceSeries, s domain.Scenario, currency string) (*Report, error) {
	total, err := TotalContribution(s)
	if err != nil {
		return nil, err
	}
	result, err := Simulate(series, s)
	if err != nil {
		return nil, err
	}
	summary, err := NewAnalyzer(currency).Analyze(result, total)
	if err != nil {
		return nil, err
	}
	return &Report{
		Scenario:          s,
		TotalContribution: total,
		Result:            result,
		Summary:           summary,
	}, nil
}

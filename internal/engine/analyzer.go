package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"shalyse/internal/domain"
)

// stdBand is the fraction of a sample standard deviation the -1std/+1std
// statistics sit away from the mean. The labels say one sigma; the band is
// half a sigma on each side.
const stdBand = 0.5

// Analyzer reduces a SimulationResult to a DistributionSummary.
type Analyzer struct {
	Currency string
}

// NewAnalyzer creates an Analyzer that labels display strings with currency.
func NewAnalyzer(currency string) *Analyzer {
	return &Analyzer{Currency: currency}
}

// Analyze computes min, -1std, median, mean, +1std and max of result.
// Percentages are relative to totalContrib. At least two values are needed
// for the sample standard deviation.
func (a *Analyzer) Analyze(result domain.SimulationResult, totalContrib float64) (domain.DistributionSummary, error) {
	n := len(result)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d simulated window(s), need at least 2 for a standard deviation",
			domain.ErrInsufficientData, n)
	}
	if !(totalContrib > 0) || math.IsInf(totalContrib, 0) {
		return nil, fmt.Errorf("%w: total contribution %v must be positive", domain.ErrInvalidScenario, totalContrib)
	}
	for i, v := range result {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: result %d is %v", domain.ErrDataIntegrity, i, v)
		}
	}

	sorted := make([]float64, n)
	copy(sorted, result)
	sort.Float64s(sorted)

	mean := computeMean(result)
	band := stdBand * computeStddev(result, mean)

	values := map[domain.StatName]float64{
		domain.StatMin:      sorted[0],
		domain.StatMinusStd: mean - band,
		domain.StatMedian:   computeMedian(sorted),
		domain.StatMean:     mean,
		domain.StatPlusStd:  mean + band,
		domain.StatMax:      sorted[n-1],
	}

	summary := make(domain.DistributionSummary, len(values))
	for name, v := range values {
		summary[name] = a.statistic(v, totalContrib)
	}
	return summary, nil
}

// statistic builds the absolute, percentage and display forms of v.
func (a *Analyzer) statistic(v, totalContrib float64) domain.Statistic {
	absolute := round(v, 0)
	percentage := round(v/totalContrib*100, 1)
	balance := round(totalContrib+absolute, 0)
	return domain.Statistic{
		Absolute:   absolute,
		Percentage: percentage,
		Display: fmt.Sprintf("%.0f %s (%+.0f %s) (%+.1f%%)",
			balance, a.Currency, absolute, a.Currency, percentage),
	}
}

// round rounds the exact binary value of v to the given number of decimal
// places, ties to even. 0.35 is stored just below 0.35 and rounds to 0.3.
func round(v float64, places int32) float64 {
	return decimal.RequireFromString(strconv.FormatFloat(v, 'f', int(places), 64)).InexactFloat64()
}

func computeMean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates the sample standard deviation (n-1 denominator).
// Callers guarantee len(values) >= 2.
func computeStddev(values []float64, mean float64) float64 {
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// computeMedian returns the middle value of sorted, averaging the two middle
// values for an even count.
func computeMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

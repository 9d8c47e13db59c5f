// Package dashboard provides the UI-side shaping of simulation output shared
// by the terminal client and the REST API: box-plot and histogram samples, a
// per-session memo of computed reports, and number formatting.
package dashboard

import (
	"math"
	"sort"

	"shalyse/internal/domain"
)

// BoxPlot holds the five-number summary of a result. Whiskers span the full
// range.
type BoxPlot struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Bin is one histogram bucket covering [Lo, Hi), the last bucket is closed.
type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// BoxStats computes quartiles by linear interpolation between closest ranks.
// An empty result yields the zero BoxPlot.
func BoxStats(result domain.SimulationResult) BoxPlot {
	if len(result) == 0 {
		return BoxPlot{}
	}
	sorted := make([]float64, len(result))
	copy(sorted, result)
	sort.Float64s(sorted)

	return BoxPlot{
		Min:    sorted[0],
		Q1:     percentile(sorted, 25),
		Median: percentile(sorted, 50),
		Q3:     percentile(sorted, 75),
		Max:    sorted[len(sorted)-1],
	}
}

// percentile returns the p-th percentile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// Histogram buckets the result into bins equal-width bins between its min
// and max. A constant result puts every value in a single bin.
func Histogram(result domain.SimulationResult, bins int) []Bin {
	if len(result) == 0 || bins <= 0 {
		return nil
	}

	lo, hi := result[0], result[0]
	for _, v := range result[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lo: lo, Hi: hi, Count: len(result)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lo = lo + float64(i)*width
		out[i].Hi = lo + float64(i+1)*width
	}
	out[bins-1].Hi = hi

	for _, v := range result {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// MaxHorizon returns the longest horizon, in years, the UI should offer for
// an instrument: no more than its whole years of history, and short enough
// that a series of points entries still yields two windows.
func MaxHorizon(info *domain.InstrumentInfo, points int) int {
	feasible := (points - 2) / domain.DaysPerYear
	if info != nil && info.Years < feasible {
		feasible = info.Years
	}
	return max(feasible, 0)
}

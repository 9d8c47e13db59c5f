package domain

// StatName names one entry of a DistributionSummary.
type StatName string

const (
	StatMin      StatName = "min"
	StatMinusStd StatName = "-1std" // mean - 0.5 * sample stddev
	StatMedian   StatName = "median"
	StatMean     StatName = "mean"
	StatPlusStd  StatName = "+1std" // mean + 0.5 * sample stddev
	StatMax      StatName = "max"
)

// StatNames lists the summary statistics in display order.
var StatNames = []StatName{StatMin, StatMinusStd, StatMedian, StatMean, StatPlusStd, StatMax}

// Statistic is one summary value in absolute, percentage-of-contribution and
// display forms.
type Statistic struct {
	Absolute   float64 `json:"absolute"`
	Percentage float64 `json:"percentage"`
	Display    string  `json:"display"`
}

// DistributionSummary maps each StatName to its Statistic.
type DistributionSummary map[StatName]Statistic

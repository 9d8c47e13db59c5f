// Package domain holds the value types shared by the simulation engine, the
// retrieval layer and the API surfaces.
package domain

import (
	"fmt"
	"time"
)

// Market identifies the exchange group a ticker's history is filed under.
type Market string

const (
	MarketUS Market = "us"
)

// Bar is a single daily OHLCV bar as delivered by the data provider. Close is
// the adjusted close when the bar was requested with full adjustment.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// PricePoint is one (date, adjusted close) pair of a PriceSeries.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// PriceSeries is an ascending-by-date sequence of adjusted closes for one
// instrument, addressed by index position 0..Len()-1. One entry is assumed to
// be one day: the engine works on index offsets, not calendar dates.
type PriceSeries struct {
	Symbol string
	Points []PricePoint
}

// Len returns the number of entries in the series.
func (s PriceSeries) Len() int { return len(s.Points) }

// Price returns the adjusted close at index i.
func (s PriceSeries) Price(i int) float64 { return s.Points[i].Price }

// Prices returns the adjusted closes in index order.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// Validate checks that dates are strictly ascending. Price positivity is
// checked by the simulator over the range it actually touches.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("%w: %s dates not strictly ascending at index %d (%s after %s)",
				ErrDataIntegrity, s.Symbol, i,
				s.Points[i].Date.Format("2006-01-02"), s.Points[i-1].Date.Format("2006-01-02"))
		}
	}
	return nil
}

// YearsOfHistory returns the whole number of years spanned by the series,
// using 365.25-day years.
func (s PriceSeries) YearsOfHistory() int {
	if len(s.Points) < 2 {
		return 0
	}
	span := s.Points[len(s.Points)-1].Date.Sub(s.Points[0].Date)
	return int(span.Hours() / 24 / 365.25)
}

// SeriesFromBars builds a PriceSeries from bars using each bar's Close. Bars
// must already be sorted by timestamp.
func SeriesFromBars(symbol string, bars []Bar) PriceSeries {
	points := make([]PricePoint, len(bars))
	for i, b := range bars {
		points[i] = PricePoint{Date: b.Timestamp, Price: b.Close}
	}
	return PriceSeries{Symbol: symbol, Points: points}
}

// InstrumentInfo is the display metadata the UI needs for a ticker.
type InstrumentInfo struct {
	Symbol    string    `json:"symbol"`
	ShortName string    `json:"shortName"`
	Currency  string    `json:"currency"`
	Exchange  string    `json:"exchange,omitempty"`
	Years     int       `json:"years"`
	FirstDate time.Time `json:"firstDate"`
	LastDate  time.Time `json:"lastDate"`
}

// SimulationResult holds one realized profit per feasible start index, in
// evaluation order.
type SimulationResult []float64

// Run is a persisted record of one simulation served to a client.
type Run struct {
	ID                int64               `json:"id"`
	Ticker            string              `json:"ticker"`
	Scenario          Scenario            `json:"scenario"`
	TotalContribution float64             `json:"totalContrib"`
	Windows           int                 `json:"windows"`
	Summary           DistributionSummary `json:"summary"`
	CreatedAt         time.Time           `json:"createdAt"`
}

// Package httpapi provides the HTTP REST API for shalyse, serving instrument
// metadata, price history, simulations, run history and scenario presets in
// JSON format.
package httpapi

import (
	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
)

// InstrumentResponse is the response for GET /api/instruments/{ticker}.
type InstrumentResponse struct {
	domain.InstrumentInfo
	Points     int `json:"points"`
	MaxHorizon int `json:"maxHorizon"`
}

// PricesResponse is the response for GET /api/prices/{ticker}.
type PricesResponse struct {
	Ticker string              `json:"ticker"`
	Points []domain.PricePoint `json:"points"`
}

// SimulateRequest is the body of POST /api/simulate.
type SimulateRequest struct {
	Ticker   string          `json:"ticker"`
	Scenario domain.Scenario `json:"scenario"`
}

// SimulateResponse is the response for POST /api/simulate.
type SimulateResponse struct {
	Ticker       string                     `json:"ticker"`
	Currency     string                     `json:"currency"`
	TotalContrib float64                    `json:"total_contrib"`
	Scenario     domain.Scenario            `json:"scenario"`
	Result       domain.SimulationResult    `json:"result"`
	Summary      domain.DistributionSummary `json:"summary"`
	Box          dashboard.BoxPlot          `json:"box"`
	Histogram    []dashboard.Bin            `json:"histogram,omitempty"`
}

// RunsResponse is the response for GET /api/runs.
type RunsResponse struct {
	Runs []domain.Run `json:"runs"`
}

// PresetsResponse is the response for GET /api/presets.
type PresetsResponse struct {
	Presets map[string]domain.Scenario `json:"presets"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Package shalyse is a Go SDK for the shalyse-server REST API.
package shalyse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Scenario describes a periodic-investment strategy.
type Scenario struct {
	Initial float64 `json:"initial"`
	Topup   float64 `json:"topup"`
	Period  int     `json:"period"`
	Horizon int     `json:"horizon"`
}

// Statistic is one summary value.
type Statistic struct {
	Absolute   float64 `json:"absolute"`
	Percentage float64 `json:"percentage"`
	Display    string  `json:"display"`
}

// Instrument is the metadata of a ticker.
type Instrument struct {
	Symbol     string    `json:"symbol"`
	ShortName  string    `json:"shortName"`
	Currency   string    `json:"currency"`
	Exchange   string    `json:"exchange,omitempty"`
	Years      int       `json:"years"`
	FirstDate  time.Time `json:"firstDate"`
	LastDate   time.Time `json:"lastDate"`
	Points     int       `json:"points"`
	MaxHorizon int       `json:"maxHorizon"`
}

// PricePoint is one adjusted close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// BoxPlot is the five-number summary of a simulation.
type BoxPlot struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Simulation is the response of a simulate call. Summary is keyed by
// statistic name: min, -1std, median, mean, +1std, max.
type Simulation struct {
	Ticker       string               `json:"ticker"`
	Currency     string               `json:"currency"`
	TotalContrib float64              `json:"total_contrib"`
	Scenario     Scenario             `json:"scenario"`
	Result       []float64            `json:"result"`
	Summary      map[string]Statistic `json:"summary"`
	Box          BoxPlot              `json:"box"`
}

// Run is a recorded simulation.
type Run struct {
	ID           int64                `json:"id"`
	Ticker       string               `json:"ticker"`
	Scenario     Scenario             `json:"scenario"`
	TotalContrib float64              `json:"totalContrib"`
	Windows      int                  `json:"windows"`
	Summary      map[string]Statistic `json:"summary"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shalyse: %d %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for interacting with the shalyse-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new shalyse API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetInstrument retrieves the metadata of a ticker.
func (c *Client) GetInstrument(ctx context.Context, ticker string) (*Instrument, error) {
	var out Instrument
	if err := c.do(ctx, http.MethodGet, "/api/instruments/"+url.PathEscape(ticker), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPrices retrieves the adjusted close history of a ticker.
func (c *Client) GetPrices(ctx context.Context, ticker string) ([]PricePoint, error) {
	var out struct {
		Points []PricePoint `json:"points"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/prices/"+url.PathEscape(ticker), nil, &out); err != nil {
		return nil, err
	}
	return out.Points, nil
}

// Simulate runs a scenario against a ticker.
func (c *Client) Simulate(ctx context.Context, ticker string, s Scenario) (*Simulation, error) {
	body := struct {
		Ticker   string   `json:"ticker"`
		Scenario Scenario `json:"scenario"`
	}{ticker, s}
	var out Simulation
	if err := c.do(ctx, http.MethodPost, "/api/simulate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns returns up to limit recent runs, optionally filtered by ticker.
func (c *Client) ListRuns(ctx context.Context, ticker string, limit int) ([]Run, error) {
	q := url.Values{}
	if ticker != "" {
		q.Set("ticker", ticker)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// ListPresets returns all named scenarios.
func (c *Client) ListPresets(ctx context.Context) (map[string]Scenario, error) {
	var out struct {
		Presets map[string]Scenario `json:"presets"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/presets", nil, &out); err != nil {
		return nil, err
	}
	return out.Presets, nil
}

// SavePreset creates or replaces a named scenario.
func (c *Client) SavePreset(ctx context.Context, name string, s Scenario) error {
	return c.do(ctx, http.MethodPut, "/api/presets/"+url.PathEscape(name), s, nil)
}

// DeletePreset removes a named scenario.
func (c *Client) DeletePreset(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/presets/"+url.PathEscape(name), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package shalyse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shalyse/internal/backtest"
	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
	"shalyse/internal/httpapi"
	"shalyse/internal/presets"
	"shalyse/internal/store"
)

type fakeLoader map[string]domain.PriceSeries

func (f fakeLoader) Load(_ context.Context, ticker string) (domain.PriceSeries, *domain.InstrumentInfo, error) {
	s, ok := f[strings.ToUpper(ticker)]
	if !ok {
		return domain.PriceSeries{}, nil, fmt.Errorf("%w: %s", store.ErrNotFound, ticker)
	}
	return s, &domain.InstrumentInfo{
		Symbol:    s.Symbol,
		ShortName: s.Symbol,
		Currency:  "USD",
		Years:     s.YearsOfHistory(),
		FirstDate: s.Points[0].Date,
		LastDate:  s.Points[len(s.Points)-1].Date,
	}, nil
}

func linearSeries(symbol string, n int) domain.PriceSeries {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, n)
	for i := range points {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Price: 100 + float64(i)/10}
	}
	return domain.PriceSeries{Symbol: symbol, Points: points}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	bt := backtest.NewBacktester(fakeLoader{"SPY": linearSeries("SPY", 900)}, nil, dashboard.NewMemo(8), nil)
	srv := httpapi.NewServer(bt, presets.NewStore("", nil), 0, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL + "/")
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}

	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}

	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestClientInstrumentAndPrices(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	info, err := c.GetInstrument(ctx, "spy")
	if err != nil {
		t.Fatalf("GetInstrument: %v", err)
	}
	if info.Symbol != "SPY" || info.Points != 900 {
		t.Errorf("instrument = %+v", info)
	}

	points, err := c.GetPrices(ctx, "SPY")
	if err != nil {
		t.Fatalf("GetPrices: %v", err)
	}
	if len(points) != 900 || points[0].Price != 100 {
		t.Errorf("got %d points, first %+v", len(points), points[0])
	}
}

func TestClientSimulate(t *testing.T) {
	c := newTestClient(t)

	sim, err := c.Simulate(context.Background(), "SPY", Scenario{Initial: 1000, Topup: 100, Period: 73, Horizon: 1})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// 1000 + 100 * (365 / 73)
	if sim.TotalContrib != 1500 {
		t.Errorf("TotalContrib = %v, want 1500", sim.TotalContrib)
	}
	if len(sim.Result) != 900-365 {
		t.Errorf("got %d windows, want %d", len(sim.Result), 900-365)
	}
	for _, name := range []string{"min", "-1std", "median", "mean", "+1std", "max"} {
		if _, ok := sim.Summary[name]; !ok {
			t.Errorf("summary missing %q", name)
		}
	}
	if sim.Summary["min"].Absolute > sim.Summary["max"].Absolute {
		t.Errorf("min %v > max %v", sim.Summary["min"].Absolute, sim.Summary["max"].Absolute)
	}
}

func TestClientErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetInstrument(ctx, "NOPE")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown ticker: got %v, want 404 APIError", err)
	}

	_, err = c.Simulate(ctx, "SPY", Scenario{Initial: 1000, Horizon: 0})
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad scenario: got %v, want 400 APIError", err)
	}
	if apiErr.Message == "" {
		t.Error("expected error message from body")
	}
}

func TestClientPresets(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	s := Scenario{Initial: 500, Topup: 50, Period: 7, Horizon: 2}
	if err := c.SavePreset(ctx, "weekly", s); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}
	all, err := c.ListPresets(ctx)
	if err != nil {
		t.Fatalf("ListPresets: %v", err)
	}
	if all["weekly"] != s {
		t.Errorf("weekly = %+v, want %+v", all["weekly"], s)
	}

	if err := c.DeletePreset(ctx, "weekly"); err != nil {
		t.Fatalf("DeletePreset: %v", err)
	}
	var apiErr *APIError
	if err := c.DeletePreset(ctx, "weekly"); !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("second delete: got %v, want 404", err)
	}
}

func TestClientListRunsEmpty(t *testing.T) {
	c := newTestClient(t)
	runs, err := c.ListRuns(context.Background(), "", 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d runs, want 0", len(runs))
	}
}

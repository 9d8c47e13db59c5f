package backtest

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
	"shalyse/internal/store"
)

type fakeLoader struct {
	mu     sync.Mutex
	calls  int
	series map[string]domain.PriceSeries
}

func (f *fakeLoader) Load(_ context.Context, ticker string) (domain.PriceSeries, *domain.InstrumentInfo, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	s, ok := f.series[ticker]
	if !ok {
		return domain.PriceSeries{}, nil, store.ErrNotFound
	}
	return s, &domain.InstrumentInfo{Symbol: ticker, ShortName: ticker, Currency: "USD"}, nil
}

type memRuns struct {
	runs []domain.Run
	err  error
}

func (m *memRuns) SaveRun(_ context.Context, r *domain.Run) error {
	if m.err != nil {
		return m.err
	}
	r.ID = int64(len(m.runs) + 1)
	m.runs = append(m.runs, *r)
	return nil
}

func (m *memRuns) ListRuns(_ context.Context, ticker string, limit int) ([]domain.Run, error) {
	var out []domain.Run
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if ticker == "" || m.runs[i].Ticker == ticker {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

// growth returns n daily points compounding at 0.03% a day with a weekly
// wobble, long enough for one-year horizons.
func growth(symbol string, n int) domain.PriceSeries {
	start := time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, n)
	for i := range points {
		points[i] = domain.PricePoint{
			Date:  start.AddDate(0, 0, i),
			Price: 100 * math.Pow(1.0003, float64(i)) * (1 + 0.01*math.Sin(float64(i)/7)),
		}
	}
	return domain.PriceSeries{Symbol: symbol, Points: points}
}

func TestBacktesterRun(t *testing.T) {
	loader := &fakeLoader{series: map[string]domain.PriceSeries{"SPY": growth("SPY", 500)}}
	runs := &memRuns{}
	bt := NewBacktester(loader, runs, dashboard.NewMemo(8), nil)

	s := domain.Scenario{Initial: 1000, Topup: 100, Period: 30, Horizon: 1}
	res, err := bt.Run(context.Background(), " spy", s)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Ticker != "SPY" {
		t.Errorf("Ticker = %q, want SPY", res.Ticker)
	}
	if got, want := len(res.Report.Result), 500-365; got != want {
		t.Errorf("windows = %d, want %d", got, want)
	}
	// 365/30 = 12.1666 top-ups.
	if want := 1000 + 100*365.0/30; math.Abs(res.Report.TotalContribution-want) > 1e-9 {
		t.Errorf("TotalContribution = %v, want %v", res.Report.TotalContribution, want)
	}
	if len(runs.runs) != 1 || runs.runs[0].Windows != 135 || runs.runs[0].Ticker != "SPY" {
		t.Errorf("recorded runs = %+v", runs.runs)
	}

	// Same scenario again is served from the memo but still recorded.
	res2, err := bt.Run(context.Background(), "SPY", s)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res2.Report != res.Report {
		t.Error("expected memoized report")
	}
	if len(runs.runs) != 2 {
		t.Errorf("recorded %d runs, want 2", len(runs.runs))
	}

	listed, err := bt.Runs(context.Background(), "spy", 10)
	if err != nil || len(listed) != 2 {
		t.Errorf("Runs = %d, %v", len(listed), err)
	}
}

func TestBacktesterValidatesBeforeLoading(t *testing.T) {
	loader := &fakeLoader{}
	bt := NewBacktester(loader, nil, nil, nil)

	_, err := bt.Run(context.Background(), "SPY", domain.Scenario{Initial: 1000, Horizon: 0})
	if !errors.Is(err, domain.ErrInvalidScenario) {
		t.Fatalf("error = %v, want ErrInvalidScenario", err)
	}
	if loader.calls != 0 {
		t.Error("loader should not be called for an invalid scenario")
	}
}

func TestBacktesterErrors(t *testing.T) {
	loader := &fakeLoader{series: map[string]domain.PriceSeries{"NEW": growth("NEW", 100)}}
	runs := &memRuns{}
	bt := NewBacktester(loader, runs, dashboard.NewMemo(8), nil)
	s := domain.Scenario{Initial: 1000, Horizon: 1}

	if _, err := bt.Run(context.Background(), "NOPE", s); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown ticker error = %v, want ErrNotFound", err)
	}
	if _, err := bt.Run(context.Background(), "NEW", s); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("short history error = %v, want ErrInsufficientData", err)
	}
	if len(runs.runs) != 0 {
		t.Errorf("failed runs must not be recorded: %+v", runs.runs)
	}
}

func TestBacktesterRecordFailureIsNotFatal(t *testing.T) {
	loader := &fakeLoader{series: map[string]domain.PriceSeries{"SPY": growth("SPY", 400)}}
	bt := NewBacktester(loader, &memRuns{err: errors.New("disk full")}, nil, nil)

	if _, err := bt.Run(context.Background(), "SPY", domain.Scenario{Initial: 1000, Horizon: 1}); err != nil {
		t.Fatalf("Run should succeed when recording fails: %v", err)
	}
}

func TestBacktesterInstrument(t *testing.T) {
	loader := &fakeLoader{series: map[string]domain.PriceSeries{"SPY": growth("SPY", 42)}}
	bt := NewBacktester(loader, nil, nil, nil)

	info, n, err := bt.Instrument(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("Instrument: %v", err)
	}
	if info.Symbol != "SPY" || n != 42 {
		t.Errorf("Instrument = %+v, %d", info, n)
	}

	runs, err := bt.Runs(context.Background(), "", 5)
	if err != nil || len(runs) != 0 {
		t.Errorf("Runs without store = %v, %v", runs, err)
	}
}

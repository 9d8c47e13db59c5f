package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"shalyse/internal/backtest"
	"shalyse/internal/domain"
	"shalyse/internal/store"
)

type fakeLoader map[string]domain.PriceSeries

func (f fakeLoader) Load(_ context.Context, ticker string) (domain.PriceSeries, *domain.InstrumentInfo, error) {
	s, ok := f[strings.ToUpper(ticker)]
	if !ok {
		return domain.PriceSeries{}, nil, fmt.Errorf("%w: %s", store.ErrNotFound, ticker)
	}
	return s, &domain.InstrumentInfo{Symbol: s.Symbol, ShortName: s.Symbol, Currency: "USD", Years: s.YearsOfHistory()}, nil
}

func series(symbol string, n int) domain.PriceSeries {
	start := time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC)
	points := make([]domain.PricePoint, n)
	for i := range points {
		points[i] = domain.PricePoint{Date: start.AddDate(0, 0, i), Price: 50 + 5*math.Cos(float64(i)/13) + float64(i)/100}
	}
	return domain.PriceSeries{Symbol: symbol, Points: points}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T) *Client {
	t.Helper()
	loader := fakeLoader{"SPY": series("SPY", 900), "NEW": series("NEW", 10)}
	bt := backtest.NewBacktester(loader, nil, nil, nil)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(testLogger())))
	NewServer(bt, nil).RegisterGRPC(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSimulateRPC(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := c.Simulate(ctx, "spy", domain.Scenario{Initial: 1000, Topup: 50, Period: 7, Horizon: 1})
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if reply.Ticker != "SPY" || reply.Currency != "USD" {
		t.Errorf("reply = %s/%s", reply.Ticker, reply.Currency)
	}
	if got, want := len(reply.Result), 900-365; got != want {
		t.Errorf("result length = %d, want %d", got, want)
	}
	if want := 1000 + 50*365.0/7; math.Abs(reply.TotalContrib-want) > 1e-9 {
		t.Errorf("total_contrib = %v, want %v", reply.TotalContrib, want)
	}
	if len(reply.Summary) != len(domain.StatNames) {
		t.Errorf("summary has %d entries, want %d", len(reply.Summary), len(domain.StatNames))
	}
}

func TestSimulateRPCErrors(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cases := []struct {
		name     string
		ticker   string
		scenario domain.Scenario
		want     codes.Code
	}{
		{"invalid scenario", "SPY", domain.Scenario{Initial: 1, Period: -1, Horizon: 1}, codes.InvalidArgument},
		{"missing ticker", "", domain.Scenario{Initial: 1, Horizon: 1}, codes.InvalidArgument},
		{"unknown ticker", "NOPE", domain.Scenario{Initial: 1, Horizon: 1}, codes.NotFound},
		{"short history", "NEW", domain.Scenario{Initial: 1, Horizon: 1}, codes.FailedPrecondition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Simulate(ctx, tc.ticker, tc.scenario)
			if got := status.Code(err); got != tc.want {
				t.Errorf("code = %v, want %v (err %v)", got, tc.want, err)
			}
		})
	}
}

func TestGetInstrumentRPC(t *testing.T) {
	c := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reply, err := c.GetInstrument(ctx, "SPY")
	if err != nil {
		t.Fatalf("GetInstrument: %v", err)
	}
	// 899 days: 2 whole years, and 898/365 also allows 2.
	if reply.Symbol != "SPY" || reply.Years != 2 || reply.MaxHorizon != 2 {
		t.Errorf("reply = %+v", reply)
	}

	if _, err := c.GetInstrument(ctx, ""); status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty ticker code = %v", status.Code(err))
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{domain.ErrInvalidScenario, codes.InvalidArgument},
		{fmt.Errorf("wrapped: %w", domain.ErrInsufficientData), codes.FailedPrecondition},
		{domain.ErrDataIntegrity, codes.DataLoss},
		{store.ErrNotFound, codes.NotFound},
		{context.Canceled, codes.Canceled},
		{errors.New("disk"), codes.Internal},
	}
	for _, tc := range cases {
		if got := CodeFor(tc.err); got != tc.want {
			t.Errorf("CodeFor(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

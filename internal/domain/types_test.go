package domain

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTypesExist(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" || !bar.Timestamp.IsZero() {
		t.Error("expected zero Symbol/Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	var s Scenario
	if s.HorizonDays() != 0 {
		t.Errorf("zero Scenario HorizonDays = %d, want 0", s.HorizonDays())
	}

	if MarketUS != "us" {
		t.Errorf("MarketUS = %q, want %q", MarketUS, "us")
	}
	if len(StatNames) != 6 {
		t.Fatalf("StatNames has %d entries, want 6", len(StatNames))
	}
	if StatMinusStd != "-1std" || StatPlusStd != "+1std" {
		t.Error("std band names have unexpected values")
	}
}

func TestScenarioHorizonDays(t *testing.T) {
	s := Scenario{Initial: 10000, Horizon: 10}
	if got := s.HorizonDays(); got != 3650 {
		t.Errorf("HorizonDays = %d, want 3650", got)
	}
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Scenario
		wantErr bool
	}{
		{"valid lump sum", Scenario{Initial: 1000, Horizon: 1}, false},
		{"valid with topup", Scenario{Initial: 1000, Topup: 100, Period: 30, Horizon: 5}, false},
		{"all zero amounts", Scenario{Horizon: 1}, false},
		{"negative initial", Scenario{Initial: -1, Horizon: 1}, true},
		{"negative topup", Scenario{Topup: -5, Horizon: 1}, true},
		{"negative period", Scenario{Period: -1, Horizon: 1}, true},
		{"zero horizon", Scenario{Initial: 1000}, true},
		{"negative horizon", Scenario{Initial: 1000, Horizon: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidScenario) {
					t.Errorf("Validate() = %v, want ErrInvalidScenario", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() returned unexpected error: %v", err)
			}
		})
	}
}

func TestScenarioComparable(t *testing.T) {
	a := Scenario{Initial: 1000, Topup: 50, Period: 7, Horizon: 3}
	b := a
	if a != b {
		t.Error("copied Scenario should compare equal")
	}
	b.Horizon = 4
	if a == b {
		t.Error("Scenarios with different horizons should not compare equal")
	}
}

func TestPriceSeriesValidate(t *testing.T) {
	ok := PriceSeries{Symbol: "SPY", Points: []PricePoint{
		{Date: day(2024, 1, 2), Price: 100},
		{Date: day(2024, 1, 3), Price: 101},
	}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() returned error for ascending series: %v", err)
	}

	dup := PriceSeries{Symbol: "SPY", Points: []PricePoint{
		{Date: day(2024, 1, 2), Price: 100},
		{Date: day(2024, 1, 2), Price: 101},
	}}
	if err := dup.Validate(); !errors.Is(err, ErrDataIntegrity) {
		t.Errorf("Validate() = %v, want ErrDataIntegrity for duplicate date", err)
	}
}

func TestSeriesFromBars(t *testing.T) {
	bars := []Bar{
		{Symbol: "SPY", Timestamp: day(2024, 1, 2), Close: 470.5},
		{Symbol: "SPY", Timestamp: day(2024, 1, 3), Close: 468.0},
	}
	s := SeriesFromBars("SPY", bars)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if s.Price(1) != 468.0 {
		t.Errorf("Price(1) = %v, want 468.0", s.Price(1))
	}
	prices := s.Prices()
	if prices[0] != 470.5 || prices[1] != 468.0 {
		t.Errorf("Prices() = %v, want [470.5 468]", prices)
	}
}

func TestYearsOfHistory(t *testing.T) {
	s := PriceSeries{Points: []PricePoint{
		{Date: day(2000, 1, 3), Price: 1},
		{Date: day(2010, 6, 1), Price: 2},
	}}
	if got := s.YearsOfHistory(); got != 10 {
		t.Errorf("YearsOfHistory() = %d, want 10", got)
	}

	if got := (PriceSeries{}).YearsOfHistory(); got != 0 {
		t.Errorf("empty YearsOfHistory() = %d, want 0", got)
	}
}

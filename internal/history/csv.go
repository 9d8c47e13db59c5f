package history

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"shalyse/internal/domain"
)

// ReadCSV parses a Yahoo-style daily price file: a header row with a "Date"
// column and an "Adj Close" column, falling back to "Close". Rows whose price
// is missing or not a number ("null" in Yahoo exports) are skipped. Zero and
// negative prices are kept so the simulation reports them as data integrity
// failures. The result is sorted by date ascending.
func ReadCSV(r io.Reader, symbol string) (domain.PriceSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.PriceSeries{}, fmt.Errorf("%w: empty csv", domain.ErrInsufficientData)
		}
		return domain.PriceSeries{}, fmt.Errorf("reading csv header: %w", err)
	}

	dateCol, priceCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "Date":
			dateCol = i
		case "Adj Close":
			priceCol = i
		case "Close":
			if priceCol < 0 {
				priceCol = i
			}
		}
	}
	if dateCol < 0 || priceCol < 0 {
		return domain.PriceSeries{}, fmt.Errorf("csv header %v: need Date and Adj Close or Close columns", header)
	}

	series := domain.PriceSeries{Symbol: symbol}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return domain.PriceSeries{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		if len(rec) <= dateCol || len(rec) <= priceCol {
			continue
		}

		date, err := parseDate(rec[dateCol])
		if err != nil {
			return domain.PriceSeries{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[priceCol]), 64)
		if err != nil || math.IsNaN(price) {
			continue
		}
		series.Points = append(series.Points, domain.PricePoint{Date: date, Price: price})
	}

	sort.SliceStable(series.Points, func(i, j int) bool {
		return series.Points[i].Date.Before(series.Points[j].Date)
	})
	if err := series.Validate(); err != nil {
		return domain.PriceSeries{}, err
	}
	return series, nil
}

// LoadCSV reads a price file from disk. An empty symbol is derived from the
// file name, so "SPY.csv" yields "SPY".
func LoadCSV(path, symbol string) (domain.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.PriceSeries{}, err
	}
	defer f.Close()

	if symbol == "" {
		symbol = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return ReadCSV(f, NormalizeTicker(symbol))
}

var dateLayouts = []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "01/02/2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

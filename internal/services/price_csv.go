package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CSVPriceProvider serves historical prices from a local
// "date,price" file (YYYY-MM-DD rows, optional header). Useful for
// offline runs and for pinning an audit to a fixed price series.
type CSVPriceProvider struct {
	prices map[string]decimal.Decimal
}

// NewCSVPriceProvider loads the whole file up front; the engine then
// never touches the filesystem during matching.
func NewCSVPriceProvider(path string) (*CSVPriceProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse price file %s: %w", path, err)
	}

	prices := make(map[string]decimal.Decimal, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		date := strings.TrimSpace(row[0])
		if i == 0 && !strings.Contains(date, "-") {
			continue // header row
		}
		// Timestamped exports ("2013-04-01 00:00:00,93.03") keep the day.
		if idx := strings.IndexByte(date, ' '); idx > 0 {
			date = date[:idx]
		}
		price, perr := decimal.NewFromString(strings.TrimSpace(row[1]))
		if perr != nil {
			return nil, fmt.Errorf("price file %s row %d: %w", path, i+1, perr)
		}
		if _, exists := prices[date]; !exists {
			prices[date] = price
		}
	}
	return &CSVPriceProvider{prices: prices}, nil
}

func (p *CSVPriceProvider) PriceAt(_ context.Context, asset string, date time.Time) (decimal.Decimal, error) {
	key := date.UTC().Format("2006-01-02")
	price, ok := p.prices[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("no price for %s on %s", asset, key)
	}
	return price, nil
}

// FallbackPriceProvider tries each provider in order, returning the
// first successful quote.
type FallbackPriceProvider struct {
	providers []PriceProvider
}

// NewFallbackPriceProvider chains providers; typically CSV first, then
// the remote API.
func NewFallbackPriceProvider(providers ...PriceProvider) *FallbackPriceProvider {
	return &FallbackPriceProvider{providers: providers}
}

func (p *FallbackPriceProvider) PriceAt(ctx context.Context, asset string, date time.Time) (decimal.Decimal, error) {
	var lastErr error
	for _, provider := range p.providers {
		price, err := provider.PriceAt(ctx, asset, date)
		if err == nil {
			return price, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no price providers configured")
	}
	return decimal.Zero, lastErr
}

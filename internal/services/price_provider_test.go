package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhqtran/coingains/internal/models"
	"github.com/vhqtran/coingains/internal/repositories"
)

func TestCoinGeckoPriceProvider(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"market_data":{"current_price":{"usd":16547.91}}}`))
	}))
	defer server.Close()

	p := NewCoinGeckoPriceProvider("usd")
	p.baseURL = server.URL

	price, err := p.PriceAt(context.Background(), "BTC", time.Date(2022, 12, 5, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("16547.91")))
	assert.Equal(t, "/coins/bitcoin/history", gotPath)
	assert.Contains(t, gotQuery, "date=05-12-2022")
}

func TestCoinGeckoPriceProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewCoinGeckoPriceProvider("usd")
	p.baseURL = server.URL

	_, err := p.PriceAt(context.Background(), "BTC", day(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")

	_, err = p.PriceAt(context.Background(), "DOGE", day(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported asset")
}

// countingProvider fails after recording the call when broken is set.
type countingProvider struct {
	price  decimal.Decimal
	calls  int
	broken bool
}

func (p *countingProvider) PriceAt(_ context.Context, _ string, _ time.Time) (decimal.Decimal, error) {
	p.calls++
	if p.broken {
		return decimal.Zero, errors.New("provider down")
	}
	return p.price, nil
}

// memoryPriceRepo is an in-memory repositories.PriceRepository.
type memoryPriceRepo struct {
	prices map[string]*models.CachedPrice
}

func newMemoryPriceRepo() *memoryPriceRepo {
	return &memoryPriceRepo{prices: make(map[string]*models.CachedPrice)}
}

func (r *memoryPriceRepo) Get(_ context.Context, asset string, date time.Time) (*models.CachedPrice, error) {
	if p, ok := r.prices[asset+"|"+repositories.DateKey(date)]; ok {
		return p, nil
	}
	return nil, nil
}

func (r *memoryPriceRepo) Put(_ context.Context, price *models.CachedPrice) error {
	key := price.Asset + "|" + price.Date
	if _, exists := r.prices[key]; !exists {
		r.prices[key] = price
	}
	return nil
}

func TestCachingPriceProviderFetchesOnce(t *testing.T) {
	next := &countingProvider{price: dec("20000")}
	caching := NewCachingPriceProvider(next, newMemoryPriceRepo(), nil)

	for i := 0; i < 3; i++ {
		price, err := caching.PriceAt(context.Background(), "BTC", day(5))
		require.NoError(t, err)
		assert.True(t, price.Equal(dec("20000")))
	}
	assert.Equal(t, 1, next.calls, "later lookups are served from the cache")

	// A different day misses the cache.
	_, err := caching.PriceAt(context.Background(), "BTC", day(6))
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func writePriceCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVPriceProvider(t *testing.T) {
	path := writePriceCSV(t, "date,price\n2013-04-01 00:00:00,93.03\n2013-04-02,104.00\n")
	p, err := NewCSVPriceProvider(path)
	require.NoError(t, err)

	price, err := p.PriceAt(context.Background(), "BTC", time.Date(2013, 4, 1, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("93.03")))

	_, err = p.PriceAt(context.Background(), "BTC", time.Date(2013, 5, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}

func TestCSVPriceProviderRejectsBadRow(t *testing.T) {
	path := writePriceCSV(t, "2013-04-01,not-a-price\n")
	_, err := NewCSVPriceProvider(path)
	require.Error(t, err)
}

func TestFallbackPriceProvider(t *testing.T) {
	broken := &countingProvider{broken: true}
	working := &countingProvider{price: dec("42")}
	p := NewFallbackPriceProvider(broken, working)

	price, err := p.PriceAt(context.Background(), "BTC", day(1))
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("42")))
	assert.Equal(t, 1, broken.calls)

	allBroken := NewFallbackPriceProvider(broken)
	_, err = allBroken.PriceAt(context.Background(), "BTC", day(1))
	require.Error(t, err)
}

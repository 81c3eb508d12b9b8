package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vhqtran/coingains/internal/models"
	"github.com/vhqtran/coingains/internal/repositories"
)

// CoinGeckoPriceProvider fetches historical daily prices from the
// CoinGecko public API (no key required for basic endpoints).
type CoinGeckoPriceProvider struct {
	httpClient *http.Client
	baseURL    string
	currency   string
}

// NewCoinGeckoPriceProvider creates a provider quoting in currency
// (e.g. "usd").
func NewCoinGeckoPriceProvider(currency string) *CoinGeckoPriceProvider {
	return &CoinGeckoPriceProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.coingecko.com/api/v3",
		currency:   strings.ToLower(currency),
	}
}

func (p *CoinGeckoPriceProvider) PriceAt(ctx context.Context, asset string, date time.Time) (decimal.Decimal, error) {
	id := mapSymbolToCoinGeckoID(asset)
	if id == "" {
		return decimal.Zero, fmt.Errorf("unsupported asset: %s", asset)
	}
	// CoinGecko's historical endpoint expects dd-mm-yyyy.
	d := date.UTC()
	url := fmt.Sprintf("%s/coins/%s/history?date=%02d-%02d-%d&localization=false",
		p.baseURL, id, d.Day(), d.Month(), d.Year())

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("coingecko status %d", resp.StatusCode)
	}

	var payload struct {
		MarketData struct {
			CurrentPrice map[string]float64 `json:"current_price"`
		} `json:"market_data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, err
	}
	val, ok := payload.MarketData.CurrentPrice[p.currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("price not found for currency %s", p.currency)
	}
	return decimal.NewFromFloat(val), nil
}

func mapSymbolToCoinGeckoID(symbol string) string {
	switch strings.ToUpper(symbol) {
	case "BTC":
		return "bitcoin"
	case "ETH":
		return "ethereum"
	case "LTC":
		return "litecoin"
	case "SOL":
		return "solana"
	case "USDT":
		return "tether"
	case "USDC":
		return "usd-coin"
	default:
		return ""
	}
}

// CachingPriceProvider wraps another provider with the sqlite price
// cache, so a date fetched once is priced identically forever after.
type CachingPriceProvider struct {
	next  PriceProvider
	cache repositories.PriceRepository
	log   *zap.Logger
}

// NewCachingPriceProvider decorates next with cache.
func NewCachingPriceProvider(next PriceProvider, cache repositories.PriceRepository, logger *zap.Logger) *CachingPriceProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachingPriceProvider{next: next, cache: cache, log: logger}
}

func (p *CachingPriceProvider) PriceAt(ctx context.Context, asset string, date time.Time) (decimal.Decimal, error) {
	cached, err := p.cache.Get(ctx, asset, date)
	if err != nil {
		return decimal.Zero, err
	}
	if cached != nil {
		return cached.Price, nil
	}

	price, err := p.next.PriceAt(ctx, asset, date)
	if err != nil {
		return decimal.Zero, err
	}
	if err := p.cache.Put(ctx, &models.CachedPrice{
		Asset:  asset,
		Date:   repositories.DateKey(date),
		Price:  price,
		Source: "provider",
	}); err != nil {
		// A failed cache write only costs a refetch next run.
		p.log.Warn("failed to cache price", zap.String("asset", asset), zap.Error(err))
	}
	return price, nil
}

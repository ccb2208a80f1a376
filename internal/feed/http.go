package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"portfolio-alerts/internal/config"
	apperrors "portfolio-alerts/internal/errors"
	"portfolio-alerts/internal/metrics"
	"portfolio-alerts/internal/models"
	"portfolio-alerts/pkg/utils"
)

// HTTPFeed fetches snapshots from REST quote endpoints, one base URL per
// asset type. Requests are bounded by the client timeout and retried a small
// number of times within the caller's context deadline.
type HTTPFeed struct {
	cryptoBaseURL string
	stockBaseURL  string
	client        *http.Client
	retry         utils.RetryConfig

	// one breaker per quote endpoint so a dead crypto feed never
	// suspends stock quotes
	cryptoBreaker *breaker
	stockBreaker  *breaker
}

// quoteResponse is the wire format of a quote endpoint. Pointer fields keep
// "field absent" distinguishable from a reported zero.
type quoteResponse struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price"`
	Volume    *float64 `json:"volume"`
	MarketCap *float64 `json:"market_cap"`
}

// NewHTTPFeed creates a feed client from the feed configuration.
func NewHTTPFeed(cfg config.FeedConfig) *HTTPFeed {
	retry := utils.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries + 1
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &HTTPFeed{
		cryptoBaseURL: cfg.CryptoBaseURL,
		stockBaseURL:  cfg.StockBaseURL,
		client:        &http.Client{Timeout: timeout},
		retry:         retry,
		cryptoBreaker: newBreaker(5, 2, 30*time.Second),
		stockBreaker:  newBreaker(5, 2, 30*time.Second),
	}
}

// GetSnapshot fetches the current price, volume and market cap for a symbol.
func (f *HTTPFeed) GetSnapshot(ctx context.Context, symbol string, assetType models.AssetType) (models.Snapshot, error) {
	endpoint, err := f.quoteURL(symbol, assetType)
	if err != nil {
		return models.Snapshot{}, apperrors.NewFeedError(symbol, "building quote url", err)
	}

	br := f.stockBreaker
	if assetType == models.AssetCrypto {
		br = f.cryptoBreaker
	}

	snap, err := utils.RetryWithResult(ctx, f.retry, func() (models.Snapshot, error) {
		if err := br.allow(); err != nil {
			return models.Snapshot{}, apperrors.NewFeedError(symbol, "skipping quote request", err)
		}
		snap, err := f.fetch(ctx, endpoint, symbol)
		// An authoritative "no such symbol" still means the endpoint is up.
		br.record(err == nil || apperrors.Is(err, apperrors.ErrSymbolNotFound))
		return snap, err
	})
	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues(string(assetType), "failed").Inc()
		return models.Snapshot{}, err
	}

	metrics.FeedRequestsTotal.WithLabelValues(string(assetType), "success").Inc()
	return snap, nil
}

func (f *HTTPFeed) quoteURL(symbol string, assetType models.AssetType) (string, error) {
	base := f.stockBaseURL
	if assetType == models.AssetCrypto {
		base = f.cryptoBaseURL
	}

	endpoint, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	endpoint.Path += "/quote"

	query := endpoint.Query()
	query.Set("symbol", symbol)
	endpoint.RawQuery = query.Encode()

	return endpoint.String(), nil
}

func (f *HTTPFeed) fetch(ctx context.Context, endpoint, symbol string) (models.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.Snapshot{}, apperrors.NewFeedError(symbol, "building request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return models.Snapshot{}, apperrors.NewFeedError(symbol, "feed request failed", apperrors.Wrap(apperrors.ErrFeedUnavailable, err.Error()))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.Snapshot{}, apperrors.NewFeedError(symbol, "symbol not found", apperrors.ErrSymbolNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return models.Snapshot{}, apperrors.NewFeedError(symbol, fmt.Sprintf("feed returned status %d", resp.StatusCode), apperrors.ErrFeedUnavailable)
	}

	var quote quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return models.Snapshot{}, apperrors.NewFeedError(symbol, "decoding quote", err)
	}

	return models.Snapshot{
		Price:     quote.Price,
		Volume:    quote.Volume,
		MarketCap: quote.MarketCap,
	}, nil
}

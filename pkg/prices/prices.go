// Package prices converts satoshi amounts to USD using the mempool.space
// price feed, with a short-lived cache so event bursts do not hammer the
// oracle.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GideonBature/nodegaze-sub000/logger"
)

const (
	cacheTTL       = 120 * time.Second
	requestTimeout = 10 * time.Second
	satsPerBtc     = 100_000_000
)

type Converter struct {
	baseUrl    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.RWMutex
	priceUsd  float64
	fetchedAt time.Time
}

func NewConverter(mempoolApi string) *Converter {
	return &Converter{
		baseUrl:    mempoolApi,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.Logger.With().Str("component", "prices").Logger(),
	}
}

// BtcPriceUsd returns the cached BTC/USD price, refreshing it when the
// cache has expired. When the feed is unreachable a stale price is better
// than none, so the last known value is served; only an empty cache fails.
func (c *Converter) BtcPriceUsd(ctx context.Context) (float64, error) {
	c.mu.RLock()
	price, fetchedAt := c.priceUsd, c.fetchedAt
	c.mu.RUnlock()

	if !fetchedAt.IsZero() && time.Since(fetchedAt) < cacheTTL {
		return price, nil
	}

	fresh, err := c.fetchPrice(ctx)
	if err != nil {
		if !fetchedAt.IsZero() {
			c.logger.Warn().Err(err).Msg("Price fetch failed, serving stale price")
			return price, nil
		}
		return 0, err
	}

	c.mu.Lock()
	c.priceUsd = fresh
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return fresh, nil
}

// SatsToUsd converts a satoshi amount to USD, rounded to cents. When no
// price is available at all it returns 0 rather than failing the caller.
func (c *Converter) SatsToUsd(ctx context.Context, sats uint64) float64 {
	price, err := c.BtcPriceUsd(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("No BTC price available")
		return 0
	}
	usd := float64(sats) / satsPerBtc * price
	return math.Round(usd*100) / 100
}

func (c *Converter) fetchPrice(ctx context.Context) (float64, error) {
	url := c.baseUrl + "/v1/prices"

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("Failed to fetch BTC price")
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("price feed returned HTTP %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, err
	}

	var prices struct {
		USD float64 `json:"USD"`
	}
	if err := json.Unmarshal(body, &prices); err != nil {
		c.logger.Error().Err(err).Str("url", url).Msg("Failed to deserialize price response")
		return 0, err
	}
	if prices.USD <= 0 {
		return 0, fmt.Errorf("price feed returned non-positive USD price")
	}
	return prices.USD, nil
}

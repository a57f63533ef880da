// Package prices resolves hourly spot price curves for the Norwegian
// price regions from hvakosterstrommen.no, caching each (date, region)
// curve after the first fetch.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/HossEz/stromtracker/internal/metrics"
	"github.com/HossEz/stromtracker/pkg/model"
)

const (
	// DefaultBaseURL is the public hvakosterstrommen.no price endpoint.
	DefaultBaseURL = "https://www.hvakosterstrommen.no/api/v1/prices"

	// DefaultTimeout bounds a single upstream fetch. On timeout the
	// fetch fails into ErrPriceUnavailable; there are no retries.
	DefaultTimeout = 10 * time.Second
)

// CurveStore is the persistence surface the client needs: read a cached
// curve (nil on miss) and atomically replace the full curve for a key.
type CurveStore interface {
	GetPriceCurve(ctx context.Context, date time.Time, region string) (*model.PriceCurve, error)
	PutPriceCurve(ctx context.Context, curve model.PriceCurve) error
}

// Client fetches daily price curves, consulting the store first.
type Client struct {
	baseURL string
	http    *http.Client
	store   CurveStore
	loc     *time.Location
	logger  *slog.Logger
}

// NewClient creates a price client. store may be nil, in which case
// every call goes upstream.
func NewClient(baseURL string, timeout time.Duration, store CurveStore, loc *time.Location, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		store:   store,
		loc:     loc,
		logger:  logger,
	}
}

// Location returns the timezone price curves are keyed in.
func (c *Client) Location() *time.Location {
	return c.loc
}

// apiEntry is one record of the upstream payload.
type apiEntry struct {
	NOKPerKWh float64 `json:"NOK_per_kWh"`
	TimeStart string  `json:"time_start"`
}

// DailyCurve returns the MVA-adjusted hourly curve for the calendar day
// containing date, in the client's timezone. Cached curves are returned
// without network access; a fresh fetch is written back to the store as
// one atomic replace before returning.
func (c *Client) DailyCurve(ctx context.Context, date time.Time, region string) (model.PriceCurve, error) {
	info, err := Lookup(region)
	if err != nil {
		return model.PriceCurve{}, err
	}

	day := model.DayOf(date.In(c.loc))

	if c.store != nil {
		cached, err := c.store.GetPriceCurve(ctx, day, info.Code)
		if err != nil {
			c.logger.Warn("price cache read failed", "date", day.Format("2006-01-02"), "region", info.Code, "error", err)
		}
		if cached != nil {
			metrics.PriceCacheHits.Inc()
			return *cached, nil
		}
	}
	metrics.PriceCacheMisses.Inc()

	curve, err := c.fetch(ctx, day, info)
	if err != nil {
		metrics.PriceFetchFailures.Inc()
		return model.PriceCurve{}, err
	}

	if c.store != nil {
		if err := c.store.PutPriceCurve(ctx, curve); err != nil {
			c.logger.Warn("price cache write failed", "date", day.Format("2006-01-02"), "region", info.Code, "error", err)
		}
	}

	c.logger.Info("fetched price curve", "date", day.Format("2006-01-02"), "region", info.Code, "hours", len(curve.Prices))
	return curve, nil
}

// CurrentPrice returns the spot price for the hour containing now.
func (c *Client) CurrentPrice(ctx context.Context, region string) (float64, error) {
	now := time.Now().In(c.loc)
	curve, err := c.DailyCurve(ctx, now, region)
	if err != nil {
		return 0, err
	}
	price, ok := curve.Price(now.Hour())
	if !ok {
		return 0, fmt.Errorf("%w: no entry for hour %d", ErrPriceUnavailable, now.Hour())
	}
	return price, nil
}

func (c *Client) fetch(ctx context.Context, day time.Time, region RegionInfo) (model.PriceCurve, error) {
	url := fmt.Sprintf("%s/%04d/%02d-%02d_%s.json",
		c.baseURL, day.Year(), int(day.Month()), day.Day(), region.Code)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.PriceCurve{}, fmt.Errorf("%w: create request: %v", ErrPriceUnavailable, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.PriceFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return model.PriceCurve{}, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.PriceCurve{}, fmt.Errorf("%w: upstream status %d", ErrPriceUnavailable, resp.StatusCode)
	}

	var entries []apiEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return model.PriceCurve{}, fmt.Errorf("%w: decode payload: %v", ErrPriceUnavailable, err)
	}
	if len(entries) == 0 {
		return model.PriceCurve{}, fmt.Errorf("%w: empty payload", ErrPriceUnavailable)
	}

	curve := model.PriceCurve{
		Date:   day,
		Region: region.Code,
		Prices: make(map[int]float64, len(entries)),
	}
	for _, e := range entries {
		ts, err := time.Parse(time.RFC3339, e.TimeStart)
		if err != nil {
			return model.PriceCurve{}, fmt.Errorf("%w: parse time_start %q: %v", ErrPriceUnavailable, e.TimeStart, err)
		}
		hour := ts.In(c.loc).Hour()
		curve.Prices[hour] = TaxedPrice(e.NOKPerKWh, region)
	}

	return curve, nil
}

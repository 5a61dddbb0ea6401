// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package geocode reverse-geocodes grid cells through the Nominatim API.
// Lookups are rate-limited to the provider's one-request-per-second policy,
// cached with a TTL, and guarded by a circuit breaker. Every caller must
// treat a failed lookup as routine; addresses are decoration, not data.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/citypulse/footfall/internal/config"
	"github.com/citypulse/footfall/internal/geogrid"
	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/metrics"
)

const breakerName = "nominatim"

// result is one resolved address pair.
type result struct {
	Address  string
	AreaName string
}

// cacheEntry is a cached lookup with its expiry.
type cacheEntry struct {
	result  result
	expires time.Time
}

// Client is a caching, rate-limited Nominatim reverse geocoder. It
// implements aggregate.Geocoder.
type Client struct {
	baseURL   string
	userAgent string
	httpc     *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker[result]

	cacheTTL time.Duration
	cacheMu  sync.RWMutex
	cache    map[string]cacheEntry
}

// New creates a Nominatim client from configuration.
func New(cfg *config.GeocoderConfig) *Client {
	metrics.BreakerState.WithLabelValues(breakerName).Set(0)

	breaker := gobreaker.NewCircuitBreaker[result](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Geocoder circuit breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpc:     &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		breaker:   breaker,
		cacheTTL:  cfg.CacheTTL,
		cache:     make(map[string]cacheEntry),
	}
}

// Reverse resolves a coordinate pair to an address and an area name.
// Results are cached per grid cell, so nearby coordinates share lookups.
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (string, string, error) {
	key := geogrid.Key(lat, lng, geogrid.DefaultCellSize)

	if cached, ok := c.cached(key); ok {
		metrics.GeocodeLookups.WithLabelValues("hit").Inc()
		return cached.Address, cached.AreaName, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", fmt.Errorf("rate limiter wait aborted: %w", err)
	}

	res, err := c.breaker.Execute(func() (result, error) {
		return c.fetch(ctx, lat, lng)
	})
	if err != nil {
		metrics.GeocodeLookups.WithLabelValues("error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", "", fmt.Errorf("geocoder unavailable: %w", err)
		}
		return "", "", err
	}

	metrics.GeocodeLookups.WithLabelValues("resolved").Inc()
	c.store(key, res)
	return res.Address, res.AreaName, nil
}

// cached returns a live cache entry for a grid key.
func (c *Client) cached(key string) (result, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expires) {
		return result{}, false
	}
	return entry.result, true
}

// store caches a resolved lookup under a grid key.
func (c *Client) store(key string, res result) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{result: res, expires: time.Now().Add(c.cacheTTL)}
}

// nominatimResponse is the subset of the reverse-geocoding payload used.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Neighbourhood string `json:"neighbourhood"`
		Suburb        string `json:"suburb"`
		CityDistrict  string `json:"city_district"`
		City          string `json:"city"`
	} `json:"address"`
}

// fetch performs one HTTP reverse lookup.
func (c *Client) fetch(ctx context.Context, lat, lng float64) (result, error) {
	endpoint := fmt.Sprintf("%s/reverse?%s", c.baseURL, url.Values{
		"lat":    {fmt.Sprintf("%f", lat)},
		"lon":    {fmt.Sprintf("%f", lng)},
		"format": {"json"},
		"zoom":   {"18"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result{}, fmt.Errorf("failed to build geocode request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return result{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close geocode response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return result{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var payload nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return result{}, fmt.Errorf("failed to decode geocode response: %w", err)
	}

	return result{
		Address:  payload.DisplayName,
		AreaName: areaName(payload),
	}, nil
}

// areaName picks the most specific locality field present.
func areaName(p nominatimResponse) string {
	for _, candidate := range []string{
		p.Address.Neighbourhood,
		p.Address.Suburb,
		p.Address.CityDistrict,
		p.Address.City,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// stateToFloat maps breaker states onto the metric encoding.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

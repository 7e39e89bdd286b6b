// Package distance measures road distance between coordinates using
// public routing services. OSRM is the primary provider with an
// OpenRouteService alternative; callers fall back to straight-line
// distance when both fail.
package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bustracker/internal/geo"
	"bustracker/internal/trip"
)

const (
	DefaultOSRMBase = "https://router.project-osrm.org"
	DefaultORSBase  = "https://api.openrouteservice.org"

	defaultTimeout = 8 * time.Second
)

// Client measures road distances, trying OSRM first and ORS second.
type Client struct {
	http     *http.Client
	osrmBase string
	orsBase  string
	orsKey   string
}

type Option func(*Client)

func WithOSRMBase(base string) Option { return func(c *Client) { c.osrmBase = base } }
func WithORS(base, apiKey string) Option {
	return func(c *Client) { c.orsBase = base; c.orsKey = apiKey }
}
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		osrmBase: DefaultOSRMBase,
		orsBase:  DefaultORSBase,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RoadDistance returns the driving distance and duration between two
// points. Errors from the primary provider trigger the alternative; an
// error return means every configured provider failed.
func (c *Client) RoadDistance(ctx context.Context, from, to geo.Point) (trip.DistanceResult, error) {
	res, osrmErr := c.osrm(ctx, from, to)
	if osrmErr == nil {
		return res, nil
	}
	if c.orsKey != "" {
		res, orsErr := c.ors(ctx, from, to)
		if orsErr == nil {
			return res, nil
		}
		return trip.DistanceResult{}, fmt.Errorf("osrm: %v; ors: %w", osrmErr, orsErr)
	}
	return trip.DistanceResult{}, fmt.Errorf("osrm: %w", osrmErr)
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

func (c *Client) osrm(ctx context.Context, from, to geo.Point) (trip.DistanceResult, error) {
	// OSRM takes lon,lat pairs.
	u := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false",
		c.osrmBase, from.Lon, from.Lat, to.Lon, to.Lat)
	var resp osrmResponse
	if err := c.getJSON(ctx, u, nil, &resp); err != nil {
		return trip.DistanceResult{}, err
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		return trip.DistanceResult{}, fmt.Errorf("osrm code %q with %d routes", resp.Code, len(resp.Routes))
	}
	r := resp.Routes[0]
	return trip.DistanceResult{
		DistanceKM:      r.Distance / 1000,
		DurationMinutes: r.Duration / 60,
		Provider:        "osrm",
	}, nil
}

type orsResponse struct {
	Features []struct {
		Properties struct {
			Summary struct {
				Distance float64 `json:"distance"` // meters
				Duration float64 `json:"duration"` // seconds
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

func (c *Client) ors(ctx context.Context, from, to geo.Point) (trip.DistanceResult, error) {
	u := fmt.Sprintf("%s/v2/directions/driving-car?start=%f,%f&end=%f,%f",
		c.orsBase, from.Lon, from.Lat, to.Lon, to.Lat)
	headers := map[string]string{"Authorization": c.orsKey}
	var resp orsResponse
	if err := c.getJSON(ctx, u, headers, &resp); err != nil {
		return trip.DistanceResult{}, err
	}
	if len(resp.Features) == 0 {
		return trip.DistanceResult{}, fmt.Errorf("ors returned no features")
	}
	sum := resp.Features[0].Properties.Summary
	return trip.DistanceResult{
		DistanceKM:      sum.Distance / 1000,
		DurationMinutes: sum.Duration / 60,
		Provider:        "ors",
	}, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("bad url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ trip.DistanceProvider = (*Client)(nil)

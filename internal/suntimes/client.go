package suntimes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// Defaults applied to zero Config fields.
const (
	DefaultBaseURL   = "https://api.sunrise-sunset.org"
	DefaultTimeout   = 15 * time.Second
	DefaultAttempts  = 3
	DefaultRetryWait = 500 * time.Millisecond
)

// maxBodyBytes caps the response body read.
const maxBodyBytes = 64 << 10

// statusOK is the API's success marker in the JSON body.
const statusOK = "OK"

// Config holds the client settings.
type Config struct {
	// BaseURL is the API root without the /json path.
	// Default: https://api.sunrise-sunset.org
	BaseURL string

	// Timeout bounds each HTTP request.
	// Default: 15s
	Timeout time.Duration

	// Attempts limits tries per lookup, first try included.
	// Default: 3
	Attempts int

	// RetryWait is the first backoff interval; later waits grow
	// exponentially.
	// Default: 500ms
	RetryWait time.Duration

	// HTTPClient is optional.
	HTTPClient *http.Client
}

// Client implements observatory.SunTimesProvider.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ observatory.SunTimesProvider = (*Client)(nil)

// New creates a client, applying defaults to zero fields.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = DefaultRetryWait
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

type apiResponse struct {
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
	Status string `json:"status"`
}

// SunTimes returns sunrise and sunset (UTC) for date at lat/lng. Only the
// calendar date of date is used.
//
// Parameters:
//   - ctx: Cancels the lookup and any retry wait
//   - date: Day to look up, in the site's zone
//   - lat, lng: Site coordinates in degrees
//
// Returns:
//   - sunrise, sunset: UTC instants
//   - error: Wraps observatory.ErrSunTimesUnavailable
func (c *Client) SunTimes(ctx context.Context, date time.Time, lat, lng float64) (sunrise, sunset time.Time, err error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("date", date.Format(time.DateOnly))
	q.Set("formatted", "0")
	endpoint := c.cfg.BaseURL + "/json?" + q.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryWait

	res, err := backoff.Retry(ctx, func() (apiResponse, error) {
		return c.fetch(ctx, endpoint)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.Attempts)),
	)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s: %w", observatory.ErrSunTimesUnavailable, date.Format(time.DateOnly), err)
	}

	sunrise, err = time.Parse(time.RFC3339, res.Results.Sunrise)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: parsing sunrise: %w", observatory.ErrSunTimesUnavailable, err)
	}
	sunset, err = time.Parse(time.RFC3339, res.Results.Sunset)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: parsing sunset: %w", observatory.ErrSunTimesUnavailable, err)
	}
	return sunrise.UTC(), sunset.UTC(), nil
}

// fetch performs one request. Client errors (4xx) and malformed bodies are
// permanent; network errors and 5xx are retried.
func (c *Client) fetch(ctx context.Context, endpoint string) (apiResponse, error) {
	var res apiResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return res, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return res, backoff.Permanent(ctx.Err())
		}
		return res, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return res, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return res, fmt.Errorf("HTTP %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return res, backoff.Permanent(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, &res); err != nil {
		return res, backoff.Permanent(fmt.Errorf("decoding response: %w", err))
	}
	if res.Status != statusOK {
		return res, backoff.Permanent(fmt.Errorf("API status %q", res.Status))
	}
	if res.Results.Sunrise == "" || res.Results.Sunset == "" {
		return res, backoff.Permanent(errors.New("response missing sunrise or sunset"))
	}
	return res, nil
}

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Projection is the explicit partial-response selection sent as the
// "fields" query parameter. Only the enumerated defaults below are known
// to the server; trimming a projection drops the corresponding section
// from the response.
type Projection []string

func (p Projection) encode() string { return strings.Join(p, ",") }

// Default projections per endpoint.
var (
	MonthProjection = Projection{"month", "venues", "regions"}
	CupProjection   = Projection{"cup", "schedules", "races"}
	RaceProjection  = Projection{"race", "entries", "players", "records", "linePrediction"}
	OddsProjection  = Projection{"odds"}
)

// WinticketOptions configures the API client.
type WinticketOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
	Burst      int
}

// WinticketClient implements API against the Winticket JSON endpoints.
type WinticketClient struct {
	client  *http.Client
	opts    WinticketOptions
	limiter *rate.Limiter

	// Per-endpoint projections; callers may trim them before use.
	MonthFields Projection
	CupFields   Projection
	RaceFields  Projection
	OddsFields  Projection
}

// NewWinticketClient creates a rate-limited Winticket API client.
func NewWinticketClient(opts WinticketOptions) *WinticketClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.winticket.jp/v1"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "keirin-cli/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 1
	}
	if opts.Burst == 0 {
		opts.Burst = 1
	}
	return &WinticketClient{
		client:      &http.Client{Timeout: opts.Timeout},
		opts:        opts,
		limiter:     rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		MonthFields: MonthProjection,
		CupFields:   CupProjection,
		RaceFields:  RaceProjection,
		OddsFields:  OddsProjection,
	}
}

func (c *WinticketClient) FetchMonthlyCups(ctx context.Context, date string) (*MonthlyCupsResponse, error) {
	u := fmt.Sprintf("%s/keirin/cups?date=%s&fields=%s&pfm=web",
		c.opts.BaseURL, url.QueryEscape(date), c.MonthFields.encode())

	var out MonthlyCupsResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, eris.Wrapf(err, "winticket: monthly cups %s", date)
	}
	return &out, nil
}

func (c *WinticketClient) FetchCupDetail(ctx context.Context, cupID string) (*CupDetailResponse, error) {
	u := fmt.Sprintf("%s/keirin/cups/%s?fields=%s&pfm=web",
		c.opts.BaseURL, url.PathEscape(cupID), c.CupFields.encode())

	var out CupDetailResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, eris.Wrapf(err, "winticket: cup detail %s", cupID)
	}
	return &out, nil
}

func (c *WinticketClient) FetchRaceDetail(ctx context.Context, cupID string, scheduleIndex, raceNumber int) (*RaceDetailResponse, error) {
	u := fmt.Sprintf("%s/keirin/cups/%s/schedules/%d/races/%d?fields=%s&pfm=web",
		c.opts.BaseURL, url.PathEscape(cupID), scheduleIndex, raceNumber, c.RaceFields.encode())

	var out RaceDetailResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, eris.Wrapf(err, "winticket: race detail %s/%d/%d", cupID, scheduleIndex, raceNumber)
	}
	return &out, nil
}

func (c *WinticketClient) FetchOdds(ctx context.Context, cupID string, scheduleIndex, raceNumber int) (*OddsResponse, error) {
	u := fmt.Sprintf("%s/keirin/cups/%s/schedules/%d/races/%d/odds?fields=%s&pfm=web",
		c.opts.BaseURL, url.PathEscape(cupID), scheduleIndex, raceNumber, c.OddsFields.encode())

	var out OddsResponse
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, eris.Wrapf(err, "winticket: odds %s/%d/%d", cupID, scheduleIndex, raceNumber)
	}
	return &out, nil
}

// getJSON performs a rate-limited GET with retries on transient failures
// and decodes the body into out.
func (c *WinticketClient) getJSON(ctx context.Context, u string, out any) error {
	body, err := getWithRetry(ctx, c.client, c.limiter, u, c.opts.UserAgent, c.opts.MaxRetries)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return eris.Wrap(ErrMalformed, err.Error())
	}
	return nil
}

// getWithRetry is the shared fetch loop for both sources: wait on the
// limiter, GET, retry 5xx/429 with exponential backoff and jitter. 404 and
// 429-after-retries surface as their taxonomy errors.
func getWithRetry(ctx context.Context, client *http.Client, limiter *rate.Limiter, u, userAgent string, maxRetries int) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			jitter := time.Duration(rand.Int64N(int64(time.Second)))
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "source: fetch cancelled")
			case <-time.After(backoff + jitter):
			}
		}

		if err := limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "source: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "source: build request %s", u)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json, text/html")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = eris.Wrap(ErrTransient, err.Error())
			zap.L().Debug("fetch attempt failed",
				zap.String("url", u),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = statusError(resp.StatusCode)
			zap.L().Warn("retryable status",
				zap.String("url", u),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
			)
			continue
		default:
			resp.Body.Close()
			return nil, statusError(resp.StatusCode)
		}
	}
	return nil, lastErr
}

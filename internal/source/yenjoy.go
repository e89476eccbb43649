package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"net/http"
)

// YenjoyOptions configures the result-page scraper.
type YenjoyOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec float64
}

// YenjoyClient implements Scraper against the yen-joy.net result pages.
// The HTML site is polled much slower than the JSON API; the limiter
// default is one request every two seconds.
type YenjoyClient struct {
	client  *http.Client
	opts    YenjoyOptions
	limiter *rate.Limiter
}

// NewYenjoyClient creates a rate-limited result-page scraper.
func NewYenjoyClient(opts YenjoyOptions) *YenjoyClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.yen-joy.net"
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
		opts.RatePerSec = 0.5
	}
	return &YenjoyClient{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}
}

// resultURL builds the result page URL:
// /kaisai/race/result/{yyyyMM}/{venue}/{first day yyyyMMdd}/{race day yyyyMMdd}/{no}
// The dates flow in from upstream payloads, so both are validated before
// they are sliced into path segments.
func (c *YenjoyClient) resultURL(key ResultKey) (string, error) {
	firstDay := strings.ReplaceAll(key.CupStartDate, "-", "")
	raceDay := strings.ReplaceAll(key.RaceDate, "-", "")
	if len(firstDay) != 8 || len(raceDay) != 8 {
		return "", eris.Wrapf(ErrMalformed, "yenjoy: bad result key dates %q %q", key.CupStartDate, key.RaceDate)
	}
	return fmt.Sprintf("%s/kaisai/race/result/%s/%s/%s/%s/%d",
		c.opts.BaseURL, firstDay[:6], key.VenueCode, firstDay, raceDay, key.RaceNumber), nil
}

func (c *YenjoyClient) FetchRaceResult(ctx context.Context, key ResultKey) (*ResultPage, error) {
	u, err := c.resultURL(key)
	if err != nil {
		return nil, err
	}

	body, err := getWithRetry(ctx, c.client, c.limiter, u, c.opts.UserAgent, c.opts.MaxRetries)
	if err != nil {
		return nil, eris.Wrapf(err, "yenjoy: fetch result %s %s R%d", key.VenueCode, key.RaceDate, key.RaceNumber)
	}
	defer body.Close()

	// Result pages are served as Shift_JIS.
	decoded := transform.NewReader(body, japanese.ShiftJIS.NewDecoder())

	page, err := ParseResultPage(decoded)
	if err != nil {
		return nil, eris.Wrapf(err, "yenjoy: parse result %s %s R%d", key.VenueCode, key.RaceDate, key.RaceNumber)
	}
	return page, nil
}

// ParseResultPage extracts the finishing table, race comment, lap diagrams
// and inspection reports from a result page document. An unrecognized page
// layout (no result table) is a ParseFailure.
func ParseResultPage(r io.Reader) (*ResultPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, eris.Wrap(ErrParseFailure, err.Error())
	}
	return parseResultDocument(doc)
}

package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *WinticketClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWinticketClient(WinticketOptions{
		BaseURL:    srv.URL,
		RatePerSec: 1000, // don't slow tests down
		Burst:      1000,
		MaxRetries: 2,
		Timeout:    5 * time.Second,
	})
}

func TestWinticket_FetchMonthlyCups(t *testing.T) {
	var gotPath, gotQuery string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{
			"month": {"cups": [
				{"id": "2024030111", "name": "函館記念", "startDate": "2024-03-01",
				 "endDate": "2024-03-03", "duration": 3, "grade": 3, "venueId": "11",
				 "playersUnfixed": false}
			]},
			"venues": [{"id": "11", "name": "函館", "trackDistance": 400}],
			"regions": [{"id": "1", "name": "北日本"}]
		}`))
	}))

	resp, err := c.FetchMonthlyCups(context.Background(), "2024-03-01")
	require.NoError(t, err)

	assert.Equal(t, "/keirin/cups", gotPath)
	assert.Contains(t, gotQuery, "date=2024-03-01")
	assert.Contains(t, gotQuery, "fields=month%2Cvenues%2Cregions")
	require.Len(t, resp.Month.Cups, 1)
	assert.Equal(t, "2024030111", resp.Month.Cups[0].ID)
	assert.Equal(t, "11", resp.Month.Cups[0].VenueID)
	require.Len(t, resp.Venues, 1)
	assert.Equal(t, 400, resp.Venues[0].TrackDistance)
}

func TestWinticket_FetchRaceDetail_Path(t *testing.T) {
	var gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"race": {"id": "r1", "number": 7, "status": "entry"}}`))
	}))

	resp, err := c.FetchRaceDetail(context.Background(), "2024030111", 2, 7)
	require.NoError(t, err)
	assert.Equal(t, "/keirin/cups/2024030111/schedules/2/races/7", gotPath)
	assert.Equal(t, 7, resp.Race.Number)
}

func TestWinticket_NotFound(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.FetchOdds(context.Background(), "cup", 1, 1)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.False(t, Retryable(err))
}

func TestWinticket_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"cup": {"id": "c1"}}`))
	}))

	resp, err := c.FetchCupDetail(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", resp.Cup.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestWinticket_RateLimitedExhaustsRetries(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.FetchCupDetail(context.Background(), "c1")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrRateLimited))
	assert.True(t, Retryable(err))
}

func TestWinticket_MalformedBody(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"month": [not json`))
	}))

	_, err := c.FetchMonthlyCups(context.Background(), "2024-03-01")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMalformed))
}

package source

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultURL(t *testing.T) {
	c := NewYenjoyClient(YenjoyOptions{BaseURL: "https://example.test"})

	u, err := c.resultURL(ResultKey{
		VenueCode:    "31",
		CupStartDate: "2024-03-01",
		RaceDate:     "2024-03-03",
		RaceNumber:   7,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/kaisai/race/result/202403/31/20240301/20240303/7", u)
}

func TestResultURL_MalformedDates(t *testing.T) {
	c := NewYenjoyClient(YenjoyOptions{})

	cases := []ResultKey{
		{VenueCode: "31", CupStartDate: "", RaceDate: "2024-03-03", RaceNumber: 1},
		{VenueCode: "31", CupStartDate: "2024-3-1", RaceDate: "2024-03-03", RaceNumber: 1},
		{VenueCode: "31", CupStartDate: "2024-03-01", RaceDate: "bad", RaceNumber: 1},
	}
	for _, key := range cases {
		_, err := c.resultURL(key)
		require.Error(t, err, "key %+v", key)
		assert.True(t, eris.Is(err, ErrMalformed))
	}
}

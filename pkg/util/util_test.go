package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSatsToBTC(t *testing.T) {
	assert.Equal(t, "0.000025", SatsToBTC(2500))
	assert.Equal(t, "1", SatsToBTC(SatsPerBTC))
	assert.Equal(t, "0", SatsToBTC(0))
	assert.Equal(t, "0.00000001", SatsToBTC(1))
}

func TestBTCToSats(t *testing.T) {
	sats, err := BTCToSats("0.000025")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), sats)

	_, err = BTCToSats("abc")
	assert.Error(t, err)
}

func TestISO8601(t *testing.T) {
	ts := time.Date(2026, 5, 4, 3, 2, 1, 0, time.FixedZone("ICT", 7*3600))
	assert.Equal(t, "2026-05-03T20:02:01Z", TimeToISO8601Str(ts))

	got, err := ParseISO8601("2026-05-03T20:02:01Z")
	require.NoError(t, err)
	assert.True(t, ts.Equal(got))
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBookingStatus(t *testing.T) {
	for _, valid := range []string{"requested", "confirmed", "completed", "cancelled"} {
		status, ok := ParseBookingStatus(valid)
		require.True(t, ok, "expected %q to parse", valid)
		assert.Equal(t, valid, string(status))
	}

	for _, invalid := range []string{"", "pending", "Confirmed", "done"} {
		_, ok := ParseBookingStatus(invalid)
		assert.False(t, ok, "expected %q to be rejected", invalid)
	}
}

func TestBookingStatusTerminal(t *testing.T) {
	assert.False(t, BookingRequested.Terminal())
	assert.False(t, BookingConfirmed.Terminal())
	assert.True(t, BookingCompleted.Terminal())
	assert.True(t, BookingCancelled.Terminal())
}

func TestParseSlotStatus(t *testing.T) {
	for _, valid := range []string{"open", "held", "blocked"} {
		status, ok := ParseSlotStatus(valid)
		require.True(t, ok)
		assert.Equal(t, valid, string(status))
	}

	_, ok := ParseSlotStatus("reserved")
	assert.False(t, ok)
}

func TestMetadataMerge(t *testing.T) {
	base := Metadata{"level": "B2", "notes": "old"}

	merged := base.Merge(Metadata{"notes": "new", "topic": "grammar"})

	assert.Equal(t, Metadata{"level": "B2", "notes": "new", "topic": "grammar"}, merged)
	assert.Equal(t, "old", base["notes"], "merge does not mutate the receiver")

	assert.Equal(t, Metadata{"a": float64(1)}, Metadata(nil).Merge(Metadata{"a": float64(1)}))
}

func TestMetadataValue(t *testing.T) {
	v, err := Metadata(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	v, err = Metadata{"k": "v"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(v.([]byte)))
}

func TestMetadataScan(t *testing.T) {
	var m Metadata
	require.NoError(t, m.Scan([]byte(`{"k":"v","n":2}`)))
	assert.Equal(t, "v", m["k"])
	assert.Equal(t, float64(2), m["n"])

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	require.Error(t, m.Scan(42))
}

func TestBookingEffectiveEnd(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

	withEnd := &Booking{ScheduledStart: start, ScheduledEnd: end, DurationMinutes: 90}
	assert.Equal(t, end, withEnd.EffectiveEnd())

	withoutEnd := &Booking{ScheduledStart: start, DurationMinutes: 90}
	assert.Equal(t, start.Add(90*time.Minute), withoutEnd.EffectiveEnd())
}

package service

import (
	"math"
	"time"

	"tutordesk-service/internal/models"
)

type Stats struct {
	Total        int
	Upcoming     int
	InProgress   int
	Completed    int
	Cancelled    int
	RevenueMinor int64
}

// ComputeStats classifies bookings relative to now and accrues revenue in
// minor currency units. Cancelled bookings count only toward Cancelled and
// never contribute revenue.
func ComputeStats(bookings []*models.Booking, now time.Time) *Stats {
	stats := &Stats{}

	for _, b := range bookings {
		stats.Total++

		if b.Status == models.BookingCancelled {
			stats.Cancelled++
			continue
		}

		switch {
		case b.Status == models.BookingCompleted || b.EffectiveEnd().Before(now):
			stats.Completed++
		case !b.ScheduledStart.After(now):
			stats.InProgress++
		default:
			stats.Upcoming++
		}

		if b.HourlyRateAmount > 0 && b.DurationMinutes > 0 {
			stats.RevenueMinor += int64(math.Round(float64(b.HourlyRateAmount) * float64(b.DurationMinutes) / 60))
		}
	}

	return stats
}

// Override replaces every counter with the authoritative values from an
// unfiltered tally.
func (s *Stats) Override(counts *Stats) {
	if counts == nil {
		return
	}
	*s = *counts
}

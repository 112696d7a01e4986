package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyEventStatus(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	cases := []struct {
		name string
		now  time.Time
		want EventStatus
	}{
		{"before start", start.Add(-time.Minute), EventStatusUpcoming},
		{"exactly at start", start, EventStatusOngoing},
		{"midway", start.Add(time.Hour), EventStatusOngoing},
		{"exactly at end", end, EventStatusOngoing},
		{"after end", end.Add(time.Second), EventStatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyEventStatus(start, end, tc.now))
		})
	}
}

func TestDerivedStatusIgnoresStoredStatus(t *testing.T) {
	now := time.Now().UTC()
	event := Event{
		Status:    EventStatusUpcoming,
		StartTime: now.Add(-2 * time.Hour),
		EndTime:   now.Add(-time.Hour),
	}
	assert.Equal(t, EventStatusCompleted, event.DerivedStatus(now))
}

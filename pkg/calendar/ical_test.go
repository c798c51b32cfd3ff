package calendar

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCalendarHeaders(t *testing.T) {
	generatedAt := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	document := Render(nil, generatedAt)

	assert.True(t, strings.HasPrefix(document, "BEGIN:VCALENDAR"))
	assert.Contains(t, document, "PRODID:-//commutercal//EN")
	assert.Contains(t, document, "METHOD:PUBLISH")
	assert.Contains(t, document, "CALSCALE:GREGORIAN")
	assert.Contains(t, document, "REFRESH-INTERVAL;VALUE=DURATION:P1D")
	assert.Contains(t, document, "X-PUBLISHED-TTL:P1D")
	assert.Contains(t, document, "X-WR-TIMEZONE:America/New_York")
}

func TestRenderEvent(t *testing.T) {
	start := time.Date(2024, 4, 1, 7, 15, 0, 0, eastern)

	events := []Event{
		{
			UID:      "mbta-cr-providence-cr-weekday-515-place-mans-2024-04-01",
			Summary:  "CR Providence - Trip CR-Weekday-515 - Inbound - 7:15 AM",
			Location: "Providence/Stoughton Line - Mansfield",
			Start:    start,
			End:      start.Add(50 * time.Minute),
		},
	}

	document := Render(events, start)

	assert.Contains(t, document, "UID:mbta-cr-providence-cr-weekday-515-place-mans-2024-04-01")
	assert.Contains(t, document, "STATUS:CONFIRMED")
	assert.Contains(t, document, "SUMMARY:")
	assert.Contains(t, document, "END:VEVENT")
}

func TestRenderFallbackEventIsAllDay(t *testing.T) {
	dayStart := time.Date(2024, 4, 1, 0, 0, 0, 0, eastern)

	events := []Event{
		{
			UID:      "mbta-unknown-mansfield-south-station-2024-04-01",
			Summary:  "MBTA Commuter Rail schedule unavailable",
			Location: "MBTA Commuter Rail",
			Start:    dayStart,
			End:      dayStart.AddDate(0, 0, 1),
			AllDay:   true,
			Fallback: true,
		},
	}

	document := Render(events, dayStart)

	assert.Contains(t, document, "UID:mbta-unknown-mansfield-south-station-2024-04-01")
	assert.Contains(t, document, "STATUS:TENTATIVE")
	assert.Contains(t, document, "TRANSP:TRANSPARENT")
	assert.Contains(t, document, "VALUE=DATE")
}

func TestRenderIsDeterministic(t *testing.T) {
	generatedAt := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	start := time.Date(2024, 4, 1, 7, 15, 0, 0, eastern)

	events := []Event{
		{UID: "mbta-a", Summary: "a", Start: start, End: start.Add(time.Minute)},
		{UID: "mbta-b", Summary: "b", Start: start.Add(time.Hour), End: start.Add(2 * time.Hour)},
	}

	first := Render(events, generatedAt)
	second := Render(events, generatedAt)

	require.Equal(t, first, second)
}

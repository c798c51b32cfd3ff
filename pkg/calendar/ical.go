package calendar

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

const productID = "-//commutercal//EN"

// Render serializes events into an iCalendar document. Clients are given a
// 24 hour refresh hint; event times are emitted in UTC with the calendar
// advertising the Eastern zone the noon rule is evaluated in.
func Render(events []Event, generatedAt time.Time) string {
	document := ics.NewCalendar()
	document.SetProductId(productID)
	document.SetVersion("2.0")
	document.SetCalscale("GREGORIAN")
	document.SetMethod(ics.MethodPublish)
	document.SetXWRTimezone("America/New_York")

	document.CalendarProperties = append(document.CalendarProperties,
		ics.CalendarProperty{BaseProperty: ics.BaseProperty{
			IANAToken:      "REFRESH-INTERVAL",
			ICalParameters: map[string][]string{"VALUE": {"DURATION"}},
			Value:          "P1D",
		}},
		ics.CalendarProperty{BaseProperty: ics.BaseProperty{
			IANAToken: "X-PUBLISHED-TTL",
			Value:     "P1D",
		}},
	)

	stamp := generatedAt.In(eastern)

	for _, event := range events {
		entry := document.AddEvent(event.UID)
		entry.SetDtStampTime(stamp)
		entry.SetSummary(event.Summary)
		entry.SetLocation(event.Location)

		if event.Description != "" {
			entry.SetDescription(event.Description)
		}
		if event.URL != "" {
			entry.SetURL(event.URL)
		}

		if event.AllDay {
			entry.SetAllDayStartAt(event.Start)
			entry.SetAllDayEndAt(event.End)
			entry.SetStatus(ics.ObjectStatusTentative)
			entry.SetTimeTransparency(ics.TransparencyTransparent)
		} else {
			entry.SetStartAt(event.Start)
			entry.SetEndAt(event.End)
			entry.SetStatus(ics.ObjectStatusConfirmed)
		}
	}

	return document.Serialize()
}

package calendar

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/commutercal/commutercal/pkg/mbta"
	"github.com/commutercal/commutercal/pkg/resolver"
)

// legEvents turns one leg's departures into events, applying the noon split
// rule in local Eastern time. A departure at exactly 12:00 belongs to the
// afternoon leg.
func (s *Synthesizer) legEvents(route mbta.Route, origin resolver.Stop, destination resolver.Stop, leg legSchedule, morning bool) []Event {
	perDay := map[string][]mbta.ScheduleEntry{}
	var dayOrder []string

	for _, entry := range leg.Departures {
		departure := entry.DepartureTime
		if departure.IsZero() {
			departure = entry.ArrivalTime
		}
		if departure.IsZero() {
			continue
		}

		local := departure.In(eastern)
		beforeNoon := local.Hour() < 12

		if morning != beforeNoon {
			continue
		}

		day := local.Format("2006-01-02")
		if _, seen := perDay[day]; !seen {
			dayOrder = append(dayOrder, day)
		}
		perDay[day] = append(perDay[day], entry)
	}

	var events []Event

	for _, day := range dayOrder {
		entries := perDay[day]

		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].DepartureTime.Before(entries[j].DepartureTime)
		})

		if len(entries) > eventsPerLegPerDay {
			entries = entries[:eventsPerLegPerDay]
		}

		for _, entry := range entries {
			events = append(events, s.entryEvent(route, origin, destination, leg, entry, day))
		}
	}

	return events
}

func (s *Synthesizer) entryEvent(route mbta.Route, origin resolver.Stop, destination resolver.Stop, leg legSchedule, entry mbta.ScheduleEntry, day string) Event {
	departure := entry.DepartureTime
	if departure.IsZero() {
		departure = entry.ArrivalTime
	}
	departure = departure.In(eastern)

	end := departure.Add(5 * time.Minute)
	if arrival, ok := leg.Arrivals[arrivalKey(entry.TripID, day)]; ok {
		if arrival.After(departure) {
			end = arrival.In(eastern)
		} else {
			end = departure.Add(time.Minute)
		}
	}

	routeLabel := route.ShortName
	if routeLabel == "" {
		routeLabel = route.LongName
	}
	if routeLabel == "" {
		routeLabel = entry.TripID
	}

	directionLabel := directionName(route, entry.DirectionID)
	if directionLabel == "" {
		directionLabel = entry.Headsign
	}

	tripLink := fmt.Sprintf(tripLinkFormat, route.ID, entry.TripID)

	description := strings.Join([]string{
		fmt.Sprintf("Route: %s", route.LongName),
		fmt.Sprintf("Origin: %s", origin.Name),
		fmt.Sprintf("Destination: %s", destination.Name),
		fmt.Sprintf("Headsign: %s", entry.Headsign),
		fmt.Sprintf("Direction: %s", directionLabel),
		fmt.Sprintf("Trip: %s", entry.TripID),
		fmt.Sprintf("Link: %s", tripLink),
	}, "\n")

	return Event{
		UID:         eventUID(route.ID, entry.TripID, origin.ID, day),
		Summary:     fmt.Sprintf("CR %s - Trip %s - %s - %s", routeLabel, entry.TripID, directionLabel, formatClock(departure)),
		Description: description,
		Location:    fmt.Sprintf("%s - %s", route.LongName, origin.Name),
		URL:         tripLink,
		Start:       departure,
		End:         end,
	}
}

// fallbackEvents is the degraded mode output - exactly one synthetic all-day
// event for the whole request, in a UID namespace real events can never
// occupy, so a recovered feed replaces rather than duplicates it.
func (s *Synthesizer) fallbackEvents(request Request, reason string) []Event {
	dayStart := s.today()

	uid := strings.ToLower(fmt.Sprintf(
		"mbta-unknown-%s-%s-%s",
		resolver.Slugify(request.HomeStop),
		resolver.Slugify(request.WorkStop),
		dayStart.Format("2006-01-02"),
	))

	return []Event{
		{
			UID:         uid,
			Summary:     "MBTA Commuter Rail schedule unavailable",
			Description: reason,
			Location:    "MBTA Commuter Rail",
			Start:       dayStart,
			End:         dayStart.AddDate(0, 0, 1),
			AllDay:      true,
			Fallback:    true,
		},
	}
}

// eventUID is the idempotence contract for calendar clients - identical
// inputs must always serialize to the identical identifier.
func eventUID(routeID string, tripID string, stopID string, day string) string {
	if tripID == "" {
		tripID = uidTripPlaceholder
	}

	return strings.ToLower(fmt.Sprintf("mbta-%s-%s-%s-%s", routeID, tripID, stopID, day))
}

func directionName(route mbta.Route, directionID int) string {
	if directionID >= 0 && directionID < len(route.DirectionNames) {
		if name := strings.TrimSpace(route.DirectionNames[directionID]); name != "" {
			return name
		}
	}

	switch directionID {
	case 0:
		return "Inbound"
	case 1:
		return "Outbound"
	}

	return ""
}

func formatClock(value time.Time) string {
	return value.Format("3:04 PM")
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].UID < events[j].UID
		}

		return events[i].Start.Before(events[j].Start)
	})
}

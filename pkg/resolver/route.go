package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/commutercal/commutercal/pkg/mbta"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/slices"
)

// ErrNoCommonRoute reports that the two stops share no commuter rail route,
// or that no trip could evidence them on the same service.
var ErrNoCommonRoute = errors.New("no common route between stops")

// RouteMatch records which route connects two stops and which way trips run
// between them. Direction inference is the expensive part of resolution, so
// the whole match is cached by the caller.
type RouteMatch struct {
	RouteID       string
	OriginID      string
	DestinationID string

	// OriginPrecedes is true when at least one observed trip calls at the
	// origin before the destination
	OriginPrecedes bool

	// DirectionKnown is false when no evidencing trip carried a direction
	// id, in which case the Toward fields are meaningless
	DirectionKnown    bool
	TowardDestination int
	TowardOrigin      int
}

type ScheduleProber interface {
	Schedules(ctx context.Context, query mbta.ScheduleQuery) ([]mbta.ScheduleEntry, error)
}

// FindRoute finds the shared route between two stops and infers travel
// direction from trip stop sequences. Candidate routes are probed in the
// order they appear on the origin stop, scanning every service date in the
// window until a trip evidences both stops - a holiday or weekend gap at the
// start of the window must not hide a route that runs on later days. Within
// a date the first trip evidencing both stops decides the ordering.
func FindRoute(ctx context.Context, prober ScheduleProber, origin Stop, destination Stop, windowStart time.Time, days int) (*RouteMatch, error) {
	var shared []string
	for _, routeID := range origin.RouteIDs {
		if slices.Contains(destination.RouteIDs, routeID) {
			shared = append(shared, routeID)
		}
	}

	if len(shared) == 0 {
		return nil, ErrNoCommonRoute
	}

	if days < 1 {
		days = 1
	}

	for _, routeID := range shared {
		for dayNumber := 0; dayNumber < days; dayNumber++ {
			match, err := probeRoute(ctx, prober, routeID, origin, destination, windowStart.AddDate(0, 0, dayNumber))
			if err != nil {
				return nil, err
			}

			if match != nil {
				log.Debug().
					Str("route", match.RouteID).
					Bool("origin_precedes", match.OriginPrecedes).
					Bool("direction_known", match.DirectionKnown).
					Msg("Inferred route between stops")

				return match, nil
			}

			// Nothing on this service date, try the next one
		}

		// No trip on this route calls at both stops, try the next candidate
	}

	return nil, ErrNoCommonRoute
}

func probeRoute(ctx context.Context, prober ScheduleProber, routeID string, origin Stop, destination Stop, date time.Time) (*RouteMatch, error) {
	originEntries, err := prober.Schedules(ctx, mbta.ScheduleQuery{
		RouteID:     routeID,
		StopID:      origin.ID,
		DirectionID: -1,
		Date:        date,
	})
	if err != nil {
		return nil, err
	}

	destinationEntries, err := prober.Schedules(ctx, mbta.ScheduleQuery{
		RouteID:     routeID,
		StopID:      destination.ID,
		DirectionID: -1,
		Date:        date,
	})
	if err != nil {
		return nil, err
	}

	byTrip := map[string]mbta.ScheduleEntry{}
	for _, entry := range destinationEntries {
		if _, seen := byTrip[entry.TripID]; !seen {
			byTrip[entry.TripID] = entry
		}
	}

	var evidence *mbta.ScheduleEntry
	evidencePrecedes := false

	for _, originEntry := range originEntries {
		destinationEntry, shared := byTrip[originEntry.TripID]
		if !shared {
			continue
		}

		precedes := entryPrecedes(originEntry, destinationEntry)

		if evidence == nil {
			captured := originEntry
			evidence = &captured
			evidencePrecedes = precedes
		}

		// First trip with the origin ahead of the destination settles the
		// commute direction; earlier reverse trips only prove the stops share
		// the route
		if precedes && !evidencePrecedes {
			captured := originEntry
			evidence = &captured
			evidencePrecedes = true
			break
		}

		if precedes {
			break
		}
	}

	if evidence == nil {
		return nil, nil
	}

	match := &RouteMatch{
		RouteID:        routeID,
		OriginID:       origin.ID,
		DestinationID:  destination.ID,
		OriginPrecedes: evidencePrecedes,
	}

	if evidence.DirectionID >= 0 {
		match.DirectionKnown = true

		if evidencePrecedes {
			match.TowardDestination = evidence.DirectionID
			match.TowardOrigin = 1 - evidence.DirectionID
		} else {
			match.TowardOrigin = evidence.DirectionID
			match.TowardDestination = 1 - evidence.DirectionID
		}
	}

	return match, nil
}

// entryPrecedes reports whether the origin call comes before the destination
// call on the same trip, preferring stop sequence and falling back to the
// scheduled times when a sequence is missing.
func entryPrecedes(origin mbta.ScheduleEntry, destination mbta.ScheduleEntry) bool {
	if origin.StopSequence > 0 && destination.StopSequence > 0 {
		return origin.StopSequence < destination.StopSequence
	}

	originTime := origin.DepartureTime
	if originTime.IsZero() {
		originTime = origin.ArrivalTime
	}

	destinationTime := destination.ArrivalTime
	if destinationTime.IsZero() {
		destinationTime = destination.DepartureTime
	}

	if originTime.IsZero() || destinationTime.IsZero() {
		return false
	}

	return !originTime.After(destinationTime)
}

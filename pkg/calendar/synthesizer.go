package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/commutercal/commutercal/pkg/cache"
	"github.com/commutercal/commutercal/pkg/mbta"
	"github.com/commutercal/commutercal/pkg/resolver"
	"github.com/rs/zerolog/log"
	"github.com/senseyeio/duration"
	"github.com/sourcegraph/conc"

	_ "time/tzdata"
)

// ErrValidation marks a malformed request. It is the only error a feed
// consumer ever sees as a hard failure; every other problem degrades into the
// fallback calendar.
var ErrValidation = errors.New("invalid request")

const (
	MinDays = 1
	MaxDays = 30

	indexTTL    = 6 * time.Hour
	routeTTL    = 6 * time.Hour
	scheduleTTL = 5 * time.Minute

	eventsPerLegPerDay = 8

	stopIndexKey = "commuter-rail"

	uidTripPlaceholder = "no-trip"

	tripLinkFormat = "https://www.mbta.com/schedules/%s/line?trip=%s"
)

var eastern = func() *time.Location {
	location, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}

	return location
}()

var oneDay, _ = duration.ParseISO8601("P1D")

// Event is one entry of the generated feed.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string

	Start time.Time
	End   time.Time

	AllDay   bool
	Fallback bool
}

// Request carries the core-facing feed parameters, regardless of transport.
type Request struct {
	HomeStop     string
	WorkStop     string
	Days         int
	ForceRefresh bool
}

type TransitClient interface {
	resolver.StopLister
	resolver.ScheduleProber
}

type legSchedule struct {
	Departures []mbta.ScheduleEntry
	Arrivals   map[string]time.Time
}

// Synthesizer generates commute calendar events. All upstream lookups run
// through TTL caches so repeated feed pulls stay cheap, and every cache is
// consulted for stale data before the synthesizer gives up and emits the
// fallback event.
type Synthesizer struct {
	client TransitClient

	stopIndex *cache.Cache[string, *resolver.StopIndex]
	routes    *cache.Cache[string, *resolver.RouteMatch]
	schedules *cache.Cache[string, legSchedule]

	// Now is swappable for tests
	Now func() time.Time
}

func NewSynthesizer(client TransitClient) *Synthesizer {
	return &Synthesizer{
		client:    client,
		stopIndex: cache.New[string, *resolver.StopIndex](),
		routes:    cache.New[string, *resolver.RouteMatch](),
		schedules: cache.New[string, legSchedule](),
		Now:       time.Now,
	}
}

// Generate produces the commute events for the requested stop pair and
// window. Other than validation it never fails - any resolution or upstream
// problem collapses into the single fallback event so the feed stays
// parseable for calendar clients.
func (s *Synthesizer) Generate(ctx context.Context, request Request) ([]Event, error) {
	if strings.TrimSpace(request.HomeStop) == "" || strings.TrimSpace(request.WorkStop) == "" {
		return nil, fmt.Errorf("%w: home_stop and work_stop are required", ErrValidation)
	}
	if request.Days < MinDays || request.Days > MaxDays {
		return nil, fmt.Errorf("%w: days must be between %d and %d", ErrValidation, MinDays, MaxDays)
	}

	index, err := s.index(ctx, request.ForceRefresh)
	if err != nil {
		log.Warn().Err(err).Msg("Stop index unavailable, emitting fallback calendar")

		return s.fallbackEvents(request, "The stop directory could not be loaded."), nil
	}

	home, homeErr := index.Resolve(request.HomeStop)
	work, workErr := index.Resolve(request.WorkStop)

	if homeErr != nil || workErr != nil {
		log.Warn().
			Str("home", request.HomeStop).
			Str("work", request.WorkStop).
			Msg("Stop resolution failed, emitting fallback calendar")

		return s.fallbackEvents(request, "One of the configured stops could not be matched."), nil
	}

	match, err := s.route(ctx, home, work, request.Days, request.ForceRefresh)
	if err != nil {
		log.Warn().Err(err).
			Str("home", home.ID).
			Str("work", work.ID).
			Msg("Route resolution failed, emitting fallback calendar")

		return s.fallbackEvents(request, "No commuter rail route connecting both stops could be resolved."), nil
	}

	// A stale match can outlive its route when the index is rebuilt
	route, ok := index.Route(match.RouteID)
	if !ok {
		log.Warn().
			Str("route", match.RouteID).
			Msg("Cached route match no longer in stop directory, emitting fallback calendar")

		return s.fallbackEvents(request, "No commuter rail route connecting both stops could be resolved."), nil
	}

	windowStart := s.today()

	morningDirection := -1
	eveningDirection := -1
	if match.DirectionKnown {
		morningDirection = match.TowardDestination
		eveningDirection = match.TowardOrigin
	}

	var morningLeg, eveningLeg legSchedule
	var morningErr, eveningErr error

	var legs conc.WaitGroup
	legs.Go(func() {
		morningLeg, morningErr = s.legSchedule(ctx, match.RouteID, home, work, morningDirection, windowStart, request.Days, request.ForceRefresh)
	})
	legs.Go(func() {
		eveningLeg, eveningErr = s.legSchedule(ctx, match.RouteID, work, home, eveningDirection, windowStart, request.Days, request.ForceRefresh)
	})
	legs.Wait()

	if morningErr != nil || eveningErr != nil {
		log.Warn().AnErr("morning", morningErr).AnErr("evening", eveningErr).Msg("Schedule lookup failed, emitting fallback calendar")

		return s.fallbackEvents(request, "The schedule service is currently unavailable."), nil
	}

	events := s.legEvents(route, home, work, morningLeg, true)
	events = append(events, s.legEvents(route, work, home, eveningLeg, false)...)

	sortEvents(events)

	return events, nil
}

// SearchStops backs the stop discovery endpoint with the same substring and
// fuzzy logic resolution uses.
func (s *Synthesizer) SearchStops(ctx context.Context, query string, forceRefresh bool) ([]resolver.Stop, error) {
	if resolver.Slugify(query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}

	index, err := s.index(ctx, forceRefresh)
	if err != nil {
		return nil, err
	}

	return index.Search(query, 10), nil
}

func (s *Synthesizer) index(ctx context.Context, forceRefresh bool) (*resolver.StopIndex, error) {
	index, err := s.stopIndex.GetOrPopulate(stopIndexKey, indexTTL, forceRefresh, func() (*resolver.StopIndex, error) {
		return resolver.BuildIndex(ctx, s.client)
	})

	if err != nil {
		if stale, ok := s.stopIndex.Stale(stopIndexKey); ok {
			log.Warn().Err(err).Msg("Serving stale stop index")

			return stale, nil
		}

		return nil, err
	}

	return index, nil
}

func (s *Synthesizer) route(ctx context.Context, home resolver.Stop, work resolver.Stop, days int, forceRefresh bool) (*resolver.RouteMatch, error) {
	key := fmt.Sprintf("route:%s:%s", home.ID, work.ID)

	match, err := s.routes.GetOrPopulate(key, routeTTL, forceRefresh, func() (*resolver.RouteMatch, error) {
		return resolver.FindRoute(ctx, s.client, home, work, s.today(), days)
	})

	if err != nil {
		// A missing shared route is definitive, but an upstream outage can be
		// papered over with the previously inferred match
		if errors.Is(err, mbta.ErrUnavailable) {
			if stale, ok := s.routes.Stale(key); ok {
				log.Warn().Err(err).Msg("Serving stale route match")

				return stale, nil
			}
		}

		return nil, err
	}

	return match, nil
}

func (s *Synthesizer) legSchedule(ctx context.Context, routeID string, origin resolver.Stop, destination resolver.Stop, directionID int, windowStart time.Time, days int, forceRefresh bool) (legSchedule, error) {
	key := fmt.Sprintf("schedule:%s:%s:%s:%d:%s:%d", routeID, origin.ID, destination.ID, directionID, windowStart.Format("2006-01-02"), days)

	leg, err := s.schedules.GetOrPopulate(key, scheduleTTL, forceRefresh, func() (legSchedule, error) {
		return s.fetchLeg(ctx, routeID, origin.ID, destination.ID, directionID, windowStart, days)
	})

	if err != nil {
		if stale, ok := s.schedules.Stale(key); ok {
			log.Warn().Err(err).Str("route", routeID).Str("stop", origin.ID).Msg("Serving stale departures")

			return stale, nil
		}

		return legSchedule{}, err
	}

	return leg, nil
}

func (s *Synthesizer) fetchLeg(ctx context.Context, routeID string, originID string, destinationID string, directionID int, windowStart time.Time, days int) (legSchedule, error) {
	leg := legSchedule{
		Arrivals: map[string]time.Time{},
	}

	date := windowStart
	for dayNumber := 0; dayNumber < days; dayNumber++ {
		departures, err := s.client.Schedules(ctx, mbta.ScheduleQuery{
			RouteID:     routeID,
			StopID:      originID,
			DirectionID: directionID,
			Date:        date,
		})
		if err != nil {
			return legSchedule{}, err
		}

		arrivals, err := s.client.Schedules(ctx, mbta.ScheduleQuery{
			RouteID:     routeID,
			StopID:      destinationID,
			DirectionID: directionID,
			Date:        date,
		})
		if err != nil {
			return legSchedule{}, err
		}

		leg.Departures = append(leg.Departures, departures...)

		for _, arrival := range arrivals {
			arrivalTime := arrival.ArrivalTime
			if arrivalTime.IsZero() {
				arrivalTime = arrival.DepartureTime
			}
			if arrivalTime.IsZero() {
				continue
			}

			// Trip ids repeat on every service date, so arrivals are keyed
			// per date. A trip can call more than once, keep the latest
			// arrival
			key := arrivalKey(arrival.TripID, arrivalTime.In(eastern).Format("2006-01-02"))
			if existing, ok := leg.Arrivals[key]; !ok || arrivalTime.After(existing) {
				leg.Arrivals[key] = arrivalTime
			}
		}

		date = oneDay.Shift(date)
	}

	return leg, nil
}

func arrivalKey(tripID string, day string) string {
	return fmt.Sprintf("%s|%s", tripID, day)
}

func (s *Synthesizer) today() time.Time {
	now := s.Now().In(eastern)

	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, eastern)
}

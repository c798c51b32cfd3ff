package resolver

import (
	"context"
	"time"

	"github.com/commutercal/commutercal/pkg/mbta"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/iter"
)

// Stop is an indexed commuter rail stop together with every route serving it.
type Stop struct {
	ID       string   `json:"id" groups:"basic"`
	Name     string   `json:"name" groups:"basic"`
	Slug     string   `json:"slug" groups:"basic"`
	RouteIDs []string `json:"route_ids" groups:"basic"`
}

// StopIndex is an immutable snapshot of every commuter rail stop. It is
// rebuilt wholesale on cache expiry, never patched in place, so concurrent
// readers always see one consistent snapshot.
type StopIndex struct {
	BuiltAt time.Time
	Stops   []Stop

	bySlug map[string]int
	routes map[string]mbta.Route
}

type StopLister interface {
	ListCommuterRailRoutes(ctx context.Context) ([]mbta.Route, error)
	ListStops(ctx context.Context, routeID string) ([]mbta.Stop, error)
}

// BuildIndex loads every commuter rail route and its stops, fanning the
// per-route stop listing out concurrently. Stop order, and therefore every
// tie-break downstream, follows route discovery order.
func BuildIndex(ctx context.Context, client StopLister) (*StopIndex, error) {
	routes, err := client.ListCommuterRailRoutes(ctx)
	if err != nil {
		return nil, err
	}

	routeStops, err := iter.MapErr(routes, func(route *mbta.Route) ([]mbta.Stop, error) {
		return client.ListStops(ctx, route.ID)
	})
	if err != nil {
		return nil, err
	}

	index := &StopIndex{
		BuiltAt: time.Now(),
		bySlug:  map[string]int{},
		routes:  map[string]mbta.Route{},
	}

	byID := map[string]int{}

	for routePosition, route := range routes {
		index.routes[route.ID] = route

		for _, stop := range routeStops[routePosition] {
			if position, seen := byID[stop.ID]; seen {
				index.Stops[position].RouteIDs = append(index.Stops[position].RouteIDs, route.ID)
				continue
			}

			indexed := Stop{
				ID:       stop.ID,
				Name:     stop.Name,
				Slug:     Slugify(stop.Name),
				RouteIDs: []string{route.ID},
			}

			// Slugs are unique per snapshot, first discovered stop wins
			if _, taken := index.bySlug[indexed.Slug]; taken {
				log.Debug().
					Str("slug", indexed.Slug).
					Str("stop", indexed.ID).
					Msg("Dropping stop with duplicate slug")

				continue
			}

			byID[stop.ID] = len(index.Stops)
			index.bySlug[indexed.Slug] = len(index.Stops)
			index.Stops = append(index.Stops, indexed)
		}
	}

	log.Info().
		Int("routes", len(routes)).
		Int("stops", len(index.Stops)).
		Msg("Built commuter rail stop index")

	return index, nil
}

// Route returns the route record captured when the index was built.
func (index *StopIndex) Route(routeID string) (mbta.Route, bool) {
	route, ok := index.routes[routeID]
	return route, ok
}

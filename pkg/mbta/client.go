package mbta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/commutercal/commutercal/pkg/util"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable covers every upstream failure mode - transport, auth, rate
// limiting. Callers treat them all the same; the wrapped detail is for logs.
var ErrUnavailable = errors.New("mbta api unavailable")

const (
	defaultBaseURL = "https://api-v3.mbta.com"

	// GTFS route_type 2 is commuter/regional rail
	commuterRailRouteType = "2"

	requestTimeout = 10 * time.Second
	maxRetries     = 2
)

// Client talks to the MBTA v3 API (JSON:API shaped responses).
type Client struct {
	BaseURL string
	APIKey  string

	httpClient *http.Client
}

func NewClient() *Client {
	env := util.GetEnvironmentVariables()

	baseURL := env["COMMUTERCAL_MBTA_API_URL"]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		BaseURL:    baseURL,
		APIKey:     env["COMMUTERCAL_MBTA_API_KEY"],
		httpClient: &http.Client{},
	}
}

// ListCommuterRailRoutes returns every commuter rail route.
func (c *Client) ListCommuterRailRoutes(ctx context.Context) ([]Route, error) {
	query := url.Values{}
	query.Set("filter[type]", commuterRailRouteType)
	query.Set("page[limit]", "100")

	resources, _, err := c.getPaginated(ctx, "/routes", query)
	if err != nil {
		return nil, err
	}

	var routes []Route
	for _, item := range resources {
		var attributes routeAttributes
		if err := json.Unmarshal(item.Attributes, &attributes); err != nil {
			log.Debug().Err(err).Str("route", item.ID).Msg("Unable to parse route attributes")
		}

		longName := attributes.LongName
		if longName == "" {
			longName = attributes.Description
		}
		if longName == "" {
			longName = item.ID
		}

		routes = append(routes, Route{
			ID:             item.ID,
			LongName:       longName,
			ShortName:      attributes.ShortName,
			DirectionNames: attributes.DirectionNames,
		})
	}

	return routes, nil
}

// ListStops returns the stops served by the given route.
func (c *Client) ListStops(ctx context.Context, routeID string) ([]Stop, error) {
	query := url.Values{}
	query.Set("filter[route]", routeID)
	query.Set("page[limit]", "200")

	resources, _, err := c.getPaginated(ctx, "/stops", query)
	if err != nil {
		return nil, err
	}

	var stops []Stop
	for _, item := range resources {
		var attributes stopAttributes
		if err := json.Unmarshal(item.Attributes, &attributes); err != nil {
			log.Debug().Err(err).Str("stop", item.ID).Msg("Unable to parse stop attributes")
		}

		name := attributes.Name
		if name == "" {
			name = attributes.PlatformName
		}
		if name == "" {
			name = item.ID
		}

		stops = append(stops, Stop{
			ID:   item.ID,
			Name: name,
		})
	}

	return stops, nil
}

// Schedules returns the scheduled calls matching the query, in upstream
// departure time order, with trip direction and headsign joined in from the
// included trip resources.
func (c *Client) Schedules(ctx context.Context, scheduleQuery ScheduleQuery) ([]ScheduleEntry, error) {
	query := url.Values{}
	query.Set("filter[route]", scheduleQuery.RouteID)
	query.Set("filter[stop]", scheduleQuery.StopID)
	query.Set("filter[date]", scheduleQuery.Date.Format("2006-01-02"))
	query.Set("sort", "departure_time")
	query.Set("include", "trip")
	query.Set("page[limit]", "200")

	if scheduleQuery.DirectionID >= 0 {
		query.Set("filter[direction_id]", strconv.Itoa(scheduleQuery.DirectionID))
	}
	if scheduleQuery.MinTime != "" {
		query.Set("filter[min_time]", scheduleQuery.MinTime)
	}
	if scheduleQuery.MaxTime != "" {
		query.Set("filter[max_time]", scheduleQuery.MaxTime)
	}

	resources, included, err := c.getPaginated(ctx, "/schedules", query)
	if err != nil {
		return nil, err
	}

	trips := map[string]tripAttributes{}
	for _, item := range included {
		if item.Type != "trip" {
			continue
		}

		var attributes tripAttributes
		if err := json.Unmarshal(item.Attributes, &attributes); err != nil {
			log.Debug().Err(err).Str("trip", item.ID).Msg("Unable to parse trip attributes")
		}
		trips[item.ID] = attributes
	}

	var entries []ScheduleEntry
	for _, item := range resources {
		var attributes scheduleAttributes
		if err := json.Unmarshal(item.Attributes, &attributes); err != nil {
			log.Debug().Err(err).Str("schedule", item.ID).Msg("Unable to parse schedule attributes")
		}

		tripID := item.Relationships["trip"].Data.ID
		if tripID == "" {
			continue
		}

		trip := trips[tripID]
		directionID := -1
		if trip.DirectionID != nil {
			directionID = *trip.DirectionID
		}
		headsign := trip.Headsign
		if headsign == "" {
			headsign = trip.Name
		}

		entries = append(entries, ScheduleEntry{
			TripID:        tripID,
			StopID:        scheduleQuery.StopID,
			StopSequence:  attributes.StopSequence,
			DirectionID:   directionID,
			Headsign:      headsign,
			DepartureTime: parseTime(attributes.DepartureTime),
			ArrivalTime:   parseTime(attributes.ArrivalTime),
		})
	}

	return entries, nil
}

func (c *Client) getPaginated(ctx context.Context, path string, query url.Values) ([]resource, []resource, error) {
	var resources []resource
	var included []resource

	for {
		payload, err := c.get(ctx, path, query)
		if err != nil {
			return nil, nil, err
		}

		resources = append(resources, payload.Data...)
		included = append(included, payload.Included...)

		offset, ok := nextOffset(payload)
		if !ok {
			break
		}
		query.Set("page[offset]", offset)
	}

	return resources, included, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*document, error) {
	var payload document

	operation := func() error {
		requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, fmt.Sprintf("%s%s?%s", c.BaseURL, path, query.Encode()), nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		if c.APIKey != "" {
			request.Header.Set("x-api-key", c.APIKey)
		}

		response, err := c.httpClient.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()

		body, err := io.ReadAll(response.Body)
		if err != nil {
			return err
		}

		if response.StatusCode >= 500 {
			return fmt.Errorf("responded %d for %s", response.StatusCode, path)
		}
		if response.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("responded %d for %s", response.StatusCode, path))
		}

		payload = document{}
		if err := json.Unmarshal(body, &payload); err != nil {
			return backoff.Permanent(err)
		}

		return nil
	}

	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)

	if err := backoff.Retry(operation, retryPolicy); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("MBTA request failed")

		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	return &payload, nil
}

func nextOffset(payload *document) (string, bool) {
	if payload.Links.Next == "" {
		return "", false
	}

	nextURL, err := url.Parse(payload.Links.Next)
	if err != nil {
		log.Debug().Str("link", payload.Links.Next).Msg("Unable to parse pagination link")
		return "", false
	}

	offset := nextURL.Query().Get("page[offset]")
	if offset == "" {
		return "", false
	}

	return offset, true
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

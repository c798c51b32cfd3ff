package mbta

import (
	"encoding/json"
	"time"
)

// Route is a commuter rail route as returned by the MBTA v3 API.
type Route struct {
	ID             string
	LongName       string
	ShortName      string
	DirectionNames []string
}

// Stop is a commuter rail stop served by at least one route.
type Stop struct {
	ID   string
	Name string
}

// ScheduleEntry is one scheduled call of a trip at a stop, enriched with the
// trip resource included in the same response. DirectionID is -1 when the
// upstream data carried no direction for the trip.
type ScheduleEntry struct {
	TripID        string
	StopID        string
	StopSequence  int
	DirectionID   int
	Headsign      string
	DepartureTime time.Time
	ArrivalTime   time.Time
}

// ScheduleQuery filters a /schedules request down to a single route, stop and
// service date. DirectionID of -1 requests both directions.
type ScheduleQuery struct {
	RouteID     string
	StopID      string
	DirectionID int
	Date        time.Time
	MinTime     string
	MaxTime     string
}

// JSON:API envelope as used by the MBTA v3 API
type document struct {
	Data     []resource `json:"data"`
	Included []resource `json:"included"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
}

type resource struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]relationship `json:"relationships"`
}

type relationship struct {
	Data struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"data"`
}

type routeAttributes struct {
	LongName       string   `json:"long_name"`
	ShortName      string   `json:"short_name"`
	Description    string   `json:"description"`
	DirectionNames []string `json:"direction_names"`
}

type stopAttributes struct {
	Name         string `json:"name"`
	PlatformName string `json:"platform_name"`
}

type scheduleAttributes struct {
	ArrivalTime   string `json:"arrival_time"`
	DepartureTime string `json:"departure_time"`
	StopSequence  int    `json:"stop_sequence"`
}

type tripAttributes struct {
	Headsign    string `json:"headsign"`
	Name        string `json:"name"`
	DirectionID *int   `json:"direction_id"`
}

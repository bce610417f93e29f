package models

// Place is one endpoint of a route.
type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Route is a named origin/destination pair from the route configuration document.
type Route struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Origin      Place  `json:"origin"`
	Destination Place  `json:"destination"`
}

// Record status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// TrafficMeasurement is the parsed result of one successful routing call.
// Immutable once built; merged into a Record by the collector.
type TrafficMeasurement struct {
	DistanceKM          float64
	DurationMinutes     float64
	TrafficDelayMinutes float64
	Status              string
}

// WeatherSnapshot holds current conditions shared by every record of a cycle.
// Fields are all nil (weather unavailable) or all populated; there is no
// partially filled snapshot. JSON tags are the cache serialization format.
type WeatherSnapshot struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *int     `json:"humidity"`
	Condition   *string  `json:"weather_condition"`
	Rain1H      *float64 `json:"rain_1h"`
	WindSpeed   *float64 `json:"wind_speed"`
}

// Available reports whether the snapshot carries real data.
func (s WeatherSnapshot) Available() bool {
	return s.Temperature != nil
}

// Record is one output row: route identity, temporal context, the traffic
// measurement (nil fields when the fetch failed) and the cycle's weather.
type Record struct {
	Timestamp           string
	RouteName           string
	DistanceKM          *float64
	DurationMinutes     *float64
	TrafficDelayMinutes *float64
	Status              string
	RouteID             string
	Origin              string
	Destination         string
	Hour                int
	DayOfWeek           string
	IsWeekend           int
	Weather             WeatherSnapshot
}

package domain

import (
	"github.com/golang/geo/r2"

	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
)

// ObservationsFromEvents selects the reports of one event type and turns
// them into interpolation inputs with x = longitude and y = latitude.
// Reports with no position or no measured magnitude are dropped, and only
// the first report at a given position is kept.
func ObservationsFromEvents(events []StormEvent, eventType string) []interpolate.Observation[float64] {
	seen := make(map[r2.Point]bool, len(events))
	obs := make([]interpolate.Observation[float64], 0, len(events))
	for _, e := range events {
		if e.EventType != eventType {
			continue
		}
		if e.Geo.Lat == 0 && e.Geo.Lon == 0 || e.Measurement.Magnitude == 0 {
			continue
		}
		p := r2.Point{X: e.Geo.Lon, Y: e.Geo.Lat}
		if seen[p] {
			continue
		}
		seen[p] = true
		obs = append(obs, interpolate.Observation[float64]{Point: p, Value: e.Measurement.Magnitude})
	}
	return obs
}

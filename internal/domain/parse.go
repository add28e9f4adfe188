package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseStormEvent decodes an enriched storm report from the source topic.
// Reports without an event time fall back to the message timestamp, and a
// missing time bucket is derived from the event time.
func ParseStormEvent(raw RawEvent) (StormEvent, error) {
	var event StormEvent
	if err := json.Unmarshal(raw.Value, &event); err != nil {
		return StormEvent{}, fmt.Errorf("parse storm event: %w", err)
	}

	event.EventType = normalizeEventType(event.EventType)
	if event.EventTime.IsZero() {
		event.EventTime = raw.Timestamp
	}
	if event.TimeBucket.IsZero() {
		event.TimeBucket = deriveTimeBucket(event.EventTime)
	}
	return event, nil
}

// EventFromRecord converts an SPC CSV row into a StormEvent. The report date
// comes from the file, the time of day from the row's HHMM column.
func EventFromRecord(rec RawCSVRecord, date time.Time) StormEvent {
	eventType := normalizeEventType(rec.Type)
	lat := parseFloatOrZero(rec.Lat)
	lon := parseFloatOrZero(rec.Lon)
	magnitude := parseMagnitudeField(eventType, rec.Size, rec.FScale, rec.Speed)
	unit := defaultUnit(eventType)
	eventTime := parseHHMM(date, rec.Time)

	return StormEvent{
		ID:        generateID(eventType, rec.State, lat, lon, rec.Time, magnitude),
		EventType: eventType,
		Geo:       Geo{Lat: lat, Lon: lon},
		Measurement: Measurement{
			Magnitude: normalizeMagnitude(eventType, magnitude, unit),
			Unit:      unit,
		},
		EventTime:  eventTime,
		TimeBucket: deriveTimeBucket(eventTime),
	}
}

// parseFloatOrZero parses a string as float64, returning 0 on failure.
func parseFloatOrZero(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseMagnitudeField selects and parses the correct magnitude column based on event type.
// Returns 0 for unknown values like "UNK".
func parseMagnitudeField(eventType, size, fScale, speed string) float64 {
	var raw string
	switch eventType {
	case "hail":
		raw = size
	case "tornado":
		raw = fScale
	case "wind":
		raw = speed
	default:
		return 0
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "UNK") {
		return 0
	}
	raw = strings.TrimPrefix(raw, "EF")
	raw = strings.TrimPrefix(raw, "F")

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseHHMM combines a base date with an HHMM time string (e.g. "1510" → 15:10).
func parseHHMM(baseDate time.Time, hhmm string) time.Time {
	hhmm = strings.TrimSpace(hhmm)
	if len(hhmm) < 3 || len(hhmm) > 4 {
		return baseDate
	}
	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}

	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return baseDate
	}

	return time.Date(baseDate.Year(), baseDate.Month(), baseDate.Day(), hour, mins, 0, 0, time.UTC)
}

// generateID produces a deterministic report ID, so a CSV replayed through
// the offline tool yields the same IDs as the streaming pipeline.
func generateID(eventType, state string, lat, lon float64, timeStr string, magnitude float64) string {
	input := fmt.Sprintf("%s|%s|%.4f|%.4f|%s|%g", eventType, state, lat, lon, timeStr, magnitude)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if eventType == "" {
		return short
	}
	return eventType + "-" + short
}

// normalizeEventType accepts "hail", "wind" and "tornado" and maps anything
// else to "".
func normalizeEventType(value string) string {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "hail", "wind", "tornado":
		return v
	default:
		return ""
	}
}

func defaultUnit(eventType string) string {
	switch eventType {
	case "hail":
		return "in"
	case "wind":
		return "mph"
	case "tornado":
		return "f_scale"
	default:
		return ""
	}
}

// normalizeMagnitude corrects hail reported in hundredths of inches
// (175 = 1.75in). Values >= 10 inches cannot be real hail.
func normalizeMagnitude(eventType string, magnitude float64, unit string) float64 {
	if eventType == "hail" && unit == "in" && magnitude >= 10 {
		return magnitude / 100.0
	}
	return magnitude
}

// deriveTimeBucket truncates the event time to the hour in UTC.
// Returns zero time if the input is zero.
func deriveTimeBucket(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Truncate(time.Hour)
}

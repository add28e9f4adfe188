package domain

import (
	"context"
	"time"
)

// RawCSVRecord is the flat SPC storm report row, as published by the
// collector and as found in the daily CSV files.
type RawCSVRecord struct {
	Time     string `json:"Time"`
	Size     string `json:"Size"`    // hail magnitude (hundredths of inches)
	FScale   string `json:"F_Scale"` // tornado magnitude (EF scale)
	Speed    string `json:"Speed"`   // wind magnitude (mph)
	Location string `json:"Location"`
	County   string `json:"County"`
	State    string `json:"State"`
	Lat      string `json:"Lat"`
	Lon      string `json:"Lon"`
	Comments string `json:"Comments"`
	Type     string `json:"Type"` // "hail", "wind", or "tornado"
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Measurement is the magnitude of a report in its normalized unit.
type Measurement struct {
	Magnitude float64 `json:"magnitude"`
	Unit      string  `json:"unit,omitempty"`
}

// StormEvent is the subset of the enriched storm report that feeds an
// analysis. Unknown fields in the source JSON are ignored.
type StormEvent struct {
	ID          string      `json:"id"`
	EventType   string      `json:"type"`
	Geo         Geo         `json:"geo"`
	Measurement Measurement `json:"measurement"`
	EventTime   time.Time   `json:"event_time"`
	TimeBucket  time.Time   `json:"time_bucket"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

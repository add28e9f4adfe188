package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// GridSpec describes the grid an analysis was computed on. BBox is
// [minX, minY, maxX, maxY] in GeoJSON order.
type GridSpec struct {
	Rows    int        `json:"rows"`
	Cols    int        `json:"cols"`
	BBox    [4]float64 `json:"bbox"`
	Spacing float64    `json:"spacing"`
}

// Analysis is a gridded field produced from one product's observations in
// one time bucket.
type Analysis struct {
	ID           string    `json:"id"`
	Product      string    `json:"product"`
	EventType    string    `json:"event_type"`
	Method       string    `json:"method"`
	TimeBucket   time.Time `json:"time_bucket"`
	Grid         GridSpec  `json:"grid"`
	Values       Values    `json:"values"`
	Observations int       `json:"observations"`
	Undetermined int       `json:"undetermined"`
	Malformed    int       `json:"malformed,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Key identifies the analysis slot; later analyses for the same slot
// supersede earlier ones on a compacted topic.
func (a Analysis) Key() string {
	return a.Product + "|" + a.TimeBucket.UTC().Format(time.RFC3339)
}

// Values is a row-major grid that encodes undetermined (NaN) cells as JSON null.
type Values []float64

// MarshalJSON writes NaN and infinities as null.
func (v Values) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 2+len(v)*8)
	buf = append(buf, '[')
	for i, x := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, x, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

// UnmarshalJSON reads null cells back as NaN.
func (v *Values) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for i, x := range raw {
		if x == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *x
	}
	*v = out
	return nil
}

// SerializeAnalysis converts an Analysis into an OutputEvent for the sink topic.
func SerializeAnalysis(a Analysis) (OutputEvent, error) {
	value, err := json.Marshal(a)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize analysis: %w", err)
	}

	return OutputEvent{
		Key:   []byte(a.Key()),
		Value: value,
		Headers: map[string]string{
			"product":      a.Product,
			"event_type":   a.EventType,
			"method":       a.Method,
			"generated_at": a.GeneratedAt.UTC().Format(time.RFC3339),
		},
	}, nil
}

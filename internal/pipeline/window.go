package pipeline

import (
	"sort"
	"time"

	"github.com/couchcryptid/storm-data-gridder/internal/domain"
)

// addResult reports what Window.Add did with an event.
type addResult int

const (
	added addResult = iota
	duplicate
	late
)

// Window accumulates storm events by time bucket so that an analysis always
// covers every report seen for its bucket, not only the current batch.
// Buckets older than the newest bucket minus the retention are dropped.
// The window is held in memory only: after a restart a late report for an
// already analyzed bucket yields an analysis over the reports seen since.
// A Window is not safe for concurrent use.
type Window struct {
	retention time.Duration
	buckets   map[time.Time]*bucketEvents
	newest    time.Time
}

type bucketEvents struct {
	ids    map[string]struct{}
	events []domain.StormEvent
}

// NewWindow creates an empty window keeping retention worth of buckets.
func NewWindow(retention time.Duration) *Window {
	return &Window{
		retention: retention,
		buckets:   make(map[time.Time]*bucketEvents),
	}
}

// Add files event under its time bucket. Events repeating an ID already in
// the bucket, and events whose bucket has expired, are rejected.
func (w *Window) Add(event domain.StormEvent) addResult {
	bucket := event.TimeBucket.UTC()
	if bucket.IsZero() || w.expired(bucket) {
		return late
	}

	b, ok := w.buckets[bucket]
	if !ok {
		b = &bucketEvents{ids: make(map[string]struct{})}
		w.buckets[bucket] = b
	}
	if event.ID != "" {
		if _, seen := b.ids[event.ID]; seen {
			return duplicate
		}
		b.ids[event.ID] = struct{}{}
	}
	b.events = append(b.events, event)

	if bucket.After(w.newest) {
		w.newest = bucket
	}
	return added
}

// Events returns the events filed under bucket in arrival order.
func (w *Window) Events(bucket time.Time) []domain.StormEvent {
	b, ok := w.buckets[bucket.UTC()]
	if !ok {
		return nil
	}
	return b.events
}

// Expire drops buckets that fell out of retention and returns how many.
func (w *Window) Expire() int {
	dropped := 0
	for bucket := range w.buckets {
		if w.expired(bucket) {
			delete(w.buckets, bucket)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of buckets held.
func (w *Window) Len() int { return len(w.buckets) }

func (w *Window) expired(bucket time.Time) bool {
	return !w.newest.IsZero() && bucket.Before(w.newest.Add(-w.retention))
}

// touched records the event types that gained events per bucket in a batch.
type touched map[time.Time]map[string]bool

func (t touched) mark(event domain.StormEvent) {
	bucket := event.TimeBucket.UTC()
	if t[bucket] == nil {
		t[bucket] = make(map[string]bool)
	}
	t[bucket][event.EventType] = true
}

// sorted returns the touched buckets oldest first.
func (t touched) sorted() []time.Time {
	out := make([]time.Time, 0, len(t))
	for b := range t {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

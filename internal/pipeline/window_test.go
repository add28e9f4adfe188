package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-gridder/internal/domain"
)

var base = time.Date(2024, time.April, 26, 12, 0, 0, 0, time.UTC)

func event(id string, bucket time.Time) domain.StormEvent {
	return domain.StormEvent{ID: id, EventType: "hail", TimeBucket: bucket}
}

func TestWindow_AddAndEvents(t *testing.T) {
	w := NewWindow(6 * time.Hour)

	assert.Equal(t, added, w.Add(event("a", base)))
	assert.Equal(t, added, w.Add(event("b", base)))
	assert.Equal(t, added, w.Add(event("c", base.Add(time.Hour))))

	assert.Equal(t, 2, w.Len())
	got := w.Events(base)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Nil(t, w.Events(base.Add(5*time.Hour)))
}

func TestWindow_BucketZoneIndependent(t *testing.T) {
	w := NewWindow(time.Hour)
	cdt := time.FixedZone("CDT", -5*3600)

	w.Add(event("a", base.In(cdt)))

	assert.Len(t, w.Events(base), 1)
}

func TestWindow_Duplicate(t *testing.T) {
	w := NewWindow(time.Hour)

	assert.Equal(t, added, w.Add(event("a", base)))
	assert.Equal(t, duplicate, w.Add(event("a", base)))
	assert.Equal(t, added, w.Add(event("a", base.Add(time.Hour))), "IDs are scoped to a bucket")

	// Reports without an ID are never deduplicated.
	assert.Equal(t, added, w.Add(event("", base)))
	assert.Equal(t, added, w.Add(event("", base)))
	assert.Len(t, w.Events(base), 3)
}

func TestWindow_Late(t *testing.T) {
	w := NewWindow(2 * time.Hour)

	assert.Equal(t, late, w.Add(event("zero", time.Time{})))
	assert.Equal(t, added, w.Add(event("a", base)))
	assert.Equal(t, added, w.Add(event("b", base.Add(-2*time.Hour))), "retention boundary is inclusive")
	assert.Equal(t, late, w.Add(event("c", base.Add(-3*time.Hour))))
}

func TestWindow_Expire(t *testing.T) {
	w := NewWindow(90 * time.Minute)
	w.Add(event("a", base))
	w.Add(event("b", base.Add(time.Hour)))
	w.Add(event("c", base.Add(3*time.Hour)))

	assert.Equal(t, 2, w.Expire())
	assert.Equal(t, 1, w.Len())
	assert.Nil(t, w.Events(base))
	assert.Len(t, w.Events(base.Add(3*time.Hour)), 1)
	assert.Zero(t, w.Expire())
}

func TestTouched_Sorted(t *testing.T) {
	tc := make(touched)
	tc.mark(event("a", base.Add(2*time.Hour)))
	tc.mark(event("b", base))
	tc.mark(domain.StormEvent{ID: "c", EventType: "wind", TimeBucket: base})

	assert.Equal(t, []time.Time{base, base.Add(2 * time.Hour)}, tc.sorted())
	assert.Equal(t, map[string]bool{"hail": true, "wind": true}, tc[base])
}

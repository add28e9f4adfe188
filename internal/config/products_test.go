package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProducts(t *testing.T) {
	products, err := ParseProducts([]byte(`
products:
  - name: wind
    event_type: wind
    method: cressman
    spacing: 0.25
    pad: 1
    radius: 2
  - name: tornado
    event_type: tornado
    method: barnes
    spacing: 0.25
    radius: 2
    kappa: 0.5
    gamma: 0.2
    min_neighbors: 1
`))
	require.NoError(t, err)

	assert.Equal(t, []Product{
		{Name: "wind", EventType: "wind", Method: MethodCressman, Spacing: 0.25, Pad: 1, Radius: 2},
		{Name: "tornado", EventType: "tornado", Method: MethodBarnes, Spacing: 0.25, Radius: 2, Kappa: 0.5, Gamma: 0.2, MinNeighbors: 1},
	}, products)
}

func TestParseProducts_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"not yaml", "products: [", "decode products"},
		{"empty", "products: []", "no products"},
		{"unknown method", "products: [{name: a, event_type: hail, method: kriging, spacing: 1}]", "unknown method"},
		{"unknown event", "products: [{name: a, event_type: snow, method: cressman, spacing: 1, radius: 1}]", "unknown event type"},
		{"no spacing", "products: [{name: a, event_type: hail, method: natural_neighbor}]", "spacing"},
		{"no radius", "products: [{name: a, event_type: hail, method: cressman, spacing: 1}]", "radius"},
		{"barnes without kappa", "products: [{name: a, event_type: hail, method: barnes, spacing: 1, radius: 1}]", "kappa"},
		{"negative pad", "products: [{name: a, event_type: hail, method: natural_neighbor, spacing: 1, pad: -1}]", "pad"},
		{"duplicate", "products: [{name: a, event_type: hail, method: natural_neighbor, spacing: 1}, {name: a, event_type: wind, method: natural_neighbor, spacing: 1}]", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProducts([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultProducts_Valid(t *testing.T) {
	for _, p := range DefaultProducts() {
		assert.NoError(t, p.Validate(), p.Name)
	}
}

func TestProductByName(t *testing.T) {
	p, ok := ProductByName(DefaultProducts(), "wind-speed")
	require.True(t, ok)
	assert.Equal(t, MethodCressman, p.Method)

	_, ok = ProductByName(DefaultProducts(), "nope")
	assert.False(t, ok)
}

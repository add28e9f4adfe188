package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Interpolation methods a product can request.
const (
	MethodNaturalNeighbor = "natural_neighbor"
	MethodCressman        = "cressman"
	MethodBarnes          = "barnes"
)

// Product describes one gridded analysis: which reports feed it and how they
// are interpolated. Coordinates are longitude/latitude degrees treated as
// planar x/y.
type Product struct {
	Name      string `yaml:"name" json:"name"`
	EventType string `yaml:"event_type" json:"event_type"`
	Method    string `yaml:"method" json:"method"`

	// Spacing is the grid step and Pad widens the observation bounds on
	// every side, both in degrees.
	Spacing float64 `yaml:"spacing" json:"spacing"`
	Pad     float64 `yaml:"pad" json:"pad"`

	Radius       float64 `yaml:"radius,omitempty" json:"radius,omitempty"`
	Kappa        float64 `yaml:"kappa,omitempty" json:"kappa,omitempty"`
	Gamma        float64 `yaml:"gamma,omitempty" json:"gamma,omitempty"`
	MinNeighbors int     `yaml:"min_neighbors,omitempty" json:"min_neighbors,omitempty"`
}

// Validate checks the fields that do not depend on the observations.
func (p Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	switch p.EventType {
	case "hail", "wind", "tornado":
	default:
		return fmt.Errorf("product %s: unknown event type %q", p.Name, p.EventType)
	}
	if !(p.Spacing > 0) {
		return fmt.Errorf("product %s: spacing must be positive", p.Name)
	}
	if p.Pad < 0 {
		return fmt.Errorf("product %s: pad must not be negative", p.Name)
	}
	switch p.Method {
	case MethodNaturalNeighbor:
		return nil
	case MethodCressman, MethodBarnes:
	default:
		return fmt.Errorf("product %s: unknown method %q", p.Name, p.Method)
	}
	if !(p.Radius > 0) {
		return fmt.Errorf("product %s: %s requires a positive radius", p.Name, p.Method)
	}
	if p.Method == MethodBarnes && !(p.Kappa > 0) {
		return fmt.Errorf("product %s: barnes requires a positive kappa", p.Name)
	}
	if p.Gamma < 0 || p.MinNeighbors < 0 {
		return fmt.Errorf("product %s: gamma and min_neighbors must not be negative", p.Name)
	}
	return nil
}

type productsFile struct {
	Products []Product `yaml:"products"`
}

// ParseProducts decodes and validates a YAML product list.
func ParseProducts(data []byte) ([]Product, error) {
	var f productsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("products file defines no products")
	}

	seen := make(map[string]bool, len(f.Products))
	for _, p := range f.Products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("duplicate product %s", p.Name)
		}
		seen[p.Name] = true
	}
	return f.Products, nil
}

// LoadProducts reads the YAML file named by PRODUCTS_FILE.
func LoadProducts(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid PRODUCTS_FILE: %w", err)
	}
	return ParseProducts(data)
}

// DefaultProducts is used when PRODUCTS_FILE is unset.
func DefaultProducts() []Product {
	return []Product{
		{Name: "hail-size", EventType: "hail", Method: MethodNaturalNeighbor, Spacing: 0.1, Pad: 0.25},
		{Name: "wind-speed", EventType: "wind", Method: MethodCressman, Spacing: 0.1, Pad: 0.5, Radius: 1.0, MinNeighbors: 2},
		{Name: "tornado-rating", EventType: "tornado", Method: MethodBarnes, Spacing: 0.1, Pad: 0.5, Radius: 1.5, Kappa: 0.25, Gamma: 0.3, MinNeighbors: 1},
	}
}

// ProductByName returns the product with the given name.
func ProductByName(products []Product, name string) (Product, bool) {
	for _, p := range products {
		if p.Name == name {
			return p, true
		}
	}
	return Product{}, false
}

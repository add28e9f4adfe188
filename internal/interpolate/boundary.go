package interpolate

import (
	"fmt"

	"github.com/couchcryptid/storm-data-gridder/internal/delaunay"
)

// Edge is a directed segment between two observation indices.
type Edge struct {
	From, To int
}

func (e Edge) key() Edge {
	if e.From > e.To {
		return Edge{From: e.To, To: e.From}
	}
	return e
}

// FindLocalBoundary returns the outer edges of the union of the given
// simplices. Each simplex contributes its three edges; an edge already present
// in either direction is removed instead of added, so shared edges cancel.
// Surviving edges keep the orientation of the simplex that contributed them.
func FindLocalBoundary(tri *delaunay.Triangulation, triangles []int) []Edge {
	edges := make([]Edge, 0, 3*len(triangles))
	alive := make([]bool, 0, 3*len(triangles))
	at := make(map[Edge]int, 3*len(triangles))

	for _, t := range triangles {
		v := tri.Simplices[t]
		for i := 0; i < 3; i++ {
			e := Edge{From: v[i], To: v[(i+1)%3]}
			if pos, ok := at[e.key()]; ok {
				alive[pos] = false
				delete(at, e.key())
				continue
			}
			at[e.key()] = len(edges)
			edges = append(edges, e)
			alive = append(alive, true)
		}
	}

	out := edges[:0]
	for i, e := range edges {
		if alive[i] {
			out = append(out, e)
		}
	}
	return out
}

// OrderEdges walks the edges as one closed loop and returns its vertices in
// order, starting at edges[0].From and heading towards edges[0].To. Edges
// are matched without regard to direction. It returns ErrMalformedBoundary
// when a vertex does not have exactly two incident edges or when the edges
// form more than one loop.
func OrderEdges(edges []Edge) ([]int, error) {
	if len(edges) < 3 {
		return nil, fmt.Errorf("%w: %d edges", ErrMalformedBoundary, len(edges))
	}

	adj := make(map[int][]int, len(edges))
	for _, e := range edges {
		if e.From == e.To {
			return nil, fmt.Errorf("%w: self loop at %d", ErrMalformedBoundary, e.From)
		}
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	for v, n := range adj {
		if len(n) != 2 {
			return nil, fmt.Errorf("%w: vertex %d has %d incident edges", ErrMalformedBoundary, v, len(n))
		}
	}

	start := edges[0].From
	order := make([]int, 0, len(edges))
	order = append(order, start)
	prev, cur := start, edges[0].To
	for cur != start {
		order = append(order, cur)
		n := adj[cur]
		next := n[0]
		if next == prev {
			next = n[1]
		}
		prev, cur = cur, next
	}

	if len(order) != len(edges) {
		return nil, fmt.Errorf("%w: loop covers %d of %d edges", ErrMalformedBoundary, len(order), len(edges))
	}
	return order, nil
}

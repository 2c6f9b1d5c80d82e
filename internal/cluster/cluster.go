// Package cluster groups feature vectors whose structural similarity exceeds a
// threshold using a greedy single pass over a bounded look-ahead window.
package cluster

import (
	"errors"
	"fmt"
	"math"

	"github.com/kozaktomas/samephoto/internal/similarity"
)

// ErrInvalidParams is returned when clustering parameters are out of range.
var ErrInvalidParams = errors.New("invalid clustering parameters")

// Params controls a clustering pass.
type Params struct {
	Width     int     `json:"width" yaml:"width"`         // extraction width in pixels
	Height    int     `json:"height" yaml:"height"`       // extraction height in pixels
	Threshold float64 `json:"threshold" yaml:"threshold"` // SSIM score that must be strictly exceeded
	Window    int     `json:"window" yaml:"window"`       // look-ahead distance in supplied order
}

// VectorLen returns the number of components every vector must have.
func (p Params) VectorLen() int {
	return p.Width * p.Height
}

// Validate reports whether the parameters can be used for clustering.
func (p Params) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: size %dx%d must be positive", ErrInvalidParams, p.Width, p.Height)
	case p.Window <= 0:
		return fmt.Errorf("%w: window %d must be positive", ErrInvalidParams, p.Window)
	case math.IsNaN(p.Threshold) || p.Threshold < -1 || p.Threshold > 1:
		return fmt.Errorf("%w: threshold %v outside [-1, 1]", ErrInvalidParams, p.Threshold)
	}
	return nil
}

// Item is an identified feature vector.
type Item struct {
	ID     string
	Vector []float64
}

// Member is a group entry. Score is the similarity to the group's seed; the
// seed itself scores 1.
type Member struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Group is a set of at least two similar items. The first member is the seed.
type Group struct {
	Members []Member `json:"members"`
}

// Len returns the number of members.
func (g Group) Len() int {
	return len(g.Members)
}

// IDs returns the member identities in group order.
func (g Group) IDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// Engine clusters items with fixed parameters. It holds no state between calls.
type Engine struct {
	params Params
}

// NewEngine validates p and returns an engine using it.
func NewEngine(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: p}, nil
}

// Params returns the engine parameters.
func (e *Engine) Params() Params {
	return e.params
}

// Cluster groups items in the order supplied. Each item is compared only with the
// unused items that follow it within the window. An item joins the first group
// whose seed it matches and is never considered again. Groups with a single
// member are dropped.
func (e *Engine) Cluster(items []Item) ([]Group, error) {
	want := e.params.VectorLen()
	signals := make([]*similarity.Signal, len(items))
	for i, item := range items {
		if len(item.Vector) != want {
			return nil, fmt.Errorf("item %q has %d components, expected %d: %w",
				item.ID, len(item.Vector), want, similarity.ErrShapeMismatch)
		}
		s, err := similarity.NewSignal(item.Vector)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", item.ID, err)
		}
		signals[i] = s
	}

	n := len(items)
	used := make([]bool, n)
	var groups []Group

	for i := range n {
		if used[i] {
			continue
		}
		used[i] = true
		group := Group{Members: []Member{{ID: items[i].ID, Score: 1}}}

		end := min(i+e.params.Window, n)
		for j := i + 1; j < end; j++ {
			if used[j] {
				continue
			}
			score, err := similarity.Compare(signals[i], signals[j])
			if err != nil {
				return nil, fmt.Errorf("compare %q with %q: %w", items[i].ID, items[j].ID, err)
			}
			if score > e.params.Threshold {
				group.Members = append(group.Members, Member{ID: items[j].ID, Score: score})
				used[j] = true
			}
		}

		if group.Len() > 1 {
			groups = append(groups, group)
		}
	}

	return groups, nil
}

// Run clusters items with the given parameters.
func Run(items []Item, width, height int, threshold float64, window int) ([]Group, error) {
	engine, err := NewEngine(Params{Width: width, Height: height, Threshold: threshold, Window: window})
	if err != nil {
		return nil, err
	}
	return engine.Cluster(items)
}

// TotalImages returns the number of items across all groups.
func TotalImages(groups []Group) int {
	total := 0
	for _, g := range groups {
		total += g.Len()
	}
	return total
}

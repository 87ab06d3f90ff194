// Package vectorindex holds FAQ embeddings in memory and ranks them by
// cosine similarity with a linear scan.
package vectorindex

import (
	"fmt"
	"math"
	"sort"

	"support-rag/internal/models"
)

type item struct {
	id   string
	unit models.Vector // nil for a zero vector
}

// Index is built once and then only read. It is not safe for concurrent
// Add and TopK; callers publish a fully built index.
type Index struct {
	dim   int
	items []item
}

// New returns an empty index. A dim of 0 lets the first added vector fix it.
func New(dim int) *Index {
	return &Index{dim: dim}
}

func (ix *Index) Dim() int { return ix.dim }

func (ix *Index) Len() int { return len(ix.items) }

// Add appends a vector in corpus order.
func (ix *Index) Add(id string, v models.Vector) error {
	if err := validate(v); err != nil {
		return fmt.Errorf("add %q: %w", id, err)
	}
	if ix.dim == 0 {
		ix.dim = len(v)
	}
	if len(v) != ix.dim {
		return fmt.Errorf("add %q: %w: got %d, want %d", id, models.ErrDimensionMismatch, len(v), ix.dim)
	}
	ix.items = append(ix.items, item{id: id, unit: unitVector(v)})
	return nil
}

// TopK returns at most k matches sorted by descending similarity. Equal
// scores keep corpus order.
func (ix *Index) TopK(query models.Vector, k int) ([]models.MatchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("top k: k must be positive, got %d", k)
	}
	if len(ix.items) == 0 {
		return []models.MatchResult{}, nil
	}
	if err := validate(query); err != nil {
		return nil, fmt.Errorf("top k: %w", err)
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("top k: %w: got %d, want %d", models.ErrDimensionMismatch, len(query), ix.dim)
	}

	q := unitVector(query)
	results := make([]models.MatchResult, len(ix.items))
	for i, it := range ix.items {
		results[i] = models.MatchResult{ID: it.id, Score: unitCosine(q, it.unit)}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Cosine returns the cosine similarity of two equal-length vectors, or 0
// when either has zero magnitude.
func Cosine(a, b models.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", models.ErrDimensionMismatch, len(a), len(b))
	}
	return unitCosine(unitVector(a), unitVector(b)), nil
}

func validate(v models.Vector) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", models.ErrInvalidVector)
	}
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite element", models.ErrInvalidVector)
		}
	}
	return nil
}

// unitVector scales v by its largest absolute element before taking the
// norm, so the squared sum neither underflows nor overflows. It returns nil
// for a zero vector.
func unitVector(v models.Vector) models.Vector {
	var scale float64
	for _, f := range v {
		scale = max(scale, math.Abs(f))
	}
	if scale == 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return nil
	}
	out := make(models.Vector, len(v))
	var sum float64
	for i, f := range v {
		out[i] = f / scale
		sum += out[i] * out[i]
	}
	norm := math.Sqrt(sum)
	for i := range out {
		out[i] /= norm
	}
	return out
}

// unitCosine is the dot product of two unit vectors, clamped to [-1, 1].
// A nil operand or a non-finite result scores 0.
func unitCosine(a, b models.Vector) float64 {
	if a == nil || b == nil {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	if math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0
	}
	return min(max(sum, -1), 1)
}

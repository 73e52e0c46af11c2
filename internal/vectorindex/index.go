// Package vectorindex implements the in-memory embedding index over the
// movie corpus: build-from-scratch construction guarded by a single writer
// lock, atomic publication of complete generations, and exact cosine
// top-k search.
package vectorindex

import (
	"container/heap"
	"fmt"
	"math"
	"sort"

	"github.com/leyan/cinevec/internal/domain"
)

// Record is one corpus entry handed to the builder: a stable identifier,
// the text to embed, and the metadata carried alongside the vector.
type Record struct {
	ID   string
	Text string
	Meta domain.MovieMeta
}

// Hit is a single search result: the record identifier, its metadata, and
// the cosine similarity score against the query.
type Hit struct {
	ID    string
	Meta  domain.MovieMeta
	Score float32

	// ord is the record's position in corpus order, used for stable
	// tie-breaks. Lower ord wins on equal score.
	ord int
}

// Index is one fully built generation. It is immutable after construction:
// readers share it freely and a rebuild publishes a new value instead of
// mutating in place.
type Index struct {
	generation uint64
	dim        int
	ids        []string    // corpus order
	vectors    [][]float32 // L2-normalized, parallel to ids
	meta       map[string]domain.MovieMeta
}

// Generation returns the build generation number.
func (ix *Index) Generation() uint64 { return ix.generation }

// Dimension returns the vector dimensionality of this generation.
func (ix *Index) Dimension() int { return ix.dim }

// Size returns the number of indexed records.
func (ix *Index) Size() int { return len(ix.ids) }

// Meta returns the metadata for a record identifier.
func (ix *Index) Meta(id string) (domain.MovieMeta, bool) {
	m, ok := ix.meta[id]
	return m, ok
}

// Vector returns the stored (normalized) vector for a record identifier.
func (ix *Index) Vector(id string) ([]float32, bool) {
	for i, candidate := range ix.ids {
		if candidate == id {
			return ix.vectors[i], true
		}
	}
	return nil, false
}

// Search returns the topK nearest records to the query vector by cosine
// similarity, in descending score order with corpus-order tie-breaks.
// topK larger than the corpus clamps to the corpus size.
// Parameters:
//   - query: query vector; must match the index dimension.
//   - topK: maximum number of hits; must be positive.
// Returns:
//   - []Hit: ordered results.
//   - error: non-nil on dimension mismatch or non-positive topK.
func (ix *Index) Search(query []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("vectorindex: topK must be positive, got %d", topK)
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query dim %d, index dim %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if topK > len(ix.ids) {
		topK = len(ix.ids)
	}

	q := Normalize(query)

	// Min-heap of the current best topK: the root is the weakest hit and
	// gets evicted when a better candidate arrives.
	h := make(hitHeap, 0, topK)
	heap.Init(&h)
	for i, vec := range ix.vectors {
		score := dot(q, vec)
		if len(h) < topK {
			heap.Push(&h, Hit{ID: ix.ids[i], Meta: ix.meta[ix.ids[i]], Score: score, ord: i})
			continue
		}
		if worseThan(h[0], score, i) {
			h[0] = Hit{ID: ix.ids[i], Meta: ix.meta[ix.ids[i]], Score: score, ord: i}
			heap.Fix(&h, 0)
		}
	}

	hits := []Hit(h)
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].ord < hits[b].ord
	})
	return hits, nil
}

// worseThan reports whether the heap root should be replaced by a candidate
// with the given score and corpus position.
func worseThan(root Hit, score float32, ord int) bool {
	if root.Score != score {
		return root.Score < score
	}
	// Equal scores: prefer the earlier corpus position.
	return ord < root.ord
}

// hitHeap is a min-heap ordered by ascending score, with later corpus
// positions considered weaker on ties so the eventual output is stable.
type hitHeap []Hit

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(a, b int) bool {
	if h[a].Score != h[b].Score {
		return h[a].Score < h[b].Score
	}
	return h[a].ord > h[b].ord
}

func (h hitHeap) Swap(a, b int) { h[a], h[b] = h[b], h[a] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(Hit)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Normalize returns an L2-normalized copy of v. A zero vector is returned
// unchanged so that its similarity against anything is zero rather than NaN.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// dot computes the inner product of two equal-length vectors. On normalized
// inputs this equals cosine similarity.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

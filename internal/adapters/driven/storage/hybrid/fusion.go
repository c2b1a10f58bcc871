// Package hybrid ranks and fuses candidate lists from dense and sparse search.
//
// Both vector index backends use it so that a collection ranks the same
// whichever backend stores it.
package hybrid

import (
	"container/heap"
	"sort"
)

// Default fusion settings.
const (
	DefaultDenseWeight         = 0.5
	DefaultCandidateMultiplier = 3
	DefaultMinCandidates       = 20
)

// Config controls candidate widening and fusion weights.
type Config struct {
	// DenseWeight is the weight of the dense list; sparse gets 1 - DenseWeight.
	DenseWeight float64

	// CandidateMultiplier widens each list to limit * CandidateMultiplier.
	CandidateMultiplier int

	// MinCandidates is the floor for the widened list size.
	MinCandidates int
}

// DefaultConfig returns the default fusion settings.
func DefaultConfig() Config {
	return Config{
		DenseWeight:         DefaultDenseWeight,
		CandidateMultiplier: DefaultCandidateMultiplier,
		MinCandidates:       DefaultMinCandidates,
	}
}

// withDefaults fills zero fields. A zero DenseWeight is kept only when
// the multiplier is set, so an explicit sparse-only config survives.
func (c Config) withDefaults() Config {
	if c.CandidateMultiplier <= 0 {
		c.CandidateMultiplier = DefaultCandidateMultiplier
		if c.DenseWeight == 0 {
			c.DenseWeight = DefaultDenseWeight
		}
	}
	if c.MinCandidates <= 0 {
		c.MinCandidates = DefaultMinCandidates
	}
	if c.DenseWeight < 0 {
		c.DenseWeight = 0
	}
	if c.DenseWeight > 1 {
		c.DenseWeight = 1
	}
	return c
}

// CandidateLimit returns how many candidates each list should fetch
// to serve a query for limit results.
func (c Config) CandidateLimit(limit int) int {
	c = c.withDefaults()
	n := limit * c.CandidateMultiplier
	if n < c.MinCandidates {
		n = c.MinCandidates
	}
	return n
}

// Candidate is one scored point id.
type Candidate struct {
	ID    string
	Score float64
}

// less orders candidates best first: higher score, then lower id.
func less(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// Sort orders candidates best first with ties broken by ascending id.
func Sort(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool { return less(cands[i], cands[j]) })
}

// TopK keeps the best k candidates seen through Push.
type TopK struct {
	k int
	h worstFirst
}

// NewTopK creates a collector for the best k candidates.
func NewTopK(k int) *TopK {
	return &TopK{k: k, h: make(worstFirst, 0, k)}
}

// Push offers a candidate.
func (t *TopK) Push(c Candidate) {
	if t.k <= 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, c)
		return
	}
	if less(c, t.h[0]) {
		t.h[0] = c
		heap.Fix(&t.h, 0)
	}
}

// Result returns the kept candidates, best first.
func (t *TopK) Result() []Candidate {
	out := make([]Candidate, len(t.h))
	copy(out, t.h)
	Sort(out)
	return out
}

// worstFirst is a heap whose root is the worst kept candidate.
type worstFirst []Candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return less(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// normalise min-max scales scores into [0, 1].
// When every score is equal they all map to 1.
func normalise(cands []Candidate) map[string]float64 {
	out := make(map[string]float64, len(cands))
	if len(cands) == 0 {
		return out
	}
	lo, hi := cands[0].Score, cands[0].Score
	for _, c := range cands[1:] {
		if c.Score < lo {
			lo = c.Score
		}
		if c.Score > hi {
			hi = c.Score
		}
	}
	for _, c := range cands {
		if hi == lo {
			out[c.ID] = 1
			continue
		}
		out[c.ID] = (c.Score - lo) / (hi - lo)
	}
	return out
}

// Fuse combines dense and sparse candidate lists into one ranking of at
// most limit candidates.
//
// Each list is min-max normalised. A candidate's fused score is the
// weighted mean of its normalised scores over the lists it appears in,
// so appearing in only one list is not a penalty. Ties are broken by
// ascending id.
func Fuse(dense, sparse []Candidate, cfg Config, limit int) []Candidate {
	cfg = cfg.withDefaults()
	wDense, wSparse := cfg.DenseWeight, 1-cfg.DenseWeight

	dn := normalise(dense)
	sn := normalise(sparse)

	ids := make(map[string]struct{}, len(dn)+len(sn))
	for id := range dn {
		ids[id] = struct{}{}
	}
	for id := range sn {
		ids[id] = struct{}{}
	}

	top := NewTopK(limit)
	for id := range ids {
		var sum, weights float64
		if s, ok := dn[id]; ok {
			sum += wDense * s
			weights += wDense
		}
		if s, ok := sn[id]; ok {
			sum += wSparse * s
			weights += wSparse
		}
		score := 0.0
		if weights > 0 {
			score = sum / weights
		}
		top.Push(Candidate{ID: id, Score: score})
	}
	return top.Result()
}

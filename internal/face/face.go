// Package face compares fixed-length face embeddings produced by an
// upstream detector. Embeddings are opaque vectors: the package only
// measures cosine similarity, it never inspects individual components.
package face

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyEmbedding    = errors.New("face: empty embedding")
	ErrDimensionMismatch = errors.New("face: embedding dimension mismatch")
	ErrZeroMagnitude     = errors.New("face: zero-magnitude embedding")
)

// Embedding is a fixed-length numeric face descriptor.
type Embedding []float32

// Candidate pairs an identifier with its enrolled embedding.
type Candidate struct {
	ID        string
	Embedding Embedding
}

// Result reports the outcome of a best-match search. Similarity always
// carries the true maximum seen across all candidates, even when no
// candidate cleared the threshold; callers record it on unmatched
// records for diagnostics.
type Result struct {
	ID         string
	Similarity float64
	Matched    bool
}

// Cosine returns the cosine similarity of two embeddings in [-1, 1].
// Mismatched dimensions are an error, never silently truncated.
func Cosine(a, b Embedding) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, ErrEmptyEmbedding
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, ErrZeroMagnitude
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// BestMatch evaluates every candidate against the query and returns the
// one whose similarity strictly exceeds both the threshold and the best
// candidate seen so far; equal similarities keep the first candidate.
// Candidates with empty embeddings are skipped; a dimension mismatch
// fails the whole comparison.
func BestMatch(query Embedding, candidates []Candidate, threshold float64) (Result, error) {
	if len(query) == 0 {
		return Result{}, ErrEmptyEmbedding
	}
	res := Result{Similarity: math.Inf(-1)}
	matchedSim := math.Inf(-1)
	evaluated := false
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			continue
		}
		sim, err := Cosine(query, c.Embedding)
		if err != nil {
			return Result{}, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		evaluated = true
		if sim > res.Similarity {
			res.Similarity = sim
		}
		if sim > threshold && sim > matchedSim {
			res.ID = c.ID
			res.Matched = true
			matchedSim = sim
		}
	}
	if !evaluated {
		res.Similarity = 0
	}
	return res, nil
}

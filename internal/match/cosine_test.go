package match

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	t.Parallel()

	v := []float32{0.5, 0.25, 0.75}
	if got := CosineSimilarity(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("cosine of identical vectors = %v, want 1.0", got)
	}
}

func TestCosineSimilarityOppositeVectors(t *testing.T) {
	t.Parallel()

	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}
	if got := CosineSimilarity(a, b); math.Abs(got+1.0) > 1e-9 {
		t.Fatalf("cosine of opposite vectors = %v, want -1.0", got)
	}
}

func TestCosineSimilarityOrthogonalVectors(t *testing.T) {
	t.Parallel()

	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := CosineSimilarity(a, b); math.Abs(got) > 1e-9 {
		t.Fatalf("cosine of orthogonal vectors = %v, want 0", got)
	}
}

func TestCosineSimilaritySymmetric(t *testing.T) {
	t.Parallel()

	a := []float32{0.3, -0.7, 0.2, 0.9}
	b := []float32{-0.1, 0.4, 0.8, -0.5}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Fatalf("cosine must be symmetric")
	}
}

func TestCosineSimilarityBounded(t *testing.T) {
	t.Parallel()

	a := []float32{3.5, -2.2, 10.1}
	b := []float32{-0.4, 5.5, 1.3}
	got := CosineSimilarity(a, b)
	if got < -1.0-1e-9 || got > 1.0+1e-9 {
		t.Fatalf("cosine = %v, out of [-1, 1]", got)
	}
	if math.IsNaN(got) {
		t.Fatalf("cosine must never be NaN")
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	t.Parallel()

	zero := []float32{0, 0, 0}
	v := []float32{1, 2, 3}

	if got := CosineSimilarity(zero, v); got != 0.0 {
		t.Fatalf("cosine with zero vector = %v, want exactly 0.0", got)
	}
	if got := CosineSimilarity(v, zero); got != 0.0 {
		t.Fatalf("cosine with zero vector = %v, want exactly 0.0", got)
	}
	if got := CosineSimilarity(zero, zero); got != 0.0 {
		t.Fatalf("cosine of two zero vectors = %v, want exactly 0.0", got)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	t.Parallel()

	if got := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0.0 {
		t.Fatalf("cosine of mismatched dimensions = %v, want 0.0", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0.0 {
		t.Fatalf("cosine of empty vectors = %v, want 0.0", got)
	}
}

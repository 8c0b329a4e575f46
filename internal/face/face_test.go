package face

import (
	"math"
	"testing"
)

func testEmbedding(seed float32) Embedding {
	e := make(Embedding, Dim)
	for i := range e {
		e[i] = seed + float32(i)*0.01
	}
	return e
}

func TestSimilarityIdentity(t *testing.T) {
	e := testEmbedding(0.5)
	if s := Similarity(e, e); s <= 0.99 {
		t.Fatalf("expected near-identity similarity, got %v", s)
	}
}

func TestSimilarityNilInputs(t *testing.T) {
	e := testEmbedding(0.5)
	if s := Similarity(e, nil); s != 0.0 {
		t.Fatalf("expected 0.0 for nil input, got %v", s)
	}
	if s := Similarity(nil, nil); s != 0.0 {
		t.Fatalf("expected 0.0 for both nil, got %v", s)
	}
	if s := Similarity(make(Embedding, Dim), e); s != 0.0 {
		t.Fatalf("expected 0.0 for zero vector, got %v", s)
	}
}

func TestSimilaritySymmetry(t *testing.T) {
	a := testEmbedding(0.3)
	b := testEmbedding(-1.2)
	if Similarity(a, b) != Similarity(b, a) {
		t.Fatal("similarity must be symmetric")
	}
}

func TestSimilarityOppositeVectors(t *testing.T) {
	a := Embedding{1, 0, 0}
	b := Embedding{-1, 0, 0}
	if s := Similarity(a, b); math.Abs(s) > 1e-9 {
		t.Fatalf("opposite vectors should map to 0, got %v", s)
	}
	c := Embedding{0, 1, 0}
	if s := Similarity(a, c); math.Abs(s-0.5) > 1e-9 {
		t.Fatalf("orthogonal vectors should map to 0.5, got %v", s)
	}
}

func TestSimilarityBounded(t *testing.T) {
	a := testEmbedding(2.0)
	b := testEmbedding(-0.7)
	if s := Similarity(a, b); s < 0 || s > 1 {
		t.Fatalf("similarity out of [0,1]: %v", s)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	original := testEmbedding(1.25)

	restored, err := EmbeddingFromBytes(original.Bytes())
	if err != nil {
		t.Fatalf("EmbeddingFromBytes failed: %v", err)
	}
	if len(restored) != len(original) {
		t.Fatalf("length mismatch: %d vs %d", len(restored), len(original))
	}
	for i := range original {
		if restored[i] != original[i] {
			t.Fatalf("value mismatch at %d: %v vs %v", i, restored[i], original[i])
		}
	}
}

func TestEmbeddingFromBytesRejectsOddLength(t *testing.T) {
	if _, err := EmbeddingFromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}

func TestEmbeddingFromBytesEmpty(t *testing.T) {
	e, err := EmbeddingFromBytes(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e != nil {
		t.Fatalf("expected nil embedding, got %v", e)
	}
}

func TestMatchThreshold(t *testing.T) {
	e := testEmbedding(0.5)
	if !Match(e, e, 0.9) {
		t.Fatal("identical embeddings must match any sane threshold")
	}
	if Match(e, nil, 0.1) {
		t.Fatal("nil embedding must never match")
	}
}

// Package face holds the embedding value type and the similarity math used
// to compare a passport photo against a stored selfie.
package face

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dim is the embedding dimensionality produced by the detection model.
const Dim = 512

// Embedding is a fixed-length face descriptor. Embeddings are immutable once
// produced; re-uploads replace them wholesale.
type Embedding []float32

// Bytes serializes the embedding to a flat little-endian buffer for storage.
func (e Embedding) Bytes() []byte {
	if len(e) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(e))
	for i, v := range e {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// EmbeddingFromBytes restores an embedding from its serialized form. The
// round trip through Bytes is lossless.
func EmbeddingFromBytes(data []byte) (Embedding, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding buffer length %d is not a multiple of 4", len(data))
	}
	e := make(Embedding, len(data)/4)
	for i := range e {
		e[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return e, nil
}

// Similarity computes the cosine similarity of two embeddings, remapped from
// [-1,1] to [0,1]. It is symmetric, returns ~1 for identical inputs, and 0
// when either embedding is missing or degenerate.
func Similarity(a, b Embedding) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	s := (cos + 1) / 2
	if s < 0 {
		return 0.0
	}
	if s > 1 {
		return 1.0
	}
	return s
}

// Match reports whether two embeddings belong to the same person under the
// given similarity threshold.
func Match(a, b Embedding, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

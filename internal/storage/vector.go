package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/scrypster/refmatch/pkg/types"
)

// EncodeVector serializes an embedding as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector buffer length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// CosineSimilarity returns the cosine similarity of two vectors, or 0 when
// their lengths differ or either has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// PrepareHistory validates a history entry before it is written and makes
// ResultCount agree with the snapshot.
func PrepareHistory(h *types.SearchHistory) error {
	if h == nil {
		return ErrInvalidInput
	}
	if h.UserID == "" {
		return fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}
	if h.Results == nil {
		h.Results = []types.PersonResult{}
	}
	if h.RefIDs == nil {
		h.RefIDs = []string{}
	}
	if h.RefTitles == nil {
		h.RefTitles = []string{}
	}
	h.ResultCount = len(h.Results)
	return nil
}

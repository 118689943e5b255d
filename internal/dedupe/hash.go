package dedupe

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"

	"github.com/five82/keyframes/internal/logging"
)

// hashBits is the length of the perceptual hash.
const hashBits = 64

// HashStrategy compares 64-bit perceptual hashes. Hashes are computed once
// per artifact ID and cached for the strategy's lifetime.
type HashStrategy struct {
	hashes map[string]*goimagehash.ImageHash
}

// NewHashStrategy creates an empty hash cache.
func NewHashStrategy() *HashStrategy {
	return &HashStrategy{hashes: make(map[string]*goimagehash.ImageHash)}
}

// Compare implements Comparer. An artifact that cannot be hashed is never a
// duplicate.
func (h *HashStrategy) Compare(_ context.Context, p Pair, threshold float64) (Match, error) {
	a, b := h.hash(p.A), h.hash(p.B)
	if a == nil || b == nil {
		return Match{}, nil
	}
	d, err := a.Distance(b)
	if err != nil {
		logging.Warn("hash distance failed", "a", p.A.ID, "b", p.B.ID, "error", err)
		return Match{}, nil
	}
	sim := Similarity(d)
	return Match{Similarity: sim, Duplicate: sim >= threshold}, nil
}

// Similarity converts a Hamming distance between 64-bit hashes to [0, 1].
func Similarity(distance int) float64 {
	distance = min(max(distance, 0), hashBits)
	return 1 - float64(distance)/hashBits
}

// hash returns the cached hash of a, or nil if it could not be computed.
func (h *HashStrategy) hash(a Artifact) *goimagehash.ImageHash {
	if ph, ok := h.hashes[a.ID]; ok {
		return ph
	}
	ph, err := PerceptualHash(a.Data)
	if err != nil {
		logging.Warn("cannot hash keyframe, leaving it unique", "id", a.ID, "error", err)
	}
	h.hashes[a.ID] = ph
	return ph
}

// PerceptualHash decodes an encoded image and returns its 64-bit pHash.
func PerceptualHash(data []byte) (*goimagehash.ImageHash, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return goimagehash.PerceptionHash(img)
}

package embedding

import "crypto/sha256"

// FallbackVector derives a deterministic, non-semantic vector from text.
// Each byte of the sha256 digest maps to [-1, 1] and the digest is tiled
// until dim values are produced. Identical inputs always give bit-identical
// vectors; the result carries no meaning beyond identity.
func FallbackVector(text string, dim int) []float64 {
	if dim <= 0 {
		return nil
	}
	sum := sha256.Sum256([]byte(text))
	vec := make([]float64, dim)
	for i := range vec {
		vec[i] = float64(sum[i%len(sum)])/127.5 - 1
	}
	return vec
}

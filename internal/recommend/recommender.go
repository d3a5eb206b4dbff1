package recommend

import (
	"math"
	"sort"
)

// Recommendation is a ranked device with its similarity to the user's profile.
type Recommendation struct {
	DeviceVector
	Similarity float64 `json:"similarity"`
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector or
// the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every device against the profile and returns the k most similar, ordered
// by descending similarity and then device id.
func Rank(enc *Encoder, p Profile, devices []DeviceVector, w Weights, k int) []Recommendation {
	if k <= 0 || len(devices) == 0 {
		return []Recommendation{}
	}

	user := enc.EncodeProfile(p, w)
	ranked := make([]Recommendation, 0, len(devices))
	for _, d := range devices {
		ranked = append(ranked, Recommendation{
			DeviceVector: d,
			Similarity:   Cosine(user, enc.EncodeDevice(d, w)),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		return ranked[i].DeviceID < ranked[j].DeviceID
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

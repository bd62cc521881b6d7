package store

import (
	"math"
	"sort"

	"github.com/xhad/newsagent/internal/models"
)

// CosineSimilarity returns 1.0 for identical directions and 0.0 for orthogonal
// vectors. Mismatched lengths and zero vectors score 0.0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return float32(dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// nearest ranks entries by cosine similarity to query, highest first, and
// keeps the best hit per record id.
func nearest(entries []Entry, query []float32, k int) []models.MemoryRecord {
	scored := make([]models.MemoryRecord, 0, len(entries))
	for _, e := range entries {
		rec := e.Record
		rec.Similarity = CosineSimilarity(e.Vector, query)
		scored = append(scored, rec)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	return firstUnique(scored, k)
}

func firstUnique(records []models.MemoryRecord, k int) []models.MemoryRecord {
	seen := make(map[string]bool, len(records))
	out := make([]models.MemoryRecord, 0, k)
	for _, rec := range records {
		if len(out) == k {
			break
		}
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	return out
}

package store

import (
	"math"
	"sort"
	"time"

	"github.com/contextcore/recall/internal/memory"
)

// Weights balances the three retrieval signals. They are independent
// multipliers, not required to sum to one.
type Weights struct {
	Relevance  float64
	Recency    float64
	Importance float64
}

// DefaultWeights favors semantic relevance, with recency and provenance as
// tie-breaking signals.
var DefaultWeights = Weights{Relevance: 0.5, Recency: 0.3, Importance: 0.2}

// recencyHalfLife is the age at which the recency signal drops to 0.5.
const recencyHalfLife = 7 * 24 * time.Hour

// importance maps validation status to a retrieval weight. Disputed records
// stay retrievable but rank well below confirmed ones.
func importance(status memory.ValidationStatus) float64 {
	switch status {
	case memory.StatusUserConfirmed:
		return 1.0
	case memory.StatusDisputed:
		return 0.25
	default:
		return 0.6
	}
}

// Result is one ranked retrieval hit.
type Result struct {
	Record *memory.Record
	Score  float64
}

// Search ranks all records by weighted relevance, recency, and importance
// and returns the top limit hits. A nil query vector (or a record without an
// embedding) zeroes the relevance term; recency and importance still rank.
// Ties break toward the most recently updated record.
func (s *SQLiteStore) Search(queryVector []float32, weights Weights, limit int) ([]Result, error) {
	records, err := s.List()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		relevance := float64(cosineSimilarity(queryVector, rec.Embedding))
		recency := recencyScore(now.Sub(rec.UpdatedAt))
		score := weights.Relevance*relevance +
			weights.Recency*recency +
			weights.Importance*importance(rec.Status)
		results = append(results, Result{Record: rec, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.UpdatedAt.After(results[j].Record.UpdatedAt)
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// recencyScore decays exponentially with age: 1.0 now, 0.5 at one half-life.
func recencyScore(age time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	return math.Exp(-math.Ln2 * age.Hours() / recencyHalfLife.Hours())
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}
	var dot, magA, magB float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}

package vectorstore

import (
	"math"
	"sort"
)

type scored struct {
	idx   int
	score float64
}

// rank scores every record against the query and returns record indexes
// ordered by descending cosine similarity. Equal scores keep insertion order.
func rank(records []Record, query []float64) []scored {
	qm := magnitude(query)
	scores := make([]scored, len(records))
	for i := range records {
		scores[i] = scored{idx: i, score: cosine(records[i].Vector, query, qm)}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].score > scores[b].score })
	return scores
}

// cosine returns dot(a, b) / (|a| * |b|). bm is the precomputed magnitude of b.
// A zero-magnitude side scores 0 so the record still takes part in ranking.
func cosine(a, b []float64, bm float64) float64 {
	am := magnitude(a)
	if am == 0 || bm == 0 {
		return 0
	}
	s := dot(a, b) / (am * bm)
	if math.IsNaN(s) {
		return 0
	}
	return s
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func magnitude(v []float64) float64 { return math.Sqrt(dot(v, v)) }

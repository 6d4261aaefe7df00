package retriever

import (
	"sort"

	"github.com/mathmentor/mathrag/internal/kb"
)

// Default blend of fused score and chunk-type prior.
const (
	DefaultFusedWeight = 0.6
	DefaultPriorWeight = 0.4
)

// DefaultTypePriorities ranks chunk types by how directly they help solve a
// problem. Worked solution templates beat raw formulas beat theorems beat
// prose.
func DefaultTypePriorities() map[string]float64 {
	return map[string]float64{
		string(kb.ChunkTypeSolutionTemplate): 1.0,
		string(kb.ChunkTypeFormulas):         0.9,
		string(kb.ChunkTypeTheorems):         0.7,
		string(kb.ChunkTypeGeneral):          0.4,
	}
}

// Reranker blends fused retrieval scores with chunk-type priors.
type Reranker struct {
	fusedWeight float64
	priorWeight float64
	priorities  map[string]float64
}

// NewReranker builds a reranker. Weights that do not sum to a positive value
// and missing priority tables fall back to the defaults.
func NewReranker(fusedWeight, priorWeight float64, priorities map[string]float64) *Reranker {
	if fusedWeight+priorWeight <= 0 {
		fusedWeight = DefaultFusedWeight
		priorWeight = DefaultPriorWeight
	}
	if len(priorities) == 0 {
		priorities = DefaultTypePriorities()
	}
	return &Reranker{
		fusedWeight: fusedWeight,
		priorWeight: priorWeight,
		priorities:  priorities,
	}
}

// Rerank rescores results as fusedWeight*score + priorWeight*prior and
// re-sorts. The sort is stable, so chunks of the same type keep their fused
// order. Unknown chunk types get the general prior.
func (r *Reranker) Rerank(results []Result) []Result {
	reranked := make([]Result, len(results))
	copy(reranked, results)

	for i := range reranked {
		prior, ok := r.priorities[string(reranked[i].Type)]
		if !ok {
			prior = r.priorities[string(kb.ChunkTypeGeneral)]
		}
		reranked[i].Score = r.fusedWeight*reranked[i].Score + r.priorWeight*prior
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return reranked
}

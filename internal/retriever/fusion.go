package retriever

import (
	"sort"

	"github.com/mathmentor/mathrag/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter, empirically
// validated across domains.
const DefaultRRFConstant = 60

// FuseRRF merges the two ranked lists with reciprocal rank fusion. Each
// appearance of a chunk contributes 1/(k + rank) with zero-based ranks;
// chunks present in both lists sum their contributions. Chunks are
// deduplicated by content. The output is sorted by descending fused score,
// with ties broken by first appearance (vector list first).
func FuseRRF(vec []store.VectorResult, lex []store.LexicalResult, k int) []Result {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	type fused struct {
		result Result
		order  int
	}
	byContent := make(map[string]*fused, len(vec)+len(lex))
	order := 0

	contribute := func(r Result, score float64) {
		f, ok := byContent[r.Content]
		if !ok {
			f = &fused{result: r, order: order}
			order++
			byContent[r.Content] = f
		}
		f.result.Score += score
	}

	for rank, r := range vec {
		contribute(Result{Chunk: r.Chunk}, 1.0/float64(k+rank))
	}
	for rank, r := range lex {
		contribute(Result{Chunk: r.Chunk}, 1.0/float64(k+rank))
	}

	merged := make([]*fused, 0, len(byContent))
	for _, f := range byContent {
		merged = append(merged, f)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].result.Score != merged[j].result.Score {
			return merged[i].result.Score > merged[j].result.Score
		}
		return merged[i].order < merged[j].order
	})

	results := make([]Result, len(merged))
	for i, f := range merged {
		results[i] = f.result
	}
	return results
}

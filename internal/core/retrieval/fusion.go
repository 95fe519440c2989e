package retrieval

import (
	"sort"

	"github.com/auditwise/docqa/internal/core/domain"
)

// Weights maps a strategy kind to its fusion weight. Kinds absent from
// the map weigh 1.0, so the zero value means equal weighting.
type Weights map[Kind]float64

func (w Weights) weightOf(kind Kind) float64 {
	if w == nil {
		return 1.0
	}
	if v, ok := w[kind]; ok {
		return v
	}
	return 1.0
}

// Fuse merges per-strategy candidate lists into one ranked,
// deduplicated result. Raw scores are min-max normalized within each
// strategy's own list, combined as a weighted sum per chunk, and
// ordered by combined score, then corroboration count (chunks found by
// more strategies rank higher), then chunk id. The output depends only
// on the input lists, never on strategy completion order.
func Fuse(lists map[Kind][]domain.Candidate, weights Weights, limit int) domain.FusionResult {
	kinds := make([]Kind, 0, len(lists))
	for kind := range lists {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	// Rescale the configured weights so the ones contributing to this
	// request sum to 1; equal weighting then means 1/n each and the
	// combined score stays in [0,1].
	effective := make(map[Kind]float64, len(kinds))
	total := 0.0
	for _, kind := range kinds {
		w := weights.weightOf(kind)
		if w < 0 {
			w = 0
		}
		effective[kind] = w
		total += w
	}
	if total > 0 {
		for kind := range effective {
			effective[kind] /= total
		}
	}

	type fused struct {
		candidate     domain.Candidate
		combined      float64
		corroboration int
	}

	acc := make(map[string]*fused)
	order := make([]string, 0)

	for _, kind := range kinds {
		weight := effective[kind]
		for _, c := range normalizeList(lists[kind]) {
			f, ok := acc[c.ChunkID]
			if !ok {
				f = &fused{candidate: c}
				acc[c.ChunkID] = f
				order = append(order, c.ChunkID)
			}
			f.combined += weight * c.NormalizedScore
			f.corroboration++
		}
	}

	out := make([]domain.Candidate, 0, len(order))
	corroborationOf := make(map[string]int, len(order))
	for _, chunkID := range order {
		f := acc[chunkID]
		c := f.candidate
		c.NormalizedScore = f.combined
		out = append(out, c)
		corroborationOf[chunkID] = f.corroboration
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NormalizedScore != out[j].NormalizedScore {
			return out[i].NormalizedScore > out[j].NormalizedScore
		}
		ci, cj := corroborationOf[out[i].ChunkID], corroborationOf[out[j].ChunkID]
		if ci != cj {
			return ci > cj
		}
		return out[i].ChunkID < out[j].ChunkID
	})

	return domain.FusionResult{Candidates: trimCandidates(out, limit)}
}

// normalizeList min-max scales raw scores into [0,1] within the list.
// A single-candidate list, or one where every score is equal, maps to
// 1.0 for each entry.
func normalizeList(candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	minScore, maxScore := candidates[0].RawScore, candidates[0].RawScore
	for _, c := range candidates[1:] {
		if c.RawScore < minScore {
			minScore = c.RawScore
		}
		if c.RawScore > maxScore {
			maxScore = c.RawScore
		}
	}

	out := make([]domain.Candidate, len(candidates))
	span := maxScore - minScore
	for i, c := range candidates {
		if span <= 0 {
			c.NormalizedScore = 1.0
		} else {
			c.NormalizedScore = (c.RawScore - minScore) / span
		}
		out[i] = c
	}
	return out
}

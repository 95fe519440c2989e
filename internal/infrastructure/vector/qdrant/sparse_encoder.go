package qdrant

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"
)

type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// Lexical chunks are encoded as hashed bag-of-words vectors with BM25
// term saturation. Filename and classification terms are boosted: audit
// queries routinely name the document ("the Q3 access review") rather
// than quoting its body.
const (
	bm25Saturation = 1.2
	filenameBoost  = 1.5
	metadataBoost  = 2.0
	maxSparseTerms = 256
)

type termAccumulator map[uint32]float64

func (acc termAccumulator) add(text string, weight float64) {
	for _, token := range tokenizeAlphaNum(text) {
		acc[hashToken(token)] += weight
	}
}

// toVector converts accumulated term frequencies into a sparse vector
// with ascending indices. Weights saturate per BM25 so a term repeated
// through a chunk cannot dominate the match.
func (acc termAccumulator) toVector() sparseVector {
	if len(acc) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(acc))
	for idx := range acc {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if len(indices) > maxSparseTerms {
		indices = indices[:maxSparseTerms]
	}

	values := make([]float32, 0, len(indices))
	for _, idx := range indices {
		tf := acc[idx]
		weight := (tf * (bm25Saturation + 1.0)) / (tf + bm25Saturation)
		if math.IsNaN(weight) || math.IsInf(weight, 0) {
			weight = 0
		}
		values = append(values, float32(weight))
	}
	return sparseVector{Indices: indices, Values: values}
}

func encodeSparseDocument(text, filename, documentType, framework string) sparseVector {
	acc := make(termAccumulator, 64)
	acc.add(text, 1.0)
	acc.add(filename, filenameBoost)
	acc.add(documentType, metadataBoost)
	acc.add(framework, metadataBoost)
	return acc.toVector()
}

func encodeSparseQuery(query string) sparseVector {
	acc := make(termAccumulator, 32)
	acc.add(query, 1.0)
	return acc.toVector()
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum32()
	if sum == 0 {
		return 1
	}
	return sum
}

func tokenizeAlphaNum(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

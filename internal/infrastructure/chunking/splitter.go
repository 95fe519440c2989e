package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts extracted document text into overlapping chunks.
// Boundaries prefer sentence ends so a finding or control statement is
// not split mid-sentence; a window without any sentence end falls back
// to a hard cut at ChunkSize.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = sentenceBoundary(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = start + step
		}
		start = next
	}
	return out
}

// sentenceBoundary walks back from the window end looking for a
// sentence terminator followed by space. It never moves the boundary
// into the first half of the window; a cramped window cuts hard.
func sentenceBoundary(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end - 1; i > floor; i-- {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		return i + 1
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}

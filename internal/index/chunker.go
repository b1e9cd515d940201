// Package index chunks reference documents and serves similarity search over
// their embedded chunks.
package index

import "strings"

const (
	// ChunkTarget is the preferred chunk length in characters.
	ChunkTarget = 1000
	// ChunkOverlap is how many trailing characters of one chunk are repeated
	// at the head of the next.
	ChunkOverlap = 200
	// MinChunkLen is the shortest chunk worth indexing; anything smaller is
	// dropped after trimming.
	MinChunkLen = 50
)

// Chunk splits text into overlapping windows of roughly ChunkTarget
// characters. Windows end on a sentence or line boundary when one exists past
// the halfway point of the window; otherwise they cut at the target length.
func Chunk(text string) []string {
	return chunk(text, ChunkTarget, ChunkOverlap, MinChunkLen)
}

func chunk(text string, target, overlap, minLen int) []string {
	var out []string
	pos := 0
	for pos < len(text) {
		end := pos + target
		if end >= len(text) {
			appendChunk(&out, text[pos:], minLen)
			break
		}
		if b := boundaryBefore(text[pos:end]); b > target/2 {
			end = pos + b
		}
		appendChunk(&out, text[pos:end], minLen)
		next := end - overlap
		if next <= pos {
			next = end
		}
		pos = next
	}
	return out
}

func appendChunk(out *[]string, raw string, minLen int) {
	c := strings.TrimSpace(raw)
	if len(c) >= minLen {
		*out = append(*out, c)
	}
}

// boundaryBefore returns the index just past the last sentence or line
// boundary in window, or 0 when there is none.
func boundaryBefore(window string) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '\n':
			return i + 1
		}
	}
	return 0
}

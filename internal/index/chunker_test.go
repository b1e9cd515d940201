package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("backend engineering experience. ", 10) // ~320 chars
	chunks := Chunk(text)
	require.Len(t, chunks, 1)
	assert.Equal(t, strings.TrimSpace(text), chunks[0])
}

func TestChunk_TinyTextDropped(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Chunk("too short"))
	assert.Empty(t, Chunk(""))
}

func TestChunk_SnapsToSentenceBoundary(t *testing.T) {
	t.Parallel()
	// one sentence boundary at ~70% of the window, then filler with no
	// boundaries until past the target
	text := strings.Repeat("a", 700) + ". " + strings.Repeat("b", 600)
	chunks := Chunk(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0], "."), "first chunk should end at the sentence boundary")
	assert.Len(t, chunks[0], 701)
}

func TestChunk_IgnoresEarlyBoundary(t *testing.T) {
	t.Parallel()
	// the only boundary sits at 30% of the window; the chunker must cut at
	// the target instead of snapping that far back
	text := strings.Repeat("a", 300) + ". " + strings.Repeat("b", 1500)
	chunks := Chunk(text)
	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0], ChunkTarget)
}

func TestChunk_OverlapCarriesTail(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 2500)
	chunks := Chunk(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	tail := chunks[0][len(chunks[0])-ChunkOverlap:]
	assert.True(t, strings.HasPrefix(chunks[1], tail), "next chunk must start with the previous overlap")
}

func TestChunk_CoversWholeText(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("sentence about distributed systems. ", 200)
	chunks := Chunk(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.GreaterOrEqual(t, len(c), MinChunkLen)
		assert.LessOrEqual(t, len(c), ChunkTarget)
		assert.Contains(t, text, c)
	}
}

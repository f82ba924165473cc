package devbackend

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	assert.Nil(t, ChunkText("  \n ", 10, 2))
	assert.Equal(t, []string{"short text"}, ChunkText("short text", 100, 10))
	assert.Equal(t, []string{"no limit at all"}, ChunkText("no limit at all", 0, 0))

	text := strings.TrimSpace(strings.Repeat("lorem ipsum dolor sit amet ", 40))
	chunks := ChunkText(text, 100, 20)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.NotEmpty(t, c)
	}
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))

	// consecutive windows share text
	tail := chunks[0][len(chunks[0])-10:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail))
}

func TestChunkText_NoWhitespace(t *testing.T) {
	chunks := ChunkText(strings.Repeat("x", 250), 100, 0)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[2], 50)
}

func TestChunkText_InvalidOverlapIgnored(t *testing.T) {
	chunks := ChunkText(strings.Repeat("y", 30), 10, 10)
	assert.Len(t, chunks, 3)
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, domain.FileTypeMD, DetectFileType("README.MD"))
	assert.Equal(t, domain.FileTypeMD, DetectFileType("notes.markdown"))
	assert.Equal(t, domain.FileTypeTXT, DetectFileType("a.txt"))
	assert.Equal(t, "pdf", DetectFileType("x.pdf"))
	assert.Equal(t, "", DetectFileType("Makefile"))

	assert.True(t, IsSupported(domain.FileTypeTXT))
	assert.False(t, IsSupported("pdf"))
}

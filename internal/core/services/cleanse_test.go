package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func TestSplitSegments_ShortTextPassedWhole(t *testing.T) {
	segments := splitSegments("short enough", 100)

	assert.Equal(t, []string{"short enough"}, segments)
}

func TestSplitSegments_DropsPageBreakMarkers(t *testing.T) {
	text := "First page text." + domain.PageBreak + "Second page text."

	segments := splitSegments(text, 20)

	require.Len(t, segments, 2)
	for _, seg := range segments {
		assert.NotContains(t, seg, domain.PageBreak)
	}
	assert.Equal(t, "First page text.", segments[0])
	assert.Equal(t, "Second page text.", segments[1])
}

func TestSplitSegments_OversizedParagraphPassedWhole(t *testing.T) {
	long := strings.Repeat("word ", 20)

	segments := splitSegments(long+"\n\n"+"tail", 30)

	require.Len(t, segments, 2)
	assert.Equal(t, strings.TrimSpace(long), strings.TrimSpace(segments[0]))
}

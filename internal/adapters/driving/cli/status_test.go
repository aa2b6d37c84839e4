package cli

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_ShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "tesseract: exit status 1", truncate("tesseract: exit status 1", 60))
}

func TestTruncate_LongStringGetsEllipsis(t *testing.T) {
	long := strings.Repeat("x", 80)

	got := truncate(long, 60)

	assert.Equal(t, strings.Repeat("x", 57)+"...", got)
}

func TestTruncate_MultibyteStaysValidUTF8(t *testing.T) {
	long := strings.Repeat("é", 80)

	got := truncate(long, 60)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 57)+"...", got)
}

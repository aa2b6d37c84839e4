package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetVerbose(false)
	})
	return &buf
}

func TestSection_PrintsStageBanner(t *testing.T) {
	buf := capture(t)

	Section(domain.StageCleanse, "%d extracted documents", 3)

	assert.Equal(t, "\n=== cleanse === 3 extracted documents\n", buf.String())
}

func TestSection_SilentWhenNotVerbose(t *testing.T) {
	buf := capture(t)
	SetVerbose(false)

	Section(domain.StageExtract, "%d documents", 1)

	assert.Empty(t, buf.String())
}

func TestDebug_Prefix(t *testing.T) {
	buf := capture(t)

	Debug("watch: %s", "created file")

	assert.Equal(t, "[DEBUG] watch: created file\n", buf.String())
}

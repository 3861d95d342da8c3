package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHelpersAreNoopsBeforeInit(t *testing.T) {
	Logger = nil
	assert.NotPanics(t, func() {
		Info("x")
		Warn("x")
		Error("x")
		Debug("x")
		With("k", "v").Info("discarded")
	})
}

func TestReleaseModeWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	initWith(&buf, "release")
	t.Cleanup(func() { Logger = nil })

	Debug("hidden")
	Info("indexed", "chunks", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "indexed", entry["msg"])
	assert.Equal(t, float64(3), entry["chunks"])
}

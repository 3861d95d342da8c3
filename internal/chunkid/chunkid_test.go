package chunkid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("Insulin regulates blood glucose.")
	b := Fingerprint("  Insulin regulates blood glucose.\n")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "surrounding whitespace must not change the fingerprint")
	assert.NotEqual(t, a, Fingerprint("Insulin regulates blood sugar."))
}

func TestIDIsDeterministic(t *testing.T) {
	h := Fingerprint("content")
	first := ID("docs/diabetes.pdf", "3", 7, h)

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ID("docs/diabetes.pdf", "3", 7, h))
	}
	require.Len(t, first, 40)
	assert.Equal(t, first, ID("docs/./diabetes.pdf", "3", 7, h), "source paths are cleaned")
}

func TestIDChangesWithEveryInput(t *testing.T) {
	h := Fingerprint("content")
	base := ID("a.pdf", "1", 0, h)

	tests := []struct {
		name string
		id   string
	}{
		{"source", ID("b.pdf", "1", 0, h)},
		{"page", ID("a.pdf", "2", 0, h)},
		{"position", ID("a.pdf", "1", 1, h)},
		{"hash", ID("a.pdf", "1", 0, Fingerprint("other content"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.id)
		})
	}
}

func TestIDUsesHashPrefix(t *testing.T) {
	h := Fingerprint("content")
	assert.Equal(t, ID("a.pdf", "1", 0, h), ID("a.pdf", "1", 0, h[:hashPrefixLen]))
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Hash("abc"))
	assert.Len(t, Hash(""), 64)
}

func TestHashURLIgnoresPadding(t *testing.T) {
	assert.Equal(t, HashURL("https://example.com/a"), HashURL("  https://example.com/a\n"))
	assert.NotEqual(t, HashURL("https://example.com/a"), HashURL("https://example.com/b"))
}

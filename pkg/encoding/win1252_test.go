package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToUTF8PassesValidInputThrough(t *testing.T) {
	assert.Equal(t, "plain ascii", ToUTF8([]byte("plain ascii")))
	assert.Equal(t, "Борщ", ToUTF8([]byte("Борщ")))
}

func TestToUTF8DecodesLegacyBytes(t *testing.T) {
	// 0xE9 is é in Windows-1252 and invalid as standalone UTF-8
	assert.Equal(t, "café", ToUTF8([]byte{'c', 'a', 'f', 0xE9}))
}

func TestToUTF8TrimsWhitespace(t *testing.T) {
	assert.Equal(t, "padded", ToUTF8([]byte("  padded   ")))
}

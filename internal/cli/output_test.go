package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 5, displayWidth("hello"))
	// CJK runes occupy two terminal cells.
	assert.Equal(t, 4, displayWidth("茅台"))
	assert.Equal(t, 8, displayWidth("ab茅台cd"))
	assert.Equal(t, 0, displayWidth(""))
}

func TestTruncateCell(t *testing.T) {
	assert.Equal(t, "short", truncateCell("short", 10))
	assert.Equal(t, "abcde…", truncateCell("abcdefgh", 5))
	// Rune-safe on multibyte text.
	assert.Equal(t, "贵州茅…", truncateCell("贵州茅台股份", 3))
}

func TestStripANSI(t *testing.T) {
	colored := ColorRed + "limit_up" + ColorReset
	assert.Equal(t, "limit_up", stripANSI(colored))
	assert.Equal(t, "plain", stripANSI("plain"))
}

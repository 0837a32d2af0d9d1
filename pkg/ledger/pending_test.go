package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeItem(t *testing.T) {
	assert.Equal(t, "牛肉麵", NormalizeItem(" 牛肉麵 "))
	assert.Equal(t, "（未命名）", NormalizeItem(""))
	assert.Equal(t, "（未命名）", NormalizeItem("   "))

	// caps at 80 characters, counted in runes
	long := strings.Repeat("滷", 90)
	assert.Equal(t, strings.Repeat("滷", 80), NormalizeItem(long))
	exact := strings.Repeat("a", 80)
	assert.Equal(t, exact, NormalizeItem(exact))
}

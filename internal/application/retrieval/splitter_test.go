package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitByRunesShortText(t *testing.T) {
	assert.Nil(t, splitByRunes("   ", 10, 2))
	assert.Equal(t, []string{"No monthly fee."}, splitByRunes(" No monthly fee. ", 100, 10))
	assert.Equal(t, []string{"abc"}, splitByRunes("abc", 0, 0))
}

func TestSplitByRunesPrefersSentenceEnd(t *testing.T) {
	got := splitByRunes("aaaa bbbb. cccc dddd", 12, 0)
	assert.Equal(t, []string{"aaaa bbbb.", "cccc dddd"}, got)
}

func TestSplitByRunesHardCutWithOverlap(t *testing.T) {
	got := splitByRunes("abcdefghij", 4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, got)
}

func TestSplitByRunesClampsOverlap(t *testing.T) {
	got := splitByRunes("abcdefgh", 3, 10)
	for _, c := range got {
		assert.LessOrEqual(t, len([]rune(c)), 3)
	}
	assert.Equal(t, "h", got[len(got)-1][len(got[len(got)-1])-1:])
}

func TestSplitByRunesMultibyte(t *testing.T) {
	got := splitByRunes("转账失败。请检查余额后重试", 6, 0)
	assert.Equal(t, []string{"转账失败。", "请检查余额后", "重试"}, got)
}

package retrieval

import (
	"strings"
	"unicode"
)

// splitByRunes 把长答案切成不超过 maxRunes 的窗口，相邻窗口重叠 overlapRunes。
// 窗口末尾优先回退到句末标点或空白，避免从词中间截断
func splitByRunes(s string, maxRunes, overlapRunes int) []string {
	text := strings.TrimSpace(s)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return []string{text}
	}
	overlapRunes = max(0, min(overlapRunes, maxRunes-1))

	var out []string
	for start := 0; start < len(runes); {
		end := min(start+maxRunes, len(runes))
		if end < len(runes) {
			end = softBoundary(runes, max(start+overlapRunes+1, end-maxRunes/2), end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		start = end - overlapRunes
	}
	return out
}

// softBoundary 在 (lo, hi] 内从后往前找切分点，找不到时硬切在 hi
func softBoundary(runes []rune, lo, hi int) int {
	for i := hi; i > lo; i-- {
		if isSentenceEnd(runes[i-1]) {
			return i
		}
	}
	for i := hi; i > lo; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return hi
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', '。', '！', '？', '；':
		return true
	}
	return false
}

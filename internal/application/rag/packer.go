package rag

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxContextChars 上下文字符预算
const DefaultMaxContextChars = 6000

const qaSplitWindow = 300

// PackContext 按排序结果拼接片段，每段以 [rank] 标注引用编号，首个超出预算的片段处截止
func PackContext(sources []EvidenceItem, hits []Hit, maxChars int) string {
	byID := make(map[string]string, len(hits))
	for _, h := range hits {
		byID[h.ID] = h.Text()
	}

	var b strings.Builder
	used := 0
	for _, s := range sources {
		full := byID[s.ID]
		q, a := splitQA(full)

		var snippet strings.Builder
		snippet.WriteString("### [")
		snippet.WriteString(strconv.Itoa(s.Rank))
		snippet.WriteString("] ")
		snippet.WriteString(s.Title)
		snippet.WriteString("\n")
		if q != "" {
			snippet.WriteString("Q: " + q + "\nA: " + a + "\n")
		} else {
			snippet.WriteString(full + "\n")
		}
		snippet.WriteString("\n")

		n := utf8.RuneCountInString(snippet.String())
		if used+n > maxChars {
			break
		}
		b.WriteString(snippet.String())
		used += n
	}
	return b.String()
}

// splitQA 在前 300 个字符内出现问号时拆成问答两部分
func splitQA(text string) (string, string) {
	if text == "" {
		return "", ""
	}
	r := []rune(text)
	if q := runeIndex(r, '?'); q != -1 && q < qaSplitWindow {
		return strings.TrimSpace(string(r[:q+1])), strings.TrimSpace(string(r[q+1:]))
	}
	return "", strings.TrimSpace(text)
}

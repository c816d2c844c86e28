package rag

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	citationPattern = regexp.MustCompile(`\[(\d+)\]`)
	numberPattern   = regexp.MustCompile(`\b\d+(\.\d+)?\b`)
	citationLead    = regexp.MustCompile(`^(\[\d+\][\s.,;]*)+`)
)

// coverageKeys 同时出现在答案与问题中即视为覆盖
var coverageKeys = []string{
	"fee", "fees", "limit", "limits", "timing", "time", "when",
	"cancel", "reverse", "declined", "failed", "2fa", "password",
	"privacy", "data", "encryption", "verify", "kyc", "id",
}

// Verify 依据引用与来源内容给答案打分；结果保留三位小数
func Verify(text string, sources []EvidenceItem, query string) Verification {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return Verification{}
	}

	byRank := make(map[int]EvidenceItem, len(sources))
	for _, s := range sources {
		byRank[s.Rank] = s
	}

	coverage := 0.6
	lowText, lowQuery := strings.ToLower(text), strings.ToLower(query)
	for _, k := range coverageKeys {
		if strings.Contains(lowText, k) && strings.Contains(lowQuery, k) {
			coverage = 1.0
			break
		}
	}

	cited, supported := 0, 0
	for _, sent := range sentences {
		cites := citedRanks(sent)
		if len(cites) == 0 {
			continue
		}
		cited++
		for _, n := range cites {
			src, ok := byRank[n]
			if !ok {
				continue
			}
			if sentenceSupported(sent, src.Preview+" "+src.Title) {
				supported++
				break
			}
		}
	}

	density := float64(cited) / float64(max(1, len(sentences)))
	support := float64(supported) / float64(max(1, cited))
	confidence := 0.5*support + 0.3*density + 0.2*coverage
	return Verification{
		Supported:       round3(support),
		EvidenceDensity: round3(density),
		Coverage:        round3(coverage),
		Confidence:      round3(confidence),
	}
}

// CitedRanks 返回答案中引用的来源编号（按出现顺序去重）
func CitedRanks(text string) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, n := range citedRanks(text) {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func citedRanks(s string) []int {
	var out []int
	for _, m := range citationPattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// sentenceSupported 引用标记不参与数字比对；数字按完整词元匹配
func sentenceSupported(sent, srcText string) bool {
	sent = citationPattern.ReplaceAllString(sent, " ")
	if claimed := numberPattern.FindAllString(sent, -1); len(claimed) > 0 {
		known := make(map[string]struct{})
		for _, num := range numberPattern.FindAllString(srcText, -1) {
			known[num] = struct{}{}
		}
		for _, num := range claimed {
			if _, ok := known[num]; ok {
				return true
			}
		}
	}
	s := tokenSet(sent, 2)
	if len(s) == 0 {
		return false
	}
	t := tokenSet(srcText, 2)
	inter := 0
	for w := range s {
		if _, ok := t[w]; ok {
			inter++
		}
	}
	return float64(inter)/float64(max(4, len(s))) >= 0.2
}

// splitSentences 在句末标点后的空白处切分；片段开头的引用标记归上一句
func splitSentences(text string) []string {
	var out []string
	push := func(s string) {
		if s == "" {
			return
		}
		if lead := citationLead.FindString(s); lead != "" && len(out) > 0 {
			out[len(out)-1] += " " + strings.TrimSpace(lead)
			s = strings.TrimSpace(s[len(lead):])
			if strings.Trim(s, " .,;") == "" {
				return
			}
		}
		out = append(out, s)
	}
	r := []rune(text)
	start := 0
	for i := 0; i < len(r); i++ {
		if !isSentenceEnd(r[i]) {
			continue
		}
		j := i + 1
		for j < len(r) && isSpace(r[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		push(strings.TrimSpace(string(r[start : i+1])))
		start = j
		i = j - 1
	}
	push(strings.TrimSpace(string(r[start:])))
	return out
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

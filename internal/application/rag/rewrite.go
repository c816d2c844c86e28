package rag

import (
	"regexp"
	"strings"
)

type synonymRule struct {
	pattern *regexp.Regexp
	repl    string
}

// synonymRules 口语说法到规范术语，按顺序应用
var synonymRules = []synonymRule{
	{regexp.MustCompile(`(?i)\badd money\b`), "deposit"},
	{regexp.MustCompile(`(?i)\btop up\b`), "deposit"},
	{regexp.MustCompile(`(?i)\bput money\b`), "deposit"},
	{regexp.MustCompile(`(?i)\bsend money\b`), "transfer"},
	{regexp.MustCompile(`(?i)\bpay someone\b`), "transfer"},
	{regexp.MustCompile(`(?i)\breceive money\b`), "incoming transfer"},
	{regexp.MustCompile(`(?i)\btake out\b`), "withdraw"},
	{regexp.MustCompile(`(?i)\bverify me\b`), "identity verification"},
	{regexp.MustCompile(`(?i)\bblocked card\b`), "card locked"},
	{regexp.MustCompile(`(?i)\bfrozen account\b`), "account suspended"},
	{regexp.MustCompile(`(?i)\bcan['’]?t login\b`), "login issues"},
	{regexp.MustCompile(`(?i)\bcharges?\b`), "fee"},
	{regexp.MustCompile(`(?i)\bcosts?\b`), "fee"},
	{regexp.MustCompile(`(?i)\bprivacy\b`), "security"},
	{regexp.MustCompile(`(?i)\bdata protection\b`), "security"},
	{regexp.MustCompile(`(?i)\bfreeze (my )?account\b`), "lock account"},
	{regexp.MustCompile(`(?i)\bcancel(ed|ling)? (a )?payment\b`), "payment reversal"},
	{regexp.MustCompile(`(?i)\bchange password\b`), "password change"},
	{regexp.MustCompile(`(?i)\breset password\b`), "password reset"},
}

// RewriteQuery 应用同义词改写；对已规范的查询是不动点
func RewriteQuery(s string) string {
	out := s
	for _, r := range synonymRules {
		out = r.pattern.ReplaceAllLiteralString(out, r.repl)
	}
	return out
}

type historyBiasRule struct {
	historyTerm string
	trigger     *regexp.Regexp
	prefix      string
	guard       string
}

var historyBiasRules = []historyBiasRule{
	{"transfer", regexp.MustCompile(`\blimits?\b`), "transfer ", "transfer"},
	{"verify", regexp.MustCompile(`\b(account|me|identity)\b`), "identity verification ", "verify"},
	{"card", regexp.MustCompile(`\b(blocked|frozen|locked)\b`), "card ", "card"},
	{"deposit", regexp.MustCompile(`\b(how long|when|time)\b`), "deposit ", "deposit"},
}

// biasWithHistory 用最近几轮历史为含糊的追问补上主题前缀
func biasWithHistory(s string, history []Turn, window int) string {
	if len(history) == 0 {
		return s
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	parts := make([]string, 0, len(history))
	for _, t := range history {
		parts = append(parts, strings.ToLower(t.Content))
	}
	recent := strings.Join(parts, " ")
	low := strings.ToLower(s)

	for _, r := range historyBiasRules {
		if strings.Contains(recent, r.historyTerm) && r.trigger.MatchString(low) && !strings.Contains(low, r.guard) {
			return r.prefix + s
		}
	}
	return s
}

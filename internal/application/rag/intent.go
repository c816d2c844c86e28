package rag

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// 意图置信度
const (
	greetingConfidence     = 0.95
	smalltalkConfidence    = 0.9
	offTopicHintConfidence = 0.85
	llmFallbackConfidence  = 0.88
)

// 分类方式（写入 signals.classification_method）
const (
	MethodHeuristic         = "heuristic"
	MethodLLMFallback       = "llm_fallback"
	MethodHeuristicFallback = "heuristic_fallback"
)

var (
	greetWords     = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening"}
	smalltalkWords = []string{"thanks", "thank you", "lol", "haha", "cool", "nice", "ok", "okay", "got it"}
	offTopicHints  = []string{
		"weather", "joke", "cat", "dog", "movie", "song", "sports",
		"news", "recipe", "cooking", "music", "stock price", "btc price", "bitcoin",
	}
)

type lexiconCategory struct {
	name  string
	words []string
}

// lexicon 顺序决定同分时的胜出类别
var lexicon = []lexiconCategory{
	{"account", []string{
		"account", "signup", "register", "verify", "identity", "kyc", "profile", "open",
		"password", "passcode", "credentials",
	}},
	{"payments", []string{
		"transfer", "send", "receive", "deposit", "withdraw", "card", "fee", "limit", "payment", "transaction",
		"cancel", "reversal", "refund", "chargeback", "dispute", "failed", "declined",
	}},
	{"security", []string{
		"fraud", "phish", "compromise", "password", "2fa", "otp", "lock", "suspend", "secure",
		"data", "privacy", "encryption", "encrypted", "protect", "protection",
	}},
	{"regulatory", []string{"kyc", "aml", "compliance", "insure", "insurance", "fdic", "limit", "hold", "regulation"}},
	{"support", []string{"bug", "crash", "not working", "support", "contact", "help", "email", "issue", "problem"}},
}

var (
	questionStart = regexp.MustCompile(`^(how|what|when|where|who|why|can|do|does|is|are|should|will|would|could)\b`)
	whitespaceRun = regexp.MustCompile(`\s+`)

	greetPatterns     = inflectedPatterns(greetWords)
	smalltalkPatterns = inflectedPatterns(smalltalkWords)
	offTopicPatterns  = inflectedPatterns(offTopicHints)
	lexiconPatterns   = compileLexicon(lexicon)
)

// inflectedPatterns 允许 s/es/ed/ing 后缀的整词匹配
func inflectedPatterns(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`(?:s|es|ed|ing)?\b`))
	}
	return out
}

// compileLexicon 单词允许屈折后缀，短语按原样整体匹配
func compileLexicon(cats []lexiconCategory) [][]*regexp.Regexp {
	out := make([][]*regexp.Regexp, len(cats))
	for i, c := range cats {
		out[i] = make([]*regexp.Regexp, len(c.words))
		for j, w := range c.words {
			if strings.Contains(strings.TrimSpace(w), " ") {
				out[i][j] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
			} else {
				out[i][j] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `(?:s|es|ed|ing)?\b`)
			}
		}
	}
	return out
}

// IntentConfig 意图分类器配置
type IntentConfig struct {
	MinLength        int
	LLMFallback      bool
	LLMThreshold     float64
	HistoryBiasTurns int
}

// DefaultIntentConfig 返回默认配置
func DefaultIntentConfig() IntentConfig {
	return IntentConfig{
		MinLength:        3,
		LLMFallback:      true,
		LLMThreshold:     0.6,
		HistoryBiasTurns: 4,
	}
}

// IntentClassifier 启发式意图分类 + 查询改写，可选 LLM 兜底
type IntentClassifier struct {
	cfg IntentConfig
	llm IntentLLM
}

// NewIntentClassifier 创建意图分类器；llm 为 nil 时不启用兜底
func NewIntentClassifier(cfg IntentConfig, llm IntentLLM) *IntentClassifier {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 3
	}
	if cfg.HistoryBiasTurns <= 0 {
		cfg.HistoryBiasTurns = 4
	}
	return &IntentClassifier{cfg: cfg, llm: llm}
}

// Classify 对用户输入分类；history 按时间正序
func (c *IntentClassifier) Classify(ctx context.Context, text string, history []Turn) IntentResult {
	res := c.classifyHeuristic(text, history)

	if res.Intent != IntentFintechQuestion {
		return res
	}
	if c.cfg.LLMFallback && c.llm != nil &&
		res.Confidence < c.cfg.LLMThreshold &&
		utf8.RuneCountInString(res.ProcessedQuery) >= c.cfg.MinLength {
		return c.classifyWithLLM(ctx, text, history, res)
	}
	return res
}

func (c *IntentClassifier) classifyHeuristic(text string, history []Turn) IntentResult {
	normalized := normalizeSpace(text)
	low := strings.ToLower(normalized)
	isQuestion := looksLikeQuestion(low)

	signals := map[string]any{
		"classification_method": MethodHeuristic,
		"is_question":           isQuestion,
		"length":                utf8.RuneCountInString(low),
		"lang":                  "en",
	}

	if low == "" || utf8.RuneCountInString(low) < c.cfg.MinLength {
		signals["reason"] = "too_short"
		return IntentResult{Intent: IntentNonsense, Confidence: 0.1, Signals: signals}
	}
	if matchAny(low, greetPatterns) {
		signals["match"] = "greeting"
		return IntentResult{Intent: IntentGreeting, ProcessedQuery: normalized, Confidence: greetingConfidence, Signals: signals}
	}
	if matchAny(low, smalltalkPatterns) {
		signals["match"] = "smalltalk"
		return IntentResult{Intent: IntentSmalltalk, ProcessedQuery: normalized, Confidence: smalltalkConfidence, Signals: signals}
	}
	if matchAny(low, offTopicPatterns) {
		signals["match"] = "off_topic_hint"
		return IntentResult{Intent: IntentOffTopic, ProcessedQuery: normalized, Confidence: offTopicHintConfidence, Signals: signals}
	}

	matched := make(map[string][]string, len(lexicon))
	scores := make(map[string]int, len(lexicon))
	bestCat, bestScore := "", 0
	for i, cat := range lexicon {
		hits := []string{}
		for j, re := range lexiconPatterns[i] {
			if re.MatchString(low) {
				hits = append(hits, cat.words[j])
			}
		}
		matched[cat.name] = hits
		scores[cat.name] = len(hits)
		if len(hits) > bestScore {
			bestCat, bestScore = cat.name, len(hits)
		}
	}
	signals["category_scores"] = scores
	signals["matched_keywords"] = matched
	hint := ""
	if bestScore > 0 {
		hint = bestCat
	}
	signals["category_hint"] = hint

	rewritten := RewriteQuery(normalized)
	rewritten = normalizeSpace(biasWithHistory(rewritten, history, c.cfg.HistoryBiasTurns))

	res := IntentResult{Intent: IntentFintechQuestion, ProcessedQuery: rewritten, CategoryHint: hint, Signals: signals}
	switch {
	case bestScore >= 2:
		res.Confidence = 0.9
	case bestScore == 1 && isQuestion:
		res.Confidence = 0.7
	case bestScore == 1:
		res.Confidence = 0.6
	case isQuestion:
		signals["reason"] = "question_but_no_fintech_terms"
		return IntentResult{Intent: IntentOffTopic, ProcessedQuery: normalized, Confidence: 0.4, Signals: signals}
	default:
		signals["reason"] = "no_keywords_no_question"
		return IntentResult{Intent: IntentNonsense, ProcessedQuery: normalized, Confidence: 0.3, Signals: signals}
	}
	return res
}

func (c *IntentClassifier) classifyWithLLM(ctx context.Context, text string, history []Turn, heuristic IntentResult) IntentResult {
	start := time.Now()
	raw, err := c.llm.ClassifyIntent(ctx, text, history)
	if err != nil {
		heuristic.Signals["llm_error"] = err.Error()
		heuristic.Signals["classification_method"] = MethodHeuristicFallback
		return heuristic
	}
	latency := float64(time.Since(start).Microseconds()) / 1000.0

	label := strings.ToLower(strings.TrimSpace(raw))
	intent, _ := ParseIntent(label)

	processed := normalizeSpace(text)
	if intent == IntentFintechQuestion {
		processed = normalizeSpace(biasWithHistory(RewriteQuery(processed), history, c.cfg.HistoryBiasTurns))
	}

	signals := make(map[string]any, len(heuristic.Signals)+5)
	for k, v := range heuristic.Signals {
		signals[k] = v
	}
	signals["classification_method"] = MethodLLMFallback
	signals["heuristic_confidence"] = heuristic.Confidence
	signals["heuristic_intent"] = string(heuristic.Intent)
	signals["llm_raw_response"] = label
	signals["llm_latency_ms"] = latency

	res := IntentResult{Intent: intent, ProcessedQuery: processed, Confidence: llmFallbackConfidence, Signals: signals}
	if intent == IntentFintechQuestion {
		res.CategoryHint = heuristic.CategoryHint
	}
	return res
}

func normalizeSpace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

func looksLikeQuestion(low string) bool {
	if strings.Contains(low, "?") {
		return true
	}
	return questionStart.MatchString(low)
}

func matchAny(s string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

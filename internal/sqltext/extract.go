// Package sqltext turns a model's final answer into a single clean SQL
// statement, or reports why it can't.
package sqltext

import (
	"errors"
	"regexp"
	"strings"
)

// ErrRefusal means the content is a natural-language refusal or ambiguity
// notice rather than SQL.
var ErrRefusal = errors.New("model reported the question as unclear")

// ErrNoSQL means the content contains none of the core SQL keywords.
var ErrNoSQL = errors.New("content contains no SQL")

// refusalPhrases are scanned case-insensitively. The model is prompted to use
// the first phrase verbatim; the rest catch common paraphrases. The Korean set
// covers models that answer in the deployment's original prompt language.
var refusalPhrases = []string{
	"question is unclear",
	"please rephrase",
	"cannot understand",
	"is ambiguous",
	"too ambiguous",
	"i'm sorry",
	"unable to answer",
	"질문이 불명확합니다",
	"다시 질문해 주세요",
	"이해할 수 없습니다",
	"모호합니다",
	"죄송합니다",
}

var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER",
}

// Extract runs the sanitization pipeline on a final answer: refusal scan,
// SQL-keyword gate, fence strip, pretty print. The premature-function-call
// check happens upstream, in the orchestration loop, before content is
// treated as a final answer at all.
func Extract(content string) (string, error) {
	lower := strings.ToLower(content)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return "", ErrRefusal
		}
	}

	upper := strings.ToUpper(content)
	hasKeyword := false
	for _, kw := range sqlKeywords {
		if strings.Contains(upper, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return "", ErrNoSQL
	}

	return Pretty(StripFences(content)), nil
}

var (
	fenceBlockRE  = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\\n(.*?)\\n?```")
	fenceInlineRE = regexp.MustCompile("```(.*?)```")
)

// StripFences removes the first markdown code fence (with or without a
// language tag, block or single-line) and returns its body; content without
// fences is returned trimmed.
func StripFences(s string) string {
	if m := fenceBlockRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fenceInlineRE.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

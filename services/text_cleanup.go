package services

import (
	"regexp"
	"strings"
)

var (
	hyphenBreak = regexp.MustCompile(`-\n`)
	whitespace  = regexp.MustCompile(`\s+`)

	punctNoSpace = regexp.MustCompile(`([.,!?;:])([A-Za-z0-9])`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)

	// Word splits the model tends to emit after reading badly extracted PDFs.
	brokenWords = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`(?i)\bur ination\b`), "urination"},
		{regexp.MustCompile(`(?i)\bUn int ended\b`), "Unintended"},
		{regexp.MustCompile(`(?i)\bBl urred\b`), "Blurred"},
		{regexp.MustCompile(`(?i)\bFat igue\b`), "Fatigue"},
		{regexp.MustCompile(`(?i)\bIns ulin\b`), "Insulin"},
		{regexp.MustCompile(`(?i)\bstrong ly\b`), "strongly"},
		{regexp.MustCompile(`(?i)\bsedent ary\b`), "sedentary"},
		{regexp.MustCompile(`(?i)\bslow -he aling\b`), "slow-healing"},
		{regexp.MustCompile(`(?i)\bhe aling\b`), "healing"},
	}
)

// CleanExtractedText joins words hyphenated across line breaks and collapses
// whitespace runs into single spaces.
func CleanExtractedText(text string) string {
	text = hyphenBreak.ReplaceAllString(text, "")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CleanAnswerSpacing repairs known broken words and missing spaces after
// punctuation in generated answers. Newlines are kept so Markdown survives.
func CleanAnswerSpacing(text string) string {
	if text == "" {
		return text
	}
	for _, fix := range brokenWords {
		text = fix.re.ReplaceAllString(text, fix.repl)
	}
	text = punctNoSpace.ReplaceAllString(text, "$1 $2")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

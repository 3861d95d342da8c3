package services

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	OutOfScopeMessage    = "⚠️ I can only answer medical and health-related questions."
	GeneralKnowledgeNote = "\n\n_(This explanation is based on general medical knowledge.)_"

	noContextInstruction = "You are a highly knowledgeable medical tutor. Explain clearly in structured bullets."
	repairInstruction    = "You are a highly knowledgeable medical tutor. Answer with clear bullet points."

	minAnswerLen    = 12
	minSpaceRatio   = 0.05
	chatTemperature = 0.4
)

const answerTemplate = `**Main Topic**
- One-line intro
**Key Points**
- ...
**Details**
- ...
**Summary**
- ...`

const ragInstruction = `You are a careful medical tutor. Answer the question using the reference excerpts below.
If the excerpts do not cover the question, answer from general medical knowledge and say so.
Do not diagnose the user or recommend medication doses.

Format the reply in Markdown using this structure:
` + answerTemplate + `

Reference excerpts:
%s`

var (
	boldLine   = regexp.MustCompile(`\*\*[^\n]+\*\*`)
	bulletLine = regexp.MustCompile(`(?m)^\s*-\s+`)

	nonAnswers = []string{
		"i don't know",
		"idontknow",
		"unknown",
		"no answer",
		"cannot answer",
		"not found",
	}
)

func classifierPrompt(question string) string {
	return fmt.Sprintf("Is the following question medical-related (health, disease, physiology, "+
		"diagnosis, pathology, treatment)? Reply 'yes' or 'no' only.\n\nQuestion: \"%s\"", question)
}

// isMedical interprets the classifier reply. Anything containing "no" counts
// as a refusal.
func isMedical(reply string) bool {
	return !strings.Contains(strings.ToLower(strings.TrimSpace(reply)), "no")
}

func reformatPrompt(answer string) string {
	return "Reformat the following text into the required Markdown structure:\n" + answerTemplate +
		"\n\nONLY return the properly formatted Markdown.\nDo not add anything new.\n\nORIGINAL_REPLY:\n" + answer
}

// IsBadAnswer flags replies that are too short, look garbled (almost no
// spaces) or are non-answers.
func IsBadAnswer(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < minAnswerLen {
		return true
	}
	ratio := float64(strings.Count(text, " ")) / float64(len([]rune(text)))
	if ratio < minSpaceRatio {
		return true
	}
	lower := strings.ToLower(text)
	for _, phrase := range nonAnswers {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// LooksLikeMarkdown reports whether text already has bold headings or
// bullet lines.
func LooksLikeMarkdown(text string) bool {
	return boldLine.MatchString(text) || bulletLine.MatchString(text)
}

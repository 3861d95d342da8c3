package services

import "strings"

// SafetyAdvisory is returned for questions that ask for personal diagnosis
// or treatment.
const SafetyAdvisory = "⚠️ I can provide medical information, not diagnosis or treatment."

var forbiddenIntents = []string{
	"diagnose me",
	"prescribe",
	"dosage",
	"how much medicine",
	"treat me",
}

// CheckSafety rejects questions that ask for diagnosis, prescriptions or
// dosing.
func CheckSafety(message string) error {
	lower := strings.ToLower(message)
	for _, k := range forbiddenIntents {
		if strings.Contains(lower, k) {
			return &SafetyRejection{Advisory: SafetyAdvisory}
		}
	}
	return nil
}

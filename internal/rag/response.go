package rag

import (
	"regexp"
	"strconv"
	"strings"

	"support-rag/internal/models"
)

var (
	confidenceRe = regexp.MustCompile(models.ConfidenceRegex)
	boldRe       = regexp.MustCompile(models.BoldRegex)
	italicRe     = regexp.MustCompile(models.ItalicRegex)
	codeRe       = regexp.MustCompile(models.CodeRegex)
	bulletRe     = regexp.MustCompile(models.BulletRegex)
	numberRe     = regexp.MustCompile(`^[0-9]*\.?[0-9]*`)
)

// ExtractConfidence reads the first {"confidence": n} annotation, clamped
// to [0,1]. Missing or unparsable annotations yield DefaultConfidence.
func ExtractConfidence(text string) float64 {
	m := confidenceRe.FindStringSubmatch(text)
	if m == nil {
		return models.DefaultConfidence
	}
	// "0.8.1" reads as 0.8: only the leading decimal counts.
	c, err := strconv.ParseFloat(numberRe.FindString(m[1]), 64)
	if err != nil {
		return models.DefaultConfidence
	}
	return min(max(c, 0), 1)
}

// CleanText strips the confidence annotation and markdown emphasis from
// model output. The result is a fixed point: CleanText(CleanText(s)) == CleanText(s).
func CleanText(text string) string {
	for {
		next := cleanOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func cleanOnce(text string) string {
	text = confidenceRe.ReplaceAllString(text, "")
	// Bullets go first so "* a\n* b" is not read as one italic span.
	text = bulletRe.ReplaceAllString(text, "${1}• ")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "*", "")
	return strings.TrimSpace(text)
}

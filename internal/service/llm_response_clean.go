package service

import (
	"regexp"
	"strings"
)

var (
	reFenceStart    = regexp.MustCompile("(?is)^\\s*```[a-z]*\\s*")
	reFenceEnd      = regexp.MustCompile("(?is)\\s*```\\s*$")
	reRefinedLabel  = regexp.MustCompile(`(?i)^\s*(\*\*)?refined prompt:?(\*\*)?\s*`)
	reExtraNewlines = regexp.MustCompile(`\n{3,}`)
	reFenceOpenLine = regexp.MustCompile("```([A-Za-z0-9_+-]*)[ \\t]+\n")
	reFencedBlock   = regexp.MustCompile("(?s)```.*?```")
)

// cleanRefinedPrompt quita BOM, fences que envuelven toda la respuesta y la etiqueta
// "Refined prompt:" que algunos modelos repiten.
func cleanRefinedPrompt(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = strings.TrimPrefix(s, "\uFEFF")

	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && strings.Count(s, "```") == 2 {
		s = reFenceStart.ReplaceAllString(s, "")
		s = reFenceEnd.ReplaceAllString(s, "")
	}
	s = reRefinedLabel.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// formatResponse colapsa saltos de linea repetidos y normaliza los bloques de codigo.
func formatResponse(response string) string {
	s := reExtraNewlines.ReplaceAllString(response, "\n\n")
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	s = reFenceOpenLine.ReplaceAllString(s, "```$1\n")
	return reFencedBlock.ReplaceAllStringFunc(s, func(block string) string {
		return strings.ReplaceAll(block, "\r\n", "\n")
	})
}

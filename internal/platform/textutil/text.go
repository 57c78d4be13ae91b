// Package textutil cleans customer-supplied free text before it is stored or echoed back.
package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips markup, normalises to NFC, collapses whitespace and truncates to limit runes.
// A non-positive limit disables truncation.
func CleanText(value string, limit int) string {
	stripped := html.UnescapeString(strictPolicy.Sanitize(value))
	normalised := norm.NFC.String(stripped)
	fields := strings.FieldsFunc(normalised, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
	out := strings.Join(fields, " ")
	if limit > 0 {
		if runes := []rune(out); len(runes) > limit {
			out = strings.TrimSpace(string(runes[:limit]))
		}
	}
	return out
}

// CleanMultiline behaves like CleanText but keeps line breaks, which order notes and addresses use.
func CleanMultiline(value string, limit int) string {
	lines := strings.Split(strings.ReplaceAll(value, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if cleaned := CleanText(line, 0); cleaned != "" {
			kept = append(kept, cleaned)
		}
	}
	out := strings.Join(kept, "\n")
	if limit > 0 {
		if runes := []rune(out); len(runes) > limit {
			out = strings.TrimSpace(string(runes[:limit]))
		}
	}
	return out
}

var folder = cases.Fold()

// NormalizeEmail trims and case-folds an email address for comparison and storage.
func NormalizeEmail(value string) string {
	return folder.String(norm.NFC.String(strings.TrimSpace(value)))
}

package usecase

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// queryUnsafeChars are characters the catalog search rejects or misreads.
	queryUnsafeChars = regexp.MustCompile(`[#%+@!^*()=\[\]{}<>|\\~"` + "`" + `]`)
	querySpaces      = regexp.MustCompile(`\s+`)
)

const maxQueryLength = 120

// SanitizeQuery prepares free text for a catalog search: compatibility
// normalization, unsafe characters dropped and whitespace collapsed.
func SanitizeQuery(q string) string {
	q = norm.NFKC.String(q)
	q = strings.ReplaceAll(q, "&", " og ")
	q = queryUnsafeChars.ReplaceAllString(q, " ")
	q = strings.TrimSpace(querySpaces.ReplaceAllString(q, " "))
	if r := []rune(q); len(r) > maxQueryLength {
		q = strings.TrimSpace(string(r[:maxQueryLength]))
	}
	return q
}

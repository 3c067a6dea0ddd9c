package usecase

import (
	"regexp"
	"strconv"
	"strings"
)

// sizeUnitPattern must end on a word boundary so "4 lemons" is not 4 l.
const sizeUnitPattern = `(kilogram|kg|gram|gr|g|hg|mg|liter|litre|ltr|l|dl|cl|ml|stk|pk|pack|pakke)\b`

var (
	multiSizeRegex  = regexp.MustCompile(`(?i)([\d.]+)\s*[x×]\s*([\d.]+)\s*` + sizeUnitPattern)
	singleSizeRegex = regexp.MustCompile(`(?i)([\d.]+)\s*` + sizeUnitPattern)
	pieceCountRegex = regexp.MustCompile(`(?i)(\d+)\s*(stk|st|pieces|pk|pack|pakke)\b`)
)

// ParsedSize is the result of reading a free-text package size.
// Quantity and Unit are nil when nothing could be recognized.
type ParsedSize struct {
	Raw      string
	Quantity *float64
	Unit     *string
	UnitRaw  *string
}

// ParseSize reads strings like "3x200 g", "750 ml", "1,5 kg" or "6 stk".
// It returns nil for blank input and never fails on malformed text.
func ParseSize(raw string) *ParsedSize {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	normalized := strings.ToLower(strings.ReplaceAll(text, ",", "."))

	if m := multiSizeRegex.FindStringSubmatch(normalized); m != nil {
		count, okCount := parseAmount(m[1])
		amount, okAmount := parseAmount(m[2])
		if okCount && okAmount {
			return &ParsedSize{
				Raw:      text,
				Quantity: floatPtr(count * amount),
				Unit:     strPtr(NormalizeUnit(m[3])),
				UnitRaw:  strPtr(m[3]),
			}
		}
	}

	if m := singleSizeRegex.FindStringSubmatch(normalized); m != nil {
		if qty, ok := parseAmount(m[1]); ok {
			return &ParsedSize{
				Raw:      text,
				Quantity: floatPtr(qty),
				Unit:     strPtr(NormalizeUnit(m[2])),
				UnitRaw:  strPtr(m[2]),
			}
		}
	}

	if m := pieceCountRegex.FindStringSubmatch(normalized); m != nil {
		if qty, ok := parseAmount(m[1]); ok {
			return &ParsedSize{
				Raw:      text,
				Quantity: floatPtr(qty),
				Unit:     strPtr(UnitPiece),
				UnitRaw:  strPtr(m[2]),
			}
		}
	}

	return &ParsedSize{Raw: text}
}

// parseAmount parses a matched number token such as "1.5"; "." or "1.2.3" fail.
func parseAmount(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return extractNumber(s)
	}
	return n, true
}

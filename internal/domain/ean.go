package domain

import "strings"

// CleanEAN strips everything but digits from a barcode.
func CleanEAN(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsLookupEAN reports whether a cleaned barcode has a length the catalog accepts.
func IsLookupEAN(code string) bool {
	return len(code) >= 8 && len(code) <= 14
}

// ValidEAN13 checks the length and check digit of an EAN-13 barcode.
func ValidEAN13(code string) bool {
	s := CleanEAN(code)
	if len(s) != 13 {
		return false
	}
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(s[i] - '0')
		if i%2 == 0 {
			sum += d
		} else {
			sum += d * 3
		}
	}
	check := (10 - sum%10) % 10
	return check == int(s[12]-'0')
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

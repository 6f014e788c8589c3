// =============================================================================
// CFE XML Extractor - Value Normalization
// =============================================================================
//
// Total functions that turn raw field text into clean values. None of them
// return an error: a bad field must never abort extraction of an otherwise
// valid document, so every failure maps to a safe default.
//
//   Number - locale-ambiguous decimal strings ("1.234,56", "22.50")
//   Text   - free text carrying HTML/XML markup and character entities
//
// =============================================================================

package normalize

import (
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// NUMBERS
// =============================================================================

// Number parses a decimal string into a float64.
//
// RULES:
//   - Blank input yields 0.
//   - If the string contains a comma, periods are thousands separators and
//     the comma is the decimal separator: "1.234,56" -> 1234.56.
//   - Otherwise the string is parsed as a period-decimal number: "22.50" -> 22.5.
//   - Hexadecimal forms ("0x1p3") are not amounts and yield 0.
//   - Anything unparsable, NaN or infinite yields 0.
func Number(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	digits := strings.TrimLeft(s, "+-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return 0
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// =============================================================================
// FREE TEXT
// =============================================================================

// tagPattern matches anything delimited by angle brackets.
var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Text cleans a free-text blob such as the CFE Adenda.
//
// STEPS:
//  1. Decode character entities until none are left, so "&amp;lt;b&amp;gt;"
//     ends up as "<b>" and is stripped like any other tag.
//  2. Replace each <...> tag with one space, keeping words on either side
//     of a removed tag apart.
//  3. Collapse whitespace runs to single spaces and trim.
//
// Text is idempotent: Text(Text(x)) == Text(x).
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	decoded := raw
	for {
		next := html.UnescapeString(decoded)
		if next == decoded {
			break
		}
		decoded = next
	}

	stripped := tagPattern.ReplaceAllString(decoded, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

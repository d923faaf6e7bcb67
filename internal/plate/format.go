package plate

import (
	"regexp"
	"strings"
)

// Regional grammars: two-letter region code, district digits, series letters,
// four-digit number (KA01AB1234, KA01ABC1234).
var regionalPatterns = []string{
	`[A-Z]{2}[0-9]{1,2}[A-Z]{1,2}[0-9]{4}`,
	`[A-Z]{2}[0-9]{2}[A-Z]{2}[0-9]{4}`,
	`[A-Z]{2}[0-9]{1,2}[A-Z]{1,3}[0-9]{4}`,
	`[A-Z]{2}[0-9]{2}[A-Z]{1,3}[0-9]{4}`,
}

// Loose grammars, tried after the regional ones. The last one accepts any
// 6-12 character alphanumeric string.
var loosePatterns = []string{
	`[A-Z]{2}[0-9]{1,4}[A-Z]{1,4}[0-9]{1,4}`,
	`[A-Z]{1,3}[0-9]{1,4}[A-Z]{1,4}[0-9]{1,4}`,
	anyAlnumPattern,
}

const anyAlnumPattern = `[A-Z0-9]{6,12}`

const minPlateLength = 5

var validators = anchored(append(append([]string{}, regionalPatterns...), loosePatterns...))

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

func anchored(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`^`+p+`$`))
	}
	return out
}

// Normalize upper-cases text and drops everything that is not A-Z or 0-9.
func Normalize(text string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(text), "")
}

// IsValidFormat reports whether text plausibly is a licence plate. The check
// is binary: a loose-grammar hit counts the same as a regional one.
func IsValidFormat(text string) bool {
	cleaned := Normalize(text)
	if len(cleaned) < minPlateLength {
		return false
	}
	for _, re := range validators {
		if re.MatchString(cleaned) {
			return true
		}
	}
	return false
}

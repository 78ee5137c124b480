package interview

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMessageLength is the longest candidate message accepted, in characters
const MaxMessageLength = 5000

// ValidationError is returned for candidate input that must not reach the
// state machine. Reason is safe to show to the candidate.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	scriptBlock = regexp.MustCompile(`(?is)<script.*?</script>`)
	htmlTag     = regexp.MustCompile(`<[^>\n]*>`)

	injectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+instructions?`),
		regexp.MustCompile(`(?im)^\s*system\s*:`),
		regexp.MustCompile(`(?i)<\|.*?\|>`),
		regexp.MustCompile(`(?i)###\s*instruction`),
		regexp.MustCompile(`(?i)forget\s+(everything|all|your\s+instructions)`),
		regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an)\s+`),
		regexp.MustCompile(`(?i)new\s+(role|instructions?|persona)\s*:`),
		regexp.MustCompile(`(?i)disregard\s+(all|previous|prior|the\s+above)`),
		regexp.MustCompile(`(?i)override\s+(your|the|all)\s+(instructions?|rules|settings)`),
	}
)

const maxSpecialCharRatio = 0.3

// ValidateMessage checks and sanitizes a raw candidate message. The returned
// text is what should be submitted to the interviewer.
func ValidateMessage(raw string) (string, error) {
	if utf8.RuneCountInString(raw) > MaxMessageLength {
		return "", &ValidationError{Reason: "Message too long (max 5000 characters)"}
	}
	if strings.TrimSpace(raw) == "" {
		return "", &ValidationError{Reason: "Message cannot be empty"}
	}

	for _, re := range injectionPatterns {
		if re.MatchString(raw) {
			return "", &ValidationError{Reason: "Message blocked: contains disallowed instructions"}
		}
	}

	clean := Sanitize(raw)
	if clean == "" {
		return "", &ValidationError{Reason: "Message cannot be empty"}
	}
	if specialCharRatio(clean) > maxSpecialCharRatio {
		return "", &ValidationError{Reason: "Message blocked: too many special characters"}
	}
	return clean, nil
}

// Sanitize strips markup and collapses whitespace
func Sanitize(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = htmlTag.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func specialCharRatio(s string) float64 {
	var total, special int
	for _, r := range s {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

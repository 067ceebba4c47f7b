// Package redact strips personal data from organization context before it
// is sent to the LLM provider.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Kind is a category of personal data
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindIPAddress  Kind = "ip_address"
)

// Detection is one match in the input
type Detection struct {
	Kind  Kind
	Value string
	Start int
	End   int
}

type rule struct {
	kind    Kind
	pattern *regexp.Regexp
	check   func(string) bool
}

// Phone and number patterns require separators so that framework names
// such as "ISO 27001" and years are left intact.
var rules = []rule{
	{kind: KindEmail, pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{kind: KindSSN, pattern: regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`), check: validSSN},
	{kind: KindCreditCard, pattern: regexp.MustCompile(`\b(?:[0-9][ -]?){12,18}[0-9]\b`), check: luhnCheck},
	{kind: KindPhone, pattern: regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\b[0-9]{3}\)?[-. ][0-9]{3}[-. ][0-9]{4}\b`)},
	{kind: KindIPAddress, pattern: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
}

// Detect returns non-overlapping detections ordered by position. When two
// matches overlap the earlier rule wins.
func Detect(text string) []Detection {
	var found []Detection
	for _, r := range rules {
		for _, m := range r.pattern.FindAllStringIndex(text, -1) {
			value := text[m[0]:m[1]]
			if r.check != nil && !r.check(value) {
				continue
			}
			found = append(found, Detection{Kind: r.kind, Value: value, Start: m[0], End: m[1]})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })

	out := found[:0]
	end := -1
	for _, d := range found {
		if d.Start < end {
			continue
		}
		out = append(out, d)
		end = d.End
	}
	return out
}

// Contains reports whether text has any personal data
func Contains(text string) bool {
	return len(Detect(text)) > 0
}

// Redact replaces personal data with typed placeholders
func Redact(text string) string {
	detections := Detect(text)
	if len(detections) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, d := range detections {
		b.WriteString(text[last:d.Start])
		b.WriteString(placeholder(d.Kind))
		last = d.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func placeholder(kind Kind) string {
	switch kind {
	case KindEmail:
		return "[EMAIL_REDACTED]"
	case KindPhone:
		return "[PHONE_REDACTED]"
	case KindSSN:
		return "[SSN_REDACTED]"
	case KindCreditCard:
		return "[CC_REDACTED]"
	case KindIPAddress:
		return "[IP_REDACTED]"
	default:
		return "[REDACTED]"
	}
}

func validSSN(s string) bool {
	digits := strings.ReplaceAll(s, "-", "")
	if len(digits) != 9 {
		return false
	}
	if digits[:3] == "000" || digits[3:5] == "00" || digits[5:] == "0000" {
		return false
	}
	return !strings.HasPrefix(digits, "666") && !strings.HasPrefix(digits, "9")
}

// luhnCheck validates a card number using the Luhn algorithm
func luhnCheck(cardNumber string) bool {
	cardNumber = strings.ReplaceAll(cardNumber, " ", "")
	cardNumber = strings.ReplaceAll(cardNumber, "-", "")

	if len(cardNumber) < 13 || len(cardNumber) > 19 {
		return false
	}

	sum := 0
	isSecond := false
	for i := len(cardNumber) - 1; i >= 0; i-- {
		digit := int(cardNumber[i] - '0')
		if isSecond {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		isSecond = !isSecond
	}

	return sum%10 == 0
}

package pii

import (
	"strings"
	"unicode/utf8"
)

// Masking is purely presentational: these functions produce redacted views
// for actors without full-PII access and never touch the stored value.
// Callers check domain.RoleSet.CanAccessFullPII before applying them.

const maskRune = '*'

// MaskPhone reveals the first 4 and last 2 characters. Phones of 8 or fewer
// characters are fully masked, since prefix plus suffix would reconstruct
// most of the number.
func MaskPhone(phone string) string {
	n := utf8.RuneCountInString(phone)
	if n == 0 {
		return ""
	}
	if n <= 8 {
		return strings.Repeat(string(maskRune), n)
	}
	runes := []rune(phone)
	return string(runes[:4]) + strings.Repeat(string(maskRune), n-6) + string(runes[n-2:])
}

// MaskEmail reveals the domain and the first and last character of the local
// part, masking the rest with a fixed-width run so the local-part length is
// not leaked. Local parts of 1-2 characters are fully masked.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return email
	}
	n := utf8.RuneCountInString(local)
	if n <= 2 {
		return strings.Repeat(string(maskRune), n) + "@" + domain
	}
	runes := []rune(local)
	return string(runes[0]) + strings.Repeat(string(maskRune), 5) + string(runes[n-1]) + "@" + domain
}

// MaskFullName reveals the first name token and abbreviates the last token
// to its uppercased initial followed by a period. Single-token names are
// shown unmasked.
func MaskFullName(name string) string {
	tokens := strings.Fields(name)
	switch len(tokens) {
	case 0:
		return ""
	case 1:
		return tokens[0]
	}
	last := []rune(tokens[len(tokens)-1])
	return tokens[0] + " " + strings.ToUpper(string(last[0])) + "."
}

// MaskDocument reveals only the last 4 characters of a document number.
func MaskDocument(doc string) string {
	return MaskExceptLast(doc, 4)
}

// MaskExceptLast reveals the trailing reveal characters and masks the rest.
// Values no longer than reveal are fully masked.
func MaskExceptLast(value string, reveal int) string {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return ""
	}
	if reveal < 0 {
		reveal = 0
	}
	if n <= reveal {
		return strings.Repeat(string(maskRune), n)
	}
	runes := []rune(value)
	return strings.Repeat(string(maskRune), n-reveal) + string(runes[n-reveal:])
}

package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const nameToken = `([\p{L}][\p{L}'’-]*)`

// introPatterns are tried in order; the first match wins.
var introPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmy name is\s+` + nameToken),
	regexp.MustCompile(`(?i)\bi am\s+` + nameToken),
	regexp.MustCompile(`(?i)\bi['’]m\s+` + nameToken),
	regexp.MustCompile(`(?i)\bcall me\s+` + nameToken),
	regexp.MustCompile(`(?i)\bname['’]s\s+` + nameToken),
	regexp.MustCompile(`(?i)` + nameToken + `\s+is my name\b`),
}

// ExtractName guesses the user's name from a chat message. Introduction phrases match on any
// message; the capitalized-word and first-word guesses only run on the first message.
// It returns "" when nothing was found.
//
// The first-word guess is deliberately loose: "Hello there" yields "Hello".
func ExtractName(message string, isFirstMessage bool) string {
	for _, re := range introPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			if name := trimToken(m[1]); name != "" {
				return name
			}
		}
	}
	if !isFirstMessage {
		return ""
	}

	tokens := strings.Fields(message)
	for _, tok := range tokens {
		tok = trimToken(tok)
		if utf8.RuneCountInString(tok) > 1 && looksLikeName(tok) {
			return tok
		}
	}
	for _, tok := range tokens {
		tok = trimToken(tok)
		if utf8.RuneCountInString(tok) > 1 {
			return tok
		}
	}
	return ""
}

func trimToken(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// looksLikeName: leading uppercase letter, no uppercase after it.
func looksLikeName(tok string) bool {
	first, size := utf8.DecodeRuneInString(tok)
	if !unicode.IsUpper(first) {
		return false
	}
	for _, r := range tok[size:] {
		if unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

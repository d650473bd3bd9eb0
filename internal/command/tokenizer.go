package command

import (
	"strings"
	"unicode"
)

// Tokenize splits a raw command body (prefix already stripped) into the
// command name and its arguments.
//
// Rules, applied character by character:
//   - whitespace outside a quoted span separates arguments; runs of
//     whitespace never produce empty arguments
//   - a double quote toggles quoted-span mode and is never part of the
//     output; entering or leaving a span flushes the pending argument
//   - a backslash takes the next character verbatim, whatever it is;
//     a trailing backslash consumes nothing
//   - an unterminated quoted span runs to the end of the input
//
// The first flushed token is the command name; the rest are arguments.
func Tokenize(input string) (string, []string) {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	inQuote := false
	escaped := false
	for _, r := range input {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}
		switch {
		case r == '\\':
			escaped = true
		case r == '"':
			flush()
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	if len(tokens) == 0 {
		return "", nil
	}
	if len(tokens) == 1 {
		return tokens[0], nil
	}
	return tokens[0], tokens[1:]
}

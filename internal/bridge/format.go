package bridge

import (
	"html"

	"netchatbridge/internal/constants"
)

// FormatInbound prepares one NetChat line for delivery into Matrix: the
// raw line is sliced at the fixed timestamp width, the prefix is wrapped
// in bold markers and each half is HTML-escaped on its own, so escape
// entities never straddle the closing bold tag. Lines too short to carry
// a full timestamp are bolded whole rather than sliced out of range.
func FormatInbound(line string) string {
	if len(line) < constants.TimestampPrefixLen {
		return "<b>" + html.EscapeString(line) + "</b>"
	}
	prefix, rest := line[:constants.TimestampPrefixLen], line[constants.TimestampPrefixLen:]
	return "<b>" + html.EscapeString(prefix) + "</b>" + html.EscapeString(rest)
}

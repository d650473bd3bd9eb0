package netchat

import "strings"

// The send endpoint embeds username and body in the request path, so
// characters with URL or path meaning are replaced with the placeholder
// tokens the NetChat server substitutes back on render.
var pathEscaper = strings.NewReplacer(
	"#", "{hash}",
	"%", "{percent}",
	"&", "{ampersand}",
	"/", "{slash}",
	"?", "{questionmark}",
	"\\", "{backslash}",
	"\n", "{newline}",
)

// EscapePathField applies the NetChat path substitution table.
func EscapePathField(s string) string {
	return pathEscaper.Replace(s)
}

package pathutil

import "strings"

// Tokenize splits s on splitChar, treating an unescaped '"' as toggling a
// quoted span in which splitChar no longer separates tokens. A backslash
// immediately followed by '"' is an escaped quote: it never toggles the
// quoted span and is emitted as a literal '"' (removeQuotes) or as the
// literal two-byte sequence `\"` (!removeQuotes). Consecutive splitChar
// runs collapse to a single boundary, so leading/trailing/repeated
// separators never produce empty tokens. An unterminated quoted span is
// flushed as-is at end of input rather than treated as an error, including
// escaped-quote unescaping when removeQuotes is set.
func Tokenize(s string, splitChar byte, removeQuotes bool) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == '"':
			if removeQuotes {
				cur.WriteByte('"')
			} else {
				cur.WriteByte('\\')
				cur.WriteByte('"')
			}
			i++
		case c == '"':
			inQuote = !inQuote
			if !removeQuotes {
				cur.WriteByte('"')
			}
		case c == splitChar && !inQuote:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	return tokens
}

package storage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotReadOnly is wrapped by every EnsureReadOnly rejection.
var ErrNotReadOnly = errors.New("storage: only a single read-only SELECT is allowed")

// writeKeywords may not appear as bare words anywhere in a query.
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true, "UPSERT": true,
	"DROP": true, "ALTER": true, "CREATE": true, "REPLACE": true, "TRUNCATE": true,
	"ATTACH": true, "DETACH": true, "PRAGMA": true, "VACUUM": true, "REINDEX": true,
	"GRANT": true, "REVOKE": true, "EXEC": true, "EXECUTE": true, "CALL": true,
	"COPY": true, "EXPORT": true, "IMPORT": true, "INSTALL": true, "LOAD": true,
	"SET": true, "INTO": true,
}

// EnsureReadOnly validates that q is one SELECT (or WITH ... SELECT)
// statement and returns it without trailing semicolons.
//
// Words inside string literals, quoted identifiers and comments are ignored.
// Any statement separator followed by more text, and any write keyword,
// is rejected.
func EnsureReadOnly(q string) (string, error) {
	s := strings.TrimSpace(q)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty query", ErrNotReadOnly)
	}

	words, multi := scanWords(s)
	if multi {
		return "", fmt.Errorf("%w: multiple statements", ErrNotReadOnly)
	}
	if len(words) == 0 || (words[0] != "SELECT" && words[0] != "WITH") {
		return "", fmt.Errorf("%w: query must start with SELECT or WITH", ErrNotReadOnly)
	}
	for _, w := range words {
		if writeKeywords[w] {
			return "", fmt.Errorf("%w: %s is not allowed", ErrNotReadOnly, w)
		}
	}
	return s, nil
}

// scanWords returns the upper-cased bare words of s and whether a ';' occurs
// outside quotes and comments.
func scanWords(s string) ([]string, bool) {
	var (
		words []string
		cur   strings.Builder
		multi bool
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToUpper(cur.String()))
			cur.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			flush()
			closer := c
			if c == '[' {
				closer = ']'
			}
			for i++; i < len(s); i++ {
				if s[i] == closer {
					if i+1 < len(s) && s[i+1] == closer && closer != ']' {
						i++
						continue
					}
					break
				}
			}
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			flush()
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			flush()
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
		case c == ';':
			flush()
			multi = true
		case c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			cur.WriteByte(c)
		default:
			flush()
		}
	}
	flush()
	return words, multi
}

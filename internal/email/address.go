package email

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	spacedAt     = regexp.MustCompile(`\s*@\s*`)
	lineBreak    = regexp.MustCompile(`\r?\n`)
	trailingDot  = regexp.MustCompile(`\.(\W|$)`)
	angleBracket = regexp.MustCompile(`[<>]`)
	separators   = regexp.MustCompile(`[ ,;:/]+`)
	plainAddress = regexp.MustCompile(`(?i)^[\w+._-]+@[\w+._-]+$`)
)

// ExtractAddresses pulls plain mailbox addresses out of free-form text such
// as "John <john@example.org>, jane@example.org.". Values may be strings,
// string slices or slices nesting either. Invalid tokens are dropped and
// duplicates removed, keeping the first occurrence.
func ExtractAddresses(values ...any) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range flatten(values) {
		s = spacedAt.ReplaceAllString(s, "@")
		s = lineBreak.ReplaceAllString(s, ", ")
		s = trailingDot.ReplaceAllString(s, ",${1}")
		s = angleBracket.ReplaceAllString(s, "")
		for _, token := range separators.Split(s, -1) {
			token = strings.TrimSpace(token)
			if !plainAddress.MatchString(token) {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

func flatten(values []any) []string {
	var out []string
	for _, v := range values {
		switch v := v.(type) {
		case nil:
		case string:
			out = append(out, v)
		case []string:
			out = append(out, v...)
		case [][]string:
			for _, inner := range v {
				out = append(out, inner...)
			}
		case []any:
			out = append(out, flatten(v)...)
		case fmt.Stringer:
			out = append(out, v.String())
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}

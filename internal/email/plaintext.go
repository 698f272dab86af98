package email

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	bodyPrologue = regexp.MustCompile(`(?i)^[\s\S]*<body[^>]*>`)
	anchorTag    = regexp.MustCompile(`<a[^>]+href=['"]([^'">]+)['"][^>]*>([^<]*)</a>`)

	stripPolicy     *bluemonday.Policy
	stripPolicyOnce sync.Once
)

// HTMLToText derives the plain-text alternative of an HTML body. Everything
// up to the opening body tag is dropped, links become "text url" and the
// remaining markup is stripped. Entities are decoded last, so escaped markup
// such as &lt;b&gt; reads as a literal "<b>" in the text/plain part.
func HTMLToText(src string) string {
	stripPolicyOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})

	text := bodyPrologue.ReplaceAllString(src, "")
	text = anchorTag.ReplaceAllString(text, "$2 $1")
	text = stripPolicy.Sanitize(text)
	return strings.TrimSpace(html.UnescapeString(text))
}

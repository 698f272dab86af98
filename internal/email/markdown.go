package email

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

var markdown = goldmark.New()

// SetMarkdown renders src to HTML and makes it the primary content.
func (m *Message) SetMarkdown(src string) error {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return fmt.Errorf("failed to render markdown: %w", err)
	}
	m.SetContentType("text/html")
	m.SetContent(buf.String())
	return nil
}

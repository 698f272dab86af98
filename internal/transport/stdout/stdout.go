// Package stdout implements a Transport that prints messages to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/go-units"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/parser"
	"github.com/shineum/mailer-lite/internal/transport"
)

const separator = "========================================\n"

// Config configures the stdout transport.
type Config struct {
	// EML prints the rendered document instead of a summary.
	EML bool
}

// Transport prints messages in a human-readable form.
type Transport struct {
	transport.LastErr
	writer io.Writer
	eml    bool
}

// New creates a Transport writing to os.Stdout.
func New(cfg Config) *Transport {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter creates a Transport writing to w.
func NewWithWriter(w io.Writer, cfg Config) *Transport {
	return &Transport{writer: w, eml: cfg.EML}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "stdout" }

// Send prints msg.
func (t *Transport) Send(_ context.Context, msg *email.Message) error {
	return t.Record(t.send(msg))
}

func (t *Transport) send(msg *email.Message) error {
	if t.eml {
		_, err := msg.WriteTo(t.writer)
		return err
	}

	doc, err := parser.Parse(msg.EML())
	if err != nil {
		return fmt.Errorf("parse rendered message: %w", err)
	}
	_, err = io.WriteString(t.writer, Summary(doc))
	return err
}

// Summary formats the parts of doc a reader cares about.
func Summary(doc *parser.Document) string {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "Message-ID: %s\n", doc.MessageID)
	fmt.Fprintf(&b, "From: %s\n", doc.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(doc.To, ", "))
	if len(doc.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", strings.Join(doc.Cc, ", "))
	}
	if len(doc.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\n", strings.Join(doc.Bcc, ", "))
	}
	if len(doc.ReplyTo) > 0 {
		fmt.Fprintf(&b, "Reply-To: %s\n", strings.Join(doc.ReplyTo, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\n", doc.Subject)
	b.WriteString("Body:\n")

	body := doc.TextBody
	if body == "" {
		body = doc.HTMLBody
	}
	b.WriteString(body + "\n")

	if line := resources("Inline", doc.Inline); line != "" {
		b.WriteString(line)
	}
	if line := resources("Attachments", doc.Attachments); line != "" {
		b.WriteString(line)
	}

	b.WriteString(separator)
	return b.String()
}

func resources(label string, list []parser.Resource) string {
	if len(list) == 0 {
		return ""
	}
	items := make([]string, 0, len(list))
	for _, r := range list {
		name := r.Filename
		if name == "" {
			name = "cid:" + r.ContentID
		}
		items = append(items, fmt.Sprintf("%s (%s)", name, units.BytesSize(float64(len(r.Content)))))
	}
	return fmt.Sprintf("%s: %s\n", label, strings.Join(items, ", "))
}

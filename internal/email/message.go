// Package email builds MIME messages and renders them as EML documents.
package email

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCharset is the charset announced on text parts.
const DefaultCharset = "UTF-8"

// Message header names.
const (
	HeaderMimeVersion = "Mime-Version"
	HeaderDate        = "Date"
	HeaderMessageID   = "Message-ID"
	HeaderSubject     = "Subject"
	HeaderFrom        = "From"
	HeaderTo          = "To"
	HeaderCc          = "Cc"
	HeaderBcc         = "Bcc"
	HeaderReplyTo     = "Reply-To"
)

// Option configures a Message at construction.
type Option func(*Message)

// WithClock overrides the time source used for the Date and Message-ID headers.
func WithClock(now func() time.Time) Option {
	return func(m *Message) { m.now = now }
}

// WithHostname overrides the host part of the Message-ID.
func WithHostname(host string) Option {
	return func(m *Message) { m.hostname = host }
}

// WithCharset overrides the charset of text parts.
func WithCharset(charset string) Option {
	return func(m *Message) { m.charset = charset }
}

// Message is a mail under construction. The Message-ID and the container
// boundaries are fixed when the message is created, so EML renders the same
// bytes for the same state. A Message is not safe for concurrent mutation.
type Message struct {
	header      *Header
	content     *Part
	related     []*Part
	attachments []*Part

	subject string
	sender  string
	to      []string
	cc      []string
	bcc     []string
	replyTo []string

	charset  string
	hostname string
	now      func() time.Time

	relatedBoundary     string
	alternativeBoundary string
	mixedBoundary       string
}

// NewMessage returns an empty HTML message.
func NewMessage(opts ...Option) *Message {
	m := &Message{
		header:              NewHeader(),
		charset:             DefaultCharset,
		now:                 time.Now,
		relatedBoundary:     NewBoundary(),
		alternativeBoundary: NewBoundary(),
		mixedBoundary:       NewBoundary(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hostname == "" {
		m.hostname = localHostname()
	}

	m.content = NewPart("")
	m.SetContentType("text/html")

	now := m.now()
	m.header.Set(HeaderMimeVersion, "1.0")
	m.header.Set(HeaderDate, now.Format(time.RFC1123Z))
	m.header.Set(HeaderMessageID, fmt.Sprintf("<%d.%s@%s>",
		now.Unix(), strings.ReplaceAll(uuid.NewString(), "-", ""), m.hostname))
	return m
}

// NewTextMessage returns an empty plain-text message.
func NewTextMessage(opts ...Option) *Message {
	m := NewMessage(opts...)
	m.SetContentTypeTextPlain()
	return m
}

func localHostname() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "localhost"
	}
	return host
}

// Header returns the message header table for custom fields.
func (m *Message) Header() *Header { return m.header }

// ID returns the Message-ID, angle brackets included.
func (m *Message) ID() string { return m.header.Get(HeaderMessageID) }

// SetContentType sets the media type of the primary content; the message
// charset is appended.
func (m *Message) SetContentType(mediaType string) {
	m.content.SetContentType(mediaType + "; charset=" + m.charset)
}

// SetContentTypeTextPlain switches the primary content to plain text.
func (m *Message) SetContentTypeTextPlain() { m.SetContentType("text/plain") }

// ContentType returns the content type of the primary content.
func (m *Message) ContentType() string { return m.content.ContentType() }

// IsHTML reports whether the primary content is HTML.
func (m *Message) IsHTML() bool { return m.content.IsHTML() }

// SetContent replaces the primary content.
func (m *Message) SetContent(s string) { m.content.SetContent([]byte(s)) }

// AddContent appends to the primary content.
func (m *Message) AddContent(s string) { m.content.AddContent([]byte(s)) }

// Content returns the primary content.
func (m *Message) Content() string { return string(m.content.Content()) }

// SetSubject sets the Subject header, encoding non-ASCII text.
func (m *Message) SetSubject(subject string) {
	m.subject = subject
	m.header.Set(HeaderSubject, EncodeWord(subject))
}

// Subject returns the subject as given, not encoded.
func (m *Message) Subject() string { return m.subject }

// SetSender sets the From header. name may be empty.
func (m *Message) SetSender(addr, name string) {
	m.sender = formatAddress(addr, name)
	m.header.Set(HeaderFrom, formatAddress(addr, EncodeWord(name)))
}

// Sender returns the sender as "Name <addr>" or the bare address, or "" when unset.
func (m *Message) Sender() string { return m.sender }

// AddRecipient adds a To address. name may be empty.
func (m *Message) AddRecipient(addr, name string) {
	m.to = m.addAddress(HeaderTo, m.to, addr, name)
}

// AddCopyTo adds a Cc address.
func (m *Message) AddCopyTo(addr, name string) {
	m.cc = m.addAddress(HeaderCc, m.cc, addr, name)
}

// AddHiddenCopy adds a Bcc address. The Bcc header is rendered like any other.
func (m *Message) AddHiddenCopy(addr, name string) {
	m.bcc = m.addAddress(HeaderBcc, m.bcc, addr, name)
}

// AddReplyTo adds a Reply-To address.
func (m *Message) AddReplyTo(addr, name string) {
	m.replyTo = m.addAddress(HeaderReplyTo, m.replyTo, addr, name)
}

func (m *Message) addAddress(header string, list []string, addr, name string) []string {
	m.header.Add(header, formatAddress(addr, EncodeWord(name)))
	return append(list, formatAddress(addr, name))
}

func (m *Message) To() []string      { return append([]string(nil), m.to...) }
func (m *Message) Cc() []string      { return append([]string(nil), m.cc...) }
func (m *Message) Bcc() []string     { return append([]string(nil), m.bcc...) }
func (m *Message) ReplyTo() []string { return append([]string(nil), m.replyTo...) }

// Recipients returns every To, Cc and Bcc entry, in that order.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.to)+len(m.cc)+len(m.bcc))
	out = append(out, m.to...)
	out = append(out, m.cc...)
	return append(out, m.bcc...)
}

// RecipientAddresses returns the plain, de-duplicated addresses of Recipients.
func (m *Message) RecipientAddresses() []string {
	return ExtractAddresses(m.Recipients())
}

// SenderAddress returns the plain address of the sender.
func (m *Message) SenderAddress() string {
	if addrs := ExtractAddresses(m.sender); len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}

// AddRelated embeds data as an inline resource referenced from the HTML body
// as "cid:<id>". An empty contentType is detected from the data.
func (m *Message) AddRelated(data []byte, id, contentType string) *Part {
	if contentType == "" {
		contentType = DetectContentType(data)
	}
	p := NewPart(contentType)
	p.SetContent(data)
	p.SetContentDisposition("inline")
	p.SetContentID(id)
	m.related = append(m.related, p)
	return p
}

// AddRelatedFile embeds the file at path. id defaults to the file's base name.
func (m *Message) AddRelatedFile(path, id, contentType string) (*Part, error) {
	data, contentType, err := readFile(path, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to add related file: %w", err)
	}
	if id == "" {
		id = filepath.Base(path)
	}
	return m.AddRelated(data, id, contentType), nil
}

// AddAttachment attaches data under filename. An empty contentType is
// detected from the data.
func (m *Message) AddAttachment(data []byte, filename, contentType string) *Part {
	if contentType == "" {
		contentType = DetectContentType(data)
	}
	p := NewPart(contentType)
	p.SetContent(data)
	p.SetContentDisposition(fmt.Sprintf("attachment; filename=%q", EncodeWord(filename)))
	m.attachments = append(m.attachments, p)
	return p
}

// AddAttachmentFile attaches the file at path. filename defaults to the
// file's base name.
func (m *Message) AddAttachmentFile(path, filename, contentType string) (*Part, error) {
	data, contentType, err := readFile(path, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to add attachment: %w", err)
	}
	if filename == "" {
		filename = filepath.Base(path)
	}
	return m.AddAttachment(data, filename, contentType), nil
}

// Related returns the inline resources in insertion order.
func (m *Message) Related() []*Part { return append([]*Part(nil), m.related...) }

// Attachments returns the attachments in insertion order.
func (m *Message) Attachments() []*Part { return append([]*Part(nil), m.attachments...) }

// Body assembles the top-level entity: the primary content wrapped in
// multipart/related when resources are embedded, in multipart/alternative
// with a derived plain-text part when it is HTML, and in multipart/mixed
// when files are attached.
func (m *Message) Body() Entity {
	var body Entity = m.content

	if len(m.related) > 0 {
		related := newMultiPart("related", m.relatedBoundary)
		related.AddPart(body)
		for _, p := range m.related {
			related.AddPart(p)
		}
		body = related
	}

	if m.content.IsHTML() {
		text := NewPart("text/plain; charset=" + m.charset)
		text.SetContent([]byte(HTMLToText(m.Content())))
		alternative := newMultiPart("alternative", m.alternativeBoundary)
		alternative.AddPart(text)
		alternative.AddPart(body)
		body = alternative
	}

	if len(m.attachments) > 0 {
		mixed := newMultiPart("mixed", m.mixedBoundary)
		mixed.AddPart(body)
		for _, p := range m.attachments {
			mixed.AddPart(p)
		}
		body = mixed
	}

	return body
}

// WriteTo renders the EML document: the message header block directly
// followed by the top-level entity, whose own header lines continue it.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	_, _ = m.header.WriteTo(&buf)
	_, _ = m.Body().WriteTo(&buf)
	return buf.WriteTo(w)
}

// EML returns the rendered document.
func (m *Message) EML() []byte {
	var buf bytes.Buffer
	_, _ = m.WriteTo(&buf)
	return buf.Bytes()
}

// String returns the rendered document.
func (m *Message) String() string { return string(m.EML()) }

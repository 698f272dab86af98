package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"
)

// Header names used by parts. The capitalisation is part of the output format.
const (
	headerContentType        = "Content-type"
	headerContentDisposition = "Content-disposition"
	headerContentID          = "Content-ID"
	headerTransferEncoding   = "Content-Transfer-Encoding"
)

// base64LineLength is the column limit of encoded bodies.
const base64LineLength = 76

// Entity is anything that renders as a MIME entity: a single Part or a
// MultiPart container.
type Entity interface {
	Header() *Header
	WriteTo(w io.Writer) (int64, error)
}

// Part is a single content block, rendered base64-encoded.
type Part struct {
	header  *Header
	content []byte
}

// NewPart returns a part with the given content type and no content.
func NewPart(contentType string) *Part {
	p := &Part{header: NewHeader()}
	if contentType != "" {
		p.SetContentType(contentType)
	}
	return p
}

// Header returns the part's header table.
func (p *Part) Header() *Header { return p.header }

func (p *Part) SetContentType(ct string) { p.header.Set(headerContentType, ct) }
func (p *Part) ContentType() string      { return p.header.Get(headerContentType) }

func (p *Part) SetContentDisposition(d string) { p.header.Set(headerContentDisposition, d) }
func (p *Part) ContentDisposition() string     { return p.header.Get(headerContentDisposition) }

// SetContentID stores id wrapped in angle brackets.
func (p *Part) SetContentID(id string) { p.header.Set(headerContentID, "<"+id+">") }

// ContentID returns the id without angle brackets.
func (p *Part) ContentID() string {
	return strings.TrimSuffix(strings.TrimPrefix(p.header.Get(headerContentID), "<"), ">")
}

// FileName returns the decoded filename parameter of the content
// disposition, or "" when there is none.
func (p *Part) FileName() string {
	_, params, err := mime.ParseMediaType(p.ContentDisposition())
	if err != nil {
		return ""
	}
	name := params["filename"]
	if decoded, err := new(mime.WordDecoder).DecodeHeader(name); err == nil {
		return decoded
	}
	return name
}

// IsAttachmentOrRelation reports whether a content disposition is set.
func (p *Part) IsAttachmentOrRelation() bool {
	return p.header.Has(headerContentDisposition)
}

// IsHTML reports whether the content type mentions html.
func (p *Part) IsHTML() bool {
	return strings.Contains(strings.ToLower(p.ContentType()), "html")
}

// SetContent replaces the content buffer.
func (p *Part) SetContent(data []byte) {
	p.content = append([]byte(nil), data...)
}

// AddContent appends to the content buffer.
func (p *Part) AddContent(data []byte) {
	p.content = append(p.content, data...)
}

// Content returns the raw, unencoded content.
func (p *Part) Content() []byte { return p.content }

// IncludeFile appends the whole file at path to the content buffer.
func (p *Part) IncludeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	p.AddContent(data)
	return nil
}

// WriteTo renders the part: header block with a base64 transfer encoding,
// a blank line, the encoded body and a trailing CRLF. The part itself is not
// modified.
func (p *Part) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	h := p.header.Clone()
	h.Set(headerTransferEncoding, "base64")
	_, _ = h.WriteTo(&buf)
	buf.WriteString("\r\n")
	buf.WriteString(encodeBase64Lines(p.content))
	buf.WriteString("\r\n")
	return buf.WriteTo(w)
}

// Bytes returns the rendered part.
func (p *Part) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = p.WriteTo(&buf)
	return buf.Bytes()
}

// encodeBase64Lines base64-encodes data in lines of 76 characters joined by
// CRLF, without a trailing line break.
func encodeBase64Lines(data []byte) string {
	enc := base64.StdEncoding.EncodeToString(data)
	var sb strings.Builder
	sb.Grow(len(enc) + len(enc)/base64LineLength*2)
	for len(enc) > base64LineLength {
		sb.WriteString(enc[:base64LineLength])
		sb.WriteString("\r\n")
		enc = enc[base64LineLength:]
	}
	sb.WriteString(enc)
	return sb.String()
}

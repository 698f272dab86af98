package email

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// boundaryLength is the width of a boundary token after padding.
const boundaryLength = 46

// MultiPart is a container entity whose children are separated by a boundary
// token fixed when the container is created.
type MultiPart struct {
	header   *Header
	subtype  string
	boundary string
	parts    []Entity
}

// NewMultiPart returns an empty multipart/<subtype> container with a fresh
// boundary.
func NewMultiPart(subtype string) *MultiPart {
	return newMultiPart(subtype, NewBoundary())
}

func newMultiPart(subtype, boundary string) *MultiPart {
	mp := &MultiPart{
		header:   NewHeader(),
		subtype:  subtype,
		boundary: boundary,
	}
	mp.header.Set(headerContentType, fmt.Sprintf("multipart/%s; boundary=%q", subtype, boundary))
	return mp
}

// NewBoundary returns the hex SHA-1 of a random UUID, left-padded with '-'
// to 46 characters.
func NewBoundary() string {
	sum := sha1.Sum([]byte(uuid.NewString()))
	token := hex.EncodeToString(sum[:])
	return strings.Repeat("-", boundaryLength-len(token)) + token
}

func (mp *MultiPart) Header() *Header  { return mp.header }
func (mp *MultiPart) Subtype() string  { return mp.subtype }
func (mp *MultiPart) Boundary() string { return mp.boundary }
func (mp *MultiPart) Parts() []Entity  { return mp.parts }

// AddPart appends a child entity.
func (mp *MultiPart) AddPart(e Entity) {
	mp.parts = append(mp.parts, e)
}

// WriteTo renders the container header, a blank line, every child framed
// by the boundary and the closing delimiter.
func (mp *MultiPart) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	_, _ = mp.header.WriteTo(&buf)
	buf.WriteString("\r\n")
	for _, part := range mp.parts {
		buf.WriteString("--" + mp.boundary + "\r\n")
		_, _ = part.WriteTo(&buf)
		buf.WriteString("\r\n")
	}
	buf.WriteString("--" + mp.boundary + "--\r\n\r\n")
	return buf.WriteTo(w)
}

package email

import (
	"io"
	"mime"
	"strings"
)

// Header is an ordered table of header fields. Names are case-sensitive and
// keep the position of their first insertion; a name may carry several values.
type Header struct {
	names  []string
	values map[string][]string
}

// NewHeader returns an empty header table.
func NewHeader() *Header {
	return &Header{values: make(map[string][]string)}
}

// Set replaces every value of name with value. An existing name keeps its
// original position.
func (h *Header) Set(name, value string) {
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = []string{value}
}

// Add appends value to name without dropping earlier values.
func (h *Header) Add(name, value string) {
	if _, ok := h.values[name]; !ok {
		h.names = append(h.names, name)
	}
	h.values[name] = append(h.values[name], value)
}

// Get returns the first value of name, or "" when absent.
func (h *Header) Get(name string) string {
	if v := h.values[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Values returns every value of name in insertion order.
func (h *Header) Values(name string) []string {
	v := h.values[name]
	if len(v) == 0 {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// Has reports whether name is present.
func (h *Header) Has(name string) bool {
	_, ok := h.values[name]
	return ok
}

// Del removes name and all its values.
func (h *Header) Del(name string) {
	if _, ok := h.values[name]; !ok {
		return
	}
	delete(h.values, name)
	for i, n := range h.names {
		if n == name {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

// Names returns the header names in insertion order.
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	c := NewHeader()
	for _, name := range h.names {
		c.names = append(c.names, name)
		c.values[name] = append([]string(nil), h.values[name]...)
	}
	return c
}

// WriteTo renders one "Name: value\r\n" line per value.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for _, name := range h.names {
		for _, v := range h.values[name] {
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(v)
			sb.WriteString("\r\n")
		}
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// String renders the header block.
func (h *Header) String() string {
	var sb strings.Builder
	_, _ = h.WriteTo(&sb)
	return sb.String()
}

// EncodeWord encodes s as an RFC 2047 UTF-8 encoded-word when it contains
// non-ASCII characters. ASCII text is returned unchanged.
func EncodeWord(s string) string {
	return mime.BEncoding.Encode("UTF-8", s)
}

// formatAddress renders "Name <addr>" when a display name is given and the
// bare address otherwise.
func formatAddress(addr, name string) string {
	if name == "" {
		return addr
	}
	return name + " <" + addr + ">"
}

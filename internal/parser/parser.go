// Package parser reads rendered EML documents back into their components.
// It is used to summarise outgoing mail and to inspect documents in tests.
package parser

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Document is a parsed EML document.
type Document struct {
	Header      mail.Header
	From        string
	To          []string
	Cc          []string
	Bcc         []string
	ReplyTo     []string
	Subject     string
	MessageID   string
	Date        string
	TextBody    string
	HTMLBody    string
	Inline      []Resource
	Attachments []Resource
	// Structure lists the media types of every entity, depth first.
	Structure []string
}

// Resource is an inline resource or an attachment.
type Resource struct {
	Filename    string
	ContentType string
	ContentID   string
	Content     []byte
}

var wordDecoder = new(mime.WordDecoder)

// Parse parses a raw RFC 5322 document, walking nested multipart
// containers and decoding base64 and quoted-printable bodies.
func Parse(raw []byte) (*Document, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	doc := &Document{
		Header:    msg.Header,
		From:      decodeHeader(msg.Header.Get("From")),
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		MessageID: msg.Header.Get("Message-Id"),
		Date:      msg.Header.Get("Date"),
		To:        parseAddressList(msg.Header["To"]),
		Cc:        parseAddressList(msg.Header["Cc"]),
		Bcc:       parseAddressList(msg.Header["Bcc"]),
		ReplyTo:   parseAddressList(msg.Header["Reply-To"]),
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		mediaType = "text/plain"
	}
	doc.Structure = append(doc.Structure, mediaType)

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, fmt.Errorf("multipart message missing boundary")
		}
		if err := parseMultipart(msg.Body, boundary, doc); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return doc, nil
	}

	body, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	if mediaType == "text/html" {
		doc.HTMLBody = string(body)
	} else {
		doc.TextBody = string(body)
	}
	return doc, nil
}

func parseMultipart(body io.Reader, boundary string, doc *Document) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partContentType := part.Header.Get("Content-Type")
		if partContentType == "" {
			partContentType = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(partContentType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partContentType,
				"error", err,
			)
			continue
		}
		doc.Structure = append(doc.Structure, mediaType)

		if strings.HasPrefix(mediaType, "multipart/") {
			nested := params["boundary"]
			if nested == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nested, doc); err != nil {
				return err
			}
			continue
		}

		content, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return fmt.Errorf("failed to read %s part: %w", mediaType, err)
		}

		disposition := strings.ToLower(part.Header.Get("Content-Disposition"))
		switch {
		case strings.HasPrefix(disposition, "attachment"):
			doc.Attachments = append(doc.Attachments, Resource{
				Filename:    filename(part, params),
				ContentType: mediaType,
				Content:     content,
			})
		case strings.HasPrefix(disposition, "inline"):
			doc.Inline = append(doc.Inline, Resource{
				ContentType: mediaType,
				ContentID:   strings.Trim(part.Header.Get("Content-Id"), "<>"),
				Content:     content,
			})
		case mediaType == "text/plain" && doc.TextBody == "":
			doc.TextBody = string(content)
		case mediaType == "text/html" && doc.HTMLBody == "":
			doc.HTMLBody = string(content)
		default:
			slog.Warn("unrecognized MIME part, skipping",
				"content_type", mediaType,
				"disposition", disposition,
			)
		}
	}
}

// decodeBody reads r and undoes the given Content-Transfer-Encoding.
// multipart.Reader already decodes quoted-printable parts itself.
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		cleaned := strings.NewReplacer("\r", "", "\n", "").Replace(string(raw))
		decoded, err := base64.StdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content: %w", err)
		}
		return decoded, nil
	case "quoted-printable":
		return io.ReadAll(quotedprintable.NewReader(r))
	default:
		return io.ReadAll(r)
	}
}

func filename(part *multipart.Part, params map[string]string) string {
	var name string
	if _, dparams, err := mime.ParseMediaType(part.Header.Get("Content-Disposition")); err == nil {
		name = dparams["filename"]
	}
	if name == "" {
		name = params["name"]
	}
	if name == "" {
		return "attachment"
	}
	return decodeHeader(name)
}

func decodeHeader(v string) string {
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

// parseAddressList returns the plain addresses of every header value.
// Values net/mail cannot parse are kept verbatim.
func parseAddressList(values []string) []string {
	var result []string
	for _, raw := range values {
		addresses, err := mail.ParseAddressList(raw)
		if err != nil {
			result = append(result, strings.TrimSpace(raw))
			continue
		}
		for _, addr := range addresses {
			result = append(result, addr.Address)
		}
	}
	return result
}

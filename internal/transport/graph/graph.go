// Package graph implements a Transport that delivers messages via the
// Microsoft Graph sendMail endpoint.
package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// DefaultTimeout bounds each HTTP request, token requests included.
const DefaultTimeout = 30 * time.Second

// ErrNoMailbox is returned when neither the config nor the message names a
// mailbox to send from.
var ErrNoMailbox = errors.New("graph: no sending mailbox")

// Config holds the application registration used to call Graph.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Mailbox is the user whose mailbox sends the message. Empty means the
	// message sender address.
	Mailbox string
	Timeout time.Duration
}

// Transport posts rendered messages to Graph in MIME format.
type Transport struct {
	transport.LastErr
	mailbox string
	baseURL string
	client  *http.Client
}

// New creates a Transport authenticating against the tenant's token endpoint.
func New(cfg Config) *Transport {
	return newWithEndpoints(cfg, defaultBaseURL, tokenURL(cfg.TenantID), nil)
}

// newWithEndpoints lets tests point the transport at local servers.
func newWithEndpoints(cfg Config, baseURL, tokenEndpoint string, base *http.Client) *Transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if base == nil {
		base = &http.Client{}
	}
	base.Timeout = timeout

	return &Transport{
		mailbox: cfg.Mailbox,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  authorizedClient(cfg, tokenEndpoint, base),
	}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "msgraph" }

// Send posts msg to the sendMail endpoint. Graph derives the recipients from
// the To, Cc and Bcc headers of the document.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	return t.Record(t.send(ctx, msg))
}

func (t *Transport) send(ctx context.Context, msg *email.Message) error {
	mailbox := t.mailbox
	if mailbox == "" {
		mailbox = msg.SenderAddress()
	}
	if mailbox == "" {
		return ErrNoMailbox
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", t.baseURL, url.PathEscape(mailbox))
	body := base64.StdEncoding.EncodeToString(msg.EML())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("graph: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}
	return readSendError(resp)
}

func readSendError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	se := &SendError{
		StatusCode: resp.StatusCode,
		RetryAfter: resp.Header.Get("Retry-After"),
		Message:    strings.TrimSpace(string(raw)),
	}
	var envelope errorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		se.Code = envelope.Error.Code
		se.Message = envelope.Error.Message
	}
	return se
}

// Package smtp delivers messages to an SMTP server over a plain or direct-TLS
// socket, one connection per message.
package smtp

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

const (
	DefaultPort    = 25
	DefaultTimeout = 10 * time.Second
)

// Config describes the server and credentials of a Transport.
type Config struct {
	Host     string
	Port     int
	Login    string
	Password string

	// SSL wraps the socket in TLS before the greeting.
	SSL bool

	// Auth forces AUTH LOGIN on or off. Unset means "when Login is set".
	Auth *bool

	// Timeout bounds every read and write. ConnectTimeout bounds the dial
	// and defaults to Timeout.
	Timeout        time.Duration
	ConnectTimeout time.Duration

	// HelloHost is sent with EHLO/HELO. Defaults to the local address literal.
	HelloHost string

	// TLS is used when SSL is set. A nil value verifies the certificate
	// against Host.
	TLS *tls.Config
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = c.Timeout
	}
	if c.Auth == nil {
		auth := c.Login != ""
		c.Auth = &auth
	}
	return c
}

// Transport speaks SMTP to a single server.
type Transport struct {
	transport.LastErr
	config Config
}

// New returns a Transport for cfg with defaults applied.
func New(cfg Config) *Transport {
	return &Transport{config: cfg.withDefaults()}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "smtp" }

// Config returns the effective configuration.
func (t *Transport) Config() Config { return t.config }

// Send delivers msg in a single session: greeting, EHLO/HELO, optional
// AUTH LOGIN, MAIL FROM, one RCPT TO per recipient, DATA, QUIT. The first
// unexpected reply aborts the session. The connection is always closed.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	return t.Record(t.send(ctx, msg))
}

func (t *Transport) send(ctx context.Context, msg *email.Message) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return &Error{Code: CodeConnect, Stage: "connect", Err: err}
	}
	s := newSession(ctx, conn, t.config.Timeout)
	defer s.close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := s.greeting(); err != nil {
		return err
	}

	hello := t.config.HelloHost
	if hello == "" {
		hello = s.localLiteral()
	}
	verb := "HELO"
	if *t.config.Auth {
		verb = "EHLO"
	}
	if err := s.run(step{stage: "hello", line: verb + " " + hello, expect: 250}); err != nil {
		return err
	}

	if *t.config.Auth {
		s.setState(stateAuthenticating)
		for _, st := range loginSteps(t.config.Login, t.config.Password) {
			if err := s.run(st); err != nil {
				return err
			}
		}
	}

	if err := s.run(step{stage: "sender", line: "MAIL FROM:<" + msg.SenderAddress() + ">", expect: 250}); err != nil {
		return err
	}
	s.setState(stateSenderDeclared)

	for _, rcpt := range msg.RecipientAddresses() {
		if err := s.run(step{stage: "recipient", line: "RCPT TO:<" + rcpt + ">", expect: 250}); err != nil {
			return err
		}
	}
	s.setState(stateRecipientsDeclared)

	if err := s.run(step{stage: "data", line: "DATA", expect: 354}); err != nil {
		return err
	}
	s.setState(stateDataStarted)

	body := dotStuff(msg.String()) + "\r\n."
	if err := s.run(step{stage: "body", line: body, expect: 250, logged: "<message " + msg.ID() + ">"}); err != nil {
		return err
	}
	s.setState(stateDataSent)

	if err := s.run(step{stage: "quit", line: "QUIT", expect: 221}); err != nil {
		return err
	}
	s.setState(stateQuit)
	return nil
}

func (t *Transport) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	dialer := &net.Dialer{Timeout: t.config.ConnectTimeout}

	if !t.config.SSL {
		return dialer.DialContext(ctx, "tcp", addr)
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if t.config.TLS != nil {
		tlsConfig = t.config.TLS.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = t.config.Host
	}
	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: tlsConfig}
	return tlsDialer.DialContext(ctx, "tcp", addr)
}

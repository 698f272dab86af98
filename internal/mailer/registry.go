package mailer

import (
	"context"
	"fmt"
	"sort"

	"github.com/shineum/mailer-lite/internal/config"
	smtptls "github.com/shineum/mailer-lite/internal/tls"
	"github.com/shineum/mailer-lite/internal/transport"
	"github.com/shineum/mailer-lite/internal/transport/file"
	"github.com/shineum/mailer-lite/internal/transport/graph"
	"github.com/shineum/mailer-lite/internal/transport/resend"
	"github.com/shineum/mailer-lite/internal/transport/s3"
	"github.com/shineum/mailer-lite/internal/transport/sendmail"
	"github.com/shineum/mailer-lite/internal/transport/ses"
	"github.com/shineum/mailer-lite/internal/transport/smtp"
	"github.com/shineum/mailer-lite/internal/transport/stdout"
)

// Factory builds a transport from its configuration entry.
type Factory func(ctx context.Context, tc config.TransportConfig) (transport.Transport, error)

// Registry maps transport types to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in transport type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(config.TypeSMTP, newSMTP)
	r.Register(config.TypeFile, func(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
		return file.New(file.Config{Dir: tc.File.Dir}), nil
	})
	r.Register(config.TypeStdout, func(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
		return stdout.New(stdout.Config{EML: tc.Stdout.EML}), nil
	})
	r.Register(config.TypeSendmail, func(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
		return sendmail.New(sendmail.Config{Path: tc.Sendmail.Path, Args: tc.Sendmail.Args}), nil
	})
	r.Register(config.TypeSES, func(ctx context.Context, tc config.TransportConfig) (transport.Transport, error) {
		c := tc.SES
		return ses.New(ctx, ses.Config{
			Region:           c.Region,
			AccessKeyID:      c.AccessKeyID,
			SecretAccessKey:  c.SecretAccessKey,
			SessionToken:     c.SessionToken,
			Endpoint:         c.Endpoint,
			ConfigurationSet: c.ConfigurationSet,
			MaxAttempts:      c.MaxAttempts,
		})
	})
	r.Register(config.TypeGraph, func(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
		c := tc.Graph
		return graph.New(graph.Config{
			TenantID:     c.TenantID,
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Mailbox:      c.Sender,
			Timeout:      c.Timeout.Duration(),
		}), nil
	})
	r.Register(config.TypeS3, func(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
		c := tc.S3
		return s3.New(s3.Config{
			Bucket:    c.Bucket,
			Prefix:    c.Prefix,
			Region:    c.Region,
			Endpoint:  c.Endpoint,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			PathStyle: c.PathStyle,
		})
	})
	r.Register(config.TypeResend, func(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
		return resend.New(resend.Config{APIKey: tc.Resend.APIKey})
	})
	return r
}

// Register installs f for typ, replacing any previous factory.
func (r *Registry) Register(typ string, f Factory) {
	r.factories[typ] = f
}

// Types returns the registered types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// Build creates the transport described by tc.
func (r *Registry) Build(ctx context.Context, tc config.TransportConfig) (transport.Transport, error) {
	f, ok := r.factories[tc.Type]
	if !ok {
		return nil, fmt.Errorf("unknown transport type %q", tc.Type)
	}
	t, err := f(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s transport: %w", tc.Type, err)
	}
	return t, nil
}

func newSMTP(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
	c := tc.SMTP
	cfg := smtp.Config{
		Host:           c.Host,
		Port:           c.Port,
		Login:          c.Login,
		Password:       c.Password,
		SSL:            bool(c.SSL),
		Auth:           c.Auth,
		Timeout:        c.Timeout.Duration(),
		ConnectTimeout: c.ConnectTimeout.Duration(),
		HelloHost:      c.HelloHost,
	}
	if bool(c.SSL) && (c.CAFile != "" || c.InsecureSkipVerify) {
		tlsConfig, err := smtptls.ClientConfig(smtptls.ClientOptions{
			ServerName:         c.Host,
			CAFile:             c.CAFile,
			InsecureSkipVerify: c.InsecureSkipVerify,
		})
		if err != nil {
			return nil, err
		}
		cfg.TLS = tlsConfig
	}
	return smtp.New(cfg), nil
}

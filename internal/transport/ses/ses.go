// Package ses implements a Transport that delivers messages via AWS SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

// Sentinel errors returned by Send.
var (
	ErrNoSender     = errors.New("ses: message has no sender")
	ErrNoRecipients = errors.New("ses: message has no recipients")
	ErrRejected     = errors.New("ses: message rejected")
	ErrThrottled    = errors.New("ses: request throttled")
	ErrSendFailed   = errors.New("ses: send failed")
)

// Config holds the settings for an SES transport. Empty credentials fall back
// to the default AWS credential chain.
type Config struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	Endpoint         string
	ConfigurationSet string
	// MaxAttempts bounds SDK retries. Zero means a single attempt.
	MaxAttempts int
}

// SendEmailAPI is the subset of the SES v2 client used by the transport.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Transport sends rendered messages through the SES raw message API.
type Transport struct {
	transport.LastErr
	client           SendEmailAPI
	configurationSet string
}

// New creates a Transport backed by a real SES client.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMaxAttempts(attempts),
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithClient(client, cfg.ConfigurationSet), nil
}

// NewWithClient creates a Transport around client.
func NewWithClient(client SendEmailAPI, configurationSet string) *Transport {
	return &Transport{client: client, configurationSet: configurationSet}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "ses" }

// Send delivers msg as a raw EML document. Every To, Cc and Bcc address is
// passed as an explicit destination so hidden copies are delivered.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	return t.Record(t.send(ctx, msg))
}

func (t *Transport) send(ctx context.Context, msg *email.Message) error {
	input, err := t.buildInput(msg)
	if err != nil {
		return err
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return wrapSESError(err)
	}
	if out != nil && out.MessageId != nil {
		slog.DebugContext(ctx, "ses accepted message", "ses_message_id", *out.MessageId)
	}
	return nil
}

func (t *Transport) buildInput(msg *email.Message) (*sesv2.SendEmailInput, error) {
	from := msg.SenderAddress()
	if from == "" {
		return nil, ErrNoSender
	}
	recipients := msg.RecipientAddresses()
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: recipients},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: msg.EML()},
		},
	}
	if t.configurationSet != "" {
		input.ConfigurationSetName = aws.String(t.configurationSet)
	}
	return input, nil
}

// wrapSESError maps SES API error codes onto the package sentinels.
func wrapSESError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "MessageRejected", "MailFromDomainNotVerifiedException", "AccountSuspendedException", "SendingPausedException":
			return fmt.Errorf("%w: %v", ErrRejected, err)
		case "TooManyRequestsException", "LimitExceededException", "Throttling":
			return fmt.Errorf("%w: %v", ErrThrottled, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrSendFailed, err)
}

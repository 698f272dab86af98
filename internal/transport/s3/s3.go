// Package s3 implements a Transport that archives rendered messages in an
// S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

// ContentType is stored on every uploaded object.
const ContentType = "message/rfc822"

// Sentinel errors returned by Send.
var (
	ErrInvalidConfig = errors.New("s3: invalid configuration")
	ErrAccessDenied  = errors.New("s3: access denied")
	ErrNoSuchBucket  = errors.New("s3: bucket not found")
	ErrUploadFailed  = errors.New("s3: upload failed")
)

// Config holds the bucket and credentials for the archive.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

func (c Config) validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}
	if c.Region == "" {
		return fmt.Errorf("%w: region is required", ErrInvalidConfig)
	}
	return nil
}

// PutObjectAPI is the subset of the S3 client used by the transport.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Transport uploads each message as one object.
type Transport struct {
	transport.LastErr
	client  PutObjectAPI
	bucket  string
	prefix  string
	now     func() time.Time
	lastKey string
}

// New creates a Transport with a static-credentials S3 client.
func New(cfg Config) (*Transport, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.Region = cfg.Region
			if cfg.AccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
			}
		},
	}
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
		})
	}

	return NewWithClient(s3.New(s3.Options{}, opts...), cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient creates a Transport around client.
func NewWithClient(client PutObjectAPI, bucket, prefix string) *Transport {
	return &Transport{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "s3" }

// LastKey returns the object key written by the last successful Send.
func (t *Transport) LastKey() string { return t.lastKey }

// Send uploads msg under <prefix>/YYYY/MM/DD/<message id>.eml.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	return t.Record(t.send(ctx, msg))
}

func (t *Transport) send(ctx context.Context, msg *email.Message) error {
	key := t.objectKey(msg)
	data := msg.EML()

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
	})
	if err != nil {
		return wrapS3Error(err)
	}
	t.lastKey = key
	return nil
}

func (t *Transport) objectKey(msg *email.Message) string {
	id := strings.Trim(msg.ID(), "<>")
	id = strings.NewReplacer("/", "_", "\\", "_").Replace(id)
	return path.Join(t.prefix, t.now().UTC().Format("2006/01/02"), id+".eml")
}

// wrapS3Error maps S3 API error codes onto the package sentinels.
func wrapS3Error(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %v", ErrNoSuchBucket, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUploadFailed, err)
}

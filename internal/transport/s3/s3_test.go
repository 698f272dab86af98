package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailer-lite/internal/email"
)

type mockPutObject struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (m *mockPutObject) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.input = params
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.body = data
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

type mockAPIError struct {
	code string
}

func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return "mock" }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }
func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: mock", e.code) }

func fixedClock() time.Time {
	return time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
}

func TestSendUploadsEML(t *testing.T) {
	t.Parallel()

	mock := &mockPutObject{}
	tr := NewWithClient(mock, "mail-archive", "/outbound/")
	tr.now = fixedClock

	msg := email.NewTextMessage(email.WithHostname("host.test"))
	msg.AddRecipient("a@example.org", "")
	msg.SetContent("hello")

	require.NoError(t, tr.Send(context.Background(), msg))

	wantKey := "outbound/2024/03/02/" + msg.ID()[1:len(msg.ID())-1] + ".eml"
	assert.Equal(t, wantKey, aws.ToString(mock.input.Key))
	assert.Equal(t, wantKey, tr.LastKey())
	assert.Equal(t, "mail-archive", aws.ToString(mock.input.Bucket))
	assert.Equal(t, ContentType, aws.ToString(mock.input.ContentType))
	assert.Equal(t, int64(len(mock.body)), aws.ToInt64(mock.input.ContentLength))
	assert.Equal(t, msg.String(), string(mock.body))
	assert.Equal(t, "s3", tr.Name())
}

func TestSendWithoutPrefix(t *testing.T) {
	t.Parallel()

	mock := &mockPutObject{}
	tr := NewWithClient(mock, "bucket", "")
	tr.now = fixedClock

	msg := email.NewTextMessage(email.WithHostname("host.test"))
	require.NoError(t, tr.Send(context.Background(), msg))
	assert.Regexp(t, `^2024/03/02/[^/]+\.eml$`, aws.ToString(mock.input.Key))
}

func TestSendErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"access denied", &mockAPIError{code: "AccessDenied"}, ErrAccessDenied},
		{"missing bucket", &mockAPIError{code: "NoSuchBucket"}, ErrNoSuchBucket},
		{"other", errors.New("connection reset"), ErrUploadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := NewWithClient(&mockPutObject{err: tt.err}, "bucket", "")
			err := tr.Send(context.Background(), email.NewTextMessage())
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, err, tr.LastError())
			assert.Empty(t, tr.LastKey())
		})
	}
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Region: "us-east-1"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{Bucket: "b"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	tr, err := New(Config{Bucket: "b", Region: "us-east-1", Endpoint: "http://localhost:9000", PathStyle: true})
	require.NoError(t, err)
	assert.Equal(t, "b", tr.bucket)
}

package mailer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailer-lite/internal/config"
	"github.com/shineum/mailer-lite/internal/delivery"
	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/logger"
	"github.com/shineum/mailer-lite/internal/mailer"
	"github.com/shineum/mailer-lite/internal/parser"
	"github.com/shineum/mailer-lite/internal/transport"
	"github.com/shineum/mailer-lite/internal/transport/file"
)

type stubTransport struct {
	transport.LastErr
	name string
	err  error
	sent []*email.Message
}

func (s *stubTransport) Name() string { return s.name }

func (s *stubTransport) Send(_ context.Context, msg *email.Message) error {
	s.sent = append(s.sent, msg)
	return s.Record(s.err)
}

func TestSendThroughConfiguredFileTransport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := &config.Config{
		DefaultFrom:     "robot@example.org",
		DefaultFromName: "Robot",
		Transports: []config.TransportConfig{
			{Type: config.TypeFile, File: &config.FileTransport{Dir: dir}},
		},
	}

	m, err := mailer.New(context.Background(), cfg, mailer.WithLogger(logger.NewNope()))
	require.NoError(t, err)
	require.Len(t, m.Transports(), 1)

	msg := m.NewTextMessage()
	msg.AddRecipient("john@example.org", "")
	msg.SetSubject("Hi")
	msg.SetContent("hello")
	require.NoError(t, m.Send(context.Background(), msg))
	assert.Empty(t, m.LastErrors())

	ft, ok := m.Transports()[0].(*file.Transport)
	require.True(t, ok)
	data, err := os.ReadFile(ft.LastPath())
	require.NoError(t, err)

	doc, err := parser.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Robot <robot@example.org>", doc.From)
	assert.Equal(t, "hello", doc.TextBody)
}

func TestSendLogsFailures(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, slog.LevelInfo, delivery.MessageIDAttr)

	m, err := mailer.New(context.Background(), nil, mailer.WithLogger(log))
	require.NoError(t, err)

	boom := errors.New("relay down")
	bad := &stubTransport{name: "smtp", err: boom}
	good := &stubTransport{name: "file"}
	m.AddTransport(bad, nil).AddTransport(good, nil)

	msg := m.NewHTMLMessage()
	msg.SetSender("robot@example.org", "")
	msg.AddRecipient("john@example.org", "")

	err = m.Send(context.Background(), msg)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"smtp: relay down"}, m.LastErrors())
	assert.Len(t, good.sent, 1)

	records := decodeRecords(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "message not delivered", records[0]["msg"])
	assert.Equal(t, "smtp", records[0]["transport"])
	assert.Equal(t, "relay down", records[0]["error"])
	assert.Equal(t, msg.ID(), records[0]["message_id"])
	assert.Equal(t, "message sent with errors", records[1]["msg"])
	assert.Equal(t, "smtp: relay down", records[1]["errors"])
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		out = append(out, rec)
	}
	return out
}

func TestSendLogsSuccess(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	m, err := mailer.New(context.Background(), nil, mailer.WithLogger(logger.New(&buf, slog.LevelInfo)))
	require.NoError(t, err)
	m.AddTransport(&stubTransport{name: "file"}, nil)

	msg := m.NewTextMessage()
	msg.SetSender("robot@example.org", "")
	msg.AddRecipient("john@example.org", "")
	require.NoError(t, m.Send(context.Background(), msg))

	assert.Contains(t, buf.String(), `"msg":"message sent"`)
	assert.Contains(t, buf.String(), `"from":"robot@example.org"`)
}

func TestOnlyDomainsFilter(t *testing.T) {
	t.Parallel()

	reg := mailer.NewRegistry()
	var built []*stubTransport
	reg.Register("stub", func(_ context.Context, tc config.TransportConfig) (transport.Transport, error) {
		s := &stubTransport{name: "stub"}
		built = append(built, s)
		return s, nil
	})

	cfg := &config.Config{Transports: []config.TransportConfig{
		{Type: "stub", OnlyDomains: []string{"Corp.Example.org"}},
		{Type: "stub"},
	}}
	m, err := mailer.New(context.Background(), cfg, mailer.WithRegistry(reg), mailer.WithLogger(logger.NewNope()))
	require.NoError(t, err)
	require.Len(t, built, 2)

	external := m.NewTextMessage()
	external.AddRecipient("someone@gmail.example", "")
	require.NoError(t, m.Send(context.Background(), external))

	internal := m.NewTextMessage()
	internal.AddRecipient("someone@gmail.example", "")
	internal.AddCopyTo("boss@corp.example.org", "")
	require.NoError(t, m.Send(context.Background(), internal))

	assert.Len(t, built[0].sent, 1, "filtered transport sees only the internal message")
	assert.Len(t, built[1].sent, 2)
}

func TestDomainFilter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, mailer.DomainFilter(nil))

	f := mailer.DomainFilter([]string{"@example.org"})
	msg := email.NewMessage()
	assert.False(t, f(msg))
	msg.AddHiddenCopy("x@EXAMPLE.org", "")
	assert.True(t, f(msg))
}

func TestAttachmentLimit(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MaxAttachmentSize: 8}
	m, err := mailer.New(context.Background(), cfg, mailer.WithLogger(logger.NewNope()))
	require.NoError(t, err)
	stub := &stubTransport{name: "stub"}
	m.AddTransport(stub, nil)

	msg := m.NewTextMessage()
	msg.AddRecipient("john@example.org", "")
	msg.AddAttachment([]byte("12345678"), "ok.txt", "text/plain")
	require.NoError(t, m.Send(context.Background(), msg))

	msg.AddAttachment([]byte("123456789"), "big.txt", "text/plain")
	err = m.Send(context.Background(), msg)
	require.ErrorIs(t, err, mailer.ErrAttachmentTooLarge)
	assert.Contains(t, err.Error(), "big.txt is 9B, limit is 8B")
	assert.Len(t, stub.sent, 1)
}

func TestOversizedMessageClearsPreviousErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{MaxAttachmentSize: 8}
	m, err := mailer.New(context.Background(), cfg, mailer.WithLogger(logger.NewNope()))
	require.NoError(t, err)
	stub := &stubTransport{name: "stub", err: errors.New("boom")}
	m.AddTransport(stub, nil)

	first := m.NewTextMessage()
	first.AddRecipient("john@example.org", "")
	require.Error(t, m.Send(context.Background(), first))
	require.Equal(t, []string{"stub: boom"}, m.LastErrors())

	second := m.NewTextMessage()
	second.AddRecipient("john@example.org", "")
	second.AddAttachment([]byte("123456789"), "big.txt", "text/plain")
	err = m.Send(context.Background(), second)
	require.ErrorIs(t, err, mailer.ErrAttachmentTooLarge)
	assert.Empty(t, m.LastErrors())
	assert.Len(t, stub.sent, 1)
}

func TestUnknownTransportType(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Transports: []config.TransportConfig{{Type: "pigeon"}}}
	_, err := mailer.New(context.Background(), cfg, mailer.WithRegistry(mailer.NewRegistry()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown transport type "pigeon"`)
}

func TestFactoryError(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Transports: []config.TransportConfig{
		{Type: config.TypeS3, S3: &config.S3Transport{}},
	}}
	_, err := mailer.New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create s3 transport")
}

func TestDefaultRegistryTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"file", "graph", "resend", "s3", "sendmail", "ses", "smtp", "stdout"},
		mailer.DefaultRegistry().Types())
}

func TestDefaultRegistryBuildsSMTP(t *testing.T) {
	t.Parallel()

	tr, err := mailer.DefaultRegistry().Build(context.Background(), config.TransportConfig{
		Type: config.TypeSMTP,
		SMTP: &config.SMTPTransport{Host: "smtp.example.org", SSL: true, InsecureSkipVerify: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp", tr.Name())
}

func TestVersion(t *testing.T) {
	t.Parallel()

	m, err := mailer.New(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, mailer.Version, m.Version())
}

func TestMessageOptions(t *testing.T) {
	t.Parallel()

	m, err := mailer.New(context.Background(), nil, mailer.WithMessageOptions(email.WithHostname("mail.test")))
	require.NoError(t, err)
	assert.Contains(t, m.NewHTMLMessage().ID(), "@mail.test>")
	assert.True(t, m.NewHTMLMessage().IsHTML())
	assert.False(t, m.NewTextMessage().IsHTML())
}

package sendmail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailer-lite/internal/email"
)

func testMessage() *email.Message {
	msg := email.NewTextMessage()
	msg.SetSender("robot@example.org", "")
	msg.AddRecipient("a@example.org", "A")
	msg.AddHiddenCopy("b@example.org", "")
	msg.SetSubject("Status")
	msg.SetContent("all green")
	return msg
}

func TestSplit(t *testing.T) {
	t.Parallel()

	msg := testMessage()
	sub := Split(msg)

	assert.Equal(t, "robot@example.org", sub.From)
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, sub.Recipients)
	assert.Equal(t, "A <a@example.org>", sub.To)
	assert.Equal(t, "Status", sub.Subject)
	assert.NotContains(t, sub.Headers, "To: ")
	assert.NotContains(t, sub.Headers, "Subject: ")
	assert.Contains(t, sub.Headers, "Bcc: b@example.org")
	assert.Contains(t, sub.Headers, "Content-Transfer-Encoding: base64")
	assert.Equal(t, "YWxsIGdyZWVu\r\n", string(sub.Body))
}

func TestSendUsesSubmitter(t *testing.T) {
	t.Parallel()

	var got Submission
	tr := NewWithSubmitter(func(_ context.Context, sub Submission) error {
		got = sub
		return nil
	})

	require.NoError(t, tr.Send(context.Background(), testMessage()))
	assert.Equal(t, "Status", got.Subject)
	assert.Equal(t, "sendmail", tr.Name())
}

func TestSendReportsSubmitterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("queue full")
	tr := NewWithSubmitter(func(context.Context, Submission) error { return boom })

	err := tr.Send(context.Background(), testMessage())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, err, tr.LastError())
}

func TestSendWithoutRecipients(t *testing.T) {
	t.Parallel()

	called := false
	tr := NewWithSubmitter(func(context.Context, Submission) error {
		called = true
		return nil
	})

	err := tr.Send(context.Background(), email.NewTextMessage())
	require.ErrorIs(t, err, errNoRecipients)
	assert.False(t, called)
}

func TestCommandPipesDocument(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	script := filepath.Join(dir, "fake-sendmail")
	body := "#!/bin/sh\necho \"$@\" > " + out + ".args\ncat > " + out + "\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	tr := New(Config{Path: script})
	msg := testMessage()
	require.NoError(t, tr.Send(context.Background(), msg))

	args, err := os.ReadFile(out + ".args")
	require.NoError(t, err)
	assert.Equal(t, "-i -f robot@example.org -- a@example.org b@example.org", strings.TrimSpace(string(args)))

	doc, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc), "To: A <a@example.org>\r\nSubject: Status\r\n"), string(doc))
	assert.Contains(t, string(doc), "\r\n\r\nYWxsIGdyZWVu\r\n")
}

func TestCommandFailure(t *testing.T) {
	t.Parallel()

	tr := New(Config{Path: filepath.Join(t.TempDir(), "missing-sendmail")})
	err := tr.Send(context.Background(), testMessage())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "sendmail: "), err.Error())
}

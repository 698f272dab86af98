package stdout

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shineum/mailer-lite/internal/email"
)

func newMessage() *email.Message {
	msg := email.NewTextMessage()
	msg.SetSender("sender@example.com", "")
	msg.AddRecipient("alice@example.com", "Alice")
	msg.AddRecipient("bob@example.com", "")
	msg.SetSubject("Monthly Report")
	msg.SetContent("Please find the report attached.")
	return msg
}

func TestSendBasicMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf, Config{})

	if err := tr.Send(context.Background(), newMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"From: sender@example.com\n",
		"To: alice@example.com, bob@example.com\n",
		"Subject: Monthly Report\n",
		"Please find the report attached.\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	for _, unwanted := range []string{"Cc:", "Attachments:", "Inline:"} {
		if strings.Contains(output, unwanted) {
			t.Errorf("output should not contain %q", unwanted)
		}
	}
	if !strings.HasPrefix(output, separator) || !strings.HasSuffix(output, separator) {
		t.Error("output should be framed by separator lines")
	}
}

func TestSendWithCopiesAndAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf, Config{})

	msg := email.NewMessage()
	msg.SetSender("sender@example.com", "Sender")
	msg.AddRecipient("alice@example.com", "")
	msg.AddCopyTo("carol@example.com", "")
	msg.AddReplyTo("desk@example.com", "")
	msg.SetSubject("Logo")
	msg.SetContent(`<p>See <img src="cid:logo"></p>`)
	msg.AddRelated(bytes.Repeat([]byte{0}, 2048), "logo", "image/png")
	msg.AddAttachment([]byte("col1,col2\n"), "data.csv", "text/csv")

	if err := tr.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	tests := []string{
		"From: Sender <sender@example.com>\n",
		"Cc: carol@example.com\n",
		"Reply-To: desk@example.com\n",
		"Body:\nSee\n",
		"Inline: cid:logo (2KiB)\n",
		"Attachments: data.csv (10B)\n",
	}
	for _, want := range tests {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestSendEML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf, Config{EML: true})
	msg := newMessage()

	if err := tr.Send(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := buf.String(), msg.String(); got != want {
		t.Errorf("EML output: got %q, want %q", got, want)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestSendWriteError(t *testing.T) {
	t.Parallel()

	tr := NewWithWriter(failingWriter{}, Config{})
	err := tr.Send(context.Background(), newMessage())
	if err == nil {
		t.Fatal("expected an error")
	}
	if tr.LastError() != err {
		t.Errorf("LastError: got %v, want %v", tr.LastError(), err)
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := New(Config{}).Name(); got != "stdout" {
		t.Errorf("Name: got %q, want %q", got, "stdout")
	}
}

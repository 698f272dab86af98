// Package sendmail hands messages to the local mail system.
package sendmail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

// DefaultPath is the conventional location of the sendmail binary.
const DefaultPath = "/usr/sbin/sendmail"

var errNoRecipients = errors.New("message has no recipients")

// Submission is a message split the way local mail systems take it. To and
// Subject hold the encoded header values lifted out of Headers; Recipients is
// the envelope list including hidden copies.
type Submission struct {
	From       string
	Recipients []string
	To         string
	Subject    string
	Headers    string
	Body       []byte
}

// Document reassembles the full message from the submission.
func (s Submission) Document() []byte {
	var buf bytes.Buffer
	if s.To != "" {
		buf.WriteString("To: " + s.To + "\r\n")
	}
	if s.Subject != "" {
		buf.WriteString("Subject: " + s.Subject + "\r\n")
	}
	buf.WriteString(s.Headers)
	buf.WriteString("\r\n\r\n")
	buf.Write(s.Body)
	return buf.Bytes()
}

// SubmitFunc delivers a submission.
type SubmitFunc func(ctx context.Context, sub Submission) error

// Config configures the default submitter.
type Config struct {
	Path string
	Args []string
}

// Transport delegates delivery to a SubmitFunc.
type Transport struct {
	transport.LastErr
	submit SubmitFunc
}

// New returns a Transport that pipes messages into the sendmail binary.
func New(cfg Config) *Transport {
	return NewWithSubmitter(Command(cfg))
}

// NewWithSubmitter returns a Transport using submit.
func NewWithSubmitter(submit SubmitFunc) *Transport {
	return &Transport{submit: submit}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "sendmail" }

// Send splits the message and submits it.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	return t.Record(t.send(ctx, msg))
}

func (t *Transport) send(ctx context.Context, msg *email.Message) error {
	sub := Split(msg)
	if len(sub.Recipients) == 0 {
		return errNoRecipients
	}
	if err := t.submit(ctx, sub); err != nil {
		return fmt.Errorf("sendmail: %w", err)
	}
	return nil
}

// Split renders msg and cuts the document at the first blank line. The To
// and Subject headers are lifted out of the header block.
func Split(msg *email.Message) Submission {
	doc := string(msg.EML())
	head, body, _ := strings.Cut(doc, "\r\n\r\n")

	var kept []string
	for _, line := range strings.Split(head, "\r\n") {
		if strings.HasPrefix(line, email.HeaderTo+": ") || strings.HasPrefix(line, email.HeaderSubject+": ") {
			continue
		}
		kept = append(kept, line)
	}

	return Submission{
		From:       msg.SenderAddress(),
		Recipients: msg.RecipientAddresses(),
		To:         strings.Join(msg.Header().Values(email.HeaderTo), ", "),
		Subject:    msg.Header().Get(email.HeaderSubject),
		Headers:    strings.Join(kept, "\r\n"),
		Body:       []byte(body),
	}
}

// Command returns a SubmitFunc that runs the sendmail binary with the
// envelope sender and recipients on the command line and the document on
// standard input.
func Command(cfg Config) SubmitFunc {
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	args := cfg.Args
	if args == nil {
		args = []string{"-i"}
	}

	return func(ctx context.Context, sub Submission) error {
		argv := append([]string(nil), args...)
		if sub.From != "" {
			argv = append(argv, "-f", sub.From)
		}
		argv = append(argv, "--")
		argv = append(argv, sub.Recipients...)

		cmd := exec.CommandContext(ctx, path, argv...)
		cmd.Stdin = bytes.NewReader(sub.Document())
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%w: %s", err, msg)
			}
			return err
		}
		return nil
	}
}

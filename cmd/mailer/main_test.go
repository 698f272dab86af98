package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailer-lite/internal/config"
	"github.com/shineum/mailer-lite/internal/mailer"
	"github.com/shineum/mailer-lite/internal/parser"
	"github.com/shineum/mailer-lite/internal/smtptest"
)

// isolate moves the test into an empty directory and clears the SMTP_*
// variables so no configuration leaks in from the environment.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{"SMTP_HOST", "MAILER_DEFAULT_FROM", "LOG_LEVEL", "SENTRY_DSN"} {
		t.Setenv(key, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestSendThroughSMTP(t *testing.T) {
	dir := isolate(t)

	srv, err := smtptest.Start(smtptest.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	cfg := writeFile(t, filepath.Join(dir, "relay.yaml"), fmt.Sprintf(`
default_from: robot@example.org
transports:
  - type: smtp
    host: %s
    port: %d
`, srv.Host(), srv.Port()))
	attachment := writeFile(t, filepath.Join(dir, "report.csv"), "a,b\n1,2\n")

	code, stdout, stderr := runCLI(t, "",
		"-c", cfg,
		"-s", "Report",
		"-t", "Numbers attached.",
		"-r", "john@example.org, jane@example.org",
		"--attach", attachment,
	)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "was sent successfully")

	txs := srv.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "robot@example.org", txs[0].From)
	assert.Equal(t, []string{"john@example.org", "jane@example.org"}, txs[0].To)

	doc, err := parser.Parse(txs[0].Data)
	require.NoError(t, err)
	assert.Equal(t, "Report", doc.Subject)
	assert.Equal(t, "Numbers attached.", strings.TrimSpace(doc.TextBody))
	require.Len(t, doc.Attachments, 1)
	assert.Equal(t, "report.csv", doc.Attachments[0].Filename)
	assert.Contains(t, stdout, doc.MessageID)
}

func TestSendToFileReadsStdin(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "mails")
	writeFile(t, filepath.Join(dir, config.FileName), "transports:\n  - type: file\n    dir: "+out+"\n")

	code, _, stderr := runCLI(t, "# Hello\n\nfrom **stdin**\n",
		"--markdown", "-t", "-", "-f", "Robot <robot@example.org>", "-r", "a@example.org")
	require.Equal(t, exitOK, code, stderr)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	data, err := os.ReadFile(filepath.Join(out, entries[0].Name()))
	require.NoError(t, err)

	doc, err := parser.Parse(data)
	require.NoError(t, err)
	assert.Contains(t, doc.HTMLBody, "<h1>Hello</h1>")
	assert.Contains(t, doc.HTMLBody, "<strong>stdin</strong>")
	assert.Contains(t, doc.From, "robot@example.org")
}

func TestDeliveryFailureExitsOne(t *testing.T) {
	dir := isolate(t)

	srv, err := smtptest.Start(smtptest.Config{Replies: map[string]string{"MAIL": "450 mailbox busy"}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	cfg := writeFile(t, filepath.Join(dir, "relay.yaml"), fmt.Sprintf(
		"transports:\n  - type: smtp\n    host: %s\n    port: %d\n", srv.Host(), srv.Port()))

	code, stdout, stderr := runCLI(t, "", "--config", cfg, "-f", "a@example.org", "-r", "b@example.org", "-t", "hi")
	assert.Equal(t, exitUndelivered, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "was sent with errors: smtp: 102")
}

func TestDisplayEML(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "", "-d", "-s", "Preview", "-t", "plain body", "-r", "a@example.org")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Subject: Preview\r\n")
	assert.Contains(t, stdout, "To: a@example.org\r\n")
	assert.Contains(t, stdout, "text/plain")
	assert.Contains(t, stdout, "plain body")
}

func TestMissingFilesAreSkipped(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "", "-d", "-t", "x", "-a", "missing.pdf", "-i", "missing.png")
	require.Equal(t, exitOK, code)
	assert.NotContains(t, stdout, "missing.pdf")
	assert.Contains(t, stderr, "attachment not found")
	assert.Contains(t, stderr, "related file not found")
}

func TestNoTransportsExitsTwo(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runCLI(t, "", "-t", "x", "-r", "a@example.org", "-c", "absent.yaml")
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "configuration file not found")
	assert.Contains(t, stderr, `no "transports" section`)
}

func TestInvalidConfigExitsTwo(t *testing.T) {
	dir := isolate(t)
	cfg := writeFile(t, filepath.Join(dir, "bad.yaml"), "transports:\n  - type: pigeon\n")

	code, _, stderr := runCLI(t, "", "-t", "x", "-c", cfg)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown transport type")
}

func TestInformationalFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"version", []string{"--version"}, "v" + mailer.Version + "\n"},
		{"short version", []string{"-v"}, "v" + mailer.Version + "\n"},
		{"config example", []string{"--config-example"}, config.Example},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := runCLI(t, "", tt.args...)
			assert.Equal(t, exitOK, code)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestHelpAndBadFlags(t *testing.T) {
	code, _, stderr := runCLI(t, "", "--help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "-display-eml")
	assert.Contains(t, stderr, config.FileName+" next to the executable")

	code, _, _ = runCLI(t, "", "--no-such-flag")
	assert.Equal(t, exitUsage, code)
}

func TestStringList(t *testing.T) {
	t.Parallel()

	var s stringList
	require.NoError(t, s.Set("a"))
	require.NoError(t, s.Set("b"))
	assert.Equal(t, stringList{"a", "b"}, s)
	assert.Equal(t, "a, b", s.String())
}

func TestSplitAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, addr, name string
	}{
		{"robot@example.org", "robot@example.org", ""},
		{"Robot <robot@example.org>", "robot@example.org", "Robot"},
		{" not an address ", "not an address", ""},
	}
	for _, tt := range tests {
		addr, name := splitAddress(tt.in)
		if addr != tt.addr || name != tt.name {
			t.Errorf("splitAddress(%q): got (%q, %q), want (%q, %q)", tt.in, addr, name, tt.addr, tt.name)
		}
	}
}

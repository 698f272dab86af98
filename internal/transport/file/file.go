// Package file writes each message as an .eml file into a directory.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/transport"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	// nameLayout formats the timestamp prefix of file names.
	nameLayout = "2006-01-02_15-04-05"
)

// Config configures a Transport.
type Config struct {
	// Dir receives the files and is created on first use.
	Dir string
}

// Transport stores messages on disk.
type Transport struct {
	transport.LastErr
	dir      string
	now      func() time.Time
	lastPath string
}

// New returns a Transport writing into cfg.Dir.
func New(cfg Config) *Transport {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	return &Transport{dir: dir, now: time.Now}
}

// Name returns the transport name.
func (t *Transport) Name() string { return "file" }

// LastPath returns the file written by the latest successful Send.
func (t *Transport) LastPath() string { return t.lastPath }

// Send writes the rendered message to <dir>/<timestamp>_<unique>.eml.
func (t *Transport) Send(ctx context.Context, msg *email.Message) error {
	return t.Record(t.send(ctx, msg))
}

func (t *Transport) send(ctx context.Context, msg *email.Message) error {
	if err := os.MkdirAll(t.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", t.dir, err)
	}

	unique := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	path := filepath.Join(t.dir, t.now().Format(nameLayout)+"_"+unique+".eml")

	if err := os.WriteFile(path, msg.EML(), filePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	t.lastPath = path
	slog.DebugContext(ctx, "message written", "path", path)
	return nil
}

// Package main is the entry point for the mailer command line tool.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shineum/mailer-lite/internal/config"
	"github.com/shineum/mailer-lite/internal/delivery"
	"github.com/shineum/mailer-lite/internal/email"
	"github.com/shineum/mailer-lite/internal/logger"
	"github.com/shineum/mailer-lite/internal/mailer"
)

// Exit codes.
const (
	exitOK          = 0
	exitUndelivered = 1
	exitUsage       = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// stringList collects every occurrence of a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ", ") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type options struct {
	texts       stringList
	subjects    stringList
	recipients  stringList
	from        stringList
	replyTo     stringList
	configs     stringList
	attachments stringList
	related     stringList

	html          bool
	markdown      bool
	displayEML    bool
	configExample bool
	version       bool
	debug         bool
}

func newFlagSet(opts *options, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("mailer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	repeatable := func(v *stringList, short, long, usage string) {
		if short != "" {
			fs.Var(v, short, usage)
		}
		fs.Var(v, long, usage)
	}
	boolean := func(v *bool, short, long, usage string) {
		if short != "" {
			fs.BoolVar(v, short, false, usage)
		}
		fs.BoolVar(v, long, false, usage)
	}

	repeatable(&opts.texts, "t", "text", "message text, `-` reads standard input")
	repeatable(&opts.subjects, "s", "subject", "message subject")
	repeatable(&opts.recipients, "r", "recipient", "recipient address")
	repeatable(&opts.from, "f", "from", "sender address")
	repeatable(&opts.replyTo, "", "reply-to", "reply address")
	repeatable(&opts.configs, "c", "config", "configuration file")
	repeatable(&opts.attachments, "a", "attach", "attach a file")
	repeatable(&opts.related, "i", "related", "embed a file as an inline resource named after the file")
	boolean(&opts.html, "", "html", "send the text as HTML")
	boolean(&opts.markdown, "", "markdown", "render the text from Markdown to HTML")
	boolean(&opts.displayEML, "d", "display-eml", "print the message as EML instead of sending it")
	boolean(&opts.configExample, "", "config-example", "print an example configuration")
	boolean(&opts.version, "v", "version", "print the version")
	boolean(&opts.debug, "", "debug", "log debug information")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Send mail from the command line.\n\nUsage: mailer [OPTIONS]\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nConfiguration files are read in this order:\n")
		fmt.Fprintf(stderr, "  1. %s next to the executable\n", config.FileName)
		fmt.Fprintf(stderr, "  2. %s in the working directory\n", config.FileName)
		fmt.Fprintf(stderr, "  3. files given with -c and --config\n")
		fmt.Fprintf(stderr, "\nVersion: v%s\n", mailer.Version)
	}
	return fs
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	switch {
	case opts.configExample:
		fmt.Fprint(stdout, config.Example)
		return exitOK
	case opts.version:
		fmt.Fprintf(stdout, "v%s\n", mailer.Version)
		return exitOK
	}

	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	log := logger.New(stderr, level, delivery.MessageIDAttr)

	msg, err := buildMessage(&opts, stdin, log)
	if err != nil {
		log.Error("failed to build message", "error", err)
		return exitUsage
	}

	if opts.displayEML {
		if _, err := msg.WriteTo(stdout); err != nil {
			log.Error("failed to write message", "error", err)
			return exitUndelivered
		}
		return exitOK
	}

	cfg, err := loadConfig(opts.configs, log)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		return exitUsage
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrNoTransports) {
			fmt.Fprintln(stderr, `The configuration has no "transports" section, so there is no way to deliver the message. Fill it in and try again. See --help and --config-example.`)
		} else {
			log.Error("invalid configuration", "error", err)
		}
		return exitUsage
	}

	if !opts.debug {
		level = logger.ParseLevel(cfg.Logging.Level)
	}
	log = logger.NewWithSentry(stderr, level, logger.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     "mailer@" + mailer.Version,
	}, delivery.MessageIDAttr)
	slog.SetDefault(log)
	defer logger.Flush(2 * time.Second)

	m, err := mailer.New(ctx, cfg, mailer.WithLogger(log))
	if err != nil {
		log.Error("failed to set up transports", "error", err)
		return exitUsage
	}

	if err := m.Send(ctx, msg); err != nil {
		reason := err.Error()
		if errs := m.LastErrors(); len(errs) > 0 {
			reason = strings.Join(errs, "; ")
		}
		fmt.Fprintf(stderr, "Message %s was sent with errors: %s\n", msg.ID(), reason)
		return exitUndelivered
	}
	fmt.Fprintf(stdout, "Message %s was sent successfully\n", msg.ID())
	return exitOK
}

func buildMessage(opts *options, stdin io.Reader, log *slog.Logger) (*email.Message, error) {
	var msg *email.Message
	if opts.html || opts.markdown {
		msg = email.NewMessage()
	} else {
		msg = email.NewTextMessage()
	}

	var text strings.Builder
	for _, t := range opts.texts {
		if t == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("failed to read standard input: %w", err)
			}
			text.Write(data)
			continue
		}
		text.WriteString(t)
	}
	if opts.markdown {
		if err := msg.SetMarkdown(text.String()); err != nil {
			return nil, err
		}
	} else {
		msg.SetContent(text.String())
	}

	for _, s := range opts.subjects {
		msg.SetSubject(s)
	}
	for _, r := range opts.recipients {
		for _, addr := range email.ExtractAddresses(r) {
			msg.AddRecipient(addr, "")
		}
	}
	for _, f := range opts.from {
		addr, name := splitAddress(f)
		msg.SetSender(addr, name)
	}
	for _, r := range opts.replyTo {
		for _, addr := range email.ExtractAddresses(r) {
			msg.AddReplyTo(addr, "")
		}
	}

	for _, path := range opts.attachments {
		if !fileExists(path) {
			log.Warn("attachment not found, skipping", "path", path)
			continue
		}
		log.Debug("attaching file", "path", path)
		if _, err := msg.AddAttachmentFile(path, "", ""); err != nil {
			return nil, err
		}
	}
	for _, path := range opts.related {
		if !fileExists(path) {
			log.Warn("related file not found, skipping", "path", path)
			continue
		}
		log.Debug("embedding file", "path", path)
		if _, err := msg.AddRelatedFile(path, "", ""); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// splitAddress accepts "Name <addr>" as well as a bare address.
func splitAddress(s string) (addr, name string) {
	if parsed, err := mail.ParseAddress(s); err == nil {
		return parsed.Address, parsed.Name
	}
	return strings.TrimSpace(s), ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadConfig(explicit []string, log *slog.Logger) (*config.Config, error) {
	paths := config.SearchPaths()
	for _, path := range explicit {
		if !fileExists(path) {
			log.Warn("configuration file not found, skipping", "path", path)
			continue
		}
		paths = append(paths, path)
	}
	for _, path := range paths {
		log.Debug("loading configuration", "path", path)
	}
	return config.Load(paths...)
}

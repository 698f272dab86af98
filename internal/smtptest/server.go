// Package smtptest runs an in-process SMTP server that records what clients
// send. Replies can be overridden per command to script failures.
package smtptest

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"
)

// shutdownTimeout bounds how long Close waits for open sessions.
const shutdownTimeout = 5 * time.Second

// Config configures a Server.
type Config struct {
	// Hostname is announced in the greeting and EHLO replies.
	Hostname string

	// Username and Password enable AUTH PLAIN and AUTH LOGIN. When set,
	// MAIL FROM is refused until the client authenticates.
	Username string
	Password string

	// TLSConfig makes the listener speak TLS from the first byte.
	TLSConfig *tls.Config

	// Greeting replaces the "220 ..." line sent on connect.
	Greeting string

	// Replies overrides the reply to a command verb ("EHLO", "MAIL",
	// "RCPT", "DATA", "QUIT", ...). The key "." overrides the reply to the
	// end of message data. An overridden command does not change state.
	Replies map[string]string
}

// Transaction is one accepted message.
type Transaction struct {
	From string
	To   []string
	Data []byte
}

// Server accepts connections on a loopback port until closed.
type Server struct {
	config   Config
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu           sync.Mutex
	transactions []Transaction
	sessions     []*SessionLog
}

// SessionLog is what one client connection did.
type SessionLog struct {
	mu       sync.Mutex
	commands []string
	closed   bool
}

// Commands returns the received command lines. AUTH credentials are
// recorded as sent, base64 encoded.
func (l *SessionLog) Commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.commands...)
}

// Closed reports whether the session has ended.
func (l *SessionLog) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *SessionLog) add(cmd string) {
	l.mu.Lock()
	l.commands = append(l.commands, cmd)
	l.mu.Unlock()
}

func (l *SessionLog) markClosed() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// Start listens on 127.0.0.1 with a random port and serves in the background.
func Start(cfg Config) (*Server, error) {
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	if cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, cfg.TLSConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{config: cfg, listener: ln, cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.serve(ctx)
	}()
	return s, nil
}

func (s *Server) serve(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				slog.Debug("smtptest accept error", "error", err)
				return
			}
		}

		log := &SessionLog{}
		s.mu.Lock()
		s.sessions = append(s.sessions, log)
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			newSession(conn, s, log).handle(ctx)
		}()
	}
}

// Close stops accepting connections and waits for open sessions to end.
func (s *Server) Close() error {
	s.cancel()
	err := s.listener.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		slog.Warn("smtptest shutdown timeout reached")
	}
	return err
}

// Addr returns the listener address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Host returns the listener IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listener port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Transactions returns the accepted messages in arrival order.
func (s *Server) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transaction(nil), s.transactions...)
}

// Sessions returns the logs of every connection in accept order.
func (s *Server) Sessions() []*SessionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*SessionLog(nil), s.sessions...)
}

func (s *Server) record(tx Transaction) {
	s.mu.Lock()
	s.transactions = append(s.transactions, tx)
	s.mu.Unlock()
}

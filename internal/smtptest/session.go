package smtptest

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
)

const (
	stateConnected = iota
	stateGreeted
	stateAuthOK
	stateMailFrom
	stateRcptTo
)

// idleTimeout closes sessions whose client went quiet.
const idleTimeout = 30 * time.Second

type session struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	server *Server
	log    *SessionLog
	state  int

	mailFrom string
	rcptTo   []string
}

func newSession(conn net.Conn, server *Server, log *SessionLog) *session {
	return &session{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		server: server,
		log:    log,
		state:  stateConnected,
	}
}

func (s *session) handle(ctx context.Context) {
	defer s.log.markClosed()
	defer s.conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	greeting := s.server.config.Greeting
	if greeting == "" {
		greeting = "220 " + s.server.config.Hostname + " ESMTP smtptest"
	}
	s.writeLine("%s", greeting)

	for {
		line, ok := s.readLine()
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		s.log.add(line)

		cmd, arg := parseCommand(line)
		if reply, ok := s.server.config.Replies[cmd]; ok {
			s.writeLine("%s", reply)
			continue
		}
		if s.handleCommand(cmd, arg) {
			return
		}
	}
}

// handleCommand processes one command and reports whether the session ends.
func (s *session) handleCommand(cmd, arg string) bool {
	switch cmd {
	case "EHLO", "HELO":
		s.handleHello(cmd, arg)
	case "AUTH":
		s.handleAuth(arg)
	case "MAIL":
		s.handleMail(arg)
	case "RCPT":
		s.handleRcpt(arg)
	case "DATA":
		return s.handleData()
	case "RSET":
		s.resetTransaction()
		s.writeLine("250 OK")
	case "NOOP":
		s.writeLine("250 OK")
	case "QUIT":
		s.writeLine("221 Bye")
		return true
	default:
		s.writeLine("500 Unrecognized command")
	}
	return false
}

func (s *session) handleHello(cmd, arg string) {
	if arg == "" {
		s.writeLine("501 Syntax: %s hostname", cmd)
		return
	}
	s.state = stateGreeted
	if cmd == "HELO" {
		s.writeLine("250 %s Hello %s", s.server.config.Hostname, arg)
		return
	}
	s.writeLine("250-%s Hello %s", s.server.config.Hostname, arg)
	if s.authEnabled() {
		s.writeLine("250-AUTH PLAIN LOGIN")
	}
	s.writeLine("250 8BITMIME")
}

func (s *session) authEnabled() bool {
	return s.server.config.Username != "" || s.server.config.Password != ""
}

func (s *session) handleAuth(arg string) {
	if s.state < stateGreeted {
		s.writeLine("503 Send EHLO first")
		return
	}
	if !s.authEnabled() {
		s.writeLine("503 AUTH not available")
		return
	}

	mechanism, initial, _ := strings.Cut(arg, " ")
	var user, pass string
	switch strings.ToUpper(mechanism) {
	case "PLAIN":
		if initial == "" {
			s.writeLine("334")
			line, ok := s.readCredential()
			if !ok {
				return
			}
			initial = line
		}
		decoded, err := base64.StdEncoding.DecodeString(initial)
		if err != nil {
			s.writeLine("501 Invalid base64")
			return
		}
		fields := strings.SplitN(string(decoded), "\x00", 3)
		if len(fields) != 3 {
			s.writeLine("501 Invalid AUTH PLAIN format")
			return
		}
		user, pass = fields[1], fields[2]
	case "LOGIN":
		s.writeLine("334 VXNlcm5hbWU6")
		encUser, ok := s.readCredential()
		if !ok {
			return
		}
		s.writeLine("334 UGFzc3dvcmQ6")
		encPass, ok := s.readCredential()
		if !ok {
			return
		}
		u, errUser := base64.StdEncoding.DecodeString(encUser)
		p, errPass := base64.StdEncoding.DecodeString(encPass)
		if errUser != nil || errPass != nil {
			s.writeLine("501 Invalid base64")
			return
		}
		user, pass = string(u), string(p)
	default:
		s.writeLine("504 Unrecognized authentication type")
		return
	}

	if user != s.server.config.Username || pass != s.server.config.Password {
		s.writeLine("535 Authentication failed")
		return
	}
	s.state = stateAuthOK
	s.writeLine("235 Authentication successful")
}

// readCredential reads one line of an AUTH exchange; "*" cancels it.
func (s *session) readCredential() (string, bool) {
	line, ok := s.readLine()
	if !ok {
		return "", false
	}
	s.log.add(line)
	if line == "*" {
		s.writeLine("501 Authentication cancelled")
		return "", false
	}
	return line, true
}

func (s *session) handleMail(arg string) {
	if s.state < stateGreeted {
		s.writeLine("503 Send EHLO/HELO first")
		return
	}
	if s.authEnabled() && s.state < stateAuthOK {
		s.writeLine("530 Authentication required")
		return
	}
	if !strings.HasPrefix(strings.ToUpper(arg), "FROM:") {
		s.writeLine("501 Syntax: MAIL FROM:<address>")
		return
	}
	s.mailFrom = extractAddress(arg[5:])
	s.rcptTo = nil
	s.state = stateMailFrom
	s.writeLine("250 OK")
}

func (s *session) handleRcpt(arg string) {
	if s.state < stateMailFrom {
		s.writeLine("503 Send MAIL FROM first")
		return
	}
	if !strings.HasPrefix(strings.ToUpper(arg), "TO:") {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}
	addr := extractAddress(arg[3:])
	if addr == "" {
		s.writeLine("501 Syntax: RCPT TO:<address>")
		return
	}
	s.rcptTo = append(s.rcptTo, addr)
	s.state = stateRcptTo
	s.writeLine("250 OK")
}

// handleData reads the message up to the lone dot and records it.
func (s *session) handleData() bool {
	if s.state < stateRcptTo {
		s.writeLine("503 Send RCPT TO first")
		return false
	}
	s.writeLine("354 Start mail input; end with <CRLF>.<CRLF>")

	var data strings.Builder
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			slog.Debug("smtptest data read error", "error", err)
			return true
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "." {
			break
		}
		if strings.HasPrefix(line, "..") {
			line = line[1:]
		}
		data.WriteString(line)
	}

	if reply, ok := s.server.config.Replies["."]; ok {
		s.writeLine("%s", reply)
		s.resetTransaction()
		return false
	}

	s.server.record(Transaction{
		From: s.mailFrom,
		To:   s.rcptTo,
		Data: []byte(data.String()),
	})
	s.writeLine("250 OK message queued")
	s.resetTransaction()
	return false
}

func (s *session) resetTransaction() {
	s.mailFrom = ""
	s.rcptTo = nil
	if s.state > stateAuthOK {
		s.state = stateGreeted
		if s.authEnabled() {
			s.state = stateAuthOK
		}
	}
}

func (s *session) readLine() (string, bool) {
	if err := s.conn.SetDeadline(time.Now().Add(idleTimeout)); err != nil {
		return "", false
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

func (s *session) writeLine(format string, args ...any) {
	if _, err := s.writer.WriteString(fmt.Sprintf(format, args...) + "\r\n"); err != nil {
		slog.Debug("smtptest write error", "error", err)
		return
	}
	if err := s.writer.Flush(); err != nil {
		slog.Debug("smtptest flush error", "error", err)
	}
}

func parseCommand(line string) (string, string) {
	cmd, arg, _ := strings.Cut(line, " ")
	return strings.ToUpper(cmd), arg
}

// extractAddress takes the address out of "<addr>" or a bare argument.
// SMTP parameters after the address are ignored.
func extractAddress(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") {
		end := strings.Index(s, ">")
		if end < 0 {
			return ""
		}
		return s[1:end]
	}
	addr, _, _ := strings.Cut(s, " ")
	return addr
}

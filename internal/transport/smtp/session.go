package smtp

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Client states, in protocol order.
type state int

const (
	stateClosed state = iota
	stateConnecting
	stateGreeted
	stateAuthenticating
	stateSenderDeclared
	stateRecipientsDeclared
	stateDataStarted
	stateDataSent
	stateQuit
)

var stateNames = [...]string{
	"closed", "connecting", "greeted", "authenticating", "sender declared",
	"recipients declared", "data started", "data sent", "quit",
}

func (s state) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

var (
	greetingLine = regexp.MustCompile(`^220\s`)
	replyLine    = regexp.MustCompile(`^(\d{3})(?:\s+(.*))?$`)
)

// session is one client connection. It lives for a single delivery.
type session struct {
	conn    net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	timeout time.Duration
	state   state
	ctx     context.Context
}

func newSession(ctx context.Context, conn net.Conn, timeout time.Duration) *session {
	return &session{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		timeout: timeout,
		state:   stateConnecting,
		ctx:     ctx,
	}
}

func (s *session) setState(next state) {
	slog.DebugContext(s.ctx, "smtp state", "from", s.state.String(), "to", next.String())
	s.state = next
}

// greeting reads the first server line, which must be a 220.
func (s *session) greeting() error {
	line, err := s.readLine("greeting")
	if err != nil {
		return err
	}
	if !greetingLine.MatchString(line) {
		return &Error{Code: CodeGreeting, Stage: "greeting", Reply: strings.TrimRight(line, "\r\n")}
	}
	s.setState(stateGreeted)
	return nil
}

// run sends a step and waits for its reply.
func (s *session) run(st step) error {
	if st.logged == "" {
		st.logged = st.line
	}
	slog.DebugContext(s.ctx, "smtp command", "stage", st.stage, "command", st.logged)
	if err := s.writeLine(st.stage, st.line); err != nil {
		return err
	}
	return s.expect(st.stage, st.expect)
}

// expect reads lines until one looks like a reply and checks its code.
// Lines that do not, such as "250-" continuation lines, are skipped.
func (s *session) expect(stage string, code int) error {
	for {
		line, err := s.readLine(stage)
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		m := replyLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		slog.DebugContext(s.ctx, "smtp reply", "stage", stage, "reply", line)
		if got, _ := strconv.Atoi(m[1]); got != code {
			return &Error{Code: CodeUnexpectedReply, Stage: stage, Reply: line}
		}
		return nil
	}
}

func (s *session) readLine(stage string) (string, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return "", &Error{Code: CodeRead, Stage: stage, Err: err}
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", &Error{Code: CodeRead, Stage: stage, Err: err}
	}
	return line, nil
}

// writeLine writes line followed by CRLF and flushes.
func (s *session) writeLine(stage, line string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return &Error{Code: CodeWrite, Stage: stage, Err: err}
	}
	if _, err := s.writer.WriteString(line + "\r\n"); err != nil {
		return &Error{Code: CodeWrite, Stage: stage, Err: err}
	}
	if err := s.writer.Flush(); err != nil {
		return &Error{Code: CodeWrite, Stage: stage, Err: err}
	}
	return nil
}

func (s *session) close() {
	if err := s.conn.Close(); err != nil {
		slog.DebugContext(s.ctx, "smtp close", "error", err)
	}
	s.setState(stateClosed)
}

// localLiteral returns the address literal of the local end, e.g. "[10.0.0.2]".
func (s *session) localLiteral() string {
	host, _, err := net.SplitHostPort(s.conn.LocalAddr().String())
	if err != nil {
		return "[127.0.0.1]"
	}
	if strings.Contains(host, ":") {
		return "[IPv6:" + host + "]"
	}
	return "[" + host + "]"
}

// dotStuff doubles the leading dot of every line that starts with one.
func dotStuff(data string) string {
	if strings.HasPrefix(data, ".") {
		data = "." + data
	}
	return strings.ReplaceAll(data, "\n.", "\n..")
}

package imap

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"
	"strconv"
	"time"
)

// transport is the buffered, encrypted byte stream under a Client. The
// bufio.Reader is created once per connection and shared by line reads
// and literal reads: after a "{N}" marker the literal bytes may already
// sit in the buffer, so reading them from the raw socket would lose data.
type transport struct {
	conn net.Conn
	r    *bufio.Reader
}

// dialTransport establishes TCP, then runs the TLS handshake verifying
// the peer name against host. The two phases fail with distinct kinds so
// callers can tell DNS/TCP trouble from certificate trouble.
func dialTransport(host string, port int) (*transport, *Error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: DialTimeout}
	raw, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, wrapError(KindConnectionFailed, "dial", err)
	}

	cfg := &tls.Config{ServerName: host}
	if TLSSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	conn := tls.Client(raw, cfg)
	if DialTimeout != 0 {
		_ = conn.SetDeadline(time.Now().Add(DialTimeout))
	}
	if err := conn.Handshake(); err != nil {
		_ = raw.Close()
		return nil, wrapError(KindTLS, "handshake", err)
	}
	_ = conn.SetDeadline(time.Time{})

	return &transport{conn: conn, r: bufio.NewReader(conn)}, nil
}

// readLine reads one CRLF-terminated line, without the line ending.
func (t *transport) readLine(timeout time.Duration) ([]byte, *Error) {
	if timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(timeout))
		defer func() { _ = t.conn.SetReadDeadline(time.Time{}) }()
	}
	line, err := t.r.ReadBytes('\n')
	if err != nil {
		return nil, classifyIOErr("read line", err)
	}
	return dropNL(line), nil
}

// readLiteral reads exactly n raw bytes from the buffered stream.
func (t *transport) readLiteral(n int, timeout time.Duration) ([]byte, *Error) {
	if timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(timeout))
		defer func() { _ = t.conn.SetReadDeadline(time.Time{}) }()
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.r, buf); err != nil {
		return nil, classifyIOErr("read literal", err)
	}
	return buf, nil
}

func (t *transport) write(p []byte) *Error {
	if LineTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(LineTimeout))
		defer func() { _ = t.conn.SetWriteDeadline(time.Time{}) }()
	}
	if _, err := t.conn.Write(p); err != nil {
		return classifyIOErr("write", err)
	}
	return nil
}

func (t *transport) close() error {
	return t.conn.Close()
}

package imap

import (
	"errors"
	"fmt"
	"io"
	"net"
)

// ErrorKind identifies the failure class of an *Error.
type ErrorKind uint8

const (
	// KindConnectionFailed covers TCP and DNS failures while dialing.
	KindConnectionFailed ErrorKind = iota + 1
	// KindTLS covers handshake and certificate failures.
	KindTLS
	// KindAuthenticationFailed covers rejected credentials or tokens,
	// carrying the server's diagnostic text.
	KindAuthenticationFailed
	// KindServer covers any tagged non-OK completion.
	KindServer
	// KindFolderNotFound covers SELECT failures.
	KindFolderNotFound
	// KindMessageNotFound covers a UID FETCH that produced no message.
	KindMessageNotFound
	// KindParse covers responses the grammar could not decode.
	KindParse
	// KindNotConnected covers operations attempted without a transport.
	KindNotConnected
	// KindTimeout covers a line or literal read deadline being exceeded.
	KindTimeout
	// KindIO covers hard failures of the underlying transport.
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectionFailed:
		return "connection failed"
	case KindTLS:
		return "tls error"
	case KindAuthenticationFailed:
		return "authentication failed"
	case KindServer:
		return "server error"
	case KindFolderNotFound:
		return "folder not found"
	case KindMessageNotFound:
		return "message not found"
	case KindParse:
		return "parse error"
	case KindNotConnected:
		return "not connected"
	case KindTimeout:
		return "timeout"
	case KindIO:
		return "io error"
	}
	return "unknown error"
}

// Error is the error type returned by every Client operation. Kind is
// always set; Detail carries server diagnostic text when there is any.
type Error struct {
	Kind   ErrorKind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "imap"
	if e.Op != "" {
		msg += " " + e.Op
	}
	msg += ": " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so sentinel comparisons like
// errors.Is(err, ErrNotConnected) work regardless of Op and Detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotConnected = &Error{Kind: KindNotConnected}
	ErrTimeout      = &Error{Kind: KindTimeout}
)

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func newError(kind ErrorKind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

func wrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func parseErrorf(op, format string, v ...any) *Error {
	return &Error{Kind: KindParse, Op: op, Detail: fmt.Sprintf(format, v...)}
}

// classifyIOErr separates deadline expiry from hard transport failures.
// EOF is a hard failure here: the server hung up mid-response.
func classifyIOErr(op string, err error) *Error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindIO, Op: op, Detail: "connection closed", Err: err}
	}
	return &Error{Kind: KindIO, Op: op, Err: err}
}

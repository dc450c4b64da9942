package imap

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// literalMarker matches the "{N}" length prefix at the end of a response
// line that announces N raw bytes to follow.
var literalMarker = regexp.MustCompile(`\{(\d+)\}$`)

// serverLine is one complete server response: a line plus any literals
// it announced. raw holds the assembled text with each literal inlined
// after its "{N}" marker and CRLF, which is exactly the layout the token
// scanner consumes; literals holds the byte-exact payloads separately
// for callers that need them raw (body fetches).
type serverLine struct {
	raw      []byte
	literals [][]byte
}

func (l *serverLine) isUntagged() bool {
	return bytes.HasPrefix(l.raw, []byte("* "))
}

func (l *serverLine) isContinuation() bool {
	return len(l.raw) > 0 && l.raw[0] == '+'
}

// completes reports whether this is the tagged completion for tag. The
// trailing space matters: "A0001" must not claim "A00010 OK".
func (l *serverLine) completes(tag string) bool {
	return bytes.HasPrefix(l.raw, []byte(tag+" "))
}

// status splits a tagged completion into success and the server's text,
// e.g. "OK [APPENDUID 3 7] Completed" or "NO [AUTHENTICATIONFAILED] ...".
func (l *serverLine) status(tag string) (bool, string) {
	text := string(l.raw[len(tag)+1:])
	return strings.HasPrefix(text, "OK"), text
}

func (l *serverLine) text() string {
	return string(l.raw)
}

// readResponse consumes one full response from the transport. A line
// ending in "{N}" is followed by exactly N raw bytes read from the same
// buffered source, then by the rest of the response line; a single
// response may carry several literals (multi-attribute FETCH).
func (c *Client) readResponse() (*serverLine, *Error) {
	line, rerr := c.tp.readLine(LineTimeout)
	if rerr != nil {
		return nil, rerr
	}
	resp := &serverLine{raw: append([]byte(nil), line...)}
	last := line
	for {
		m := literalMarker.FindSubmatch(last)
		if m == nil {
			break
		}
		n, err := strconv.Atoi(string(m[1]))
		if err != nil {
			return nil, parseErrorf("read response", "bad literal length %q", m[1])
		}
		lit, rerr := c.tp.readLiteral(n, LiteralTimeout)
		if rerr != nil {
			return nil, rerr
		}
		resp.literals = append(resp.literals, lit)
		resp.raw = append(resp.raw, nl...)
		resp.raw = append(resp.raw, lit...)

		// The response continues on the next line: at least the closing
		// paren, possibly further attributes with literals of their own.
		next, rerr := c.tp.readLine(LineTimeout)
		if rerr != nil {
			return nil, rerr
		}
		resp.raw = append(resp.raw, next...)
		last = next
	}
	if Verbose && !SkipResponses {
		debugLog(c.connID, c.mailbox, "server response", "response", resp.text())
	}
	return resp, nil
}

// exec writes a command and consumes responses until its tagged
// completion, handing each untagged response to onLine. It returns the
// completion text after "OK"; a non-OK completion becomes a ServerError.
func (c *Client) exec(op, command, logForm string, onLine func(*serverLine) error) (string, *Error) {
	if c.tp == nil {
		return "", newError(KindNotConnected, op, "")
	}
	if c.idling {
		return "", newError(KindServer, op, "connection is in IDLE; call IdleDone first")
	}
	tag, err := c.writeCommand(command, logForm)
	if err != nil {
		return "", err
	}
	return c.awaitCompletion(op, tag, onLine)
}

// awaitCompletion reads until the tagged completion for tag arrives.
func (c *Client) awaitCompletion(op, tag string, onLine func(*serverLine) error) (string, *Error) {
	for {
		resp, rerr := c.readResponse()
		if rerr != nil {
			rerr.Op = op
			return "", rerr
		}
		if resp.completes(tag) {
			ok, text := resp.status(tag)
			if !ok {
				return "", newError(KindServer, op, text)
			}
			return text, nil
		}
		if resp.isUntagged() && onLine != nil {
			if err := onLine(resp); err != nil {
				if e, ok := err.(*Error); ok {
					return "", e
				}
				return "", newError(KindParse, op, err.Error())
			}
		}
	}
}

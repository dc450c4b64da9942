package imap

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IdleEventType classifies the outcome of one IDLE wait window.
type IdleEventType uint8

const (
	// IdleNewMessages: the message count grew; Count holds the new total.
	IdleNewMessages IdleEventType = iota + 1
	// IdleExpunge: a message was removed; Seq holds its sequence number.
	IdleExpunge
	// IdleFlagsChanged: flags changed on some message; refetch to learn which.
	IdleFlagsChanged
	// IdleTimeout: the window elapsed with nothing to report. Not an error.
	IdleTimeout
	// IdleServerBye: the server is closing the connection.
	IdleServerBye
)

func (t IdleEventType) String() string {
	switch t {
	case IdleNewMessages:
		return "new messages"
	case IdleExpunge:
		return "expunge"
	case IdleFlagsChanged:
		return "flags changed"
	case IdleTimeout:
		return "timeout"
	case IdleServerBye:
		return "server bye"
	}
	return "unknown"
}

// IdleEvent is the result of one Idle call. Count is set for
// IdleNewMessages, Seq for IdleExpunge.
type IdleEvent struct {
	Type  IdleEventType
	Count uint32
	Seq   uint32
}

var idleLineRE = regexp.MustCompile(`^\* (\d+) (EXISTS|RECENT|EXPUNGE|FETCH)`)

// Idle puts the connection into IDLE and waits up to timeout for the
// server to report a mailbox change. A quiet window yields an
// IdleTimeout event, not an error. Whatever the outcome, the connection
// stays inside IDLE and refuses other commands until IdleDone runs;
// always pair the two, including after a timeout.
func (c *Client) Idle(timeout time.Duration) (IdleEvent, *Error) {
	const op = "idle"
	if c.tp == nil {
		return IdleEvent{}, newError(KindNotConnected, op, "")
	}
	if c.idling {
		return IdleEvent{}, newError(KindServer, op, "already in IDLE")
	}

	tag, err := c.writeCommand("IDLE", "")
	if err != nil {
		err.Op = op
		return IdleEvent{}, err
	}

	// The server accepts IDLE with a "+" continuation; anything tagged
	// here is a rejection (IDLE not supported, bad state).
	for {
		resp, rerr := c.readResponse()
		if rerr != nil {
			rerr.Op = op
			return IdleEvent{}, rerr
		}
		if resp.isContinuation() {
			break
		}
		if resp.completes(tag) {
			_, text := resp.status(tag)
			return IdleEvent{}, newError(KindServer, op,
				"expected '+' continuation, got: "+text)
		}
	}
	c.idling = true
	c.idleTag = tag
	debugLog(c.connID, c.mailbox, "entered IDLE", "timeout", timeout)

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return IdleEvent{Type: IdleTimeout}, nil
		}
		line, rerr := c.tp.readLine(remaining)
		if rerr != nil {
			if rerr.Kind == KindTimeout {
				return IdleEvent{Type: IdleTimeout}, nil
			}
			if rerr.Kind == KindIO && rerr.Detail == "connection closed" {
				return IdleEvent{Type: IdleServerBye}, nil
			}
			rerr.Op = op
			return IdleEvent{}, rerr
		}
		if ev, ok := classifyIdleLine(string(line)); ok {
			debugLog(c.connID, c.mailbox, "IDLE event", "type", ev.Type.String())
			return ev, nil
		}
	}
}

// classifyIdleLine maps one unsolicited line to an event. Lines that
// carry no event (OK keepalives, zero-count RECENT) are skipped.
func classifyIdleLine(line string) (IdleEvent, bool) {
	if strings.HasPrefix(line, "* BYE") {
		return IdleEvent{Type: IdleServerBye}, true
	}
	m := idleLineRE.FindStringSubmatch(line)
	if m == nil {
		return IdleEvent{}, false
	}
	n, _ := strconv.ParseUint(m[1], 10, 32)
	switch m[2] {
	case "EXISTS", "RECENT":
		if n == 0 {
			return IdleEvent{}, false
		}
		return IdleEvent{Type: IdleNewMessages, Count: uint32(n)}, true
	case "EXPUNGE":
		return IdleEvent{Type: IdleExpunge, Seq: uint32(n)}, true
	case "FETCH":
		return IdleEvent{Type: IdleFlagsChanged}, true
	}
	return IdleEvent{}, false
}

// IdleDone ends the IDLE window by writing DONE and consuming responses
// up to the tagged completion. The connection is back in command-ready
// state afterwards, even if the completion was an error.
func (c *Client) IdleDone() *Error {
	const op = "idle done"
	if c.tp == nil {
		return newError(KindNotConnected, op, "")
	}
	if !c.idling {
		return newError(KindServer, op, "not in IDLE")
	}
	tag := c.idleTag
	c.idling = false
	c.idleTag = ""

	if err := c.tp.write([]byte("DONE" + nl)); err != nil {
		err.Op = op
		return err
	}
	_, err := c.awaitCompletion(op, tag, nil)
	if err != nil {
		return err
	}
	debugLog(c.connID, c.mailbox, "left IDLE")
	return nil
}

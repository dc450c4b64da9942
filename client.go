package imap

import (
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sqs/go-xoauth2"
)

// Client is a single IMAP connection and the façade for every operation
// in this package. A Client is not safe for concurrent use: commands are
// written and their responses read on one goroutine, in order.
//
// A Client survives its connection. After an authentication failure or a
// Logout the same Client can connect again; the tag sequence continues
// across connections.
type Client struct {
	tp   *transport
	tags tagSequencer

	// connID correlates log lines across the life of one connection.
	connID string

	host    string
	port    int
	mailbox string

	idling  bool
	idleTag string
}

// NewClient returns an unconnected Client.
func NewClient() *Client {
	return &Client{}
}

// IsConnected reports whether the Client currently holds a live
// transport. It does not probe the socket; use Noop for that.
func (c *Client) IsConnected() bool {
	return c.tp != nil
}

// ConnectXOAUTH2 dials host:port over TLS and authenticates with the
// SASL XOAUTH2 mechanism. On a rejected token the server's diagnostic
// text is preserved in the returned error and the Client is left cleanly
// disconnected, ready for another attempt with a fresh token.
func (c *Client) ConnectXOAUTH2(host string, port int, identity, accessToken string) *Error {
	b64 := xoauth2.XOAuth2String(identity, accessToken)
	command := fmt.Sprintf("AUTHENTICATE XOAUTH2 %s", b64)
	logForm := "AUTHENTICATE XOAUTH2 ****"
	return c.connect(host, port, "authenticate xoauth2", command, logForm)
}

// ConnectLogin dials host:port over TLS and authenticates with the
// LOGIN command. Username and password are quoted, so both may contain
// backslashes and double quotes.
func (c *Client) ConnectLogin(host string, port int, username, password string) *Error {
	command := fmt.Sprintf("LOGIN %s %s", quoteString(username), quoteString(password))
	logForm := fmt.Sprintf("LOGIN %s ****", quoteString(username))
	return c.connect(host, port, "login", command, logForm)
}

// ConnectGmail authenticates against Gmail's IMAP endpoint with XOAUTH2.
func (c *Client) ConnectGmail(identity, accessToken string) *Error {
	return c.ConnectXOAUTH2("imap.gmail.com", 993, identity, accessToken)
}

// ConnectOutlook authenticates against the Office 365 IMAP endpoint
// with XOAUTH2.
func (c *Client) ConnectOutlook(identity, accessToken string) *Error {
	return c.ConnectXOAUTH2("outlook.office365.com", 993, identity, accessToken)
}

// ConnectICloud authenticates against iCloud Mail with XOAUTH2.
func (c *Client) ConnectICloud(identity, accessToken string) *Error {
	return c.ConnectXOAUTH2("imap.mail.me.com", 993, identity, accessToken)
}

// connect runs the shared dial/greeting/authenticate sequence. authCmd
// is the complete authentication command for writeCommand; authLogForm
// is its credential-free form for the logs.
func (c *Client) connect(host string, port int, op, authCmd, authLogForm string) *Error {
	if c.tp != nil {
		return newError(KindServer, op, "already connected; call Logout first")
	}

	tp, err := dialTransport(host, port)
	if err != nil {
		err.Op = op
		return err
	}
	c.tp = tp
	c.host = host
	c.port = port
	c.mailbox = ""
	c.connID = strings.ToUpper(xid.New().String())
	debugLog(c.connID, "", "connected", "host", host, "port", port)

	if err := c.readGreeting(op); err != nil {
		c.teardown()
		return err
	}
	if err := c.authenticate(op, authCmd, authLogForm); err != nil {
		c.teardown()
		return err
	}
	debugLog(c.connID, "", "authenticated")
	return nil
}

// readGreeting consumes the server's banner. Anything but "* OK" means
// the server is refusing service before authentication.
func (c *Client) readGreeting(op string) *Error {
	line, err := c.readResponse()
	if err != nil {
		err.Op = op
		return err
	}
	if !strings.HasPrefix(line.text(), "* OK") {
		return newError(KindServer, op, "unexpected greeting: "+line.text())
	}
	return nil
}

// authenticate writes the authentication command and drives the exchange
// to its tagged completion. SASL mechanisms may answer with a "+"
// continuation carrying an error payload in base64; replying with an
// empty line makes the server fail the command with its tagged NO, which
// carries the human-readable diagnostic.
func (c *Client) authenticate(op, command, logForm string) *Error {
	tag, err := c.writeCommand(command, logForm)
	if err != nil {
		err.Op = op
		return err
	}
	for {
		resp, rerr := c.readResponse()
		if rerr != nil {
			rerr.Op = op
			return rerr
		}
		if resp.isContinuation() {
			if werr := c.tp.write([]byte(nl)); werr != nil {
				werr.Op = op
				return werr
			}
			continue
		}
		if resp.completes(tag) {
			ok, text := resp.status(tag)
			if !ok {
				return newError(KindAuthenticationFailed, op, text)
			}
			return nil
		}
		// Untagged capability or banner noise before the completion.
	}
}

// Noop sends NOOP. It doubles as a keepalive and a liveness probe.
func (c *Client) Noop() *Error {
	_, err := c.exec("noop", "NOOP", "", nil)
	return err
}

// Logout sends LOGOUT and closes the connection. The server's reply is
// consumed on a best-effort basis: whatever happens on the wire, the
// Client ends up disconnected and reusable, so Logout never fails.
func (c *Client) Logout() {
	if c.tp == nil {
		return
	}
	if c.idling {
		_ = c.IdleDone()
	}
	tag := c.tags.next()
	if err := c.tp.write([]byte(tag + " LOGOUT" + nl)); err == nil {
		for i := 0; i < 8; i++ {
			resp, rerr := c.readResponse()
			if rerr != nil || resp.completes(tag) {
				break
			}
		}
	}
	debugLog(c.connID, c.mailbox, "logged out")
	c.teardown()
}

// teardown drops the transport and per-connection state. The tag
// sequencer is deliberately left alone.
func (c *Client) teardown() {
	if c.tp != nil {
		_ = c.tp.close()
	}
	c.tp = nil
	c.mailbox = ""
	c.idling = false
	c.idleTag = ""
}

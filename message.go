package imap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
)

// MessageFlags is the decoded flag set of one message. Custom holds any
// keywords beyond the five system flags, verbatim.
type MessageFlags struct {
	Seen     bool
	Answered bool
	Flagged  bool
	Deleted  bool
	Draft    bool
	Custom   []string
}

// FlagsFromList decodes a wire-format flag list.
func FlagsFromList(flags []string) MessageFlags {
	var f MessageFlags
	for _, flag := range flags {
		switch strings.ToLower(flag) {
		case `\seen`:
			f.Seen = true
		case `\answered`:
			f.Answered = true
		case `\flagged`:
			f.Flagged = true
		case `\deleted`:
			f.Deleted = true
		case `\draft`:
			f.Draft = true
		case `\recent`:
			// Session-only pseudo flag, not part of the message state.
		default:
			f.Custom = append(f.Custom, flag)
		}
	}
	return f
}

// List renders the flag set back into wire format.
func (f MessageFlags) List() []string {
	var out []string
	if f.Seen {
		out = append(out, `\Seen`)
	}
	if f.Answered {
		out = append(out, `\Answered`)
	}
	if f.Flagged {
		out = append(out, `\Flagged`)
	}
	if f.Deleted {
		out = append(out, `\Deleted`)
	}
	if f.Draft {
		out = append(out, `\Draft`)
	}
	return append(out, f.Custom...)
}

// EmailAddress is one decoded address. Name may be empty.
type EmailAddress struct {
	Name    string
	Address string
}

func (a EmailAddress) String() string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Address)
	}
	return a.Address
}

// Envelope is the parsed ENVELOPE structure of a message.
type Envelope struct {
	Date      string
	Subject   string
	From      []EmailAddress
	ReplyTo   []EmailAddress
	To        []EmailAddress
	CC        []EmailAddress
	InReplyTo string
	MessageID string
}

// MessageHeader is the summary of one message as returned by the header
// fetch operations. Body content is fetched separately by UID.
type MessageHeader struct {
	UID uint32
	Seq uint32

	Envelope Envelope
	Flags    MessageFlags

	Size           uint32
	HasAttachments bool
}

// Subject returns the decoded subject, with a placeholder when empty.
func (h *MessageHeader) Subject() string {
	if s := strings.TrimSpace(h.Envelope.Subject); s != "" {
		return s
	}
	return "(No subject)"
}

// FromDisplay returns the first sender's display name, falling back to
// the address, then to a placeholder.
func (h *MessageHeader) FromDisplay() string {
	if len(h.Envelope.From) == 0 {
		return "(Unknown sender)"
	}
	from := h.Envelope.From[0]
	if from.Name != "" {
		return from.Name
	}
	if from.Address != "" {
		return from.Address
	}
	return "(Unknown sender)"
}

func (h *MessageHeader) IsRead() bool { return h.Flags.Seen }

func (h *MessageHeader) IsStarred() bool { return h.Flags.Flagged }

func (h *MessageHeader) String() string {
	return fmt.Sprintf("%d: %s from %s (%s)",
		h.UID, h.Subject(), h.FromDisplay(), humanize.Bytes(uint64(h.Size)))
}

var fetchPrefixRE = regexp.MustCompile(`^\* (\d+) FETCH `)

// parseFetchRecord decodes one untagged FETCH response into a header.
// Unknown attributes are consumed and skipped, so servers may volunteer
// extras (MODSEQ, X-GM-*) without breaking the walk. Returns nil for
// lines that are not FETCH records.
func parseFetchRecord(line string) (*MessageHeader, error) {
	m := fetchPrefixRE.FindStringSubmatch(line)
	if m == nil {
		return nil, nil
	}
	seq, _ := strconv.ParseUint(m[1], 10, 32)

	p := newScanner(line[len(m[0]):])
	p.skipSpace()
	if p.eof() || p.peek() != '(' {
		return nil, fmt.Errorf("missing attribute list in FETCH record")
	}
	inner, err := p.readGroup()
	if err != nil {
		return nil, err
	}

	h := &MessageHeader{Seq: uint32(seq)}
	q := newScanner(inner)
	for {
		q.skipSpace()
		if q.eof() {
			break
		}
		nameVal, err := q.readValue()
		if err != nil {
			return nil, err
		}
		val, err := q.readValue()
		if err != nil {
			return nil, err
		}

		switch strings.ToUpper(nameVal.val) {
		case "UID":
			n, convErr := strconv.ParseUint(val.str(), 10, 32)
			if convErr != nil {
				return nil, fmt.Errorf("bad UID %q", val.str())
			}
			h.UID = uint32(n)
		case "FLAGS":
			if val.kind == vGroup {
				h.Flags = FlagsFromList(strings.Fields(val.val))
			}
		case "RFC822.SIZE":
			n, convErr := strconv.ParseUint(val.str(), 10, 32)
			if convErr == nil {
				h.Size = uint32(n)
			}
		case "ENVELOPE":
			if val.kind != vGroup {
				return nil, fmt.Errorf("ENVELOPE is not a list")
			}
			env, envErr := parseEnvelope(val.val)
			if envErr != nil {
				return nil, envErr
			}
			h.Envelope = env
		case "BODYSTRUCTURE", "BODY":
			if val.kind == vGroup {
				h.HasAttachments = HasAttachment(val.val)
			}
		default:
			// Value already consumed; nothing to keep.
		}
	}
	return h, nil
}

// fetchHeaders is the shared body of FetchHeaders and UIDFetchHeaders.
func (c *Client) fetchHeaders(op, command string) ([]*MessageHeader, *Error) {
	var headers []*MessageHeader
	_, err := c.exec(op, command, "", func(l *serverLine) error {
		h, perr := parseFetchRecord(l.text())
		if perr != nil {
			if Verbose {
				debugLog(c.connID, c.mailbox, "unparsable FETCH record", "dump", spew.Sdump(l.text()))
			}
			return parseErrorf(op, "%v", perr)
		}
		if h == nil {
			return nil
		}
		// Records without a UID cannot be addressed later; skip them.
		if h.UID == 0 {
			warnLog(c.connID, c.mailbox, "dropping FETCH record without UID", "seq", h.Seq)
			return nil
		}
		headers = append(headers, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return headers, nil
}

// FetchHeaders fetches message summaries for a sequence-number range,
// e.g. "1:50" or "1:*".
func (c *Client) FetchHeaders(seqRange string) ([]*MessageHeader, *Error) {
	command := fmt.Sprintf("FETCH %s (UID FLAGS RFC822.SIZE ENVELOPE BODYSTRUCTURE)", seqRange)
	return c.fetchHeaders("fetch headers", command)
}

// UIDFetchHeaders fetches message summaries for a UID range.
func (c *Client) UIDFetchHeaders(uidRange string) ([]*MessageHeader, *Error) {
	command := fmt.Sprintf("UID FETCH %s (UID FLAGS RFC822.SIZE ENVELOPE BODYSTRUCTURE)", uidRange)
	return c.fetchHeaders("uid fetch headers", command)
}

// UIDFetchFlags fetches only the flags for a UID range, keyed by UID.
// Useful for cheap change detection after an IDLE event.
func (c *Client) UIDFetchFlags(uidRange string) (map[uint32]MessageFlags, *Error) {
	const op = "uid fetch flags"
	out := map[uint32]MessageFlags{}
	command := fmt.Sprintf("UID FETCH %s (UID FLAGS)", uidRange)
	_, err := c.exec(op, command, "", func(l *serverLine) error {
		h, perr := parseFetchRecord(l.text())
		if perr != nil {
			return parseErrorf(op, "%v", perr)
		}
		if h != nil && h.UID != 0 {
			out[h.UID] = h.Flags
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchBody downloads the complete raw message (headers and body) for
// one UID with BODY.PEEK[], which leaves the \Seen flag untouched. The
// bytes arrive as a literal and are returned as a string with invalid
// UTF-8 replaced, byte length preserved for valid input. A UID that
// matches nothing yields a MessageNotFound error.
func (c *Client) FetchBody(uid uint32) (string, *Error) {
	const op = "fetch body"
	var body string
	found := false
	command := fmt.Sprintf("UID FETCH %d BODY.PEEK[]", uid)
	_, err := c.exec(op, command, "", func(l *serverLine) error {
		if !fetchPrefixRE.MatchString(l.text()) || len(l.literals) == 0 {
			return nil
		}
		body = lossyUTF8(l.literals[0])
		found = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if !found {
		return "", newError(KindMessageNotFound, op, fmt.Sprintf("uid %d", uid))
	}
	return body, nil
}

// UIDStoreFlags adds (add=true) or removes flags on one message.
func (c *Client) UIDStoreFlags(uid uint32, flags []string, add bool) *Error {
	_, err := c.exec("uid store flags", storeFlagsCommand(uid, flags, add), "", nil)
	return err
}

// MarkRead sets \Seen on one message.
func (c *Client) MarkRead(uid uint32) *Error {
	return c.UIDStoreFlags(uid, []string{`\Seen`}, true)
}

// MarkUnread clears \Seen on one message.
func (c *Client) MarkUnread(uid uint32) *Error {
	return c.UIDStoreFlags(uid, []string{`\Seen`}, false)
}

// UIDCopy copies one message into another folder.
func (c *Client) UIDCopy(uid uint32, folder string) *Error {
	command := fmt.Sprintf("UID COPY %d %s", uid, quoteString(folder))
	_, err := c.exec("uid copy", command, "", nil)
	return err
}

// Expunge permanently removes every \Deleted message in the selected
// folder.
func (c *Client) Expunge() *Error {
	_, err := c.exec("expunge", "EXPUNGE", "", nil)
	return err
}

// UIDExpunge removes only the given \Deleted message. Requires the
// UIDPLUS extension.
func (c *Client) UIDExpunge(uid uint32) *Error {
	command := fmt.Sprintf("UID EXPUNGE %d", uid)
	_, err := c.exec("uid expunge", command, "", nil)
	return err
}

// MoveMessage moves one message into another folder as copy, flag
// \Deleted, expunge. UID EXPUNGE is preferred so only this message
// disappears; servers without UIDPLUS get a plain EXPUNGE instead.
func (c *Client) MoveMessage(uid uint32, folder string) *Error {
	if err := c.UIDCopy(uid, folder); err != nil {
		return err
	}
	if err := c.UIDStoreFlags(uid, []string{`\Deleted`}, true); err != nil {
		return err
	}
	if err := c.UIDExpunge(uid); err != nil {
		if err.Kind != KindServer {
			return err
		}
		return c.Expunge()
	}
	return nil
}

// Append uploads a complete RFC 822 message into a folder, in two
// phases: the APPEND command announces the byte count as a literal, the
// server answers with a "+" continuation, then the raw bytes follow.
// Returns the new message's UID when the server reports APPENDUID, 0
// otherwise.
func (c *Client) Append(folder string, flags []string, message []byte) (uint32, *Error) {
	const op = "append"
	if c.tp == nil {
		return 0, newError(KindNotConnected, op, "")
	}
	if c.idling {
		return 0, newError(KindServer, op, "connection is in IDLE; call IdleDone first")
	}

	command := appendCommand(folder, flags, len(message))
	tag, err := c.writeCommand(command, "")
	if err != nil {
		err.Op = op
		return 0, err
	}

	// The server may emit untagged noise before the continuation, or
	// reject the command outright with its tagged completion.
	for {
		resp, rerr := c.readResponse()
		if rerr != nil {
			rerr.Op = op
			return 0, rerr
		}
		if resp.isContinuation() {
			break
		}
		if resp.completes(tag) {
			_, text := resp.status(tag)
			return 0, newError(KindServer, op, text)
		}
	}

	if err := c.tp.write(message); err != nil {
		err.Op = op
		return 0, err
	}
	if err := c.tp.write([]byte(nl)); err != nil {
		err.Op = op
		return 0, err
	}

	completion, err := c.awaitCompletion(op, tag, nil)
	if err != nil {
		return 0, err
	}
	uid, _ := parseAppendUID(completion)
	return uid, nil
}

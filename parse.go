package imap

import (
	"fmt"
	"io"
	"mime"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"
)

// valueKind classifies one value produced by the scanner.
type valueKind uint8

const (
	vAtom valueKind = iota
	vQuoted
	vLiteral
	vGroup
	vNil
)

type scanValue struct {
	kind valueKind
	val  string
}

// str returns the value text, with NIL collapsing to the empty string.
func (v scanValue) str() string {
	if v.kind == vNil {
		return ""
	}
	return v.val
}

// scanner is an explicit-state cursor over one response's text. It
// understands the four shapes IMAP values take: quoted strings with
// backslash escapes, "{N}" literals with their payload inlined after
// CRLF, parenthesized groups, and bare atoms (including NIL).
type scanner struct {
	s string
	i int
}

func newScanner(s string) *scanner {
	return &scanner{s: s}
}

func (p *scanner) eof() bool {
	return p.i >= len(p.s)
}

func (p *scanner) peek() byte {
	return p.s[p.i]
}

func (p *scanner) skipSpace() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t') {
		p.i++
	}
}

// readValue reads the next value of any kind.
func (p *scanner) readValue() (scanValue, error) {
	p.skipSpace()
	if p.eof() {
		return scanValue{}, fmt.Errorf("unexpected end of input at %d", p.i)
	}
	switch p.s[p.i] {
	case '"':
		return p.readQuoted()
	case '(':
		inner, err := p.readGroup()
		if err != nil {
			return scanValue{}, err
		}
		return scanValue{kind: vGroup, val: inner}, nil
	case '{':
		return p.readLiteralValue()
	default:
		return p.readAtom(), nil
	}
}

func (p *scanner) readQuoted() (scanValue, error) {
	p.i++ // opening quote
	start := p.i
	for p.i < len(p.s) && p.s[p.i] != '"' {
		if p.s[p.i] == '\\' && p.i+1 < len(p.s) {
			p.i += 2
		} else {
			p.i++
		}
	}
	if p.eof() {
		return scanValue{}, fmt.Errorf("unterminated quoted string at %d", start)
	}
	raw := p.s[start:p.i]
	p.i++ // closing quote
	return scanValue{kind: vQuoted, val: RemoveSlashes.Replace(raw)}, nil
}

// readGroup consumes a balanced parenthesized group and returns the text
// between the outer parens. Quoted strings and literals inside the group
// are skipped opaquely so their content cannot unbalance the depth count.
func (p *scanner) readGroup() (string, error) {
	start := p.i
	depth := 0
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case '(':
			depth++
			p.i++
		case ')':
			depth--
			p.i++
			if depth == 0 {
				return p.s[start+1 : p.i-1], nil
			}
		case '"':
			p.skipQuoted()
		case '{':
			p.skipLiteral()
		default:
			p.i++
		}
	}
	return "", fmt.Errorf("unbalanced parentheses from %d", start)
}

func (p *scanner) skipQuoted() {
	p.i++
	for p.i < len(p.s) && p.s[p.i] != '"' {
		if p.s[p.i] == '\\' && p.i+1 < len(p.s) {
			p.i += 2
		} else {
			p.i++
		}
	}
	if p.i < len(p.s) {
		p.i++
	}
}

// skipLiteral advances past a "{N}" marker and its N payload bytes. A
// malformed marker is treated as a plain character.
func (p *scanner) skipLiteral() {
	n, next, ok := p.literalLength()
	if !ok {
		p.i++
		return
	}
	p.i = next + n
	if p.i > len(p.s) {
		p.i = len(p.s)
	}
}

func (p *scanner) readLiteralValue() (scanValue, error) {
	n, next, ok := p.literalLength()
	if !ok {
		return scanValue{}, fmt.Errorf("malformed literal marker at %d", p.i)
	}
	end := next + n
	if end > len(p.s) {
		// Truncated payload: take what is there rather than failing the
		// whole response.
		end = len(p.s)
	}
	val := p.s[next:end]
	p.i = end
	return scanValue{kind: vLiteral, val: val}, nil
}

// literalLength parses "{N}" at the cursor and returns N plus the index
// of the first payload byte (after the CRLF the reader inlined).
func (p *scanner) literalLength() (n, payload int, ok bool) {
	if p.eof() || p.s[p.i] != '{' {
		return 0, 0, false
	}
	j := p.i + 1
	for j < len(p.s) && p.s[j] >= '0' && p.s[j] <= '9' {
		j++
	}
	if j == p.i+1 || j >= len(p.s) || p.s[j] != '}' {
		return 0, 0, false
	}
	n, err := strconv.Atoi(p.s[p.i+1 : j])
	if err != nil {
		return 0, 0, false
	}
	j++
	if j < len(p.s) && p.s[j] == '\r' {
		j++
	}
	if j < len(p.s) && p.s[j] == '\n' {
		j++
	}
	return n, j, true
}

func (p *scanner) readAtom() scanValue {
	start := p.i
	for p.i < len(p.s) {
		c := p.s[p.i]
		if c == ' ' || c == '\t' || c == '(' || c == ')' || c == '"' {
			break
		}
		p.i++
	}
	val := p.s[start:p.i]
	if val == "NIL" {
		return scanValue{kind: vNil}
	}
	return scanValue{kind: vAtom, val: val}
}

// wordDecoder decodes MIME encoded-words (=?charset?...?=) in subjects
// and display names, resolving charsets through x/net.
var wordDecoder = mime.WordDecoder{
	CharsetReader: func(label string, input io.Reader) (io.Reader, error) {
		label = strings.ReplaceAll(label, "windows-", "cp")
		enc, _ := charset.Lookup(label)
		if enc == nil {
			return input, nil
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

func decodeHeader(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// parseEnvelope decodes the ENVELOPE grammar:
//
//	(date subject from sender reply-to to cc bcc in-reply-to message-id)
//
// raw is the text between the outer parens. Field positions are fixed by
// RFC 3501 and load-bearing for downstream consumers; absent fields are
// NIL on the wire and zero values here.
func parseEnvelope(raw string) (Envelope, error) {
	p := newScanner(raw)
	var fields []scanValue
	for len(fields) < 10 {
		p.skipSpace()
		if p.eof() {
			break
		}
		v, err := p.readValue()
		if err != nil {
			return Envelope{}, err
		}
		fields = append(fields, v)
	}

	str := func(idx int) string {
		if idx < len(fields) {
			return fields[idx].str()
		}
		return ""
	}
	addrs := func(idx int) []EmailAddress {
		if idx < len(fields) && fields[idx].kind == vGroup {
			return parseAddressList(fields[idx].val)
		}
		return nil
	}

	return Envelope{
		Date:      str(0),
		Subject:   decodeHeader(str(1)),
		From:      addrs(2),
		ReplyTo:   addrs(4),
		To:        addrs(5),
		CC:        addrs(6),
		InReplyTo: str(8),
		MessageID: str(9),
	}, nil
}

// parseAddressList decodes a parenthesized list of 4-tuples
// (name route mailbox host). Any position may be NIL. The address is
// mailbox@host when both are present; some servers return a pre-joined
// address in the mailbox slot with a NIL host, which is used as-is.
// Tuples with no usable mailbox are dropped.
func parseAddressList(raw string) []EmailAddress {
	p := newScanner(raw)
	var out []EmailAddress
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		if p.peek() != '(' {
			p.i++
			continue
		}
		inner, err := p.readGroup()
		if err != nil {
			break
		}

		q := newScanner(inner)
		var parts [4]scanValue
		for n := 0; n < 4; n++ {
			q.skipSpace()
			if q.eof() {
				break
			}
			v, err := q.readValue()
			if err != nil {
				break
			}
			parts[n] = v
		}

		mailbox := parts[2].str()
		host := parts[3].str()
		var address string
		switch {
		case mailbox != "" && host != "":
			address = mailbox + "@" + host
		case mailbox != "":
			address = mailbox
		default:
			continue
		}
		out = append(out, EmailAddress{
			Name:    decodeHeader(parts[0].str()),
			Address: address,
		})
	}
	return out
}

// parseListLine decodes one `* LIST (attrs) "delim" name` response.
// It returns nil (no error) for mailboxes the engine drops: \Noselect
// entries and pseudo-folders whose name collapses to the bare delimiter.
func parseListLine(line string) (*Folder, error) {
	rest, ok := strings.CutPrefix(line, "* LIST ")
	if !ok {
		return nil, nil
	}
	p := newScanner(rest)
	p.skipSpace()
	if p.eof() || p.peek() != '(' {
		return nil, fmt.Errorf("missing attribute list in %q", line)
	}
	attrsRaw, err := p.readGroup()
	if err != nil {
		return nil, err
	}
	attrs := strings.Fields(attrsRaw)
	for _, a := range attrs {
		if strings.EqualFold(a, `\Noselect`) || strings.EqualFold(a, `\NonExistent`) {
			return nil, nil
		}
	}

	delimVal, err := p.readValue()
	if err != nil {
		return nil, err
	}
	var delim rune
	if delimVal.kind == vQuoted && delimVal.val != "" {
		delim = []rune(delimVal.val)[0]
	}

	nameVal, err := p.readValue()
	if err != nil {
		return nil, err
	}
	name := nameVal.str()

	// Some servers expose the hierarchy root as a pseudo-folder; a name
	// that is nothing but the delimiter is not a mailbox.
	if delim != 0 {
		if strings.Trim(name, string(delim)) == "" {
			return nil, nil
		}
	}
	if name == "" {
		return nil, nil
	}

	shortName := name
	if delim != 0 {
		segs := strings.Split(name, string(delim))
		shortName = segs[len(segs)-1]
	}

	return &Folder{
		Name:         shortName,
		FullPath:     name,
		Type:         detectFolderType(attrs, name),
		Delimiter:    delim,
		Attributes:   attrs,
		MessageCount: -1,
		UnreadCount:  -1,
	}, nil
}

// parseStatusCounts extracts MESSAGES and UNSEEN from the trailing
// key/value list of a `* STATUS "name" (MESSAGES 4 UNSEEN 2)` line.
// Unknown keys are tolerated and ignored.
func parseStatusCounts(line string) (messages, unseen int, err error) {
	open := strings.LastIndexByte(line, '(')
	end := strings.LastIndexByte(line, ')')
	if open == -1 || end == -1 || end < open {
		return 0, 0, fmt.Errorf("no counts list in %q", line)
	}
	fields := strings.Fields(line[open+1 : end])
	for i := 0; i+1 < len(fields); i += 2 {
		n, convErr := strconv.Atoi(fields[i+1])
		if convErr != nil {
			continue
		}
		switch strings.ToUpper(fields[i]) {
		case "MESSAGES":
			messages = n
		case "UNSEEN":
			unseen = n
		}
	}
	return messages, unseen, nil
}

var appendUIDRE = regexp.MustCompile(`\[APPENDUID (\d+) (\d+)\]`)

// parseAppendUID extracts the new UID from an APPENDUID response code on
// an APPEND completion. APPEND success without the code is valid; the
// second return reports whether a UID was present.
func parseAppendUID(completion string) (uint32, bool) {
	m := appendUIDRE.FindStringSubmatch(completion)
	if m == nil {
		return 0, false
	}
	uid, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(uid), true
}

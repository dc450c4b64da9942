package imap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FolderType classifies a mailbox by role. Detection prefers SPECIAL-USE
// attributes and falls back to well-known name patterns.
type FolderType uint8

const (
	FolderOther FolderType = iota
	FolderInbox
	FolderSent
	FolderDrafts
	FolderTrash
	FolderSpam
	FolderArchive
)

func (t FolderType) String() string {
	switch t {
	case FolderInbox:
		return "Inbox"
	case FolderSent:
		return "Sent"
	case FolderDrafts:
		return "Drafts"
	case FolderTrash:
		return "Trash"
	case FolderSpam:
		return "Spam"
	case FolderArchive:
		return "Archive"
	}
	return "Other"
}

// Folder describes one mailbox as reported by LIST, optionally enriched
// by STATUS or SELECT. Counts are -1 until a STATUS has filled them in.
type Folder struct {
	// Name is the last path segment; FullPath the complete mailbox name
	// as it appears on the wire.
	Name     string
	FullPath string

	Type FolderType

	// Delimiter is the hierarchy separator, 0 when the server reported NIL.
	Delimiter  rune
	Attributes []string

	UIDValidity  uint32
	UIDNext      uint32
	MessageCount int
	UnreadCount  int
}

// IsSelectable reports whether the folder can be opened with SELECT.
func (f *Folder) IsSelectable() bool {
	for _, a := range f.Attributes {
		if strings.EqualFold(a, `\Noselect`) {
			return false
		}
	}
	return true
}

// HasChildren reports whether the server advertised child mailboxes.
func (f *Folder) HasChildren() bool {
	for _, a := range f.Attributes {
		if strings.EqualFold(a, `\HasChildren`) {
			return true
		}
	}
	return false
}

// detectFolderType maps SPECIAL-USE attributes, then name heuristics,
// to a FolderType. Attributes win over names.
func detectFolderType(attrs []string, name string) FolderType {
	for _, a := range attrs {
		switch strings.ToLower(a) {
		case `\inbox`:
			return FolderInbox
		case `\sent`:
			return FolderSent
		case `\drafts`:
			return FolderDrafts
		case `\trash`:
			return FolderTrash
		case `\junk`:
			return FolderSpam
		case `\archive`, `\all`:
			return FolderArchive
		}
	}

	lower := strings.ToLower(name)
	switch {
	case lower == "inbox":
		return FolderInbox
	case strings.Contains(lower, "sent"):
		return FolderSent
	case strings.Contains(lower, "draft"):
		return FolderDrafts
	case strings.Contains(lower, "trash"), strings.Contains(lower, "deleted"), strings.Contains(lower, "bin"):
		return FolderTrash
	case strings.Contains(lower, "spam"), strings.Contains(lower, "junk"):
		return FolderSpam
	case strings.Contains(lower, "archive"), strings.Contains(lower, "all mail"):
		return FolderArchive
	}
	return FolderOther
}

// dedupeSpecialFolders keeps at most one folder per special type. When
// several claim the same role, the one with the shortest full path wins
// (ties go to the earlier entry); the rest are demoted to FolderOther.
// Name-based heuristics routinely over-match, e.g. "Archive/Sent Items"
// alongside "Sent".
func dedupeSpecialFolders(folders []*Folder) {
	winner := map[FolderType]*Folder{}
	for _, f := range folders {
		if f.Type == FolderOther {
			continue
		}
		cur, ok := winner[f.Type]
		if !ok || len(f.FullPath) < len(cur.FullPath) {
			winner[f.Type] = f
		}
	}
	for _, f := range folders {
		if f.Type != FolderOther && winner[f.Type] != f {
			f.Type = FolderOther
		}
	}
}

// ListFolders fetches every mailbox with LIST "" "*". Unselectable and
// pseudo-folders are dropped, and special-use roles are deduplicated.
func (c *Client) ListFolders() ([]*Folder, *Error) {
	var folders []*Folder
	_, err := c.exec("list folders", `LIST "" "*"`, "", func(l *serverLine) error {
		f, perr := parseListLine(l.text())
		if perr != nil {
			return parseErrorf("list folders", "%v", perr)
		}
		if f != nil {
			folders = append(folders, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dedupeSpecialFolders(folders)
	return folders, nil
}

// FolderCounts is the result of one STATUS query.
type FolderCounts struct {
	Messages int
	Unseen   int
}

// FolderStatus fetches message and unseen counts without selecting the
// folder.
func (c *Client) FolderStatus(folder string) (FolderCounts, *Error) {
	var counts FolderCounts
	command := fmt.Sprintf("STATUS %s (MESSAGES UNSEEN)", quoteString(folder))
	_, err := c.exec("folder status", command, "", func(l *serverLine) error {
		text := l.text()
		if !strings.HasPrefix(text, "* STATUS ") {
			return nil
		}
		m, u, perr := parseStatusCounts(text)
		if perr != nil {
			return parseErrorf("folder status", "%v", perr)
		}
		counts = FolderCounts{Messages: m, Unseen: u}
		return nil
	})
	if err != nil {
		return FolderCounts{}, err
	}
	return counts, nil
}

// BatchFolderStatus runs one STATUS per folder pipelined: all commands
// go out in a single write, then the completions are read back in order.
// The result slice is positional, results[i] belonging to folders[i];
// matching relies on the server answering pipelined commands in order,
// so the most recent untagged STATUS line seen before a tagged
// completion belongs to that command. A folder the server rejects
// yields zero counts instead of failing the batch; only transport
// failures abort.
func (c *Client) BatchFolderStatus(folders []string) ([]FolderCounts, *Error) {
	const op = "batch folder status"
	if c.tp == nil {
		return nil, newError(KindNotConnected, op, "")
	}
	if c.idling {
		return nil, newError(KindServer, op, "connection is in IDLE; call IdleDone first")
	}

	results := make([]FolderCounts, len(folders))
	if len(folders) == 0 {
		return results, nil
	}

	var buf strings.Builder
	tags := make([]string, len(folders))
	for i, folder := range folders {
		tags[i] = c.tags.next()
		fmt.Fprintf(&buf, "%s STATUS %s (MESSAGES UNSEEN)%s", tags[i], quoteString(folder), nl)
	}
	if Verbose {
		debugLog(c.connID, c.mailbox, "sending pipelined STATUS batch", "folders", len(folders))
	}
	if err := c.tp.write([]byte(buf.String())); err != nil {
		err.Op = op
		return nil, err
	}

	var lastStatus string
	for i, tag := range tags {
		for {
			resp, rerr := c.readResponse()
			if rerr != nil {
				rerr.Op = op
				return nil, rerr
			}
			if strings.HasPrefix(resp.text(), "* STATUS ") {
				lastStatus = resp.text()
				continue
			}
			if !resp.completes(tag) {
				continue
			}
			ok, _ := resp.status(tag)
			if ok && lastStatus != "" {
				m, u, perr := parseStatusCounts(lastStatus)
				if perr != nil {
					return nil, parseErrorf(op, "%v", perr)
				}
				results[i] = FolderCounts{Messages: m, Unseen: u}
			}
			// A NO completion, or an OK with no STATUS line, leaves zero
			// counts for this folder; the batch keeps going.
			lastStatus = ""
			break
		}
	}
	return results, nil
}

var (
	existsRE      = regexp.MustCompile(`^\* (\d+) EXISTS`)
	uidValidityRE = regexp.MustCompile(`\[UIDVALIDITY (\d+)\]`)
	uidNextRE     = regexp.MustCompile(`\[UIDNEXT (\d+)\]`)
)

// SelectFolder opens a folder for message operations and returns its
// metadata. A NO completion maps to a FolderNotFound error. The selected
// folder is remembered for log context and later message commands.
func (c *Client) SelectFolder(folder string) (*Folder, *Error) {
	f := &Folder{
		Name:         folder,
		FullPath:     folder,
		MessageCount: -1,
		UnreadCount:  -1,
	}
	command := "SELECT " + quoteString(folder)
	_, err := c.exec("select folder", command, "", func(l *serverLine) error {
		text := l.text()
		if m := existsRE.FindStringSubmatch(text); m != nil {
			n, _ := strconv.Atoi(m[1])
			f.MessageCount = n
			return nil
		}
		if m := uidValidityRE.FindStringSubmatch(text); m != nil {
			v, _ := strconv.ParseUint(m[1], 10, 32)
			f.UIDValidity = uint32(v)
			return nil
		}
		if m := uidNextRE.FindStringSubmatch(text); m != nil {
			v, _ := strconv.ParseUint(m[1], 10, 32)
			f.UIDNext = uint32(v)
		}
		return nil
	})
	if err != nil {
		if err.Kind == KindServer {
			return nil, newError(KindFolderNotFound, "select folder", err.Detail)
		}
		return nil, err
	}
	c.mailbox = folder
	return f, nil
}

// CreateFolder creates a new mailbox.
func (c *Client) CreateFolder(folder string) *Error {
	_, err := c.exec("create folder", "CREATE "+quoteString(folder), "", nil)
	return err
}

// RenameFolder renames a mailbox.
func (c *Client) RenameFolder(from, to string) *Error {
	command := fmt.Sprintf("RENAME %s %s", quoteString(from), quoteString(to))
	_, err := c.exec("rename folder", command, "", nil)
	return err
}

// DeleteFolder removes a mailbox.
func (c *Client) DeleteFolder(folder string) *Error {
	_, err := c.exec("delete folder", "DELETE "+quoteString(folder), "", nil)
	return err
}

// EmptyFolder deletes every message in a folder: select, flag 1:* as
// \Deleted, expunge. A server that answers the STORE with a "no matching
// messages" style error is reporting an already-empty folder, which is
// success here.
func (c *Client) EmptyFolder(folder string) *Error {
	if _, err := c.SelectFolder(folder); err != nil {
		return err
	}
	_, err := c.exec("empty folder", `STORE 1:* +FLAGS (\Deleted)`, "", nil)
	if err != nil {
		if err.Kind == KindServer && strings.Contains(strings.ToLower(err.Detail), "no matching messages") {
			return nil
		}
		return err
	}
	return c.Expunge()
}

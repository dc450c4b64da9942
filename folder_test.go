package imap

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptServer answers each command line on the server end of a pipe.
// The handler gets the tag and the command fields and returns the lines
// to send back, without line endings.
func scriptServer(t *testing.T, srv net.Conn, handler func(tag string, fields []string) []string) {
	t.Helper()
	go func() {
		br := bufio.NewReader(srv)
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			fields := strings.Fields(strings.TrimSpace(line))
			if len(fields) == 0 {
				continue
			}
			for _, out := range handler(fields[0], fields[1:]) {
				if _, err := srv.Write([]byte(out + "\r\n")); err != nil {
					return
				}
			}
		}
	}()
}

func TestDetectFolderType(t *testing.T) {
	tests := []struct {
		name  string
		attrs []string
		fname string
		want  FolderType
	}{
		{"inbox exact", nil, "INBOX", FolderInbox},
		{"inbox lowercase", nil, "inbox", FolderInbox},
		{"sent by name", nil, "Sent Messages", FolderSent},
		{"drafts by name", nil, "My Drafts", FolderDrafts},
		{"trash by name", nil, "Deleted Items", FolderTrash},
		{"bin is trash", nil, "Bin", FolderTrash},
		{"junk attribute", []string{`\HasNoChildren`, `\Junk`}, "Unwanted", FolderSpam},
		{"attribute beats name", []string{`\Trash`}, "Old Sent", FolderTrash},
		{"archive by name", nil, "Archive", FolderArchive},
		{"all mail", nil, "All Mail", FolderArchive},
		{"plain folder", nil, "Receipts", FolderOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFolderType(tt.attrs, tt.fname)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDedupeSpecialFolders(t *testing.T) {
	folders := []*Folder{
		{FullPath: "Sent", Type: FolderSent},
		{FullPath: "Archive/Sent Items", Type: FolderSent},
		{FullPath: "INBOX", Type: FolderInbox},
		{FullPath: "Trash", Type: FolderTrash},
		{FullPath: "Stash", Type: FolderTrash},
	}
	dedupeSpecialFolders(folders)

	assert.Equal(t, FolderSent, folders[0].Type)
	assert.Equal(t, FolderOther, folders[1].Type, "longer path loses the Sent role")
	assert.Equal(t, FolderInbox, folders[2].Type)
	assert.Equal(t, FolderTrash, folders[3].Type, "equal length tie goes to the earlier entry")
	assert.Equal(t, FolderOther, folders[4].Type)
}

func TestListFolders(t *testing.T) {
	c, srv := newPipeClient(t)
	scriptServer(t, srv, func(tag string, fields []string) []string {
		return []string{
			`* LIST (\HasNoChildren) "/" "INBOX"`,
			`* LIST (\Noselect \HasChildren) "/" "[Gmail]"`,
			`* LIST (\HasNoChildren \Sent) "/" "[Gmail]/Sent"`,
			`* LIST (\HasNoChildren) "/" "Receipts"`,
			tag + ` OK LIST completed`,
		}
	})

	folders, err := c.ListFolders()
	require.Nil(t, err)
	require.Len(t, folders, 3, "\\Noselect entry must be dropped")

	assert.Equal(t, "INBOX", folders[0].FullPath)
	assert.Equal(t, FolderInbox, folders[0].Type)
	assert.Equal(t, "Sent", folders[1].Name)
	assert.Equal(t, FolderSent, folders[1].Type)
	assert.Equal(t, -1, folders[2].MessageCount, "counts unknown until STATUS")
}

func TestFolderStatus(t *testing.T) {
	c, srv := newPipeClient(t)
	scriptServer(t, srv, func(tag string, fields []string) []string {
		return []string{
			`* STATUS "Drafts" (MESSAGES 4 UNSEEN 2)`,
			tag + ` OK STATUS completed`,
		}
	})

	counts, err := c.FolderStatus("Drafts")
	require.Nil(t, err)
	assert.Equal(t, FolderCounts{Messages: 4, Unseen: 2}, counts)
}

func TestBatchFolderStatus(t *testing.T) {
	c, srv := newPipeClient(t)
	scriptServer(t, srv, func(tag string, fields []string) []string {
		folder := strings.Trim(fields[1], `"`)
		if folder == "Missing" {
			return []string{tag + ` NO [NONEXISTENT] no such mailbox`}
		}
		counts := map[string]string{
			"INBOX": "(MESSAGES 10 UNSEEN 3)",
			"Sent":  "(MESSAGES 5 UNSEEN 0)",
		}
		return []string{
			`* STATUS "` + folder + `" ` + counts[folder],
			tag + ` OK STATUS completed`,
		}
	})

	results, err := c.BatchFolderStatus([]string{"INBOX", "Missing", "Sent"})
	require.Nil(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, FolderCounts{Messages: 10, Unseen: 3}, results[0])
	assert.Equal(t, FolderCounts{}, results[1], "failed folder yields zero counts, not an error")
	assert.Equal(t, FolderCounts{Messages: 5, Unseen: 0}, results[2])
}

func TestSelectFolder(t *testing.T) {
	c, srv := newPipeClient(t)
	scriptServer(t, srv, func(tag string, fields []string) []string {
		return []string{
			`* 23 EXISTS`,
			`* 1 RECENT`,
			`* OK [UIDVALIDITY 99] UIDs valid`,
			`* OK [UIDNEXT 4392] Predicted next UID`,
			tag + ` OK [READ-WRITE] SELECT completed`,
		}
	})

	f, err := c.SelectFolder("INBOX")
	require.Nil(t, err)
	assert.Equal(t, 23, f.MessageCount)
	assert.Equal(t, uint32(99), f.UIDValidity)
	assert.Equal(t, uint32(4392), f.UIDNext)
	assert.Equal(t, "INBOX", c.mailbox)
}

func TestSelectFolderNotFound(t *testing.T) {
	c, srv := newPipeClient(t)
	scriptServer(t, srv, func(tag string, fields []string) []string {
		return []string{tag + ` NO [NONEXISTENT] Mailbox does not exist`}
	})

	_, err := c.SelectFolder("Nope")
	require.NotNil(t, err)
	assert.Equal(t, KindFolderNotFound, err.Kind)
	assert.Contains(t, err.Detail, "does not exist")
	assert.Empty(t, c.mailbox)
}

func TestEmptyFolderAlreadyEmpty(t *testing.T) {
	c, srv := newPipeClient(t)

	var mu sync.Mutex
	var commands []string
	scriptServer(t, srv, func(tag string, fields []string) []string {
		mu.Lock()
		commands = append(commands, fields[0])
		mu.Unlock()
		switch fields[0] {
		case "SELECT":
			return []string{`* 0 EXISTS`, tag + ` OK SELECT completed`}
		case "STORE":
			return []string{tag + ` NO No matching messages`}
		}
		return []string{tag + ` OK completed`}
	})

	err := c.EmptyFolder("Trash")
	require.Nil(t, err, "a no matching messages failure means already empty")

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, commands, "EXPUNGE", "nothing flagged, nothing to expunge")
}

func TestFolderHelpers(t *testing.T) {
	selectable := &Folder{Attributes: []string{`\HasChildren`}}
	assert.True(t, selectable.IsSelectable())
	assert.True(t, selectable.HasChildren())

	noselect := &Folder{Attributes: []string{`\Noselect`}}
	assert.False(t, noselect.IsSelectable())
	assert.False(t, noselect.HasChildren())
}

package imap

import (
	"reflect"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	raw := `"Mon, 2 Jun 2025 10:04:11 +0200" "Quarterly report" ` +
		`(("O\"Brien" NIL "obrien" "example.com")) ` +
		`(("O\"Brien" NIL "obrien" "example.com")) ` +
		`NIL ` +
		`((NIL NIL "team" "example.com")) ` +
		`NIL NIL "<parent@example.com>" "<msg-1@example.com>"`

	env, err := parseEnvelope(raw)
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}

	if env.Date != "Mon, 2 Jun 2025 10:04:11 +0200" {
		t.Errorf("Date = %q", env.Date)
	}
	if env.Subject != "Quarterly report" {
		t.Errorf("Subject = %q", env.Subject)
	}
	if len(env.From) != 1 || env.From[0].Name != `O"Brien` || env.From[0].Address != "obrien@example.com" {
		t.Errorf("From = %+v", env.From)
	}
	if env.ReplyTo != nil {
		t.Errorf("ReplyTo = %+v, want nil for NIL field", env.ReplyTo)
	}
	if len(env.To) != 1 || env.To[0].Name != "" || env.To[0].Address != "team@example.com" {
		t.Errorf("To = %+v", env.To)
	}
	if env.CC != nil {
		t.Errorf("CC = %+v, want nil", env.CC)
	}
	if env.InReplyTo != "<parent@example.com>" {
		t.Errorf("InReplyTo = %q", env.InReplyTo)
	}
	if env.MessageID != "<msg-1@example.com>" {
		t.Errorf("MessageID = %q", env.MessageID)
	}
}

func TestParseEnvelopeEncodedSubject(t *testing.T) {
	raw := `NIL "=?UTF-8?B?0J/RgNC40LLQtdGC?=" NIL NIL NIL NIL NIL NIL NIL NIL`
	env, err := parseEnvelope(raw)
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	if env.Subject != "Привет" {
		t.Errorf("Subject = %q, want decoded text", env.Subject)
	}
}

func TestParseEnvelopeLiteralSubject(t *testing.T) {
	// Subjects can arrive as literals; the reader inlines the payload
	// after the marker and CRLF.
	raw := "\"date\" {11}\r\nhello world NIL NIL NIL NIL NIL NIL NIL NIL"
	env, err := parseEnvelope(raw)
	if err != nil {
		t.Fatalf("parseEnvelope: %v", err)
	}
	if env.Subject != "hello world" {
		t.Errorf("Subject = %q", env.Subject)
	}
}

func TestParseAddressList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []EmailAddress
	}{
		{
			name: "name and full address",
			raw:  `("Ada Lovelace" NIL "ada" "example.com")`,
			want: []EmailAddress{{Name: "Ada Lovelace", Address: "ada@example.com"}},
		},
		{
			name: "pre-joined address in mailbox slot",
			raw:  `(NIL NIL "whole@example.com" NIL)`,
			want: []EmailAddress{{Address: "whole@example.com"}},
		},
		{
			name: "no usable mailbox dropped",
			raw:  `(NIL NIL NIL "example.com")`,
			want: nil,
		},
		{
			name: "multiple tuples",
			raw:  `("A" NIL "a" "x.com")("B" NIL "b" "y.com")`,
			want: []EmailAddress{{Name: "A", Address: "a@x.com"}, {Name: "B", Address: "b@y.com"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAddressList(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseAddressList(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseListLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantNil  bool
		wantPath string
		wantName string
		wantType FolderType
	}{
		{
			name:     "plain inbox",
			line:     `* LIST (\HasNoChildren) "/" "INBOX"`,
			wantPath: "INBOX",
			wantName: "INBOX",
			wantType: FolderInbox,
		},
		{
			name:     "nested folder",
			line:     `* LIST (\HasNoChildren) "/" "Work/Receipts"`,
			wantPath: "Work/Receipts",
			wantName: "Receipts",
			wantType: FolderOther,
		},
		{
			name:     "special-use attribute wins",
			line:     `* LIST (\HasNoChildren \Junk) "/" "Unwanted"`,
			wantPath: "Unwanted",
			wantName: "Unwanted",
			wantType: FolderSpam,
		},
		{
			name:     "escaped quote in name",
			line:     `* LIST () "/" "Say \"hi\""`,
			wantPath: `Say "hi"`,
			wantName: `Say "hi"`,
			wantType: FolderOther,
		},
		{
			name:     "unquoted name",
			line:     `* LIST (\HasNoChildren) "/" Drafts`,
			wantPath: "Drafts",
			wantName: "Drafts",
			wantType: FolderDrafts,
		},
		{
			name:    "noselect dropped",
			line:    `* LIST (\Noselect \HasChildren) "/" "[Gmail]"`,
			wantNil: true,
		},
		{
			name:    "bare delimiter dropped",
			line:    `* LIST () "/" "/"`,
			wantNil: true,
		},
		{
			name:    "not a list line",
			line:    `* STATUS "INBOX" (MESSAGES 3)`,
			wantNil: true,
		},
		{
			name:     "NIL delimiter",
			line:     `* LIST () NIL "Everything"`,
			wantPath: "Everything",
			wantName: "Everything",
			wantType: FolderOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseListLine(tt.line)
			if err != nil {
				t.Fatalf("parseListLine(%q): %v", tt.line, err)
			}
			if tt.wantNil {
				if f != nil {
					t.Fatalf("parseListLine(%q) = %+v, want nil", tt.line, f)
				}
				return
			}
			if f == nil {
				t.Fatalf("parseListLine(%q) = nil", tt.line)
			}
			if f.FullPath != tt.wantPath || f.Name != tt.wantName || f.Type != tt.wantType {
				t.Errorf("got {path:%q name:%q type:%v}, want {path:%q name:%q type:%v}",
					f.FullPath, f.Name, f.Type, tt.wantPath, tt.wantName, tt.wantType)
			}
		})
	}
}

func TestParseStatusCounts(t *testing.T) {
	tests := []struct {
		name         string
		line         string
		wantMessages int
		wantUnseen   int
		wantErr      bool
	}{
		{
			name:         "both counts",
			line:         `* STATUS "Drafts" (MESSAGES 4 UNSEEN 2)`,
			wantMessages: 4,
			wantUnseen:   2,
		},
		{
			name:         "unknown keys tolerated",
			line:         `* STATUS "INBOX" (MESSAGES 10 UIDNEXT 42 UNSEEN 3 HIGHESTMODSEQ 991)`,
			wantMessages: 10,
			wantUnseen:   3,
		},
		{
			name:         "folder name containing parens",
			line:         `* STATUS "Reports (2025)" (MESSAGES 7 UNSEEN 0)`,
			wantMessages: 7,
			wantUnseen:   0,
		},
		{
			name:    "no list",
			line:    `* STATUS "INBOX"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, u, err := parseStatusCounts(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStatusCounts: %v", err)
			}
			if m != tt.wantMessages || u != tt.wantUnseen {
				t.Errorf("got (%d, %d), want (%d, %d)", m, u, tt.wantMessages, tt.wantUnseen)
			}
		})
	}
}

func TestParseAppendUID(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantUID uint32
		wantOK  bool
	}{
		{
			name:    "present",
			text:    "OK [APPENDUID 1725812345 4392] APPEND completed",
			wantUID: 4392,
			wantOK:  true,
		},
		{
			name:   "absent",
			text:   "OK APPEND completed",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, ok := parseAppendUID(tt.text)
			if uid != tt.wantUID || ok != tt.wantOK {
				t.Errorf("parseAppendUID(%q) = (%d, %v), want (%d, %v)",
					tt.text, uid, ok, tt.wantUID, tt.wantOK)
			}
		})
	}
}

func TestParseFetchRecord(t *testing.T) {
	line := `* 7 FETCH (UID 123 RFC822.SIZE 2048 FLAGS (\Seen \Flagged Important) ` +
		`ENVELOPE ("Mon, 2 Jun 2025 10:04:11 +0200" "Hello" (("A" NIL "a" "x.com")) ` +
		`NIL NIL ((NIL NIL "b" "y.com")) NIL NIL NIL "<id@x.com>"))`

	h, err := parseFetchRecord(line)
	if err != nil {
		t.Fatalf("parseFetchRecord: %v", err)
	}
	if h == nil {
		t.Fatal("parseFetchRecord returned nil")
	}
	if h.Seq != 7 || h.UID != 123 || h.Size != 2048 {
		t.Errorf("seq/uid/size = %d/%d/%d", h.Seq, h.UID, h.Size)
	}
	if !h.Flags.Seen || !h.Flags.Flagged || len(h.Flags.Custom) != 1 || h.Flags.Custom[0] != "Important" {
		t.Errorf("flags = %+v", h.Flags)
	}
	if h.Envelope.Subject != "Hello" {
		t.Errorf("subject = %q", h.Envelope.Subject)
	}
	if len(h.Envelope.To) != 1 || h.Envelope.To[0].Address != "b@y.com" {
		t.Errorf("to = %+v", h.Envelope.To)
	}
}

func TestParseFetchRecordUnknownAttributes(t *testing.T) {
	line := `* 3 FETCH (X-GM-MSGID 1278455344230334865 UID 9 MODSEQ (912) FLAGS ())`
	h, err := parseFetchRecord(line)
	if err != nil {
		t.Fatalf("parseFetchRecord: %v", err)
	}
	if h.UID != 9 {
		t.Errorf("UID = %d, want 9", h.UID)
	}
	if h.Flags.Seen {
		t.Error("empty FLAGS parsed as seen")
	}
}

func TestParseFetchRecordNotFetch(t *testing.T) {
	h, err := parseFetchRecord(`* 12 EXISTS`)
	if err != nil || h != nil {
		t.Errorf("got (%+v, %v), want (nil, nil)", h, err)
	}
}

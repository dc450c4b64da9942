package imap

import (
	"strings"
	"time"
)

// String replacers for escaping/unescaping quoted strings on the wire.
var (
	AddSlashes    = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	RemoveSlashes = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// Verbose outputs every command and its response with the IMAP server
var Verbose = false

// SkipResponses skips printing server responses in verbose mode
var SkipResponses = false

// DialTimeout defines how long to wait when establishing a new connection.
// Zero means no timeout.
var DialTimeout = 30 * time.Second

// LineTimeout bounds every control-line read. A read that exceeds it
// surfaces as a Timeout error, distinct from a hard I/O error.
var LineTimeout = 30 * time.Second

// LiteralTimeout bounds reads of {N} body literals, which can be large.
var LiteralTimeout = 60 * time.Second

// TLSSkipVerify disables certificate verification when establishing new
// connections. Use with caution; skipping verification exposes the
// connection to man-in-the-middle attacks.
var TLSSkipVerify bool

// Package imap implements the IMAP4rev1 wire protocol directly over a
// TLS stream, without delegating parsing or command sequencing to a
// higher-level IMAP library.
//
// It covers the operations a mail client's sync engine needs:
//
//   - Connecting over TLS and authenticating with LOGIN or XOAUTH2
//   - Listing folders and STATUS, including pipelined batch STATUS
//   - Selecting folders, fetching headers and bodies, setting flags
//   - Copying, moving, appending, expunging, and folder management
//   - IMAP IDLE as a single-event wait window paired with IdleDone
//
// A Client drives exactly one connection and is not safe for concurrent
// use; pooling, retry, and persistence belong to the caller. Every
// network operation is bounded by a timeout and returns a typed *Error
// so callers can decide retry and backoff policy themselves.
package imap

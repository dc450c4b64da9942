package imap

import "fmt"

// tagSequencer generates monotonically increasing command tags scoped to
// one connection: "A0001", "A0002", and so on. The counter is never
// reset, even across reconnects of the same Client value, so a stale
// completion from a previous command can never match a newer tag.
type tagSequencer struct {
	n uint32
}

func (s *tagSequencer) next() string {
	s.n++
	return fmt.Sprintf("A%04d", s.n)
}

package imap

import (
	"fmt"
	"strings"
)

// dropNL removes a trailing CRLF or LF from a byte slice.
func dropNL(b []byte) []byte {
	if len(b) >= 1 && b[len(b)-1] == '\n' {
		if len(b) >= 2 && b[len(b)-2] == '\r' {
			return b[:len(b)-2]
		}
		return b[:len(b)-1]
	}
	return b
}

// MakeIMAPLiteral generates IMAP literal syntax for non-ASCII strings.
// It returns a string in the format "{bytecount}\r\ntext" where bytecount
// is the number of bytes (not characters) in the input string.
// Example: MakeIMAPLiteral("тест") returns "{8}\r\nтест"
func MakeIMAPLiteral(s string) string {
	return fmt.Sprintf("{%d}\r\n%s", len(s), s)
}

// lossyUTF8 replaces invalid UTF-8 sequences with the replacement rune.
func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

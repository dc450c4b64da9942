package imap

import (
	"fmt"
	"strings"
)

// quoteString wraps s in double quotes, escaping backslashes and quotes.
func quoteString(s string) string {
	return `"` + AddSlashes.Replace(s) + `"`
}

// flagList renders a parenthesized flag list for STORE and APPEND.
func flagList(flags []string) string {
	return "(" + strings.Join(flags, " ") + ")"
}

// appendCommand builds the first phase of a two-phase APPEND: the server
// answers it with a "+" continuation, after which the raw message bytes
// follow as a {n} literal.
func appendCommand(folder string, flags []string, size int) string {
	cmd := "APPEND " + quoteString(folder)
	if len(flags) != 0 {
		cmd += " " + flagList(flags)
	}
	return fmt.Sprintf("%s {%d}", cmd, size)
}

// storeFlagsCommand builds a UID STORE adding or removing the given flags.
func storeFlagsCommand(uid uint32, flags []string, add bool) string {
	sign := "+"
	if !add {
		sign = "-"
	}
	return fmt.Sprintf("UID STORE %d %sFLAGS %s", uid, sign, flagList(flags))
}

// writeCommand assigns the next tag and sends "tag command\r\n". The
// optional logForm replaces the command in verbose logs so credentials
// never reach the log stream.
func (c *Client) writeCommand(command, logForm string) (string, *Error) {
	tag := c.tags.next()
	if Verbose {
		shown := command
		if logForm != "" {
			shown = logForm
		}
		debugLog(c.connID, c.mailbox, "sending command", "tag", tag, "command", shown)
	}
	if err := c.tp.write([]byte(tag + " " + command + nl)); err != nil {
		return tag, err
	}
	return tag, nil
}

const nl = "\r\n"

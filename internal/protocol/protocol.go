// Package protocol turns raw read buffers into typed commands and holds
// the exact response bytes the server writes back.
//
// The protocol is buffer oriented: every read is expected to carry exactly
// one whole command. Nothing here reassembles commands split across reads
// or splits several commands found in one read.
package protocol

import (
	"bytes"
	"strconv"

	"github.com/aanand-mishra/users-server/internal/types"
)

// Responses written to clients.
const (
	UserAdded      = "User added\n"
	UnknownCommand = "Unknown command\n"
	ServerBusy     = "Server is busy, try again later.\n"
)

const (
	addUserToken   = "add_user"
	listUsersToken = "list_users"
)

// Kind identifies a Command variant.
type Kind int

const (
	KindUnknown Kind = iota
	KindAddUser
	KindListUsers
)

func (k Kind) String() string {
	switch k {
	case KindAddUser:
		return "add_user"
	case KindListUsers:
		return "list_users"
	default:
		return "unknown"
	}
}

// Command is one parsed request. Name and Age are set for KindAddUser,
// Raw for KindUnknown.
type Command struct {
	Kind Kind
	Name string
	Age  int
	Raw  []byte
}

// Parse classifies buf, which must be exactly the bytes returned by one read.
//
//	add_user <name> <age>   -> KindAddUser (age is 0 when missing or not a number)
//	list_users[anything]    -> KindListUsers
//	anything else           -> KindUnknown
//
// add_user without a name token is KindUnknown.
func Parse(buf []byte) Command {
	switch {
	case hasTokenPrefix(buf, addUserToken):
		fields := bytes.Fields(buf[len(addUserToken):])
		if len(fields) == 0 {
			return unknown(buf)
		}
		cmd := Command{Kind: KindAddUser, Name: string(fields[0])}
		if len(fields) > 1 {
			cmd.Age = leadingInt(fields[1])
		}
		return cmd

	case bytes.HasPrefix(buf, []byte(listUsersToken)):
		return Command{Kind: KindListUsers}

	default:
		return unknown(buf)
	}
}

// FormatUser renders one list_users row.
func FormatUser(u types.User) []byte {
	b := make([]byte, 0, len(u.Name)+24)
	b = strconv.AppendInt(b, u.ID, 10)
	b = append(b, ' ')
	b = append(b, u.Name...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(u.Age), 10)
	return append(b, '\n')
}

func unknown(buf []byte) Command {
	return Command{Kind: KindUnknown, Raw: bytes.Clone(buf)}
}

// hasTokenPrefix reports whether buf starts with token followed by
// whitespace.
func hasTokenPrefix(buf []byte, token string) bool {
	if !bytes.HasPrefix(buf, []byte(token)) || len(buf) == len(token) {
		return false
	}
	return isSpace(buf[len(token)])
}

// leadingInt parses an optional sign followed by decimal digits from the
// start of tok, the way scanf's %d does, and ignores whatever follows.
// It returns 0 when there are no digits or the value overflows int.
func leadingInt(tok []byte) int {
	end := 0
	if end < len(tok) && (tok[end] == '-' || tok[end] == '+') {
		end++
	}
	digits := end
	for end < len(tok) && tok[end] >= '0' && tok[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}

	n, err := strconv.Atoi(string(tok[:end]))
	if err != nil {
		return 0
	}
	return n
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

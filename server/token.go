package server

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"
)

// A TokenDecoder validates and decodes the API keys passed in the
// X-Api-Key header. If the given token is not valid, for whatever reason,
// the user "" with a role of RoleUnknown is returned. An error is returned
// only if the lookup itself failed and the status of the token is unknown.
type TokenDecoder interface {
	TokenDecode(token string) (user string, role Role, err error)
}

// A Role is the level of access a token gives. Each role includes
// everything the roles before it allow.
type Role int

const (
	RoleUnknown Role = iota
	RoleMDOnly       // resource metadata only
	RoleRead         // metadata and listings
	RoleWrite        // uploads
	RoleAdmin        // deletes and server settings
)

var roleNames = []string{"unknown", "mdonly", "read", "write", "admin"}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "unknown"
	}
	return roleNames[r]
}

func atoRole(s string) Role {
	s = strings.ToLower(s)
	for i, name := range roleNames {
		if s == name {
			return Role(i)
		}
	}
	return RoleUnknown
}

// NewNobodyDecoder creates a TokenDecoder that for every possible token
// returns a user named "nobody" with the Admin role. Use it only for
// development.
func NewNobodyDecoder() TokenDecoder {
	return nobodyDecoder{}
}

type nobodyDecoder struct{}

func (nobodyDecoder) TokenDecode(token string) (string, Role, error) {
	return "nobody", RoleAdmin, nil
}

// NewListDecoder returns a decoder backed by a fixed list of users read from
// r. Each line of r has the form
//
//	<user name>  <role>  <token>
//
// with the fields separated by spaces or tabs, so neither the name nor the
// token may contain any. The role is one of "MDOnly", "Read", "Write",
// "Admin" (case insensitive). Empty lines and lines beginning with a hash
// '#' are skipped, as are lines with the wrong number of fields.
func NewListDecoder(r io.Reader) (TokenDecoder, error) {
	users, err := parseListFile(r)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].token < users[j].token })
	return listDecoder{users}, nil
}

// NewListDecoderFile reads the user list from the named file.
func NewListDecoderFile(fname string) (TokenDecoder, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewListDecoder(f)
}

// NewListDecoderString reads the user list from a string.
func NewListDecoderString(data string) (TokenDecoder, error) {
	return NewListDecoder(strings.NewReader(data))
}

type userEntry struct {
	token string
	user  string
	role  Role
}

func parseListFile(r io.Reader) ([]userEntry, error) {
	var result []userEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		pieces := strings.Fields(scanner.Text())
		if len(pieces) == 0 || pieces[0][0] == '#' {
			continue
		}
		if len(pieces) != 3 {
			continue
		}
		result = append(result, userEntry{
			token: pieces[2],
			user:  pieces[0],
			role:  atoRole(pieces[1]),
		})
	}
	return result, scanner.Err()
}

type listDecoder struct {
	data []userEntry
}

func (ld listDecoder) TokenDecode(token string) (string, Role, error) {
	users := ld.data
	i := sort.Search(len(users), func(i int) bool { return users[i].token >= token })
	if i < len(users) && users[i].token == token {
		return users[i].user, users[i].role, nil
	}
	return "", RoleUnknown, nil
}

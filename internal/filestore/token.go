package filestore

import "strings"

// TokenKind tells how a Token addresses an entry.
type TokenKind int

const (
	// TokenPath addresses an entry by its storage path.
	TokenPath TokenKind = iota + 1
	// TokenID addresses an entry by its File or Directory id.
	TokenID
)

// Token is a client-supplied reference to a file or directory.
type Token struct {
	Kind  TokenKind
	Value string
}

// PathToken builds a path token in canonical form.
func PathToken(p string) Token {
	return Token{Kind: TokenPath, Value: CleanPath(p)}
}

// IDToken builds an identifier token.
func IDToken(id string) Token {
	return Token{Kind: TokenID, Value: id}
}

// ParseToken classifies raw: anything containing a separator is a path
// (prefixed with "/" if missing), anything else is an id.
func ParseToken(raw string) Token {
	if strings.Contains(raw, Separator) {
		return PathToken(raw)
	}
	return IDToken(raw)
}

func (t Token) String() string {
	if t.Kind == TokenID {
		return "id:" + t.Value
	}
	return t.Value
}

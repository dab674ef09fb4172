package txtrack

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	tokenPrefix     = "transaction-"
	committedMarker = ":committed:"
)

// Token is an opaque transaction correlation identifier.
type Token string

// NewToken mints a fresh token.
func NewToken() Token {
	return Token(tokenPrefix + uuid.NewString())
}

func (t Token) String() string {
	return string(t)
}

// Base returns the token minted by Begin, without any committed suffix.
func (t Token) Base() Token {
	if idx := strings.LastIndex(string(t), committedMarker); idx != -1 {
		return t[:idx]
	}
	return t
}

// Generation reports how many times the token went through Change.
// A freshly minted token has generation 0.
func (t Token) Generation() int {
	idx := strings.LastIndex(string(t), committedMarker)
	if idx == -1 {
		return 0
	}
	n, err := strconv.Atoi(string(t[idx+len(committedMarker):]))
	if err != nil {
		return 0
	}
	return n
}

// Committed reports whether the token was derived by a successful commit.
func (t Token) Committed() bool {
	return t.Generation() > 0
}

// next derives the post-commit token: <base>:committed:<generation+1>.
func (t Token) next() Token {
	return Token(string(t.Base()) + committedMarker + strconv.Itoa(t.Generation()+1))
}

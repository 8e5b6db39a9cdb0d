package model

import (
	"strings"
	"time"
)

// AuthorizationCode is one row of the codes table. Only a hash of the code
// value is persisted.
//   - CodeHash: sha256 hex of the code handed to the client
//   - ClientID / RedirectURL: the binding checked at exchange time
//   - Me: normalized identity URL (trailing slash)
//   - Scope: space-delimited capability names
type AuthorizationCode struct {
	CodeHash    string
	ClientID    string
	RedirectURL string
	Me          string
	Scope       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// ValidAt reports whether the code may still be exchanged at t.
func (c *AuthorizationCode) ValidAt(t time.Time) bool { return t.Before(c.ExpiresAt) }

// Scopes is a set of capability names.
type Scopes []string

const (
	ScopeCreate   = "create"
	ScopeUpdate   = "update"
	ScopeDelete   = "delete"
	ScopeUndelete = "undelete"
)

// ParseScopes splits a space-delimited scope string.
func ParseScopes(s string) Scopes { return Scopes(strings.Fields(s)) }

func (s Scopes) Has(scope string) bool {
	for _, v := range s {
		if v == scope {
			return true
		}
	}
	return false
}

func (s Scopes) String() string { return strings.Join(s, " ") }

// NormalizeMe gives an identity URL its canonical trailing slash.
func NormalizeMe(me string) string {
	me = strings.TrimSpace(me)
	if strings.HasSuffix(me, "/") {
		return me
	}
	return me + "/"
}

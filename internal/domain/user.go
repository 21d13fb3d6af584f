// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"unicode/utf8"
)

const (
	MaxDisplayNameLen  = 36
	DefaultDisplayName = "guest"
)

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

// Identity is what the external auth system tells us about a person.
// The engine treats it as opaque display data.
type Identity struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// NewIdentity is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewIdentity(displayName, avatarURL string) (Identity, error) {
	if len(displayName) == 0 {
		return Identity{}, ErrDisplayNameEmpty
	}
	if utf8.RuneCountInString(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{DisplayName: displayName, AvatarURL: avatarURL}, nil
}

// Normalize applies defaults to an identity received from the wire.
// A missing identity becomes a guest; long names are cut, not rejected.
func Normalize(who *Identity) Identity {
	if who == nil {
		return Identity{DisplayName: DefaultDisplayName}
	}
	out := *who
	if out.DisplayName == "" {
		out.DisplayName = DefaultDisplayName
	}
	if utf8.RuneCountInString(out.DisplayName) > MaxDisplayNameLen {
		out.DisplayName = string([]rune(out.DisplayName)[:MaxDisplayNameLen])
	}
	return out
}

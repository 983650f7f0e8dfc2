// Package model defines the data structures used throughout the application.
package model

import "time"

// IdentityStatus tracks whether a user has completed the one-time username
// selection. A user record is created in StatusProvisional on first OAuth
// login and moves to StatusEstablished exactly once, when FinalizeUsername
// succeeds. The status column is authoritative — we never infer the state by
// comparing the username to the identity hash.
type IdentityStatus string

const (
	StatusProvisional IdentityStatus = "provisional"
	StatusEstablished IdentityStatus = "established"
)

// User represents a registered user account.
//
// We use Google OAuth as the identity provider. We never store the raw
// Google subject identifier — only a one-way SHA-256 hash of it
// (IdentityHash), which is enough to re-identify a returning principal.
// Both Username and IdentityHash carry UNIQUE constraints in the store.
//
// Username is mutable exactly once: a provisional user's username is the
// identity hash (a placeholder that satisfies the uniqueness constraint),
// replaced by the chosen name when the account is established. Posts carry
// a denormalized copy of the username, which is safe precisely because the
// username never changes after that point.
type User struct {
	ID           int64          `json:"id"`
	Username     string         `json:"username"`
	IdentityHash string         `json:"-"` // never exposed over the API
	Status       IdentityStatus `json:"status"`
	AvatarURL    string         `json:"avatarUrl"` // empty → generated avatar fallback
	MemberSince  time.Time      `json:"memberSince"`
}

// Provisional reports whether the user still has to choose a username.
func (u *User) Provisional() bool {
	return u.Status == StatusProvisional
}

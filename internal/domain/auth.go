package domain

import "time"

// AuthMethod records how a session was obtained.
type AuthMethod string

const (
	AuthMethodPIN      AuthMethod = "PIN"
	AuthMethodPassword AuthMethod = "PASSWORD"
)

// Session is an issued access/refresh token pair bound to one account.
type Session struct {
	AccountID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshSession is the persisted side of a refresh token. Only the hash is stored.
type RefreshSession struct {
	ID            string
	AccountID     string
	FamilyID      string
	TokenHash     string
	Method        AuthMethod
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason string
	CreatedAt     time.Time
}

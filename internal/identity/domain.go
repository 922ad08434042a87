package identity

import (
	"errors"
	"time"
)

// User represents a registered account in the credential store.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	CreatedAt    time.Time
}

// DisplayName renders the name injected into gateway identity headers.
func (u *User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

// RefreshToken is the stored record for an issued refresh token. Only the
// bcrypt hash of the opaque value is persisted; rows are flagged revoked,
// never deleted, to keep an audit trail.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	IsRevoked bool
	CreatedAt time.Time
}

// TokenPair is the envelope returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Source records how a VerifiedIdentity was established.
type Source string

const (
	// SourceGateway means the identity came from gateway-injected headers.
	SourceGateway Source = "gateway"
	// SourceDirect means the service verified the bearer token itself.
	SourceDirect Source = "direct"
)

// VerifiedIdentity is the per-request authentication result. It lives for
// one request only and must never be cached or persisted.
type VerifiedIdentity struct {
	UserID      int64
	Email       string
	DisplayName string
	Source      Source
}

// Identity headers set by the gateway on forwarded protected requests. The
// gateway strips caller-supplied copies before injecting its own, so their
// presence downstream implies gateway provenance.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// Sentinel errors surfaced by the token service. Credential failures share
// one value so callers cannot tell an unknown email from a wrong password.
var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactiveUser       = errors.New("inactive user")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
	ErrNotFound           = errors.New("not found")
)

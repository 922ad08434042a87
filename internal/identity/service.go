package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Service wraps the token lifecycle business rules: credential checks,
// access-token issuance and verification, refresh-token rotation.
type Service struct {
	repo       Repository
	issuer     *TokenIssuer
	refreshTTL time.Duration
}

// NewService constructs a new Service.
func NewService(repo Repository, issuer *TokenIssuer, refreshTTL time.Duration) *Service {
	return &Service{repo: repo, issuer: issuer, refreshTTL: refreshTTL}
}

// Register creates a new account. The password is stored only as a bcrypt
// hash and is never recoverable.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, email, string(hash), firstName, lastName)
}

// Login validates email/password credentials and issues a token pair.
// Unknown email and wrong password return the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}
	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new pair and revokes the
// presented token. Rotation is exactly-once: of two concurrent calls with
// the same token only one can succeed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	match, err := s.findActiveToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrInvalidRefresh
	}

	user, err := s.repo.FindUserByID(ctx, match.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidRefresh
	}

	value, err := NewRefreshTokenValue()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash refresh token: %w", err)
	}
	if err := s.repo.RotateRefreshToken(ctx, match.ID, user.ID, string(hash), time.Now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}

	access, err := s.issuer.MintAccess(user)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: value,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// Verify validates an access token and loads the referenced user, rejecting
// accounts deactivated after the token was minted.
func (s *Service) Verify(ctx context.Context, accessToken string) (*User, error) {
	claims, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// Revoke marks the matching stored token revoked. It is idempotent: an
// unknown or already-revoked token is a no-op so logout never fails.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	match, err := s.findActiveToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if match == nil {
		return nil
	}
	_, err = s.repo.RevokeRefreshToken(ctx, match.ID)
	return err
}

// ListUsers returns registered users, newest first.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListUsers(ctx, limit, offset)
}

func (s *Service) issuePair(ctx context.Context, user *User) (*TokenPair, error) {
	access, err := s.issuer.MintAccess(user)
	if err != nil {
		return nil, err
	}
	value, err := NewRefreshTokenValue()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash refresh token: %w", err)
	}
	if err := s.repo.InsertRefreshToken(ctx, user.ID, string(hash), time.Now().Add(s.refreshTTL)); err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: value,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}, nil
}

// findActiveToken scans the non-revoked unexpired records and hash-compares
// each against the presented value. Linear, because only hashes are stored;
// acceptable at this scale.
func (s *Service) findActiveToken(ctx context.Context, refreshToken string) (*RefreshToken, error) {
	tokens, err := s.repo.ActiveRefreshTokens(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tokens {
		if bcrypt.CompareHashAndPassword([]byte(tokens[i].TokenHash), []byte(refreshToken)) == nil {
			return &tokens[i], nil
		}
	}
	return nil, nil
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskgate/taskgate/internal/platform/db"
)

// Repository defines persistence operations for the identity module.
type Repository interface {
	CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	ActiveRefreshTokens(ctx context.Context) ([]RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id int64) (bool, error)
	RotateRefreshToken(ctx context.Context, tokenID, userID int64, newHash string, expiresAt time.Time) error
	MarkExpiredRevoked(ctx context.Context, now time.Time) (int64, error)
	ActiveCount(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, is_active, created_at`

// EnsureSchema creates the identity tables and indexes if they do not exist.
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			first_name VARCHAR(50) NOT NULL,
			last_name VARCHAR(50) NOT NULL,
			is_active BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT REFERENCES users(id) ON DELETE CASCADE,
			token_hash VARCHAR(255) NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			is_revoked BOOLEAN DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("identity: ensure schema: %w", err)
		}
	}
	return nil
}

// CreateUser inserts a new user, mapping unique violations to ErrDuplicateEmail.
func (r *PGRepository) CreateUser(ctx context.Context, email, passwordHash, firstName, lastName string) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, email, passwordHash, firstName, lastName)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("identity: create user: %w", err)
	}
	return user, nil
}

// FindUserByEmail fetches a user by email.
func (r *PGRepository) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity: find user by email: %w", err)
	}
	return user, nil
}

// FindUserByID fetches a user by primary key.
func (r *PGRepository) FindUserByID(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("identity: find user by id: %w", err)
	}
	return user, nil
}

// ListUsers returns users ordered by most recent registration.
func (r *PGRepository) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("identity: list users: %w", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.IsActive, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("identity: scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("identity: list users: %w", err)
	}
	return users, nil
}

// InsertRefreshToken stores the hash of a newly issued refresh token.
func (r *PGRepository) InsertRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)`, userID, tokenHash, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("identity: insert refresh token: %w", err)
	}
	return nil
}

// ActiveRefreshTokens returns all non-revoked, unexpired token records. The
// plaintext is never stored, so callers must hash-compare against each row.
func (r *PGRepository) ActiveRefreshTokens(ctx context.Context) ([]RefreshToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, token_hash, expires_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE expires_at > NOW() AND is_revoked = FALSE`)
	if err != nil {
		return nil, fmt.Errorf("identity: active refresh tokens: %w", err)
	}
	defer rows.Close()
	var tokens []RefreshToken
	for rows.Next() {
		var token RefreshToken
		if err := rows.Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.IsRevoked, &token.CreatedAt); err != nil {
			return nil, fmt.Errorf("identity: scan refresh token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("identity: active refresh tokens: %w", err)
	}
	return tokens, nil
}

// RevokeRefreshToken flags a token revoked. The is_revoked = FALSE guard is
// a compare-and-swap: it reports false when another caller already won.
func (r *PGRepository) RevokeRefreshToken(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE id = $1 AND is_revoked = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("identity: revoke refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RotateRefreshToken atomically revokes the matched token and inserts the
// replacement. Two concurrent rotations of the same token cannot both
// succeed: the loser's update matches zero rows and the tx reports
// ErrInvalidRefresh.
func (r *PGRepository) RotateRefreshToken(ctx context.Context, tokenID, userID int64, newHash string, expiresAt time.Time) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE refresh_tokens SET is_revoked = TRUE
			WHERE id = $1 AND is_revoked = FALSE`, tokenID)
		if err != nil {
			return fmt.Errorf("identity: rotate revoke: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return ErrInvalidRefresh
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
			VALUES ($1, $2, $3)`, userID, newHash, expiresAt.UTC()); err != nil {
			return fmt.Errorf("identity: rotate insert: %w", err)
		}
		return nil
	})
}

// MarkExpiredRevoked flags expired-but-unrevoked tokens. Rows stay in place
// for the audit trail; this only closes them out.
func (r *PGRepository) MarkExpiredRevoked(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE expires_at <= $1 AND is_revoked = FALSE`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("identity: mark expired revoked: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ActiveCount counts non-revoked, unexpired refresh tokens.
func (r *PGRepository) ActiveCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE expires_at > NOW() AND is_revoked = FALSE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("identity: active count: %w", err)
	}
	return count, nil
}

// Ping reports store connectivity for health checks.
func (r *PGRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.IsActive, &user.CreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)

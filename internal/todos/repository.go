package todos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilter narrows the todo listing.
type ListFilter struct {
	Completed *bool
	Priority  string
	Limit     int
	Offset    int
}

// Update carries the partial-update fields; nil means unchanged.
type Update struct {
	Title       *string
	Description *string
	Completed   *bool
	Priority    *string
}

// Repository defines persistence operations for the todos module.
type Repository interface {
	List(ctx context.Context, userID int64, filter ListFilter) ([]Todo, error)
	Create(ctx context.Context, userID int64, title string, description *string, priority string) (*Todo, error)
	Get(ctx context.Context, id, userID int64) (*Todo, error)
	Update(ctx context.Context, id, userID int64, update Update) (*Todo, error)
	Delete(ctx context.Context, id, userID int64) error
	Stats(ctx context.Context, userID int64) (*Stats, error)
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

const todoColumns = `id, title, description, completed, priority, user_id, created_at, updated_at`

// EnsureSchema creates the todos table and indexes if they do not exist.
func (r *PGRepository) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS todos (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			description TEXT,
			completed BOOLEAN DEFAULT FALSE,
			priority VARCHAR(10) DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
			user_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_user_id ON todos(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_todos_completed ON todos(completed)`,
	}
	for _, stmt := range statements {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("todos: ensure schema: %w", err)
		}
	}
	return nil
}

// List returns the user's todos, newest first.
func (r *PGRepository) List(ctx context.Context, userID int64, filter ListFilter) ([]Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE user_id = $1`
	args := []any{userID}

	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		query += ` AND completed = $` + strconv.Itoa(len(args))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		query += ` AND priority = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("todos: list: %w", err)
	}
	defer rows.Close()
	var items []Todo
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("todos: scan: %w", err)
		}
		items = append(items, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("todos: list: %w", err)
	}
	return items, nil
}

// Create inserts a new todo for the user.
func (r *PGRepository) Create(ctx context.Context, userID int64, title string, description *string, priority string) (*Todo, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO todos (title, description, priority, user_id)
		VALUES ($1, $2, $3, $4)
		RETURNING `+todoColumns, title, description, priority, userID)
	todo, err := scanTodo(row)
	if err != nil {
		return nil, fmt.Errorf("todos: create: %w", err)
	}
	return todo, nil
}

// Get fetches one todo scoped to its owner.
func (r *PGRepository) Get(ctx context.Context, id, userID int64) (*Todo, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("todos: get: %w", err)
	}
	return todo, nil
}

// Update applies the provided fields and bumps updated_at.
func (r *PGRepository) Update(ctx context.Context, id, userID int64, update Update) (*Todo, error) {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if update.Title != nil {
		add("title", *update.Title)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Completed != nil {
		add("completed", *update.Completed)
	}
	if update.Priority != nil {
		add("priority", *update.Priority)
	}
	if len(sets) == 0 {
		return nil, ErrNoFields
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	idArg := strconv.Itoa(len(args))
	args = append(args, userID)
	userArg := strconv.Itoa(len(args))

	row := r.pool.QueryRow(ctx, `
		UPDATE todos SET `+strings.Join(sets, ", ")+`
		WHERE id = $`+idArg+` AND user_id = $`+userArg+`
		RETURNING `+todoColumns, args...)
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("todos: update: %w", err)
	}
	return todo, nil
}

// Delete removes a todo scoped to its owner.
func (r *PGRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("todos: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates todo counts for the user.
func (r *PGRepository) Stats(ctx context.Context, userID int64) (*Stats, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE completed = TRUE) AS completed,
			COUNT(*) FILTER (WHERE completed = FALSE) AS pending,
			COUNT(*) FILTER (WHERE priority = 'high') AS high_priority,
			COUNT(*) FILTER (WHERE priority = 'medium') AS medium_priority,
			COUNT(*) FILTER (WHERE priority = 'low') AS low_priority
		FROM todos
		WHERE user_id = $1`, userID)
	var stats Stats
	if err := row.Scan(&stats.Total, &stats.Completed, &stats.Pending, &stats.High, &stats.Medium, &stats.Low); err != nil {
		return nil, fmt.Errorf("todos: stats: %w", err)
	}
	return &stats, nil
}

// Ping reports store connectivity for health checks.
func (r *PGRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanTodo(row pgx.Row) (*Todo, error) {
	var todo Todo
	if err := row.Scan(&todo.ID, &todo.Title, &todo.Description, &todo.Completed, &todo.Priority, &todo.UserID, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
		return nil, err
	}
	return &todo, nil
}

var _ Repository = (*PGRepository)(nil)

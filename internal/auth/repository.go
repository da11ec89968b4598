package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// ErrUsernameTaken is returned when registration hits an existing username.
var ErrUsernameTaken = errors.New("username already in use")

// Querier defines what the auth repository needs from the database layer.
type Querier interface {
	InsertUser(ctx context.Context, user *models.User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
	UpdateProfile(ctx context.Context, id int64, displayName, avatarEmoji, avatarColor *string) (*models.User, error)
}

// Repository implements user data access operations.
type Repository struct {
	queries Querier
}

// NewRepository creates a new auth repository.
func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// CreateUser persists a new account and fills in its ID.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	id, err := r.queries.InsertUser(ctx, user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

// UserByUsername looks up an active account, nil when unknown.
func (r *Repository) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := r.queries.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	return user, nil
}

// UserByID looks up an account by ID, nil when unknown.
func (r *Repository) UserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := r.queries.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// HasUsers reports whether any account exists. While false the admin
// endpoints run in open setup mode.
func (r *Repository) HasUsers(ctx context.Context) (bool, error) {
	count, err := r.queries.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return count > 0, nil
}

// TouchLastSeen records a successful login.
func (r *Repository) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	if err := r.queries.TouchLastSeen(ctx, id, at); err != nil {
		return fmt.Errorf("failed to touch last_seen: %w", err)
	}
	return nil
}

// UpdateProfile applies the non-nil profile fields and returns the result.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, displayName, avatarEmoji, avatarColor *string) (*models.User, error) {
	user, err := r.queries.UpdateProfile(ctx, id, displayName, avatarEmoji, avatarColor)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// PGQueries is the pgx-backed Querier implementation.
type PGQueries struct {
	pool *pgxpool.Pool
}

// NewPGQueries creates the Postgres query layer for auth.
func NewPGQueries(pool *pgxpool.Pool) *PGQueries {
	return &PGQueries{pool: pool}
}

const userColumns = `id, username, password_hash, COALESCE(display_name, ''),
	COALESCE(avatar_color, '#d4a843'), COALESCE(avatar_emoji, '🎭'),
	es_admin, activo, last_seen, created_at`

func (q *PGQueries) InsertUser(ctx context.Context, user *models.User) (int64, error) {
	var id int64
	err := q.pool.QueryRow(ctx,
		`INSERT INTO usuarios (username, password_hash, display_name, avatar_color, avatar_emoji, es_admin, activo, last_seen, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7) RETURNING id`,
		user.Username, user.PasswordHash, user.DisplayName, user.AvatarColor, user.AvatarEmoji, user.IsAdmin, user.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (q *PGQueries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE username = $1 AND activo = TRUE`,
		username,
	)
	return scanUser(row)
}

func (q *PGQueries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE id = $1 AND activo = TRUE`,
		id,
	)
	return scanUser(row)
}

func (q *PGQueries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&count)
	return count, err
}

func (q *PGQueries) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	_, err := q.pool.Exec(ctx, `UPDATE usuarios SET last_seen = $2 WHERE id = $1`, id, at)
	return err
}

func (q *PGQueries) UpdateProfile(ctx context.Context, id int64, displayName, avatarEmoji, avatarColor *string) (*models.User, error) {
	row := q.pool.QueryRow(ctx,
		`UPDATE usuarios SET
		   display_name = COALESCE($2, display_name),
		   avatar_emoji = COALESCE($3, avatar_emoji),
		   avatar_color = COALESCE($4, avatar_color)
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, displayName, avatarEmoji, avatarColor,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName,
		&u.AvatarColor, &u.AvatarEmoji, &u.IsAdmin, &u.Active, &u.LastSeen, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

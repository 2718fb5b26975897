package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByUsername(ctx context.Context, username string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdatePushToken(ctx context.Context, id, token string) error
	ClearPushToken(ctx context.Context, id, token string) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
}

const userColumns = `id::text, username, password_hash, full_name, email, phone_number, address, role,
    COALESCE(push_token, ''), token_version, created_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new user with a zero balance.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, username, password_hash, full_name, email, phone_number, address, role, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, user.Username, user.PasswordHash, user.FullName, user.Email, user.PhoneNumber, user.Address, user.Role, user.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrUserExists
	}
	return err
}

// FindByUsername fetches a user by login name.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrUserNotFound
	}
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// UpdatePushToken stores the device token used for push notifications.
func (r *PostgresRepository) UpdatePushToken(ctx context.Context, id, token string) error {
	return r.exec(ctx, `UPDATE users SET push_token = NULLIF($2, '') WHERE id = $1`, id, token)
}

// ClearPushToken removes the token only when it is still the one on file.
func (r *PostgresRepository) ClearPushToken(ctx context.Context, id, token string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrUserNotFound
	}
	_, err := r.db.Exec(ctx, `UPDATE users SET push_token = NULL WHERE id = $1 AND push_token = $2`, id, token)
	return err
}

// UpdateTokenVersion sets the version embedded in newly issued tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.exec(ctx, `UPDATE users SET token_version = $2 WHERE id = $1`, id, version)
}

func (r *PostgresRepository) exec(ctx context.Context, query, id string, arg any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrUserNotFound
	}
	cmd, err := r.db.Exec(ctx, query, id, arg)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Email,
		&user.PhoneNumber, &user.Address, &user.Role, &user.PushToken, &user.TokenVersion, &user.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

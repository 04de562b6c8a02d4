package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/moments/internal/domain"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	IncrementFailedLogins(ctx context.Context, id string) (int, error)
	ResetFailedLogins(ctx context.Context, id string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, name, username, email, password_hash, role, confirmed, locked, blocked,
        failed_logins, bio, website, location, member_since, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Confirmed,
		&user.Locked,
		&user.Blocked,
		&user.FailedLogins,
		&user.Bio,
		&user.Website,
		&user.Location,
		&user.MemberSince,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, username, email, password_hash, role, confirmed, locked, blocked, bio, website, location)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, member_since, created_at, updated_at`

	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Username,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Role,
		user.Confirmed,
		user.Locked,
		user.Blocked,
		user.Bio,
		user.Website,
		user.Location,
	).Scan(&user.ID, &user.MemberSince, &user.CreatedAt, &user.UpdatedAt)
	return mapWriteError(err)
}

// Update writes the account fields. failed_logins is left alone; it only
// changes through IncrementFailedLogins and ResetFailedLogins so concurrent
// login attempts are never overwritten by a stale copy.
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, username=$2, email=$3, password_hash=$4, role=$5, confirmed=$6,
            locked=$7, blocked=$8, bio=$9, website=$10, location=$11, updated_at=NOW()
        WHERE id=$12`

	cmd, err := r.pool.Exec(ctx, query,
		user.Name,
		user.Username,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Role,
		user.Confirmed,
		user.Locked,
		user.Blocked,
		user.Bio,
		user.Website,
		user.Location,
		user.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username=$1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

// IncrementFailedLogins bumps the counter in one statement and returns the new value.
func (r *userRepository) IncrementFailedLogins(ctx context.Context, id string) (int, error) {
	const query = `
        UPDATE users SET failed_logins = failed_logins + 1, updated_at=NOW()
        WHERE id=$1
        RETURNING failed_logins`
	var count int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *userRepository) ResetFailedLogins(ctx context.Context, id string) error {
	const query = `
        UPDATE users SET failed_logins = 0, updated_at=NOW()
        WHERE id=$1 AND failed_logins <> 0`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akovalyov/cliphub/internal/common"
	"github.com/akovalyov/cliphub/internal/dbx"
	"github.com/akovalyov/cliphub/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolation = "23505"

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, full_name, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query :=
		`SELECT id, username, email, full_name, password_hash, avatar_key, cover_key, created_at
		 FROM users
		 WHERE username = $1 OR email = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, identifier))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query :=
		`SELECT id, username, email, full_name, password_hash, avatar_key, cover_key, created_at
		 FROM users
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id, passwordHash)
}

func (r *PostgresRepository) UpdateDetails(ctx context.Context, id string, fullName, email string) error {
	query :=
		`UPDATE users SET full_name = $2, email = $3
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, fullName, email)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return r.requireRow(res)
}

func (r *PostgresRepository) UpdateAvatarKey(ctx context.Context, id string, key string) error {
	query :=
		`UPDATE users SET avatar_key = $2
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id, key)
}

func (r *PostgresRepository) UpdateCoverKey(ctx context.Context, id string, key string) error {
	query :=
		`UPDATE users SET cover_key = $2
		 WHERE id = $1
		 `

	return r.execOne(ctx, query, id, key)
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.PasswordHash, &user.AvatarKey, &user.CoverKey, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return r.requireRow(res)
}

func (r *PostgresRepository) requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

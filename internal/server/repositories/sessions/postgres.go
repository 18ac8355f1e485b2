package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akovalyov/cliphub/internal/dbx"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Set(ctx context.Context, userID string, token string) error {
	query := `
		INSERT INTO sessions (user_id, refresh_token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET refresh_token = EXCLUDED.refresh_token, updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, userID, token); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// Replace is a compare-and-swap: the UPDATE only matches while old is still
// the stored value, so two racing rotations cannot both succeed.
func (r *PostgresRepository) Replace(ctx context.Context, userID string, old, new string) (bool, error) {
	query := `
		UPDATE sessions
		SET refresh_token = $3, updated_at = now()
		WHERE user_id = $1 AND refresh_token = $2
	`
	res, err := r.db.ExecContext(ctx, query, userID, old, new)
	if err != nil {
		return false, fmt.Errorf("error performing sql request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT refresh_token
		FROM sessions
		WHERE user_id = $1
	`
	var token string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID string) error {
	query := `
		UPDATE sessions
		SET refresh_token = '', updated_at = now()
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

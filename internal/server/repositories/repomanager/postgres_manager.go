package repomanager

import (
	"context"
	"database/sql"

	"github.com/akovalyov/cliphub/internal/dbx"
	"github.com/akovalyov/cliphub/internal/server/migrations"
	"github.com/akovalyov/cliphub/internal/server/repositories/sessions"
	"github.com/akovalyov/cliphub/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// OpenDB opens a database/sql handle over the pgx stdlib driver.
func OpenDB(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}

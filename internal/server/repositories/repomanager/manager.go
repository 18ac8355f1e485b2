// Package repomanager wires the concrete repositories to a database handle
// and owns schema migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/akovalyov/cliphub/internal/dbx"
	"github.com/akovalyov/cliphub/internal/server/repositories/sessions"
	"github.com/akovalyov/cliphub/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}

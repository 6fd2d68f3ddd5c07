package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/nosuite/internal/dbx"
	"github.com/dmitrijs2005/nosuite/internal/server/repositories/allowlist"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	AllowList(db dbx.DBTX) allowlist.Repository
	ImportAllowLists(ctx context.Context, db *sql.DB, src *allowlist.FileRepository, lists ...string) (int, error)
}

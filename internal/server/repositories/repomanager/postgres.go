// Package repomanager provides the PostgreSQL RepositoryManager: repository
// constructors plus schema migrations through goose.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/nosuite/internal/dbx"
	"github.com/dmitrijs2005/nosuite/internal/server/migrations"
	"github.com/dmitrijs2005/nosuite/internal/server/repositories/allowlist"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Open connects with the pgx stdlib driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (m *PostgresRepositoryManager) AllowList(db dbx.DBTX) allowlist.Repository {
	return allowlist.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// ImportAllowLists copies the JSON file lists into the database in one
// transaction. Emails already present are kept. It returns the number of
// emails read.
func (m *PostgresRepositoryManager) ImportAllowLists(ctx context.Context, db *sql.DB, src *allowlist.FileRepository, lists ...string) (int, error) {
	n := 0
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := allowlist.NewPostgresRepository(tx)
		for _, list := range lists {
			emails, err := src.Load(list)
			if err != nil {
				return err
			}
			for _, email := range emails {
				if err := repo.Add(ctx, list, email); err != nil {
					return fmt.Errorf("import %s: %w", list, err)
				}
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

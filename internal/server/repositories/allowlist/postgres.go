package allowlist

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/nosuite/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Contains(ctx context.Context, list, email string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM access_list WHERE list_name = $1 AND email = $2
		 )
		 `

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, list, email).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

// Add puts email on list. Adding an email twice is not an error.
func (r *PostgresRepository) Add(ctx context.Context, list, email string) error {
	query :=
		`INSERT INTO access_list (list_name, email)
		 VALUES ($1, $2)
		 ON CONFLICT (list_name, email) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, list, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

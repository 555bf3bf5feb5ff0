package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/attendance-sheet/internal/models"
)

const bindingRowID = 1

// PostgresBindingRepository keeps the binding in a single-row table.
type PostgresBindingRepository struct {
	db *sqlx.DB
}

// NewPostgresBindingRepository constructs the repository.
func NewPostgresBindingRepository(db *sqlx.DB) *PostgresBindingRepository {
	return &PostgresBindingRepository{db: db}
}

// EnsureSchema creates the bindings table when it does not exist yet.
func (r *PostgresBindingRepository) EnsureSchema(ctx context.Context) error {
	const query = `CREATE TABLE IF NOT EXISTS app_bindings (
    id SMALLINT PRIMARY KEY,
    endpoint_url TEXT NOT NULL,
    sheet_url TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure bindings table: %w", err)
	}
	return nil
}

// Load fetches the binding. No row yields an empty binding.
func (r *PostgresBindingRepository) Load(ctx context.Context) (models.Binding, error) {
	const query = `SELECT endpoint_url, sheet_url, updated_at FROM app_bindings WHERE id = $1`
	var binding models.Binding
	if err := r.db.GetContext(ctx, &binding, query, bindingRowID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Binding{}, nil
		}
		return models.Binding{}, fmt.Errorf("load binding: %w", err)
	}
	return binding, nil
}

// Save upserts the binding row.
func (r *PostgresBindingRepository) Save(ctx context.Context, binding models.Binding) error {
	const query = `INSERT INTO app_bindings (id, endpoint_url, sheet_url, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id)
DO UPDATE SET endpoint_url = EXCLUDED.endpoint_url, sheet_url = EXCLUDED.sheet_url, updated_at = EXCLUDED.updated_at`
	if binding.UpdatedAt.IsZero() {
		binding.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, query, bindingRowID, binding.EndpointURL, binding.SheetURL, binding.UpdatedAt); err != nil {
		return fmt.Errorf("save binding: %w", err)
	}
	return nil
}

package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMetadataRepository is a PostgreSQL implementation of
// MetadataRepository.
type PostgresMetadataRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMetadataRepository creates a new PostgreSQL metadata repository.
func NewPostgresMetadataRepository(pool *pgxpool.Pool) *PostgresMetadataRepository {
	return &PostgresMetadataRepository{pool: pool}
}

const metadataColumns = `id, version, dataset_version, total_nodes, total_edges, built_at, active, created_at`

// Save records a built graph version.
func (r *PostgresMetadataRepository) Save(ctx context.Context, meta *Metadata) error {
	query := `
		INSERT INTO graph_metadata (
			id, version, dataset_version, total_nodes, total_edges, built_at, active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		meta.ID,
		meta.Version,
		meta.DatasetVersion,
		meta.TotalNodes,
		meta.TotalEdges,
		meta.BuiltAt,
		meta.Active,
		meta.CreatedAt,
	)
	return err
}

// ByID retrieves metadata by row id.
func (r *PostgresMetadataRepository) ByID(ctx context.Context, id string) (*Metadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM graph_metadata WHERE id = $1`
	return r.scanRow(ctx, query, id)
}

// ByVersion retrieves metadata by graph version.
func (r *PostgresMetadataRepository) ByVersion(ctx context.Context, version string) (*Metadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM graph_metadata WHERE version = $1`
	return r.scanRow(ctx, query, version)
}

// Active returns the currently active metadata row.
func (r *PostgresMetadataRepository) Active(ctx context.Context) (*Metadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM graph_metadata WHERE active = TRUE LIMIT 1`
	return r.scanRow(ctx, query)
}

func (r *PostgresMetadataRepository) scanRow(ctx context.Context, query string, args ...interface{}) (*Metadata, error) {
	var m Metadata
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&m.ID,
		&m.Version,
		&m.DatasetVersion,
		&m.TotalNodes,
		&m.TotalEdges,
		&m.BuiltAt,
		&m.Active,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMetadataNotFound
		}
		return nil, err
	}

	return &m, nil
}

// ByDatasetVersion retrieves all metadata built from a dataset version.
func (r *PostgresMetadataRepository) ByDatasetVersion(ctx context.Context, datasetVersion string) ([]*Metadata, error) {
	query := `SELECT ` + metadataColumns + ` FROM graph_metadata WHERE dataset_version = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, datasetVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []*Metadata
	for rows.Next() {
		var m Metadata
		err := rows.Scan(
			&m.ID,
			&m.Version,
			&m.DatasetVersion,
			&m.TotalNodes,
			&m.TotalEdges,
			&m.BuiltAt,
			&m.Active,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		metas = append(metas, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return metas, nil
}

// SetActive marks one version active and clears the flag everywhere else.
// Both updates run in one transaction so readers of the durable store never
// see zero or two active rows.
func (r *PostgresMetadataRepository) SetActive(ctx context.Context, version string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin set-active transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `UPDATE graph_metadata SET active = FALSE WHERE active = TRUE`); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `UPDATE graph_metadata SET active = TRUE WHERE version = $1`, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMetadataNotFound
	}

	return tx.Commit(ctx)
}

// Ensure PostgresMetadataRepository implements MetadataRepository.
var _ MetadataRepository = (*PostgresMetadataRepository)(nil)

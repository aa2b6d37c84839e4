// Package sqlite provides an SQLite-backed catalog of per-document stage
// status, run history and collection metadata.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/corpus-cli/internal/adapters/driven/catalog/sqlite/migrations"
	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

// Ensure Catalog implements the interface.
var _ driven.Catalog = (*Catalog)(nil)

// Catalog is the SQLite-backed catalog store.
type Catalog struct {
	db   *sql.DB
	path string
}

// NewCatalog creates a new SQLite catalog at the specified data directory.
// If dataDir is empty, defaults to ~/.corpus/data.
func NewCatalog(dataDir string) (*Catalog, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".corpus", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "catalog.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	c := &Catalog{
		db:   db,
		path: dbPath,
	}

	if err := c.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// migrate applies pending .up.sql migrations in version order.
func (c *Catalog) migrate(fsys embed.FS) error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := c.db.Exec(string(content)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := c.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SetDocumentStatus stores or updates a document's state at a stage.
func (c *Catalog) SetDocumentStatus(ctx context.Context, status driven.DocumentStatus) error {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (collection, document_id, source_path, stage, state, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, document_id, stage) DO UPDATE SET
			source_path = excluded.source_path,
			state = excluded.state,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, status.Collection, status.DocumentID, status.SourcePath,
		string(status.Stage), string(status.State), status.Error, status.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving document status: %w", err)
	}
	return nil
}

// DocumentStatuses returns all statuses for a collection, ordered by
// document ID then stage.
func (c *Catalog) DocumentStatuses(ctx context.Context, collection string) ([]driven.DocumentStatus, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT collection, document_id, source_path, stage, state, error, updated_at
		FROM documents
		WHERE collection = ?
		ORDER BY document_id, stage
	`, collection)
	if err != nil {
		return nil, fmt.Errorf("querying document statuses: %w", err)
	}
	defer rows.Close()

	var statuses []driven.DocumentStatus
	for rows.Next() {
		var s driven.DocumentStatus
		var stage, state string
		if err := rows.Scan(&s.Collection, &s.DocumentID, &s.SourcePath, &stage, &state, &s.Error, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document status: %w", err)
		}
		s.Stage = domain.Stage(stage)
		s.State = domain.StageState(state)
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document statuses: %w", err)
	}
	return statuses, nil
}

// SaveRun appends a run summary.
func (c *Catalog) SaveRun(ctx context.Context, run driven.RunRecord) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (id, collection, stage, started_at, finished_at, succeeded, skipped, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Collection, string(run.Stage), run.StartedAt, run.FinishedAt,
		run.Succeeded, run.Skipped, run.Failed)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// Runs returns the run history for a collection, most recent first.
func (c *Catalog) Runs(ctx context.Context, collection string, limit int) ([]driven.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, collection, stage, started_at, finished_at, succeeded, skipped, failed
		FROM runs
		WHERE collection = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, collection, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []driven.RunRecord
	for rows.Next() {
		var r driven.RunRecord
		var stage string
		if err := rows.Scan(&r.ID, &r.Collection, &stage, &r.StartedAt, &r.FinishedAt,
			&r.Succeeded, &r.Skipped, &r.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Stage = domain.Stage(stage)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// SaveCollection stores or updates collection metadata.
func (c *Catalog) SaveCollection(ctx context.Context, info driven.CollectionInfo) error {
	if info.UpdatedAt.IsZero() {
		info.UpdatedAt = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO collections (name, embedding_model, dimensions, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			embedding_model = excluded.embedding_model,
			dimensions = excluded.dimensions,
			updated_at = excluded.updated_at
	`, info.Name, info.EmbeddingModel, info.Dimensions, info.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving collection: %w", err)
	}
	return nil
}

// GetCollection retrieves collection metadata, or domain.ErrNotFound.
func (c *Catalog) GetCollection(ctx context.Context, name string) (*driven.CollectionInfo, error) {
	var info driven.CollectionInfo
	err := c.db.QueryRowContext(ctx, `
		SELECT name, embedding_model, dimensions, updated_at
		FROM collections
		WHERE name = ?
	`, name).Scan(&info.Name, &info.EmbeddingModel, &info.Dimensions, &info.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: collection %s", domain.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	return &info, nil
}

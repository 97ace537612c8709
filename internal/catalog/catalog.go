// Package catalog resolves table names to partition directories and
// caches per-directory data-file listings in catalog.db. Lifecycle
// commands consult it to enumerate a table's partitions; Refresh tells
// it to rescan storage after new segments land.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tesseradb/tessera/internal/errors"
	"github.com/tesseradb/tessera/internal/index"
	"github.com/tesseradb/tessera/internal/meta"
	"github.com/tesseradb/tessera/internal/storage"
	"github.com/tesseradb/tessera/pkg/types"
)

// Catalog is the partition lister consumed by lifecycle commands.
type Catalog interface {
	// RegisterTable records a table with its reader class and schema.
	RegisterTable(ctx context.Context, rec *TableRecord) error

	// Table retrieves a registered table by name. Returns a
	// TABLE_NOT_FOUND error if the table is unknown.
	Table(ctx context.Context, name string) (*TableRecord, error)

	// AddPartition attaches a partition directory to a table. Adding the
	// same directory twice is not an error.
	AddPartition(ctx context.Context, table, dir string) error

	// PartitionDirs lists a table's partition directories in sorted order.
	PartitionDirs(ctx context.Context, table string) ([]string, error)

	// DataFiles lists the data files under one partition directory, from
	// the listing cache; a cold cache falls through to a live scan.
	DataFiles(ctx context.Context, table, dir string) ([]string, error)

	// RefreshListing rescans every partition directory of the table and
	// replaces the cached listings.
	RefreshListing(ctx context.Context, table string) error

	// Close closes the catalog database connection.
	Close() error
}

// TableRecord describes one registered table.
type TableRecord struct {
	Name            string
	ReaderClassName string
	Schema          types.Schema
	CreatedAt       time.Time
}

// SQLiteCatalog implements Catalog using SQLite with WAL journaling,
// mirroring the single-writer setup used for the metadata sidecars: one
// write connection, reads through the same handle.
type SQLiteCatalog struct {
	db     *sql.DB
	fs     storage.FileSystem
	dbPath string
	mu     sync.Mutex
}

// NewCatalog opens (or creates) the catalog database at dbPath. Listing
// scans go through fs.
func NewCatalog(dbPath string, fs storage.FileSystem) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeReadFailed, "opening catalog database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCatalog{db: db, fs: fs, dbPath: dbPath}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tables (
		name         TEXT PRIMARY KEY,
		reader_class TEXT NOT NULL,
		schema_json  TEXT NOT NULL,
		created_at   INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS partitions (
		table_name TEXT NOT NULL,
		dir        TEXT NOT NULL,
		PRIMARY KEY (table_name, dir)
	);
	CREATE TABLE IF NOT EXISTS file_listing (
		table_name   TEXT NOT NULL,
		dir          TEXT NOT NULL,
		file_name    TEXT NOT NULL,
		refreshed_at INTEGER NOT NULL,
		PRIMARY KEY (table_name, dir, file_name)
	);`
	if _, err := c.db.Exec(schema); err != nil {
		return errors.NewCatalogError(errors.CodeWriteFailed, "initializing catalog schema", err)
	}
	return nil
}

type schemaColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func marshalSchema(s types.Schema) (string, error) {
	cols := make([]schemaColumn, 0, len(s.Columns))
	for _, col := range s.Columns {
		cols = append(cols, schemaColumn{Name: col.Name, Type: col.Type.String()})
	}
	data, err := json.Marshal(cols)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalSchema(text string) (types.Schema, error) {
	var cols []schemaColumn
	if err := json.Unmarshal([]byte(text), &cols); err != nil {
		return types.Schema{}, err
	}
	s := types.Schema{Columns: make([]types.ColumnDef, 0, len(cols))}
	for _, col := range cols {
		s.Columns = append(s.Columns, types.ColumnDef{Name: col.Name, Type: types.ParseDataType(col.Type)})
	}
	return s, nil
}

func (c *SQLiteCatalog) RegisterTable(ctx context.Context, rec *TableRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	schemaJSON, err := marshalSchema(rec.Schema)
	if err != nil {
		return errors.NewCatalogError(errors.CodeWriteFailed, "encoding table schema", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO tables (name, reader_class, schema_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			reader_class = excluded.reader_class,
			schema_json  = excluded.schema_json`,
		rec.Name, rec.ReaderClassName, schemaJSON, createdAt.Unix())
	if err != nil {
		return errors.NewCatalogError(errors.CodeWriteFailed,
			fmt.Sprintf("registering table %s", rec.Name), err)
	}
	return nil
}

func (c *SQLiteCatalog) Table(ctx context.Context, name string) (*TableRecord, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT name, reader_class, schema_json, created_at FROM tables WHERE name = ?`, name)

	var (
		rec        TableRecord
		schemaJSON string
		createdAt  int64
	)
	if err := row.Scan(&rec.Name, &rec.ReaderClassName, &schemaJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewCatalogError(errors.CodeTableNotFound,
				fmt.Sprintf("table %s not registered", name), nil)
		}
		return nil, errors.NewCatalogError(errors.CodeReadFailed,
			fmt.Sprintf("loading table %s", name), err)
	}
	schema, err := unmarshalSchema(schemaJSON)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeReadFailed,
			fmt.Sprintf("decoding schema for table %s", name), err)
	}
	rec.Schema = schema
	rec.CreatedAt = time.Unix(createdAt, 0)
	return &rec, nil
}

func (c *SQLiteCatalog) AddPartition(ctx context.Context, table, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO partitions (table_name, dir) VALUES (?, ?)`, table, dir)
	if err != nil {
		return errors.NewCatalogError(errors.CodeWriteFailed,
			fmt.Sprintf("adding partition %s to table %s", dir, table), err)
	}
	return nil
}

func (c *SQLiteCatalog) PartitionDirs(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT dir FROM partitions WHERE table_name = ? ORDER BY dir`, table)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeReadFailed,
			fmt.Sprintf("listing partitions of table %s", table), err)
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var dir string
		if err := rows.Scan(&dir); err != nil {
			return nil, errors.NewCatalogError(errors.CodeReadFailed, "scanning partition row", err)
		}
		dirs = append(dirs, dir)
	}
	return dirs, rows.Err()
}

func (c *SQLiteCatalog) DataFiles(ctx context.Context, table, dir string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT file_name FROM file_listing WHERE table_name = ? AND dir = ? ORDER BY file_name`,
		table, dir)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeReadFailed,
			fmt.Sprintf("reading cached listing for %s", dir), err)
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewCatalogError(errors.CodeReadFailed, "scanning listing row", err)
		}
		files = append(files, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(files) > 0 {
		return files, nil
	}
	// Cold cache: scan storage directly.
	return c.scanDataFiles(ctx, dir)
}

func (c *SQLiteCatalog) RefreshListing(ctx context.Context, table string) error {
	dirs, err := c.PartitionDirs(ctx, table)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewCatalogError(errors.CodeWriteFailed, "beginning listing refresh", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM file_listing WHERE table_name = ?`, table); err != nil {
		return errors.NewCatalogError(errors.CodeWriteFailed, "clearing stale listing", err)
	}

	now := time.Now().Unix()
	for _, dir := range dirs {
		files, err := c.scanDataFiles(ctx, dir)
		if err != nil {
			return err
		}
		for _, name := range files {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO file_listing (table_name, dir, file_name, refreshed_at) VALUES (?, ?, ?, ?)`,
				table, dir, name, now); err != nil {
				return errors.NewCatalogError(errors.CodeWriteFailed,
					fmt.Sprintf("caching listing for %s", dir), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewCatalogError(errors.CodeWriteFailed, "committing listing refresh", err)
	}
	return nil
}

// scanDataFiles lists a directory and keeps only data files: the
// metadata sidecar, index segments, and staging entries are excluded.
func (c *SQLiteCatalog) scanDataFiles(ctx context.Context, dir string) ([]string, error) {
	names, err := c.fs.ListFiles(ctx, dir)
	if err != nil {
		return nil, errors.NewCatalogError(errors.CodeReadFailed,
			fmt.Sprintf("scanning directory %s", dir), err)
	}
	var files []string
	for _, name := range names {
		if name == meta.SidecarName || index.IsSegmentFile(name) || strings.HasPrefix(name, "_") {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

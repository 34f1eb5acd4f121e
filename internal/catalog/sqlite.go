// Package catalog exports workbook metadata into a SQLite database so it can
// be queried across many workbooks.
package catalog

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/agentic-research/twbgraph/internal/workbook"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasources (
	workbook TEXT NOT NULL,
	name TEXT NOT NULL,
	caption TEXT,
	PRIMARY KEY (workbook, name)
);

CREATE TABLE IF NOT EXISTS fields (
	workbook TEXT NOT NULL,
	datasource TEXT NOT NULL,
	name TEXT NOT NULL,
	caption TEXT,
	datatype TEXT,
	role TEXT,
	type TEXT,
	aggregation TEXT,
	calculation TEXT,
	PRIMARY KEY (workbook, datasource, name)
);

CREATE TABLE IF NOT EXISTS field_usage (
	workbook TEXT NOT NULL,
	datasource TEXT NOT NULL,
	field TEXT NOT NULL,
	seq INTEGER NOT NULL,
	worksheet TEXT NOT NULL,
	PRIMARY KEY (workbook, datasource, field, seq)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS dashboard_sheets (
	workbook TEXT NOT NULL,
	dashboard TEXT NOT NULL,
	seq INTEGER NOT NULL,
	sheet TEXT,
	PRIMARY KEY (workbook, dashboard, seq)
);

CREATE TABLE IF NOT EXISTS palettes (
	workbook TEXT NOT NULL,
	seq INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (workbook, seq)
);

CREATE TABLE IF NOT EXISTS color_encodings (
	workbook TEXT NOT NULL,
	field TEXT NOT NULL,
	palette TEXT,
	PRIMARY KEY (workbook, field)
);
`

// tables lists every table keyed by workbook, for clearing stale rows.
var tables = []string{"datasources", "fields", "field_usage", "dashboard_sheets", "palettes", "color_encodings"}

// Writer writes workbook snapshots into a catalog database. Writing the same
// workbook path again replaces its previous rows.
type Writer struct {
	db *sql.DB
	mu sync.Mutex
}

// NewWriter opens (or creates) the catalog at dbPath and initializes the schema.
func NewWriter(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Writer{db: db}, nil
}

// DB exposes the underlying handle for queries.
func (w *Writer) DB() *sql.DB { return w.db }

// Close closes the database.
func (w *Writer) Close() error { return w.db.Close() }

// WriteWorkbook stores the data sources, fields, field usage, dashboards,
// palettes and color encodings of wb in one transaction.
func (w *Writer) WriteWorkbook(wb *workbook.Workbook) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := wb.Path()
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range tables {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE workbook = ?", key); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	sources, err := wb.DataSources()
	if err != nil {
		return err
	}
	if err := writeDataSources(tx, key, sources); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO dashboard_sheets (workbook, dashboard, seq, sheet) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, d := range wb.DashboardViews() {
		// A dashboard without sheets still gets a row so it is listed.
		if len(d.Sheets) == 0 {
			if _, err := stmt.Exec(key, d.Name, 0, nil); err != nil {
				return fmt.Errorf("insert dashboard %s: %w", d.Name, err)
			}
			continue
		}
		for i, sheet := range d.Sheets {
			if _, err := stmt.Exec(key, d.Name, i, sheet); err != nil {
				return fmt.Errorf("insert dashboard %s: %w", d.Name, err)
			}
		}
	}

	for i, name := range wb.Palettes() {
		if _, err := tx.Exec(`INSERT INTO palettes (workbook, seq, name) VALUES (?, ?, ?)`, key, i, name); err != nil {
			return fmt.Errorf("insert palette %s: %w", name, err)
		}
	}

	for field, palette := range wb.ColorPaletteMap() {
		if _, err := tx.Exec(`INSERT INTO color_encodings (workbook, field, palette) VALUES (?, ?, ?)`, key, field, palette); err != nil {
			return fmt.Errorf("insert color encoding %s: %w", field, err)
		}
	}

	return tx.Commit()
}

func writeDataSources(tx *sql.Tx, key string, sources []*workbook.DataSource) error {
	stmtDS, err := tx.Prepare(`INSERT OR REPLACE INTO datasources (workbook, name, caption) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtDS.Close() }()

	stmtField, err := tx.Prepare(`
		INSERT OR REPLACE INTO fields (workbook, datasource, name, caption, datatype, role, type, aggregation, calculation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtField.Close() }()

	stmtUse, err := tx.Prepare(`INSERT INTO field_usage (workbook, datasource, field, seq, worksheet) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmtUse.Close() }()

	for _, ds := range sources {
		if _, err := stmtDS.Exec(key, ds.Name, ds.Caption); err != nil {
			return fmt.Errorf("insert datasource %s: %w", ds.Name, err)
		}
		for _, name := range ds.Fields.Names() {
			f, err := ds.Fields.Get(name)
			if err != nil {
				return err
			}
			if _, err := stmtField.Exec(key, ds.Name, f.Name, f.Caption, f.Datatype, f.Role, f.Type, f.Aggregation, f.Calculation); err != nil {
				return fmt.Errorf("insert field %s.%s: %w", ds.Name, f.Name, err)
			}
			for i, ws := range f.UsedIn() {
				if _, err := stmtUse.Exec(key, ds.Name, f.Name, i, ws); err != nil {
					return fmt.Errorf("insert usage %s.%s: %w", ds.Name, f.Name, err)
				}
			}
		}
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/docxref/pkg/docxref/internalerr"
	"github.com/cognicore/docxref/pkg/docxref/store"
)

// timeLayout is fixed width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteStore implements store.Store using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a report history database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	total_cross_references INTEGER NOT NULL DEFAULT 0,
	most_connected TEXT,
	most_common_pattern TEXT,
	body_text TEXT,
	body_json TEXT
);

CREATE INDEX IF NOT EXISTS idx_reports_created ON reports(created_at);

CREATE TABLE IF NOT EXISTS report_documents (
	report_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY(report_id, position),
	FOREIGN KEY(report_id) REFERENCES reports(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_report_documents_name ON report_documents(name);

CREATE TABLE IF NOT EXISTS report_cross_refs (
	report_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	pattern_type TEXT NOT NULL,
	document_ids TEXT NOT NULL,
	shared_values TEXT NOT NULL,
	PRIMARY KEY(report_id, position),
	FOREIGN KEY(report_id) REFERENCES reports(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveReport inserts or replaces a report and its child rows
func (s *sqliteStore) SaveReport(ctx context.Context, r store.Report) error {
	if r.ID == "" {
		return fmt.Errorf("save report: %w: empty id", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const stmt = `
INSERT INTO reports (id, created_at, total_cross_references, most_connected, most_common_pattern, body_text, body_json)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	created_at=excluded.created_at,
	total_cross_references=excluded.total_cross_references,
	most_connected=excluded.most_connected,
	most_common_pattern=excluded.most_common_pattern,
	body_text=excluded.body_text,
	body_json=excluded.body_json;
`
	if _, err := tx.ExecContext(ctx, stmt,
		r.ID,
		r.CreatedAt.UTC().Format(timeLayout),
		r.TotalCrossReferences,
		r.MostConnectedDocumentID,
		r.MostCommonPatternType,
		r.Text,
		r.JSON,
	); err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}

	if err := replaceDocuments(ctx, tx, r.ID, r.Documents); err != nil {
		return err
	}
	if err := replaceCrossRefs(ctx, tx, r.ID, r.CrossReferences); err != nil {
		return err
	}

	return tx.Commit()
}

func replaceDocuments(ctx context.Context, tx *sql.Tx, reportID string, names []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_documents WHERE report_id=?`, reportID); err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO report_documents (report_id, position, name) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, name := range names {
		if _, err := stmt.ExecContext(ctx, reportID, i, name); err != nil {
			return err
		}
	}
	return nil
}

func replaceCrossRefs(ctx context.Context, tx *sql.Tx, reportID string, refs []store.CrossReference) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM report_cross_refs WHERE report_id=?`, reportID); err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO report_cross_refs (report_id, position, pattern_type, document_ids, shared_values) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, ref := range refs {
		ids, err := json.Marshal(ref.DocumentIDs)
		if err != nil {
			return err
		}
		vals, err := json.Marshal(ref.SharedValues)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, reportID, i, ref.PatternType, string(ids), string(vals)); err != nil {
			return err
		}
	}
	return nil
}

// GetReport loads one report with its documents and cross references
func (s *sqliteStore) GetReport(ctx context.Context, id string) (store.Report, bool, error) {
	rows, err := s.db.QueryContext(ctx, selectReports+` WHERE id=?`, id)
	if err != nil {
		return store.Report{}, false, err
	}
	reports, err := s.scanReports(ctx, rows)
	if err != nil {
		return store.Report{}, false, err
	}
	if len(reports) == 0 {
		return store.Report{}, false, nil
	}
	return reports[0], true, nil
}

// ListReports returns the newest reports first
func (s *sqliteStore) ListReports(ctx context.Context, limit int) ([]store.Report, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, selectReports+` ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return s.scanReports(ctx, rows)
}

// ReportsForDocument returns the newest reports that analysed name
func (s *sqliteStore) ReportsForDocument(ctx context.Context, name string, limit int) ([]store.Report, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, selectReports+`
WHERE id IN (SELECT report_id FROM report_documents WHERE name=?)
ORDER BY created_at DESC, id DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, err
	}
	return s.scanReports(ctx, rows)
}

const selectReports = `
SELECT id, created_at, total_cross_references, COALESCE(most_connected, ''), COALESCE(most_common_pattern, ''),
	COALESCE(body_text, ''), COALESCE(body_json, '')
FROM reports`

// scanReports reads report rows, closes them, then loads child rows.
func (s *sqliteStore) scanReports(ctx context.Context, rows *sql.Rows) ([]store.Report, error) {
	var out []store.Report
	for rows.Next() {
		var r store.Report
		var created string
		if err := rows.Scan(&r.ID, &created, &r.TotalCrossReferences, &r.MostConnectedDocumentID,
			&r.MostCommonPatternType, &r.Text, &r.JSON); err != nil {
			rows.Close()
			return nil, err
		}
		ts, err := time.Parse(timeLayout, created)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("report %s: bad created_at %q: %w", r.ID, created, err)
		}
		r.CreatedAt = ts
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		docs, err := s.loadDocuments(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Documents = docs
		refs, err := s.loadCrossRefs(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].CrossReferences = refs
	}
	return out, nil
}

func (s *sqliteStore) loadDocuments(ctx context.Context, reportID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM report_documents WHERE report_id=? ORDER BY position`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *sqliteStore) loadCrossRefs(ctx context.Context, reportID string) ([]store.CrossReference, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT pattern_type, document_ids, shared_values
FROM report_cross_refs WHERE report_id=? ORDER BY position`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []store.CrossReference
	for rows.Next() {
		var ref store.CrossReference
		var ids, vals string
		if err := rows.Scan(&ref.PatternType, &ids, &vals); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ids), &ref.DocumentIDs); err != nil {
			return nil, fmt.Errorf("decode document ids: %w", err)
		}
		if err := json.Unmarshal([]byte(vals), &ref.SharedValues); err != nil {
			return nil, fmt.Errorf("decode shared values: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

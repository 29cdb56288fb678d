package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists the scanned checkbox forest of every workspace document so
// progress and open tasks can be listed without re-reading files.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

type OpenOptions struct {
	BusyTimeout time.Duration
}

// PathMatcher selects workspace documents by slash-separated relative path.
type PathMatcher interface {
	Match(rel string) bool
	SkipDir(rel string) bool
}

type DocumentSummary struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Progress  Progress  `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TaskItem struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Line    int    `json:"line"`
	Label   string `json:"label"`
	Section string `json:"section,omitempty"`
}

type docRecord struct {
	ID        int64
	Hash      string
	MTimeUnix int64
	Size      int64
}

func Open(path string) (*Store, error) {
	return OpenWithOptions(path, OpenOptions{})
}

func OpenWithOptions(path string, opts OpenOptions) (*Store, error) {
	dsn := path
	if opts.BusyTimeout > 0 {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, opts.BusyTimeout.Milliseconds())
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) SetLockTimeout(d time.Duration) {
	s.lockTimeout = d
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init creates the schema and brings the store in line with the files under
// root. A schema version change triggers a full rebuild.
func (s *Store) Init(ctx context.Context, root string, match PathMatcher) error {
	if _, err := s.execContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version != schemaVersion {
		if err := s.reset(ctx); err != nil {
			return err
		}
		if err := s.setSchemaVersion(ctx, schemaVersion); err != nil {
			return err
		}
	}
	_, _, _, err = s.RecheckFromFS(ctx, root, match)
	return err
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, v int) error {
	if _, err := s.execContext(ctx, "DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := s.execContext(ctx, "INSERT INTO schema_version(version) VALUES(?)", v)
	return err
}

func (s *Store) reset(ctx context.Context) error {
	for _, stmt := range []string{"DELETE FROM tasks", "DELETE FROM documents"} {
		if _, err := s.execContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecheckFromFS indexes new or modified documents and drops records whose
// file is gone.
func (s *Store) RecheckFromFS(ctx context.Context, root string, match PathMatcher) (scanned, updated, cleaned int, err error) {
	records, err := s.loadRecords(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	seen := make(map[string]bool, len(records))
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && match.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !match.Match(rel) {
			return nil
		}
		scanned++
		seen[rel] = true
		info, err := d.Info()
		if err != nil {
			return err
		}
		rec, ok := records[rel]
		if ok && rec.MTimeUnix == info.ModTime().Unix() && rec.Size == info.Size() {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if ok && rec.Hash == ContentHash(content) {
			_, err := s.execContext(ctx, "UPDATE documents SET mtime_unix=?, size=? WHERE id=?", info.ModTime().Unix(), info.Size(), rec.ID)
			return err
		}
		updated++
		return s.IndexDocument(ctx, rel, content, info.ModTime(), info.Size())
	})
	if err != nil {
		return scanned, updated, 0, err
	}
	for path := range records {
		if seen[path] {
			continue
		}
		if err := s.RemoveDocument(ctx, path); err != nil {
			return scanned, updated, cleaned, err
		}
		cleaned++
	}
	return scanned, updated, cleaned, nil
}

func (s *Store) loadRecords(ctx context.Context) (map[string]docRecord, error) {
	rows, err := s.queryContext(ctx, "SELECT id, path, hash, mtime_unix, size FROM documents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := map[string]docRecord{}
	for rows.Next() {
		var path string
		var rec docRecord
		if err := rows.Scan(&rec.ID, &path, &rec.Hash, &rec.MTimeUnix, &rec.Size); err != nil {
			return nil, err
		}
		records[path] = rec
	}
	return records, rows.Err()
}

// IndexDocument replaces the stored tasks of one document with a fresh scan.
func (s *Store) IndexDocument(ctx context.Context, docPath string, content []byte, mtime time.Time, size int64) error {
	forest := BuildText(string(content))
	progress := Aggregate(forest)
	title := documentTitle(forest)
	checksum := ContentHash(content)
	now := time.Now().Unix()

	return s.retryBusy(ctx, "index document", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer s.rollbackTx(tx, "index document")

		var docID int64
		err = tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE path=?", docPath).Scan(&docID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
				INSERT INTO documents(path, title, hash, mtime_unix, size, completed, total, updated_at)
				VALUES(?, ?, ?, ?, ?, ?, ?, ?)
			`, docPath, title, checksum, mtime.Unix(), size, progress.Completed, progress.Total, now)
			if err != nil {
				return err
			}
			if docID, err = res.LastInsertId(); err != nil {
				return err
			}
		case err == nil:
			if _, err := tx.ExecContext(ctx, `
				UPDATE documents SET title=?, hash=?, mtime_unix=?, size=?, completed=?, total=?, updated_at=? WHERE id=?
			`, title, checksum, mtime.Unix(), size, progress.Completed, progress.Total, now, docID); err != nil {
				return err
			}
		default:
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE doc_id=?", docID); err != nil {
			return err
		}
		var insertErr error
		forest.Walk(func(n *Node, _ int) bool {
			if insertErr != nil {
				return false
			}
			if !n.IsCheckbox() {
				return true
			}
			checked := 0
			if n.Checked {
				checked = 1
			}
			var parentLine any
			if parent := forest.Node(n.Parent); parent != nil {
				parentLine = parent.Line
			}
			_, insertErr = tx.ExecContext(ctx, `
				INSERT INTO tasks(doc_id, line_no, label, checked, level, parent_line, section)
				VALUES(?, ?, ?, ?, ?, ?, ?)
			`, docID, n.Line, n.Label, checked, n.Level, parentLine, nullIfEmpty(sectionOf(forest, n.ID)))
			return true
		})
		if insertErr != nil {
			return insertErr
		}
		return tx.Commit()
	})
}

// IndexDocumentIfChanged skips documents whose stored size, mtime or hash
// already match.
func (s *Store) IndexDocumentIfChanged(ctx context.Context, docPath string, content []byte, mtime time.Time, size int64) error {
	var rec docRecord
	err := s.db.QueryRowContext(ctx, "SELECT id, hash, mtime_unix, size FROM documents WHERE path=?", docPath).
		Scan(&rec.ID, &rec.Hash, &rec.MTimeUnix, &rec.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return s.IndexDocument(ctx, docPath, content, mtime, size)
	}
	if err != nil {
		return err
	}
	if rec.MTimeUnix == mtime.Unix() && rec.Size == size {
		return nil
	}
	if rec.Hash == ContentHash(content) {
		_, err := s.execContext(ctx, "UPDATE documents SET mtime_unix=?, size=? WHERE id=?", mtime.Unix(), size, rec.ID)
		return err
	}
	return s.IndexDocument(ctx, docPath, content, mtime, size)
}

func (s *Store) RemoveDocument(ctx context.Context, docPath string) error {
	return s.retryBusy(ctx, "remove document", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer s.rollbackTx(tx, "remove document")
		if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE doc_id IN (SELECT id FROM documents WHERE path=?)", docPath); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE path=?", docPath); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (s *Store) Documents(ctx context.Context) ([]DocumentSummary, error) {
	rows, err := s.queryContext(ctx, "SELECT path, COALESCE(title, ''), completed, total, updated_at FROM documents ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		var updatedAt int64
		if err := rows.Scan(&d.Path, &d.Title, &d.Progress.Completed, &d.Progress.Total, &updatedAt); err != nil {
			return nil, err
		}
		d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) DocumentProgress(ctx context.Context, docPath string) (Progress, error) {
	var p Progress
	err := s.db.QueryRowContext(ctx, "SELECT completed, total FROM documents WHERE path=?", docPath).Scan(&p.Completed, &p.Total)
	if errors.Is(err, sql.ErrNoRows) {
		return p, nil
	}
	return p, err
}

func (s *Store) WorkspaceProgress(ctx context.Context) (Progress, error) {
	var p Progress
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(completed), 0), COALESCE(SUM(total), 0) FROM documents").Scan(&p.Completed, &p.Total)
	return p, err
}

func (s *Store) OpenTasks(ctx context.Context, limit int) ([]TaskItem, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.queryContext(ctx, `
		SELECT documents.path, COALESCE(documents.title, ''), tasks.line_no, tasks.label, COALESCE(tasks.section, '')
		FROM tasks
		JOIN documents ON documents.id = tasks.doc_id
		WHERE tasks.checked = 0
		ORDER BY documents.path, tasks.line_no
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskItem
	for rows.Next() {
		var t TaskItem
		if err := rows.Scan(&t.Path, &t.Title, &t.Line, &t.Label, &t.Section); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func documentTitle(f *Forest) string {
	for i := range f.Nodes {
		if f.Nodes[i].Kind == LineHeader {
			return f.Nodes[i].Label
		}
	}
	return ""
}

func sectionOf(f *Forest, id NodeID) string {
	for _, anc := range f.Ancestors(id) {
		if n := f.Node(anc); n != nil && n.Kind == LineHeader {
			return n.Label
		}
	}
	return ""
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

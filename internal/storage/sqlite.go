package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"trustgraph/internal/extractor"

	_ "github.com/mattn/go-sqlite3"
)

// SchemaVersion is written to the meta table and checked on open.
const SchemaVersion = "1"

const entryColumns = `id, function_name, file_path, class_name, language, kind, start_line, end_line,
	content_hash, content, truncated, event_handlers, indexed_at`

// SQLiteIndex is the Function Index backed by one SQLite file.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

var _ IndexStore = (*SQLiteIndex)(nil)

// CreateIndex creates or opens a SQLite index at path and initialises the
// schema. Used for fresh builds.
func CreateIndex(path string) (*SQLiteIndex, error) {
	s, err := open(path)
	if err != nil {
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

// OpenIndex opens an existing index for reading and validates its schema
// version. A missing file is ErrIndexNotFound; an unreadable file or a
// version mismatch is ErrIndexCorruption.
func OpenIndex(path string) (*SQLiteIndex, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("stat index %s: %w", path, err)
	}
	s, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorruption, err)
	}

	var version string
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		s.db.Close()
		return nil, fmt.Errorf("%w: read schema version of %s: %v", ErrIndexCorruption, path, err)
	}
	if version != SchemaVersion {
		s.db.Close()
		return nil, fmt.Errorf("%w: %s has schema version %q, want %q", ErrIndexCorruption, path, version, SchemaVersion)
	}
	return s, nil
}

func open(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db, path: path}, nil
}

func (s *SQLiteIndex) Path() string {
	return s.path
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func (s *SQLiteIndex) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS functions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			function_name TEXT NOT NULL,
			file_path TEXT NOT NULL,
			class_name TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT '',
			start_line INTEGER,
			end_line INTEGER,
			content_hash TEXT,
			content TEXT,
			truncated INTEGER NOT NULL DEFAULT 0,
			event_handlers JSON,
			indexed_at TEXT,
			UNIQUE (function_name, file_path)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(function_name COLLATE NOCASE);`,
		`CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file_path);`,
		`CREATE TABLE IF NOT EXISTS edges (
			caller_id INTEGER NOT NULL,
			callee_id INTEGER NOT NULL,
			confidence REAL NOT NULL,
			method TEXT NOT NULL,
			call_order INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (caller_id, callee_id)
		);`,
		`CREATE TABLE IF NOT EXISTS unresolved (
			caller_id INTEGER NOT NULL,
			callee_name TEXT NOT NULL,
			PRIMARY KEY (caller_id, callee_name)
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS verdict_cache (
			cache_key TEXT PRIMARY KEY,
			verdict TEXT NOT NULL,
			rationale TEXT,
			created_at TEXT
		);`,
		`INSERT INTO meta (key, value) VALUES ('schema_version', '` + SchemaVersion + `')
			ON CONFLICT(key) DO UPDATE SET value=excluded.value;`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const upsertFunction = `
	INSERT INTO functions (function_name, file_path, class_name, language, kind, start_line, end_line,
		content_hash, content, truncated, event_handlers, indexed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(function_name, file_path) DO UPDATE SET
		class_name=excluded.class_name,
		language=excluded.language,
		kind=excluded.kind,
		start_line=excluded.start_line,
		end_line=excluded.end_line,
		content_hash=excluded.content_hash,
		content=excluded.content,
		truncated=excluded.truncated,
		event_handlers=excluded.event_handlers,
		indexed_at=excluded.indexed_at
	RETURNING id`

func chunkArgs(c *extractor.CodeChunk) ([]any, error) {
	var handlers []byte
	if len(c.EventHandlers) > 0 {
		var err error
		if handlers, err = json.Marshal(c.EventHandlers); err != nil {
			return nil, err
		}
	}
	return []any{
		c.Name, c.Filepath, c.Class, c.Language, c.Kind, c.StartLine, c.EndLine,
		c.ContentHash, c.Content, c.Truncated, handlers, time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// Insert upserts one chunk keyed on (name, file). Re-inserting the same key
// refreshes the metadata and keeps the row id.
func (s *SQLiteIndex) Insert(ctx context.Context, chunk *extractor.CodeChunk) (int64, error) {
	args, err := chunkArgs(chunk)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, upsertFunction, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert %s: %w", chunk.Key(), err)
	}
	return id, nil
}

func (s *SQLiteIndex) InsertAll(ctx context.Context, chunks []*extractor.CodeChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertFunction)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		args, err := chunkArgs(c)
		if err != nil {
			return err
		}
		var id int64
		if err := stmt.QueryRowContext(ctx, args...).Scan(&id); err != nil {
			return fmt.Errorf("insert %s: %w", c.Key(), err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e         Entry
		handlers  []byte
		indexedAt sql.NullString
		hash      sql.NullString
		content   sql.NullString
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Filepath, &e.Class, &e.Language, &e.Kind, &e.StartLine, &e.EndLine,
		&hash, &content, &e.Truncated, &handlers, &indexedAt); err != nil {
		return Entry{}, err
	}
	e.ContentHash = hash.String
	e.Content = content.String
	if len(handlers) > 0 {
		if err := json.Unmarshal(handlers, &e.EventHandlers); err != nil {
			return Entry{}, fmt.Errorf("%w: event handlers of %s: %v", ErrIndexCorruption, e.Key(), err)
		}
	}
	if indexedAt.Valid {
		e.IndexedAt, _ = time.Parse(time.RFC3339Nano, indexedAt.String)
	}
	return e, nil
}

// readErr marks a failed read of an opened index as ErrIndexCorruption.
// Context errors pass through so cancellation stays distinguishable.
func readErr(ctx context.Context, what string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrIndexCorruption, what, err)
}

func (s *SQLiteIndex) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, readErr(ctx, "query functions", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, readErr(ctx, "scan function", err)
		}
		entries = append(entries, e)
	}
	return entries, readErr(ctx, "read functions", rows.Err())
}

func (s *SQLiteIndex) LookupByQualified(ctx context.Context, name, file string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM functions WHERE function_name = ? AND file_path = ?`, name, file)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, readErr(ctx, "look up function", err)
	}
	return &e, nil
}

// LookupByBareName matches names case-insensitively.
func (s *SQLiteIndex) LookupByBareName(ctx context.Context, name string) ([]Entry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM functions WHERE function_name = ? COLLATE NOCASE ORDER BY file_path, id`, name)
}

func (s *SQLiteIndex) Entries(ctx context.Context) ([]Entry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM functions ORDER BY file_path, function_name`)
}

// ReplaceEdges resolves edge endpoints to row ids and replaces the stored
// edges in one transaction. Endpoints missing from the index are dropped.
func (s *SQLiteIndex) ReplaceEdges(ctx context.Context, edges []EdgeRecord, unresolved []UnresolvedRecord) error {
	ids, err := s.keyIDs(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM edges`, `DELETE FROM unresolved`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (caller_id, callee_id, confidence, method, call_order) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(caller_id, callee_id) DO UPDATE SET
			confidence=excluded.confidence,
			method=excluded.method,
			call_order=excluded.call_order
		WHERE excluded.confidence > edges.confidence
	`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range edges {
		caller, ok1 := ids[e.Caller]
		callee, ok2 := ids[e.Callee]
		if !ok1 || !ok2 {
			continue
		}
		if _, err := edgeStmt.ExecContext(ctx, caller, callee, e.Confidence, e.Method, e.Order); err != nil {
			return err
		}
	}

	unresStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unresolved (caller_id, callee_name) VALUES (?, ?)
		ON CONFLICT(caller_id, callee_name) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer unresStmt.Close()

	for _, u := range unresolved {
		caller, ok := ids[u.Caller]
		if !ok {
			continue
		}
		if _, err := unresStmt.ExecContext(ctx, caller, u.Name); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteIndex) keyIDs(ctx context.Context) (map[extractor.Key]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, function_name, file_path FROM functions`)
	if err != nil {
		return nil, readErr(ctx, "query function ids", err)
	}
	defer rows.Close()

	ids := make(map[extractor.Key]int64)
	for rows.Next() {
		var (
			id  int64
			key extractor.Key
		)
		if err := rows.Scan(&id, &key.Name, &key.Filepath); err != nil {
			return nil, readErr(ctx, "scan function id", err)
		}
		ids[key] = id
	}
	return ids, readErr(ctx, "read function ids", rows.Err())
}

func (s *SQLiteIndex) Edges(ctx context.Context) ([]EdgeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.function_name, a.file_path, b.function_name, b.file_path, e.confidence, e.method, e.call_order
		FROM edges e
		JOIN functions a ON a.id = e.caller_id
		JOIN functions b ON b.id = e.callee_id
		ORDER BY a.file_path, a.function_name, e.call_order, b.file_path, b.function_name
	`)
	if err != nil {
		return nil, readErr(ctx, "query edges", err)
	}
	defer rows.Close()

	var edges []EdgeRecord
	for rows.Next() {
		var e EdgeRecord
		if err := rows.Scan(&e.Caller.Name, &e.Caller.Filepath, &e.Callee.Name, &e.Callee.Filepath,
			&e.Confidence, &e.Method, &e.Order); err != nil {
			return nil, readErr(ctx, "scan edge", err)
		}
		edges = append(edges, e)
	}
	return edges, readErr(ctx, "read edges", rows.Err())
}

func (s *SQLiteIndex) Unresolved(ctx context.Context) ([]UnresolvedRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.function_name, f.file_path, u.callee_name
		FROM unresolved u
		JOIN functions f ON f.id = u.caller_id
		ORDER BY f.file_path, f.function_name, u.callee_name
	`)
	if err != nil {
		return nil, readErr(ctx, "query unresolved", err)
	}
	defer rows.Close()

	var out []UnresolvedRecord
	for rows.Next() {
		var u UnresolvedRecord
		if err := rows.Scan(&u.Caller.Name, &u.Caller.Filepath, &u.Name); err != nil {
			return nil, readErr(ctx, "scan unresolved", err)
		}
		out = append(out, u)
	}
	return out, readErr(ctx, "read unresolved", rows.Err())
}

func (s *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM functions),
			(SELECT COUNT(DISTINCT file_path) FROM functions),
			(SELECT COUNT(*) FROM edges),
			(SELECT COUNT(*) FROM unresolved)
	`).Scan(&st.Functions, &st.Files, &st.Edges, &st.Unresolved)
	return st, readErr(ctx, "count index rows", err)
}

// Meta reads a value from the meta table; missing keys return "".
func (s *SQLiteIndex) Meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func (s *SQLiteIndex) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	return err
}

// LoadVerdict returns a cached completion verdict.
func (s *SQLiteIndex) LoadVerdict(ctx context.Context, key string) (verdict, rationale string, ok bool, err error) {
	var r sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT verdict, rationale FROM verdict_cache WHERE cache_key = ?`, key).Scan(&verdict, &r)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return verdict, r.String, true, nil
}

func (s *SQLiteIndex) StoreVerdict(ctx context.Context, key, verdict, rationale string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdict_cache (cache_key, verdict, rationale, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET verdict=excluded.verdict, rationale=excluded.rationale, created_at=excluded.created_at
	`, key, verdict, rationale, time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

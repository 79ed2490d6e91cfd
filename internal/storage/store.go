// Package storage implements the columnar chunks/edges persistence layer
// of spec §4.7: open_or_create, upsert-by-key, delete/count/query with a
// filter language, and vector_query backed by an in-process HNSW index.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cerp-labs/codeintel/internal/errs"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	repo_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	symbol_name TEXT NOT NULL DEFAULT '',
	symbol_type TEXT NOT NULL DEFAULT '',
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	content TEXT NOT NULL,
	has_vector INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_chunks_repo_file ON chunks(repo_id, file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_repo_lang ON chunks(repo_id, language);

CREATE TABLE IF NOT EXISTS edges (
	id TEXT PRIMARY KEY,
	repo_id TEXT NOT NULL,
	source_file TEXT NOT NULL,
	source_line INTEGER NOT NULL,
	source_symbol TEXT NOT NULL DEFAULT '',
	target_name TEXT NOT NULL DEFAULT '',
	target_qualified TEXT NOT NULL DEFAULT '',
	target_file TEXT NOT NULL DEFAULT '',
	edge_type TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_repo_type ON edges(repo_id, edge_type);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_name, target_qualified);
`

// Chunk is one columnar chunks-table row, per spec §3.
type Chunk struct {
	ID         string
	RepoID     string
	FilePath   string
	Language   string
	SymbolName string
	SymbolType string
	StartLine  int
	EndLine    int
	Content    string
	Vector     []float32 // nil means "embedding pending"
	Distance   float32   // populated by VectorQuery only
}

// Edge is one columnar edges-table row, per spec §3.
type Edge struct {
	ID              string
	RepoID          string
	SourceFile      string
	SourceLine      int
	SourceSymbol    string
	TargetName      string
	TargetQualified string
	TargetFile      string
	EdgeType        string
}

// Store owns the sqlite-backed chunks/edges tables plus the HNSW vector
// index, one instance per data directory.
type Store struct {
	db      *sql.DB
	path    string
	vectors map[int]*vectorIndex // keyed by dimensionality; a repo may change embedder over its life
	vecDir  string
}

// Open opens or creates the columnar store rooted at dir (spec's
// `{data_dir}/index.lance/` path, repurposed here as a plain directory
// holding the sqlite file and HNSW index files).
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "create store directory", err)
	}
	dbPath := filepath.Join(dir, "store.db")
	db, err := sql.Open(driverName, dsn(dbPath))
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "open store database", err)
	}
	db.SetMaxOpenConns(1) // single-writer sqlite; avoids lock contention under WAL

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindFilesystem, "create store schema", err)
	}

	return &Store{db: db, path: dbPath, vectors: map[int]*vectorIndex{}, vecDir: filepath.Join(dir, "vectors")}, nil
}

// Close releases the database connection and flushes any open vector
// indices to disk.
func (s *Store) Close() error {
	for dims, idx := range s.vectors {
		_ = idx.save(s.vectorPath(dims))
	}
	return s.db.Close()
}

func (s *Store) vectorPath(dims int) string {
	return filepath.Join(s.vecDir, fmt.Sprintf("dim-%d.hnsw", dims))
}

func (s *Store) vectorIndexFor(dims int) (*vectorIndex, error) {
	if idx, ok := s.vectors[dims]; ok {
		return idx, nil
	}
	idx := newVectorIndex(dims)
	if err := idx.load(s.vectorPath(dims)); err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "load vector index", err)
	}
	s.vectors[dims] = idx
	return idx, nil
}

// UpsertChunks inserts or replaces chunk rows by primary key and mirrors
// any non-nil vectors into the HNSW index.
func (s *Store) UpsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindFilesystem, "begin upsert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, repo_id, file_path, language, symbol_name, symbol_type, start_line, end_line, content, has_vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo_id=excluded.repo_id, file_path=excluded.file_path, language=excluded.language,
			symbol_name=excluded.symbol_name, symbol_type=excluded.symbol_type,
			start_line=excluded.start_line, end_line=excluded.end_line,
			content=excluded.content, has_vector=excluded.has_vector`)
	if err != nil {
		return errs.Wrap(errs.KindFilesystem, "prepare upsert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		hasVector := 0
		if c.Vector != nil {
			hasVector = 1
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.RepoID, c.FilePath, c.Language, c.SymbolName, c.SymbolType, c.StartLine, c.EndLine, c.Content, hasVector); err != nil {
			return errs.Wrap(errs.KindFilesystem, "upsert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindFilesystem, "commit upsert", err)
	}

	for _, c := range chunks {
		if c.Vector == nil {
			continue
		}
		idx, err := s.vectorIndexFor(len(c.Vector))
		if err != nil {
			return err
		}
		if err := idx.upsert(c.ID, c.Vector); err != nil {
			return errs.Wrap(errs.KindInternal, "index chunk vector", err)
		}
	}
	return nil
}

// DeleteChunks removes chunk rows matching filter, including their vectors.
func (s *Store) DeleteChunks(ctx context.Context, filter *Filter) error {
	ids, err := s.chunkIDs(ctx, filter)
	if err != nil {
		return err
	}
	where, args := compile(filter)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE "+where, args...); err != nil {
		return errs.Wrap(errs.KindFilesystem, "delete chunks", err)
	}
	for _, idx := range s.vectors {
		for _, id := range ids {
			idx.delete(id)
		}
	}
	return nil
}

func (s *Store) chunkIDs(ctx context.Context, filter *Filter) ([]string, error) {
	where, args := compile(filter)
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM chunks WHERE "+where, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "query chunk ids", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountChunks returns the number of chunk rows matching filter.
func (s *Store) CountChunks(ctx context.Context, filter *Filter) (int, error) {
	where, args := compile(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, errs.Wrap(errs.KindFilesystem, "count chunks", err)
	}
	return n, nil
}

// QueryChunks returns chunk rows matching filter, up to limit rows
// (0 meaning unlimited).
func (s *Store) QueryChunks(ctx context.Context, filter *Filter, limit int) ([]Chunk, error) {
	where, args := compile(filter)
	query := "SELECT id, repo_id, file_path, language, symbol_name, symbol_type, start_line, end_line, content FROM chunks WHERE " + where
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "query chunks", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.RepoID, &c.FilePath, &c.Language, &c.SymbolName, &c.SymbolType, &c.StartLine, &c.EndLine, &c.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// VectorQuery finds the k nearest chunks to query by cosine distance among
// rows matching filter, decorated with `_distance` (exposed as Chunk.Distance).
// Rows with a null vector never appear in results.
func (s *Store) VectorQuery(ctx context.Context, query []float32, filter *Filter, limit int) ([]Chunk, error) {
	idx, err := s.vectorIndexFor(len(query))
	if err != nil {
		return nil, err
	}
	// Over-fetch from the ANN index since it has no awareness of filter,
	// then intersect against the filtered id set below.
	hits, err := idx.search(query, limit*8+limit)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "vector search", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	allowed, err := s.chunkIDs(ctx, filter)
	if err != nil {
		return nil, err
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = true
	}

	var results []Chunk
	for _, h := range hits {
		if !allowedSet[h.ID] {
			continue
		}
		row, err := s.chunkByID(ctx, h.ID)
		if err != nil || row == nil {
			continue
		}
		row.Distance = h.Distance
		results = append(results, *row)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (s *Store) chunkByID(ctx context.Context, id string) (*Chunk, error) {
	var c Chunk
	err := s.db.QueryRowContext(ctx,
		"SELECT id, repo_id, file_path, language, symbol_name, symbol_type, start_line, end_line, content FROM chunks WHERE id = ?", id,
	).Scan(&c.ID, &c.RepoID, &c.FilePath, &c.Language, &c.SymbolName, &c.SymbolType, &c.StartLine, &c.EndLine, &c.Content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertEdges inserts or replaces edge rows by primary key.
func (s *Store) UpsertEdges(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindFilesystem, "begin upsert edges", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (id, repo_id, source_file, source_line, source_symbol, target_name, target_qualified, target_file, edge_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo_id=excluded.repo_id, source_file=excluded.source_file, source_line=excluded.source_line,
			source_symbol=excluded.source_symbol, target_name=excluded.target_name,
			target_qualified=excluded.target_qualified, target_file=excluded.target_file, edge_type=excluded.edge_type`)
	if err != nil {
		return errs.Wrap(errs.KindFilesystem, "prepare upsert edges", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.ID, e.RepoID, e.SourceFile, e.SourceLine, e.SourceSymbol, e.TargetName, e.TargetQualified, e.TargetFile, e.EdgeType); err != nil {
			return errs.Wrap(errs.KindFilesystem, "upsert edge", err)
		}
	}
	return tx.Commit()
}

// DeleteEdges removes edge rows matching filter.
func (s *Store) DeleteEdges(ctx context.Context, filter *Filter) error {
	where, args := compile(filter)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM edges WHERE "+where, args...); err != nil {
		return errs.Wrap(errs.KindFilesystem, "delete edges", err)
	}
	return nil
}

// CountEdges returns the number of edge rows matching filter.
func (s *Store) CountEdges(ctx context.Context, filter *Filter) (int, error) {
	where, args := compile(filter)
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges WHERE "+where, args...).Scan(&n)
	if err != nil {
		return 0, errs.Wrap(errs.KindFilesystem, "count edges", err)
	}
	return n, nil
}

// QueryEdges returns edge rows matching filter, up to limit rows (0 meaning
// unlimited).
func (s *Store) QueryEdges(ctx context.Context, filter *Filter, limit int) ([]Edge, error) {
	where, args := compile(filter)
	query := "SELECT id, repo_id, source_file, source_line, source_symbol, target_name, target_qualified, target_file, edge_type FROM edges WHERE " + where
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.KindFilesystem, "query edges", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.RepoID, &e.SourceFile, &e.SourceLine, &e.SourceSymbol, &e.TargetName, &e.TargetQualified, &e.TargetFile, &e.EdgeType); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

package storage

import (
	"context"
	"errors"

	"trustgraph/internal/extractor"
)

var (
	// ErrIndexCorruption means the persisted index is unreadable or was
	// written with another schema version. It is fatal for the run.
	ErrIndexCorruption = errors.New("function index corrupted")

	// ErrIndexNotFound means no index exists yet for the codebase.
	ErrIndexNotFound = errors.New("function index not found")
)

// IndexStore combines the read and write sides of the Function Index.
type IndexStore interface {
	IndexReader
	IndexWriter
	Close() error
}

// IndexReader is the query surface used by reconstruction.
type IndexReader interface {
	// LookupByQualified returns the unique entry for (name, file), or nil.
	LookupByQualified(ctx context.Context, name, file string) (*Entry, error)

	// LookupByBareName returns every entry with the name, in any file.
	LookupByBareName(ctx context.Context, name string) ([]Entry, error)

	// Entries lists the whole index ordered by file then name.
	Entries(ctx context.Context) ([]Entry, error)

	// Edges lists the static call edges.
	Edges(ctx context.Context) ([]EdgeRecord, error)

	// Unresolved lists identifiers that matched no indexed function.
	Unresolved(ctx context.Context) ([]UnresolvedRecord, error)

	Stats(ctx context.Context) (Stats, error)
}

// IndexWriter persists chunks and edges.
type IndexWriter interface {
	// Insert upserts a chunk on (name, file) and returns its row id.
	Insert(ctx context.Context, chunk *extractor.CodeChunk) (int64, error)

	// InsertAll upserts a batch in one transaction.
	InsertAll(ctx context.Context, chunks []*extractor.CodeChunk) error

	// ReplaceEdges swaps the stored edges and unresolved callees.
	ReplaceEdges(ctx context.Context, edges []EdgeRecord, unresolved []UnresolvedRecord) error
}

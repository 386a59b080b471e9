package storage

import (
	"time"

	"trustgraph/internal/extractor"
)

// Entry is one row of the Function Index.
type Entry struct {
	ID            int64
	Name          string
	Filepath      string
	Class         string
	Language      string
	Kind          string
	StartLine     int
	EndLine       int
	ContentHash   string
	Content       string
	Truncated     bool
	EventHandlers []string
	IndexedAt     time.Time
}

func (e Entry) Key() extractor.Key {
	return extractor.Key{Name: e.Name, Filepath: e.Filepath}
}

// Chunk converts the entry back to the chunk it was built from.
func (e Entry) Chunk() *extractor.CodeChunk {
	c := &extractor.CodeChunk{
		Name:          e.Name,
		Class:         e.Class,
		Filepath:      e.Filepath,
		Language:      e.Language,
		Kind:          e.Kind,
		StartLine:     e.StartLine,
		EndLine:       e.EndLine,
		Content:       e.Content,
		ContentHash:   e.ContentHash,
		Truncated:     e.Truncated,
		EventHandlers: e.EventHandlers,
	}
	c.ID = extractor.BuildChunkID(c)
	return c
}

// EdgeRecord is a persisted static call edge.
type EdgeRecord struct {
	Caller     extractor.Key
	Callee     extractor.Key
	Confidence float64
	Method     string
	Order      int
}

// UnresolvedRecord is an identifier a caller uses that matched no entry.
type UnresolvedRecord struct {
	Caller extractor.Key
	Name   string
}

// Stats counts index contents.
type Stats struct {
	Functions  int
	Files      int
	Edges      int
	Unresolved int
}

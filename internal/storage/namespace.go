package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Meta keys written by Rebuild.
const (
	MetaRoot    = "root"
	MetaRunID   = "run_id"
	MetaBuiltAt = "built_at"
)

// PathForRoot returns the index file for a codebase root. Each absolute
// root gets its own file, so indexes of different codebases never mix.
func PathForRoot(dataDir, root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	name := strings.ToLower(filepath.Base(abs))
	if name == "" || name == string(filepath.Separator) || name == "." {
		name = "root"
	}
	return filepath.Join(dataDir, fmt.Sprintf("%s-%s.db", name, hex.EncodeToString(sum[:6]))), nil
}

// Rebuild builds a fresh index next to path and atomically renames it over
// the live file once fn succeeds. Readers holding the old file keep
// reading it until they reopen. On failure the live file is untouched.
func Rebuild(ctx context.Context, path, root string, fn func(ctx context.Context, idx *SQLiteIndex) error) (runID string, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create index dir: %w", err)
	}

	runID = uuid.NewString()
	tmp := fmt.Sprintf("%s.%s.tmp", path, runID)
	idx, err := CreateIndex(tmp)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	for k, v := range map[string]string{
		MetaRoot:    root,
		MetaRunID:   runID,
		MetaBuiltAt: time.Now().UTC().Format(time.RFC3339),
	} {
		if err := idx.SetMeta(ctx, k, v); err != nil {
			idx.Close()
			return "", err
		}
	}

	if err := fn(ctx, idx); err != nil {
		idx.Close()
		return "", err
	}
	if err := idx.Close(); err != nil {
		return "", fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("swap index: %w", err)
	}
	return runID, nil
}

package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// BuildChunkID creates a deterministic chunk ID of the form
// file::class::name. Overloads sharing a file and name share an ID.
func BuildChunkID(chunk *CodeChunk) string {
	if chunk == nil {
		return ""
	}
	name := strings.TrimSpace(chunk.Name)
	if name == "" {
		name = "_"
	}
	return strings.Join([]string{chunk.Filepath, strings.TrimSpace(chunk.Class), name}, "::")
}

// ContentHash fingerprints chunk text with whitespace runs collapsed, so
// reformatting alone does not change the hash.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(canonicalize(content)))
	return hex.EncodeToString(sum[:8])
}

func canonicalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return whitespaceRe.ReplaceAllString(s, " ")
}

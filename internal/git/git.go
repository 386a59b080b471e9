// Package git reads working-tree changes of the indexed codebase.
package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ChangedFile is a file touched by a diff, with the new-side line numbers
// that changed. Paths are relative to the directory the diff ran in.
type ChangedFile struct {
	Path         string
	ChangedLines []int
}

var hunkHeader = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// ChangedFiles diffs dir against baseRef.
func ChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "diff", "-U0", "--no-color", "--relative", baseRef)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff %s failed: %w: %s", baseRef, err, strings.TrimSpace(stderr.String()))
	}
	return parseDiff(bytes.NewReader(out))
}

// parseDiff reads a zero-context unified diff. A pure deletion marks the
// line it follows, so the enclosing function still counts as changed.
// Deleted files are dropped.
func parseDiff(r io.Reader) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var changes []ChangedFile
	var current *ChangedFile
	flush := func() {
		if current != nil {
			changes = append(changes, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flush()
		case strings.HasPrefix(line, "+++ "):
			flush()
			path := strings.TrimPrefix(line, "+++ ")
			if path == "/dev/null" {
				continue
			}
			current = &ChangedFile{Path: strings.TrimPrefix(path, "b/")}
		case strings.HasPrefix(line, "@@") && current != nil:
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			start, _ := strconv.Atoi(m[1])
			count := 1
			if m[2] != "" {
				count, _ = strconv.Atoi(m[2])
			}
			if count == 0 {
				current.ChangedLines = append(current.ChangedLines, max(start, 1))
				continue
			}
			for i := range count {
				current.ChangedLines = append(current.ChangedLines, start+i)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read diff: %w", err)
	}
	flush()
	return changes, nil
}

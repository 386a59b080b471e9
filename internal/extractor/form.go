package extractor

import (
	"regexp"
	"strings"
)

var (
	formObjectRe = regexp.MustCompile(`(?i)^\s*(?:object|inherited|inline)\s+(?P<name>\w+)\s*:\s*(?P<class>\w+)`)
	formEventRe  = regexp.MustCompile(`^\s*(?P<event>On\w+)\s*=\s*(?P<handler>\w+)\s*$`)
	formItemRe   = regexp.MustCompile(`(?i)^\s*item\s*$`)
)

// ParseForm reads a declarative form descriptor (.dfm). Each top-level
// object becomes one form chunk carrying the event handler names bound
// anywhere inside it, in first-seen order.
func ParseForm(p *Profile, path string, src []byte) []*CodeChunk {
	lines := splitLines(strings.ReplaceAll(string(src), "\r\n", "\n"))

	var (
		chunks  []*CodeChunk
		current *CodeChunk
		seen    map[string]bool
		start   int
		depth   int
	)
	for i, line := range lines {
		if m := formObjectRe.FindStringSubmatch(line); m != nil {
			if depth == 0 {
				current = &CodeChunk{
					Name:      m[formObjectRe.SubexpIndex("name")],
					Class:     m[formObjectRe.SubexpIndex("class")],
					Filepath:  path,
					Language:  p.Language,
					Kind:      KindForm,
					StartLine: i + 1,
				}
				seen = make(map[string]bool)
				start = i
			}
			depth++
			continue
		}
		if formItemRe.MatchString(line) {
			depth++
			continue
		}
		trimmed := strings.ToLower(strings.TrimSpace(line))
		if trimmed == "end" || trimmed == "end>" {
			depth--
			if depth == 0 && current != nil {
				current.EndLine = i + 1
				current.Content = strings.Join(lines[start:i+1], "\n")
				chunks = append(chunks, current)
				current = nil
			}
			if depth < 0 {
				depth = 0
			}
			continue
		}
		if current == nil {
			continue
		}
		if m := formEventRe.FindStringSubmatch(line); m != nil {
			handler := m[formEventRe.SubexpIndex("handler")]
			if !seen[strings.ToUpper(handler)] {
				seen[strings.ToUpper(handler)] = true
				current.EventHandlers = append(current.EventHandlers, handler)
			}
		}
	}
	return chunks
}

package knowledge

import (
	"encoding/json"
	"fmt"
	"strings"
)

func cleanMarkdownOutput(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```markdown", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			text = strings.TrimSuffix(strings.TrimSpace(text), "```")
			break
		}
	}
	return strings.TrimSpace(text)
}

// parseVerdict reads the model's JSON answer, falling back to keyword
// matching when the model ignored the format.
func parseVerdict(text string) (VerifyResponse, error) {
	text = cleanMarkdownOutput(text)
	if text == "" {
		return VerifyResponse{}, fmt.Errorf("empty completion")
	}

	var resp VerifyResponse
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &resp); err == nil {
			resp.Verdict = Verdict(strings.ToLower(strings.TrimSpace(string(resp.Verdict))))
			if resp.Verdict == VerdictConfirmed || resp.Verdict == VerdictUnconfirmed {
				return resp, nil
			}
		}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "unconfirmed"), strings.HasPrefix(lower, "no"):
		return VerifyResponse{Verdict: VerdictUnconfirmed, Rationale: text}, nil
	case strings.Contains(lower, "confirmed"), strings.HasPrefix(lower, "yes"):
		return VerifyResponse{Verdict: VerdictConfirmed, Rationale: text}, nil
	}
	return VerifyResponse{}, fmt.Errorf("unparseable completion: %q", text)
}

package knowledge

import (
	"fmt"
	"strings"

	"trustgraph/internal/extractor"
)

// MaxPromptBodyChars bounds the caller body embedded in a prompt.
const MaxPromptBodyChars = 6000

// PromptBuilder constructs the call verification prompt.
type PromptBuilder struct{}

const securityInstruction = "Never repeat API keys, passwords, secrets or tokens that appear in the code.\n"

func (pb *PromptBuilder) BuildVerifyPrompt(req VerifyRequest) string {
	var sb strings.Builder
	sb.WriteString("Role: Static analysis reviewer. Task: decide whether a function calls another function.\n")
	sb.WriteString(securityInstruction)

	lang := req.Language
	if lang == "" {
		lang = "source"
	}
	fmt.Fprintf(&sb, "\nCaller: %s\nCandidate callee: %s\n", req.CallerName, req.CandidateCallee)
	fmt.Fprintf(&sb, "\n```%s\n%s\n```\n", lang, extractor.TruncateChars(req.CallerBody, MaxPromptBodyChars))

	sb.WriteString("\n**INSTRUCTION**:\n")
	fmt.Fprintf(&sb, "Answer \"confirmed\" only if the body above directly invokes %s (with or without arguments, or through an event binding).\n", req.CandidateCallee)
	sb.WriteString("Answer \"unconfirmed\" if the name only appears in a comment, a string, a declaration or as a variable.\n")
	sb.WriteString("Respond with a single JSON object: {\"verdict\": \"confirmed\"|\"unconfirmed\", \"rationale\": \"<one sentence>\"}\n")
	return sb.String()
}

package report

import (
	"fmt"
	"strings"

	"trustgraph/internal/reconcile"
)

// Mermaid draws the reconciled edges as a flowchart. Confirmed edges are
// solid, phantom edges dotted and missing edges thick.
func Mermaid(edges []reconcile.EdgeVerdict) string {
	var sb strings.Builder
	sb.WriteString("```mermaid\nflowchart TD\n")

	ids := make(map[string]string)
	node := func(name string) string {
		if id, ok := ids[name]; ok {
			return id
		}
		id := fmt.Sprintf("n%d", len(ids))
		ids[name] = id
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", id, mermaidLabel(name))
		return id
	}

	var phantom, missing []int
	for i, e := range edges {
		from, to := node(e.Caller), node(e.Callee)
		switch e.Verdict {
		case reconcile.Phantom:
			fmt.Fprintf(&sb, "    %s -.-> %s\n", from, to)
			phantom = append(phantom, i)
		case reconcile.Missing:
			fmt.Fprintf(&sb, "    %s ==> %s\n", from, to)
			missing = append(missing, i)
		default:
			fmt.Fprintf(&sb, "    %s --> %s\n", from, to)
		}
	}
	if len(phantom) > 0 {
		fmt.Fprintf(&sb, "    linkStyle %s stroke:#d33\n", joinInts(phantom))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&sb, "    linkStyle %s stroke:#e90\n", joinInts(missing))
	}
	sb.WriteString("```\n")
	return sb.String()
}

func mermaidLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}

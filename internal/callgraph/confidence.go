package callgraph

// Edge derivation methods.
const (
	MethodDirectCall  = "direct_call"
	MethodBareName    = "bare_name"
	MethodDeclarative = "declarative_binding"
	MethodLLMTier2    = "llm_tier2"
)

// Confidence scores an edge by how it was derived and how many indexed
// functions carried the callee's name.
func Confidence(method string, candidates int) float64 {
	base := baseConfidence(method)
	if method == MethodDirectCall && candidates > 1 {
		base -= 0.25
	}
	return clamp(base, 0.1, 0.99)
}

func baseConfidence(method string) float64 {
	switch method {
	case MethodDirectCall:
		return 0.9
	case MethodDeclarative:
		return 0.75
	case MethodLLMTier2:
		return 0.7
	case MethodBareName:
		return 0.55
	default:
		return 0.5
	}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

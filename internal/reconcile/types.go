// Package reconcile diffs a ground-truth flow against its reconstructed
// graph and scores how far the external graph can be trusted.
package reconcile

import (
	"trustgraph/internal/canon"
	"trustgraph/internal/knowledge"
)

// Verdict classifies one canonical edge.
type Verdict string

const (
	Confirmed Verdict = "CONFIRMED"
	Phantom   Verdict = "PHANTOM"
	Missing   Verdict = "MISSING"
)

// NodeState is the on-disk status of a function named by either graph.
type NodeState string

const (
	NodeValid   NodeState = "VALID"
	NodeDrifted NodeState = "DRIFTED"
	NodeMissing NodeState = "MISSING"
)

// EdgeVerdict is the classification of one canonical (caller, callee) pair.
// Caller and Callee keep the spelling first seen; files come from the
// reconstructed side when it has the edge.
type EdgeVerdict struct {
	Key            canon.EdgeKey     `json:"key"`
	Caller         string            `json:"caller"`
	Callee         string            `json:"callee"`
	CallerFile     string            `json:"caller_file,omitempty"`
	CalleeFile     string            `json:"callee_file,omitempty"`
	Verdict        Verdict           `json:"verdict"`
	Confidence     float64           `json:"confidence"`
	Method         string            `json:"method,omitempty"`
	ExecutionOrder int               `json:"execution_order,omitempty"`
	Semantic       knowledge.Verdict `json:"semantic,omitempty"`
	Rationale      string            `json:"rationale,omitempty"`
}

type NodeVerdict struct {
	Name     string    `json:"name"`
	Function string    `json:"function"`
	File     string    `json:"file,omitempty"`
	State    NodeState `json:"state"`
	Detail   string    `json:"detail,omitempty"`
}

type Counts struct {
	Confirmed    int `json:"confirmed"`
	Phantom      int `json:"phantom"`
	Missing      int `json:"missing"`
	Nodes        int `json:"nodes"`
	ValidNodes   int `json:"valid_nodes"`
	DriftedNodes int `json:"drifted_nodes"`
	MissingNodes int `json:"missing_nodes"`
}

// TrustReport is the outcome of reconciling one flow. All scores are in
// [0,1]; FlowTrust is min(EdgeTrust, NodeTrust).
type TrustReport struct {
	FlowID       string        `json:"flow_id"`
	EdgeVerdicts []EdgeVerdict `json:"edge_verdicts"`
	NodeVerdicts []NodeVerdict `json:"node_verdicts"`
	EdgeTrust    float64       `json:"edge_trust"`
	NodeTrust    float64       `json:"node_trust"`
	FlowTrust    float64       `json:"flow_trust"`
	Counts       Counts        `json:"counts"`
}

// Edges returns the verdicts of one class in report order.
func (r *TrustReport) Edges(v Verdict) []EdgeVerdict {
	var out []EdgeVerdict
	for _, e := range r.EdgeVerdicts {
		if e.Verdict == v {
			out = append(out, e)
		}
	}
	return out
}

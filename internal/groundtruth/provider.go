// Package groundtruth reads execution flows recorded by an external
// knowledge store.
package groundtruth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrFlowNotFound = errors.New("execution flow not found")

// RootDescriptor names where a flow starts. The hints may be stale or
// foreign (absolute paths from another machine).
type RootDescriptor struct {
	ExecutionFlowID  string `yaml:"id" json:"id"`
	RootFunctionName string `yaml:"function" json:"function"`
	RootFileHint     string `yaml:"file,omitempty" json:"file,omitempty"`
	RootClassHint    string `yaml:"class,omitempty" json:"class,omitempty"`
}

// Edge is one recorded call. Order is the global execution order.
type Edge struct {
	Caller      string `yaml:"caller" json:"caller"`
	Callee      string `yaml:"callee" json:"callee"`
	CallerFile  string `yaml:"caller_file,omitempty" json:"caller_file,omitempty"`
	CalleeFile  string `yaml:"callee_file,omitempty" json:"callee_file,omitempty"`
	CallerClass string `yaml:"caller_class,omitempty" json:"caller_class,omitempty"`
	CalleeClass string `yaml:"callee_class,omitempty" json:"callee_class,omitempty"`
	Order       int    `yaml:"order,omitempty" json:"order,omitempty"`
}

// Flow is the ground-truth graph of one execution flow.
type Flow struct {
	Name  string
	Root  RootDescriptor
	Edges []Edge
}

// GraphProvider is the read-only source of ground-truth flows.
type GraphProvider interface {
	Flow(ctx context.Context, id string) (*Flow, error)
	Flows(ctx context.Context) ([]RootDescriptor, error)
}

type document struct {
	Flows []flowDoc `yaml:"flows"`
}

type flowDoc struct {
	ID    string         `yaml:"id"`
	Name  string         `yaml:"name"`
	Root  RootDescriptor `yaml:"root"`
	Edges []Edge         `yaml:"edges"`
}

// FileProvider serves flows from an exported YAML or JSON document.
type FileProvider struct {
	path  string
	flows map[string]*Flow
	order []string
}

// LoadFile parses an export. JSON is read through the YAML decoder, which
// accepts it as a subset.
func LoadFile(path string) (*FileProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p.path = path
	return p, nil
}

// Parse validates and decodes an export document.
func Parse(data []byte) (*FileProvider, error) {
	if err := validateShape(data); err != nil {
		return nil, err
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse ground truth: %w", err)
	}

	p := &FileProvider{flows: make(map[string]*Flow, len(doc.Flows))}
	for i, fd := range doc.Flows {
		id := fd.ID
		if id == "" {
			id = fd.Root.ExecutionFlowID
		}
		if id == "" {
			return nil, fmt.Errorf("flow #%d has no id", i+1)
		}
		if _, dup := p.flows[id]; dup {
			return nil, fmt.Errorf("duplicate flow id %q", id)
		}
		if fd.Root.RootFunctionName == "" && fd.Root.RootClassHint == "" {
			return nil, fmt.Errorf("flow %q has no root function or class", id)
		}
		fd.Root.ExecutionFlowID = id

		edges := make([]Edge, len(fd.Edges))
		copy(edges, fd.Edges)
		sort.SliceStable(edges, func(a, b int) bool { return edges[a].Order < edges[b].Order })

		p.flows[id] = &Flow{Name: fd.Name, Root: fd.Root, Edges: edges}
		p.order = append(p.order, id)
	}
	return p, nil
}

func (p *FileProvider) Path() string {
	return p.path
}

// Flow returns a copy of the flow, so callers cannot alter the export.
func (p *FileProvider) Flow(ctx context.Context, id string) (*Flow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := p.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	out := *f
	out.Edges = append([]Edge(nil), f.Edges...)
	return &out, nil
}

// Flows lists root descriptors in document order.
func (p *FileProvider) Flows(ctx context.Context) ([]RootDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]RootDescriptor, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.flows[id].Root)
	}
	return out, nil
}

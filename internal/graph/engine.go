// Package graph runs the diagnosis workflow as a small state machine of named
// nodes joined by static and conditional edges.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Divas-Gupta30/oceanus-agent/internal/metrics"
)

// End is the terminal pseudo-node.
const End = "__end__"

// DefaultMaxSteps bounds the number of node executions in one run.
const DefaultMaxSteps = 25

// ErrMaxSteps is returned when a run does not reach End within the step limit.
var ErrMaxSteps = errors.New("graph exceeded max steps")

// NodeFunc mutates the state. A returned error aborts the run; expected
// failures are recorded on the state instead.
type NodeFunc func(ctx context.Context, s *State) error

// RouteFunc picks the next node after a conditional edge.
type RouteFunc func(s *State) string

type conditional struct {
	route   RouteFunc
	targets map[string]bool
}

// Graph is built once and then run any number of times.
type Graph struct {
	entry        string
	nodes        map[string]NodeFunc
	edges        map[string]string
	conditionals map[string]conditional
	maxSteps     int
	checkpointer Checkpointer
	tracer       trace.Tracer
}

type Option func(*Graph)

func WithMaxSteps(n int) Option {
	return func(g *Graph) { g.maxSteps = n }
}

func WithCheckpointer(c Checkpointer) Option {
	return func(g *Graph) { g.checkpointer = c }
}

func New(entry string, opts ...Option) *Graph {
	g := &Graph{
		entry:        entry,
		nodes:        map[string]NodeFunc{},
		edges:        map[string]string{},
		conditionals: map[string]conditional{},
		maxSteps:     DefaultMaxSteps,
		tracer:       otel.Tracer("github.com/Divas-Gupta30/oceanus-agent/internal/graph"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Graph) AddNode(name string, fn NodeFunc) *Graph {
	g.nodes[name] = fn
	return g
}

func (g *Graph) AddEdge(from, to string) *Graph {
	g.edges[from] = to
	return g
}

// AddConditionalEdges routes from a node through route, which must return one of targets.
func (g *Graph) AddConditionalEdges(from string, route RouteFunc, targets ...string) *Graph {
	c := conditional{route: route, targets: map[string]bool{}}
	for _, t := range targets {
		c.targets[t] = true
	}
	g.conditionals[from] = c
	return g
}

// Validate checks that every node has exactly one way out and every edge
// points at a known node.
func (g *Graph) Validate() error {
	var errs []error
	known := func(n string) bool {
		_, ok := g.nodes[n]
		return ok || n == End
	}
	if _, ok := g.nodes[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry node %q is not defined", g.entry))
	}
	for name := range g.nodes {
		_, static := g.edges[name]
		_, cond := g.conditionals[name]
		switch {
		case static && cond:
			errs = append(errs, fmt.Errorf("node %q has both static and conditional edges", name))
		case !static && !cond:
			errs = append(errs, fmt.Errorf("node %q has no outgoing edge", name))
		}
	}
	for from, to := range g.edges {
		if !known(from) || !known(to) {
			errs = append(errs, fmt.Errorf("edge %s -> %s references an unknown node", from, to))
		}
	}
	for from, c := range g.conditionals {
		if !known(from) {
			errs = append(errs, fmt.Errorf("conditional edge from unknown node %q", from))
		}
		for to := range c.targets {
			if !known(to) {
				errs = append(errs, fmt.Errorf("conditional edge %s -> %s references an unknown node", from, to))
			}
		}
	}
	return errors.Join(errs...)
}

// Run executes nodes from the entry until End.
func (g *Graph) Run(ctx context.Context, s *State) error {
	node := g.entry
	for step := 0; node != End; step++ {
		if step >= g.maxSteps {
			return fmt.Errorf("%w (%d) at node %s", ErrMaxSteps, g.maxSteps, node)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fn, ok := g.nodes[node]
		if !ok {
			return fmt.Errorf("unknown node %q", node)
		}
		if err := g.runNode(ctx, node, fn, s); err != nil {
			return fmt.Errorf("node %s: %w", node, err)
		}
		if g.checkpointer != nil {
			g.checkpointer.Put(s.ThreadID, Checkpoint{Step: step, Node: node, State: s.snapshot()})
		}

		next, err := g.next(node, s)
		if err != nil {
			return err
		}
		node = next
	}
	return nil
}

func (g *Graph) runNode(ctx context.Context, name string, fn NodeFunc, s *State) error {
	ctx, span := g.tracer.Start(ctx, "graph."+name, trace.WithAttributes(
		attribute.String("graph.node", name),
		attribute.String("graph.thread_id", s.ThreadID),
	))
	defer span.End()
	defer metrics.ObserveNode(name, time.Now())

	err := fn(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if s.Error != "" {
		span.SetAttributes(attribute.String("graph.state_error", s.Error))
	}
	return err
}

func (g *Graph) next(node string, s *State) (string, error) {
	if c, ok := g.conditionals[node]; ok {
		to := c.route(s)
		if !c.targets[to] {
			return "", fmt.Errorf("route from %s returned undeclared target %q", node, to)
		}
		return to, nil
	}
	if to, ok := g.edges[node]; ok {
		return to, nil
	}
	return "", fmt.Errorf("node %s has no outgoing edge", node)
}

package workflow

import (
	"fmt"
	"strings"
)

// Graph is a static directed graph of stages with outcome-labeled edges.
// It is read-only once built and safe for concurrent use by any number
// of simultaneous runs.
type Graph struct {
	entry Node
	nodes map[Node]*nodeConfig
}

// GraphBuilder assembles a workflow graph node by node
type GraphBuilder interface {
	// Configure returns the edge configuration for the given stage node
	Configure(node Node) NodeConfiguration

	// Build validates the graph and freezes it with the given entry node.
	// The graph must be total (every configured node needs an edge for
	// every outcome class, and every self-loop needs an exhausted edge)
	// and acyclic apart from self-loop retries.
	Build(entry Node) (*Graph, error)
}

// NodeConfiguration configures outgoing edges for a single stage node
type NodeConfiguration interface {
	// On routes the given outcome class to the target node
	On(class Class, to Node) NodeConfiguration

	// MaxAttempts bounds how many times the stage may execute in one run.
	// Defaults to 1 (no retry loop).
	MaxAttempts(n int) NodeConfiguration

	// Exhausted sets the node forced when a self-loop edge is taken but
	// the retry budget is already spent
	Exhausted(to Node) NodeConfiguration
}

type nodeConfig struct {
	edges       map[Class]Node
	exhausted   Node
	maxAttempts int
}

type graphBuilder struct {
	nodes map[Node]*nodeConfig
}

type nodeConfiguration struct {
	config *nodeConfig
}

// NewBuilder creates a new workflow graph builder
func NewBuilder() GraphBuilder {
	return &graphBuilder{nodes: make(map[Node]*nodeConfig)}
}

// Configure returns the edge configuration for the given stage node
func (b *graphBuilder) Configure(node Node) NodeConfiguration {
	if node.IsTerminal() {
		panic(fmt.Sprintf("terminal node %s cannot have outgoing edges", node))
	}

	config, exists := b.nodes[node]
	if !exists {
		config = &nodeConfig{
			edges:       make(map[Class]Node),
			maxAttempts: 1,
		}
		b.nodes[node] = config
	}

	return &nodeConfiguration{config: config}
}

// Build validates the graph and freezes it with the given entry node
func (b *graphBuilder) Build(entry Node) (*Graph, error) {
	if _, ok := b.nodes[entry]; !ok {
		return nil, fmt.Errorf("%w: entry node %s is not configured", ErrUnknownNode, entry)
	}

	classes := []Class{ClassSuccess, ClassLowConfidence, ClassFailure}

	for node, config := range b.nodes {
		for _, class := range classes {
			target, ok := config.edges[class]
			if !ok {
				return nil, fmt.Errorf("%w: node %s has no edge for %s", ErrMissingEdge, node, class)
			}
			if !target.IsTerminal() {
				if _, ok := b.nodes[target]; !ok {
					return nil, fmt.Errorf("%w: node %s routes %s to unconfigured node %s", ErrUnknownNode, node, class, target)
				}
			}
			if target == node && config.exhausted == "" {
				return nil, fmt.Errorf("%w: node %s loops to itself on %s but has no exhausted edge", ErrMissingEdge, node, class)
			}
		}
		if config.exhausted != "" && !config.exhausted.IsTerminal() {
			if _, ok := b.nodes[config.exhausted]; !ok {
				return nil, fmt.Errorf("%w: node %s has unconfigured exhausted target %s", ErrUnknownNode, node, config.exhausted)
			}
		}
		if config.maxAttempts < 1 {
			return nil, fmt.Errorf("node %s has max attempts %d, must be at least 1", node, config.maxAttempts)
		}
	}

	if cycle := b.findCycle(); cycle != nil {
		names := make([]string, len(cycle))
		for i, node := range cycle {
			names[i] = node.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrCyclicGraph, strings.Join(names, " -> "))
	}

	// Copy configurations so later builder use cannot mutate the graph
	nodesCopy := make(map[Node]*nodeConfig, len(b.nodes))
	for node, config := range b.nodes {
		edgesCopy := make(map[Class]Node, len(config.edges))
		for class, target := range config.edges {
			edgesCopy[class] = target
		}
		nodesCopy[node] = &nodeConfig{
			edges:       edgesCopy,
			exhausted:   config.exhausted,
			maxAttempts: config.maxAttempts,
		}
	}

	return &Graph{entry: entry, nodes: nodesCopy}, nil
}

// findCycle searches for a cycle through more than one stage node and
// returns its path, or nil. Self-loops are excluded: they are the bounded
// retry mechanism and carry their own exhausted edge.
func (b *graphBuilder) findCycle() []Node {
	const (
		unvisited = iota
		visiting
		visited
	)
	colors := make(map[Node]int, len(b.nodes))

	var stack []Node
	var visit func(node Node) []Node
	visit = func(node Node) []Node {
		colors[node] = visiting
		stack = append(stack, node)

		config := b.nodes[node]
		targets := make([]Node, 0, len(config.edges)+1)
		for _, target := range config.edges {
			targets = append(targets, target)
		}
		if config.exhausted != "" {
			targets = append(targets, config.exhausted)
		}

		for _, target := range targets {
			if target == node || target.IsTerminal() {
				continue
			}
			switch colors[target] {
			case visiting:
				for i, member := range stack {
					if member == target {
						cycle := append([]Node{}, stack[i:]...)
						return append(cycle, target)
					}
				}
			case unvisited:
				if cycle := visit(target); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[node] = visited
		return nil
	}

	for node := range b.nodes {
		if colors[node] == unvisited {
			if cycle := visit(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// On routes the given outcome class to the target node
func (c *nodeConfiguration) On(class Class, to Node) NodeConfiguration {
	if !class.IsValid() {
		panic(fmt.Sprintf("invalid outcome class: %s", class))
	}
	c.config.edges[class] = to
	return c
}

// MaxAttempts bounds how many times the stage may execute in one run
func (c *nodeConfiguration) MaxAttempts(n int) NodeConfiguration {
	c.config.maxAttempts = n
	return c
}

// Exhausted sets the node forced once the retry budget is spent
func (c *nodeConfiguration) Exhausted(to Node) NodeConfiguration {
	c.config.exhausted = to
	return c
}

// Entry returns the graph's entry node
func (g *Graph) Entry() Node {
	return g.entry
}

// MaxAttempts returns the retry budget for the given stage node
func (g *Graph) MaxAttempts(node Node) int {
	config, ok := g.nodes[node]
	if !ok {
		return 1
	}
	return config.maxAttempts
}

// Nodes returns all configured stage nodes
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.nodes))
	for node := range g.nodes {
		nodes = append(nodes, node)
	}
	return nodes
}

// Next resolves the edge for the given node and outcome class. attemptsUsed
// is the number of times the stage has already executed in this run; when
// the resolved edge loops back to the node itself and the budget is spent,
// the exhausted edge is forced instead.
func (g *Graph) Next(node Node, class Class, attemptsUsed int) (Node, error) {
	config, ok := g.nodes[node]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}

	target, ok := config.edges[class]
	if !ok {
		return "", fmt.Errorf("%w: node %s, outcome %s", ErrMissingEdge, node, class)
	}

	if target == node && attemptsUsed >= config.maxAttempts {
		return config.exhausted, nil
	}

	return target, nil
}

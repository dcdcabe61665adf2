package workflow

// EdgeDefinition declares the outgoing edges of one stage node, suitable
// for loading a graph from configuration
type EdgeDefinition struct {
	Success       Node
	LowConfidence Node
	Failure       Node
	Exhausted     Node
	MaxAttempts   int
}

// FromDefinition builds a graph from externally supplied edge definitions
func FromDefinition(entry Node, defs map[Node]EdgeDefinition) (*Graph, error) {
	builder := NewBuilder()

	for node, def := range defs {
		config := builder.Configure(node).
			On(ClassSuccess, def.Success).
			On(ClassLowConfidence, def.LowConfidence).
			On(ClassFailure, def.Failure)
		if def.MaxAttempts > 0 {
			config.MaxAttempts(def.MaxAttempts)
		}
		if def.Exhausted != "" {
			config.Exhausted(def.Exhausted)
		}
	}

	return builder.Build(entry)
}

// BuildDocumentGraph creates the default document processing graph:
// classify -> extract -> validate -> route, with bounded self-loop retries
// on low confidence or failure, and all exhausted budgets escalating to
// the routing stage so that only routing assigns a terminal status.
func BuildDocumentGraph(attempts map[Node]int) (*Graph, error) {
	budget := func(node Node, fallback int) int {
		if n, ok := attempts[node]; ok && n > 0 {
			return n
		}
		return fallback
	}

	builder := NewBuilder()

	builder.Configure(NodeClassify).
		MaxAttempts(budget(NodeClassify, 2)).
		On(ClassSuccess, NodeExtract).
		On(ClassLowConfidence, NodeClassify).
		On(ClassFailure, NodeClassify).
		Exhausted(NodeRoute)

	builder.Configure(NodeExtract).
		MaxAttempts(budget(NodeExtract, 2)).
		On(ClassSuccess, NodeValidate).
		On(ClassLowConfidence, NodeExtract).
		On(ClassFailure, NodeExtract).
		Exhausted(NodeRoute)

	builder.Configure(NodeValidate).
		MaxAttempts(budget(NodeValidate, 2)).
		On(ClassSuccess, NodeRoute).
		On(ClassLowConfidence, NodeRoute).
		On(ClassFailure, NodeValidate).
		Exhausted(NodeRoute)

	builder.Configure(NodeRoute).
		On(ClassSuccess, NodeApproved).
		On(ClassLowConfidence, NodeReview).
		On(ClassFailure, NodeFailed)

	return builder.Build(NodeClassify)
}

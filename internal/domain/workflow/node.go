package workflow

// Node identifies a vertex in the workflow graph: either a processing
// stage or a terminal sentinel
type Node string

// Processing stage nodes of the default document pipeline
const (
	NodeClassify Node = "classify"
	NodeExtract  Node = "extract"
	NodeValidate Node = "validate"
	NodeRoute    Node = "route"
)

// Terminal sentinel nodes, one per terminal run status
const (
	NodeApproved Node = "approved"
	NodeReview   Node = "review"
	NodeFailed   Node = "failed"
)

var terminalNodes = map[Node]bool{
	NodeApproved: true,
	NodeReview:   true,
	NodeFailed:   true,
}

// IsTerminal returns true if the node is a terminal sentinel (no outgoing edges)
func (n Node) IsTerminal() bool {
	return terminalNodes[n]
}

// String returns the string representation of the node
func (n Node) String() string {
	return string(n)
}

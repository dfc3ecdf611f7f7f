package graph

import (
	"fmt"
	"strings"

	"agentdash/internal/model"
)

// ModeStatic marks a structure derived from the declared agents rather than a live engine
const ModeStatic = "fallback"

// Node is one agent stage of the pipeline
type Node struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Agents      []string `json:"agents"`
}

// Edge links two consecutive stages
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Summary counts nodes and edges, including the start and end transitions
type Summary struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
}

// Structure is the response of the graph endpoint
type Structure struct {
	Available bool    `json:"available"`
	Message   string  `json:"message,omitempty"`
	Mode      string  `json:"mode"`
	Mermaid   string  `json:"mermaid"`
	Nodes     []Node  `json:"nodes"`
	Edges     []Edge  `json:"edges"`
	Summary   Summary `json:"graph_summary"`
}

var descriptions = map[model.AgentKind]string{
	model.AgentKindData:          "Cleans and preprocesses uploaded datasets",
	model.AgentKindAnalysis:      "Performs statistical analysis on cleaned data",
	model.AgentKindVisualization: "Generates dashboard-ready visualizations",
	model.AgentKindReport:        "Compiles final summaries and reports",
}

// Build lays the agents out as a linear pipeline in declaration order
func Build(specs []model.AgentSpec) Structure {
	s := Structure{
		Available: false,
		Message:   "Live orchestration is not running; showing the declared agent pipeline.",
		Mode:      ModeStatic,
		Nodes:     make([]Node, 0, len(specs)),
		Edges:     make([]Edge, 0, len(specs)),
	}

	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	for _, spec := range specs {
		s.Nodes = append(s.Nodes, Node{
			Key:         spec.ID,
			Label:       spec.Name,
			Description: descriptions[spec.Kind],
			Agents:      []string{strings.ReplaceAll(spec.Name, " ", "")},
		})
		fmt.Fprintf(&b, "    %s: %s\n", spec.ID, spec.Name)
	}
	b.WriteString("\n")

	if len(specs) > 0 {
		fmt.Fprintf(&b, "    [*] --> %s\n", specs[0].ID)
	}
	for i := 1; i < len(specs); i++ {
		s.Edges = append(s.Edges, Edge{Source: specs[i-1].ID, Target: specs[i].ID})
		fmt.Fprintf(&b, "    %s --> %s\n", specs[i-1].ID, specs[i].ID)
	}
	if len(specs) > 0 {
		fmt.Fprintf(&b, "    %s --> [*]\n", specs[len(specs)-1].ID)
	}

	s.Mermaid = b.String()
	s.Summary = Summary{TotalNodes: len(s.Nodes), TotalEdges: len(s.Edges)}
	if len(specs) > 0 {
		s.Summary.TotalEdges += 2
	}
	return s
}

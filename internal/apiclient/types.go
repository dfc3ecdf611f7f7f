package apiclient

import "encoding/json"

// StatusUnknown replaces a missing status field
const StatusUnknown = "unknown"

// LogEntry is one agent log line
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// TaskDetails describes the task an agent is running
type TaskDetails struct {
	TaskID      string `json:"task_id"`
	TaskType    string `json:"task_type"`
	DatasetType string `json:"dataset_type,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
}

// AgentProgress is the normalized agent view; missing fields are defaulted
type AgentProgress struct {
	AgentID     string       `json:"agent_id"`
	AgentName   string       `json:"agent_name"`
	Status      string       `json:"status"`
	Progress    int          `json:"progress"`
	CurrentTask string       `json:"current_task"`
	TaskDetails *TaskDetails `json:"task_details,omitempty"`
	RecentLogs  []LogEntry   `json:"recent_logs"`
}

// TaskRow is one row of the task board
type TaskRow struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	Progress      int            `json:"progress"`
	AssignedAgent string         `json:"assigned_agent,omitempty"`
	Parameters    map[string]any `json:"parameters"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     string         `json:"created_at,omitempty"`
}

// TaskBoard is the normalized task listing
type TaskBoard struct {
	Active    []TaskRow `json:"active"`
	Queued    []TaskRow `json:"queued"`
	Completed []TaskRow `json:"completed"`
}

// GraphNode is one stage of the pipeline
type GraphNode struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Agents      []string `json:"agents"`
}

// GraphEdge links two stages
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the normalized pipeline structure
type Graph struct {
	Available  bool        `json:"available"`
	Mode       string      `json:"mode"`
	Message    string      `json:"message,omitempty"`
	Mermaid    string      `json:"mermaid"`
	Nodes      []GraphNode `json:"nodes"`
	Edges      []GraphEdge `json:"edges"`
	TotalNodes int         `json:"total_nodes"`
	TotalEdges int         `json:"total_edges"`
}

type rawAgentProgress struct {
	AgentName   *string      `json:"agent_name"`
	Status      *string      `json:"status"`
	Progress    *float64     `json:"progress"`
	CurrentTask *string      `json:"current_task"`
	TaskDetails *TaskDetails `json:"task_details"`
	RecentLogs  []LogEntry   `json:"recent_logs"`
}

func (r rawAgentProgress) normalize(id string) AgentProgress {
	out := AgentProgress{
		AgentID:     id,
		AgentName:   id,
		Status:      StatusUnknown,
		TaskDetails: r.TaskDetails,
		RecentLogs:  r.RecentLogs,
	}
	if r.AgentName != nil && *r.AgentName != "" {
		out.AgentName = *r.AgentName
	}
	if r.Status != nil && *r.Status != "" {
		out.Status = *r.Status
	}
	if r.Progress != nil {
		out.Progress = clamp(int(*r.Progress))
	}
	if r.CurrentTask != nil {
		out.CurrentTask = *r.CurrentTask
	}
	if out.RecentLogs == nil {
		out.RecentLogs = []LogEntry{}
	}
	return out
}

type rawTask struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Status        *string         `json:"status"`
	Progress      *float64        `json:"progress"`
	AssignedAgent string          `json:"assigned_agent"`
	Parameters    map[string]any  `json:"parameters"`
	Error         string          `json:"error"`
	CreatedAt     json.RawMessage `json:"created_at"`
}

func (r rawTask) row() TaskRow {
	row := TaskRow{
		ID:            r.ID,
		Name:          r.Name,
		Type:          r.Type,
		Status:        StatusUnknown,
		AssignedAgent: r.AssignedAgent,
		Parameters:    r.Parameters,
		Error:         r.Error,
	}
	if r.Status != nil && *r.Status != "" {
		row.Status = *r.Status
	}
	if r.Progress != nil {
		row.Progress = clamp(int(*r.Progress))
	}
	if row.Parameters == nil {
		row.Parameters = map[string]any{}
	}
	var created string
	if json.Unmarshal(r.CreatedAt, &created) == nil {
		row.CreatedAt = created
	}
	return row
}

// rawActive is a flat task row; agent_id is optional and backs up assigned_agent
type rawActive struct {
	rawTask
	AgentID string `json:"agent_id"`
}

type rawTaskBoard struct {
	Active    []rawActive `json:"active"`
	Queued    []rawTask   `json:"queued"`
	Completed []rawTask   `json:"completed"`
}

func (r rawTaskBoard) normalize() TaskBoard {
	out := TaskBoard{
		Active:    make([]TaskRow, 0, len(r.Active)),
		Queued:    make([]TaskRow, 0, len(r.Queued)),
		Completed: make([]TaskRow, 0, len(r.Completed)),
	}
	for _, a := range r.Active {
		row := a.row()
		if row.AssignedAgent == "" {
			row.AssignedAgent = a.AgentID
		}
		out.Active = append(out.Active, row)
	}
	for _, t := range r.Queued {
		out.Queued = append(out.Queued, t.row())
	}
	for _, t := range r.Completed {
		out.Completed = append(out.Completed, t.row())
	}
	return out
}

type rawGraph struct {
	Available bool        `json:"available"`
	Mode      string      `json:"mode"`
	Message   string      `json:"message"`
	Mermaid   string      `json:"mermaid"`
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	Summary   struct {
		TotalNodes *int `json:"total_nodes"`
		TotalEdges *int `json:"total_edges"`
	} `json:"graph_summary"`
}

func (r rawGraph) normalize() Graph {
	g := Graph{
		Available: r.Available,
		Mode:      r.Mode,
		Message:   r.Message,
		Mermaid:   r.Mermaid,
		Nodes:     r.Nodes,
		Edges:     r.Edges,
	}
	if g.Nodes == nil {
		g.Nodes = []GraphNode{}
	}
	if g.Edges == nil {
		g.Edges = []GraphEdge{}
	}
	g.TotalNodes = len(g.Nodes)
	if r.Summary.TotalNodes != nil {
		g.TotalNodes = *r.Summary.TotalNodes
	}
	g.TotalEdges = len(g.Edges)
	if r.Summary.TotalEdges != nil {
		g.TotalEdges = *r.Summary.TotalEdges
	}
	return g
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

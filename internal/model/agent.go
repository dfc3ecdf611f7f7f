package model

import "time"

// AgentStatus is the lifecycle state of a simulated agent
type AgentStatus string

// Agent status constants
const (
	AgentStatusOffline AgentStatus = "offline"
	AgentStatusOnline  AgentStatus = "online"
	AgentStatusBusy    AgentStatus = "busy"
	AgentStatusError   AgentStatus = "error"
)

// Valid reports whether s is one of the four known statuses
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusOffline, AgentStatusOnline, AgentStatusBusy, AgentStatusError:
		return true
	}
	return false
}

// AgentKind selects the simulated work schedule of an agent
type AgentKind string

// Agent kind constants
const (
	AgentKindData          AgentKind = "data"
	AgentKindAnalysis      AgentKind = "analysis"
	AgentKindVisualization AgentKind = "visualization"
	AgentKindReport        AgentKind = "report"
)

// Log levels written to agent logs
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warning"
	LogLevelError = "error"
)

// LogEntry is one line of an agent log
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
}

// Agent is a named simulated worker.
// CurrentTask is set only while Status is busy.
type Agent struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Kind         AgentKind   `json:"kind"`
	Capabilities []string    `json:"capabilities"`
	Status       AgentStatus `json:"status"`
	CurrentTask  string      `json:"current_task,omitempty"`
	Progress     int         `json:"progress"`
	Logs         []LogEntry  `json:"-"`
}

// HasCapability reports whether taskType is in the agent's capability set
func (a *Agent) HasCapability(taskType string) bool {
	for _, c := range a.Capabilities {
		if c == taskType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand out of the coordinator
func (a *Agent) Clone() Agent {
	out := *a
	out.Capabilities = append([]string(nil), a.Capabilities...)
	out.Logs = append([]LogEntry(nil), a.Logs...)
	return out
}

// RecentLogs returns at most n of the newest log entries, oldest first
func (a *Agent) RecentLogs(n int) []LogEntry {
	if n <= 0 || len(a.Logs) == 0 {
		return []LogEntry{}
	}
	start := len(a.Logs) - n
	if start < 0 {
		start = 0
	}
	return append([]LogEntry(nil), a.Logs[start:]...)
}

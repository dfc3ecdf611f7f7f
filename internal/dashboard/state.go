package dashboard

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"reflect"
	"sort"
	"sync"
	"time"

	"agentdash/internal/apiclient"
)

// View names a dashboard panel that can be activated
type View string

// Dashboard views
const (
	ViewAgents View = "agents"
	ViewTasks  View = "tasks"
	ViewGraph  View = "graph"
)

// Views lists every view in display order
var Views = []View{ViewAgents, ViewTasks, ViewGraph}

// ParseView validates a view name
func ParseView(s string) (View, error) {
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q", s)
}

// DefaultLogCap bounds the merged log lines kept per agent
const DefaultLogCap = 50

// AgentView is the agents panel entry for one agent
type AgentView struct {
	apiclient.AgentProgress
	Available bool   `json:"available"`
	LastError string `json:"last_error,omitempty"`
}

// TaskView is the task board panel
type TaskView struct {
	Available bool                `json:"available"`
	LastError string              `json:"last_error,omitempty"`
	Active    []apiclient.TaskRow `json:"active"`
	Queued    []apiclient.TaskRow `json:"queued"`
	Completed []apiclient.TaskRow `json:"completed"`
}

// GraphView is the graph panel
type GraphView struct {
	Available bool             `json:"available"`
	LastError string           `json:"last_error,omitempty"`
	Graph     *apiclient.Graph `json:"graph,omitempty"`
}

// Snapshot is an immutable copy of the display state
type Snapshot struct {
	Version   uint64      `json:"version"`
	UpdatedAt time.Time   `json:"updated_at"`
	Agents    []AgentView `json:"agents"`
	Tasks     TaskView    `json:"tasks"`
	Graph     GraphView   `json:"graph"`
}

// State is the merged display state. Every merge is idempotent: applying the
// same data twice leaves the state and version untouched.
type State struct {
	mu        sync.Mutex
	version   uint64
	updatedAt time.Time
	agents    map[string]*AgentView
	tasks     TaskView
	graph     GraphView
	logCap    int
	listeners []func(Snapshot)
}

// NewState creates an empty state
func NewState(logCap int) *State {
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	return &State{
		agents: make(map[string]*AgentView),
		tasks: TaskView{
			Active:    []apiclient.TaskRow{},
			Queued:    []apiclient.TaskRow{},
			Completed: []apiclient.TaskRow{},
		},
		logCap: logCap,
	}
}

// OnChange registers fn to receive a snapshot after every effective change
func (s *State) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Version is the number of effective changes so far
func (s *State) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// MergeAgent folds one agent poll result in. Logs are deduplicated by timestamp, level and message.
func (s *State) MergeAgent(p apiclient.AgentProgress) bool {
	return s.apply(func() bool {
		prev := s.agents[p.AgentID]
		next := &AgentView{AgentProgress: p, Available: true}

		var logs []apiclient.LogEntry
		if prev != nil {
			logs = prev.RecentLogs
		}
		next.RecentLogs = mergeLogs(logs, p.RecentLogs, s.logCap)

		if prev != nil && reflect.DeepEqual(prev, next) {
			return false
		}
		s.agents[p.AgentID] = next
		return true
	})
}

// MarkAgentUnavailable keeps the last known data and records the error
func (s *State) MarkAgentUnavailable(id string, err error) bool {
	return s.apply(func() bool {
		prev := s.agents[id]
		if prev == nil {
			prev = &AgentView{AgentProgress: apiclient.AgentProgress{
				AgentID:    id,
				AgentName:  id,
				Status:     apiclient.StatusUnknown,
				RecentLogs: []apiclient.LogEntry{},
			}}
			s.agents[id] = prev
		} else if !prev.Available && prev.LastError == err.Error() {
			return false
		}
		prev.Available = false
		prev.LastError = err.Error()
		return true
	})
}

// MergeTasks replaces the task board. Rows are keyed by id, or by a fingerprint when the id is missing.
func (s *State) MergeTasks(board apiclient.TaskBoard) bool {
	return s.apply(func() bool {
		next := TaskView{
			Available: true,
			Active:    dedupeRows(board.Active),
			Queued:    dedupeRows(board.Queued),
			Completed: dedupeRows(board.Completed),
		}
		if reflect.DeepEqual(s.tasks, next) {
			return false
		}
		s.tasks = next
		return true
	})
}

// MarkTasksUnavailable flags the task board as stale
func (s *State) MarkTasksUnavailable(err error) bool {
	return s.apply(func() bool {
		if !s.tasks.Available && s.tasks.LastError == err.Error() {
			return false
		}
		s.tasks.Available = false
		s.tasks.LastError = err.Error()
		return true
	})
}

// MergeGraph stores the pipeline structure
func (s *State) MergeGraph(g apiclient.Graph) bool {
	return s.apply(func() bool {
		next := GraphView{Available: true, Graph: &g}
		if reflect.DeepEqual(s.graph, next) {
			return false
		}
		s.graph = next
		return true
	})
}

// MarkGraphUnavailable flags the graph as unavailable; the graph endpoint is best effort
func (s *State) MarkGraphUnavailable(err error) bool {
	return s.apply(func() bool {
		if !s.graph.Available && s.graph.LastError == err.Error() {
			return false
		}
		s.graph.Available = false
		s.graph.LastError = err.Error()
		return true
	})
}

// Snapshot copies the current state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *State) apply(merge func() bool) bool {
	s.mu.Lock()
	if !merge() {
		s.mu.Unlock()
		return false
	}
	s.version++
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
	return true
}

func (s *State) snapshotLocked() Snapshot {
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	agents := make([]AgentView, 0, len(ids))
	for _, id := range ids {
		a := *s.agents[id]
		a.RecentLogs = append([]apiclient.LogEntry{}, a.RecentLogs...)
		agents = append(agents, a)
	}

	snap := Snapshot{
		Version:   s.version,
		UpdatedAt: s.updatedAt,
		Agents:    agents,
		Tasks: TaskView{
			Available: s.tasks.Available,
			LastError: s.tasks.LastError,
			Active:    append([]apiclient.TaskRow{}, s.tasks.Active...),
			Queued:    append([]apiclient.TaskRow{}, s.tasks.Queued...),
			Completed: append([]apiclient.TaskRow{}, s.tasks.Completed...),
		},
		Graph: s.graph,
	}
	if s.graph.Graph != nil {
		g := *s.graph.Graph
		snap.Graph.Graph = &g
	}
	return snap
}

func logKey(l apiclient.LogEntry) string {
	return l.Timestamp + "\x00" + l.Level + "\x00" + l.Message
}

// mergeLogs treats incoming as the newest window: retained entries it does not
// repeat come first, then incoming in order, trimmed to the newest limit.
// Entries already evicted by the cap are not brought back by a repeated window.
func mergeLogs(existing, incoming []apiclient.LogEntry, limit int) []apiclient.LogEntry {
	window := make(map[string]bool, len(incoming))
	fresh := make([]apiclient.LogEntry, 0, len(incoming))
	for _, l := range incoming {
		if k := logKey(l); !window[k] {
			window[k] = true
			fresh = append(fresh, l)
		}
	}

	out := make([]apiclient.LogEntry, 0, len(existing)+len(fresh))
	for _, l := range existing {
		if !window[logKey(l)] {
			out = append(out, l)
		}
	}
	out = append(out, fresh...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// RowKey identifies a task row by id, falling back to type, status and parameters
func RowKey(r apiclient.TaskRow) string {
	if r.ID != "" {
		return r.ID
	}
	params, _ := json.Marshal(r.Parameters)
	h := fnv.New64a()
	h.Write([]byte(r.Type))
	h.Write([]byte{0})
	h.Write([]byte(r.Status))
	h.Write([]byte{0})
	h.Write(params)
	return fmt.Sprintf("fp_%016x", h.Sum64())
}

func dedupeRows(rows []apiclient.TaskRow) []apiclient.TaskRow {
	out := make([]apiclient.TaskRow, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		k := RowKey(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

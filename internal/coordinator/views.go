package coordinator

import (
	"time"

	"agentdash/internal/model"
)

// RecentLogCount is the number of log lines returned with agent progress
const RecentLogCount = 10

// CompletedWindow is the number of terminal tasks listed by Tasks
const CompletedWindow = 10

// ActiveTask is a running task listed flat, with its agent and start time alongside the task fields
type ActiveTask struct {
	model.Task
	AgentID   string    `json:"agent_id"`
	StartTime time.Time `json:"start_time"`
}

// TaskBoard is the queue split by state
type TaskBoard struct {
	Active    []ActiveTask `json:"active"`
	Queued    []model.Task `json:"queued"`
	Completed []model.Task `json:"completed"`
}

// Status is the system overview
type Status struct {
	Agents         map[string]model.Agent `json:"agents"`
	TaskQueue      int                    `json:"task_queue"`
	ActiveTasks    int                    `json:"active_tasks"`
	CompletedTasks int                    `json:"completed_tasks"`
}

// TaskDetails describes the task an agent is working on
type TaskDetails struct {
	TaskID      string     `json:"task_id"`
	TaskType    string     `json:"task_type"`
	DatasetType string     `json:"dataset_type,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
}

// AgentProgress is the per-agent progress view
type AgentProgress struct {
	AgentName   string            `json:"agent_name"`
	Status      model.AgentStatus `json:"status"`
	Progress    int               `json:"progress"`
	CurrentTask string            `json:"current_task"`
	TaskDetails *TaskDetails      `json:"task_details,omitempty"`
	RecentLogs  []model.LogEntry  `json:"recent_logs"`
}

// Agents returns copies of every agent in declaration order
func (c *Coordinator) Agents() []model.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agents.List()
}

// Status returns counts and agent states
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	agents := make(map[string]model.Agent)
	for _, a := range c.agents.List() {
		a.Logs = nil
		agents[a.ID] = a
	}
	return Status{
		Agents:         agents,
		TaskQueue:      c.queue.PendingLen(),
		ActiveTasks:    c.queue.ActiveLen(),
		CompletedTasks: c.queue.TerminalLen(),
	}
}

// Tasks returns the active, queued and most recent terminal tasks
func (c *Coordinator) Tasks() TaskBoard {
	c.mu.Lock()
	defer c.mu.Unlock()

	board := TaskBoard{
		Active:    []ActiveTask{},
		Queued:    []model.Task{},
		Completed: []model.Task{},
	}
	for _, a := range c.queue.ActiveList() {
		board.Active = append(board.Active, ActiveTask{Task: a.Task.Clone(), AgentID: a.AgentID, StartTime: a.Start})
	}
	for _, t := range c.queue.Pending() {
		board.Queued = append(board.Queued, t.Clone())
	}
	for _, t := range c.queue.Terminal(CompletedWindow) {
		board.Completed = append(board.Completed, t.Clone())
	}
	return board
}

// Task looks a task up by id in active, terminal and pending
func (c *Coordinator) Task(id string) (model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.queue.Lookup(id)
	if err != nil {
		return model.Task{}, err
	}
	return t.Clone(), nil
}

// AgentProgress returns the progress view of one agent
func (c *Coordinator) AgentProgress(id string) (AgentProgress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, err := c.agents.Get(id)
	if err != nil {
		return AgentProgress{}, err
	}
	p := AgentProgress{
		AgentName:   a.Name,
		Status:      a.Status,
		Progress:    a.Progress,
		CurrentTask: a.CurrentTask,
		RecentLogs:  a.RecentLogs(RecentLogCount),
	}
	if active, ok := c.queue.ActiveByAgent(id); ok {
		t := active.Task
		p.TaskDetails = &TaskDetails{
			TaskID:      t.ID,
			TaskType:    t.Type,
			DatasetType: t.StringParam("dataset_type"),
			CreatedAt:   t.CreatedAt,
			StartedAt:   t.StartedAt,
		}
	}
	return p, nil
}

// AgentLogs returns the full retained log of an agent
func (c *Coordinator) AgentLogs(id string) ([]model.LogEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, err := c.agents.Get(id)
	if err != nil {
		return nil, err
	}
	return append([]model.LogEntry{}, a.Logs...), nil
}

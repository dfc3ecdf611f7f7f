package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"agentdash/internal/events"
	"agentdash/internal/metrics"
	"agentdash/internal/model"
	"agentdash/internal/queue"
	"agentdash/internal/registry"
)

var (
	// ErrCannotHandle is returned by Assign when the agent is offline, busy or lacks the capability
	ErrCannotHandle = errors.New("agent cannot handle task")
	// ErrClosed is returned once Shutdown has started
	ErrClosed = errors.New("coordinator is shut down")
)

// Policy decides which idle agents are candidates for a pending task
type Policy string

// Selection policies
const (
	// PolicyCapability only picks among agents that can handle the task
	PolicyCapability Policy = "capability"
	// PolicyRandom picks among all idle online agents and relies on Assign to reject mismatches
	PolicyRandom Policy = "random"
)

// DefaultInterval is the dispatch period
const DefaultInterval = 2 * time.Second

// ErrInterrupted is the error text recorded on tasks cut short by Shutdown
const ErrInterrupted = "interrupted"

// Simulation tunes the simulated execution
type Simulation struct {
	// DelayScale multiplies every step delay. Zero means 1.
	DelayScale float64
	// FailureRate is the per-step probability of a simulated failure.
	FailureRate float64
	// Fault, when set, is called before each step and fails the task on a non-nil error.
	Fault func(task model.Task, progress int) error
}

// Config holds the coordinator dependencies
type Config struct {
	Agents        []model.AgentSpec
	Schedules     map[model.AgentKind]model.Schedule
	OfflineAgents []string
	Policy        Policy
	Interval      time.Duration
	LogCap        int
	HistoryCap    int
	Seed          int64
	Simulation    Simulation
	Bus           *events.Bus
	Metrics       *metrics.Dispatch
	Logger        *logrus.Entry
}

// TaskRequest is a submission from the API
type TaskRequest struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Priority   string         `json:"priority"`
	Parameters map[string]any `json:"parameters"`
}

// Coordinator owns the agents, the task queue and the running simulations.
// One mutex guards registry and queue for every compound operation.
type Coordinator struct {
	mu        sync.Mutex
	agents    *registry.Registry
	queue     *queue.Queue
	specs     []model.AgentSpec
	schedules map[model.AgentKind]model.Schedule
	policy    Policy
	interval  time.Duration
	sim       Simulation
	rng       *rand.Rand
	watchers  map[string][]chan model.Task
	closed    bool

	bus     *events.Bus
	metrics *metrics.Dispatch
	logger  *logrus.Entry

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time
}

// New creates a coordinator. Defaults fill in missing agents, schedules and policy.
func New(cfg Config) (*Coordinator, error) {
	if len(cfg.Agents) == 0 {
		cfg.Agents = model.DefaultAgents()
	}
	if cfg.Schedules == nil {
		cfg.Schedules = model.DefaultSchedules()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyCapability
	}
	if cfg.Policy != PolicyCapability && cfg.Policy != PolicyRandom {
		return nil, fmt.Errorf("unknown selection policy %q", cfg.Policy)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Simulation.DelayScale <= 0 {
		cfg.Simulation.DelayScale = 1
	}
	if cfg.Simulation.FailureRate < 0 || cfg.Simulation.FailureRate > 1 {
		return nil, fmt.Errorf("failure rate %v out of range [0,1]", cfg.Simulation.FailureRate)
	}
	for _, a := range cfg.Agents {
		if _, ok := cfg.Schedules[a.Kind]; !ok {
			return nil, fmt.Errorf("agent %s has kind %q without a schedule", a.ID, a.Kind)
		}
	}
	if cfg.Bus == nil {
		cfg.Bus = events.NewBus()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		agents:    registry.New(cfg.Agents, cfg.LogCap, cfg.OfflineAgents...),
		queue:     queue.New(cfg.HistoryCap),
		specs:     append([]model.AgentSpec(nil), cfg.Agents...),
		schedules: cfg.Schedules,
		policy:    cfg.Policy,
		interval:  cfg.Interval,
		sim:       cfg.Simulation,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		watchers:  make(map[string][]chan model.Task),
		bus:       cfg.Bus,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.WithField("component", "coordinator"),
		ctx:       ctx,
		cancel:    cancel,
		started:   time.Now(),
	}, nil
}

// Bus returns the event bus the coordinator publishes on
func (c *Coordinator) Bus() *events.Bus {
	return c.bus
}

// Specs returns the declared agents
func (c *Coordinator) Specs() []model.AgentSpec {
	return append([]model.AgentSpec(nil), c.specs...)
}

// Uptime is the time since New
func (c *Coordinator) Uptime() time.Duration {
	return time.Since(c.started)
}

// Enqueue accepts a task and makes an immediate dispatch attempt
func (c *Coordinator) Enqueue(req TaskRequest) (model.Task, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.Task{}, ErrClosed
	}
	t, err := c.enqueueLocked(req)
	if err != nil {
		c.mu.Unlock()
		return model.Task{}, err
	}
	out := t.Clone()
	c.dispatchLocked()
	c.mu.Unlock()
	return out, nil
}

func (c *Coordinator) enqueueLocked(req TaskRequest) (*model.Task, error) {
	t, err := c.queue.Enqueue(&model.Task{
		Name:       req.Name,
		Type:       req.Type,
		Priority:   normalizePriority(req.Priority),
		Parameters: req.Parameters,
	})
	if err != nil {
		return nil, err
	}
	c.metrics.Enqueued(t.Type)
	c.metrics.SetQueue(c.queue.PendingLen(), c.queue.ActiveLen())
	c.logger.WithField("task_id", t.ID).Infof("Queued task %s", t.Type)
	c.bus.Publish(events.Event{Type: events.TypeTaskQueued, TaskID: t.ID, TaskType: t.Type, Status: string(t.Status)})
	return t, nil
}

func normalizePriority(p string) model.Priority {
	switch model.Priority(p) {
	case model.PriorityLow, model.PriorityHigh:
		return model.Priority(p)
	}
	return model.PriorityMedium
}

// StartWorkflow queues the fixed four-stage pipeline and returns the task ids in order
func (c *Coordinator) StartWorkflow(params map[string]any) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	ids := make([]string, 0, len(model.WorkflowTaskTypes()))
	for _, typ := range model.WorkflowTaskTypes() {
		p := make(map[string]any, len(params))
		for k, v := range params {
			p[k] = v
		}
		t, err := c.enqueueLocked(TaskRequest{Type: typ, Parameters: p})
		if err != nil {
			return ids, err
		}
		ids = append(ids, t.ID)
	}
	c.dispatchLocked()
	return ids, nil
}

// DispatchOnce runs one dispatch cycle and returns the number of tasks started
func (c *Coordinator) DispatchOnce() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	return c.dispatchLocked()
}

// RunLoop dispatches every interval until ctx is done
func (c *Coordinator) RunLoop(ctx context.Context) {
	c.logger.Infof("Starting dispatch loop (interval=%v, policy=%s)", c.interval, c.policy)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Dispatch loop stopped")
			return
		case <-c.ctx.Done():
			c.logger.Info("Dispatch loop stopped")
			return
		case <-ticker.C:
			if n := c.DispatchOnce(); n > 0 {
				c.logger.Debugf("Dispatch cycle started %d task(s)", n)
			}
		}
	}
}

// dispatchLocked walks pending in FIFO order and assigns each task to a random candidate
func (c *Coordinator) dispatchLocked() int {
	if c.queue.PendingLen() == 0 {
		return 0
	}
	idle := c.agents.Idle()
	if len(idle) == 0 {
		return 0
	}

	started := 0
	for _, t := range c.queue.Pending() {
		if len(idle) == 0 {
			break
		}
		candidates := idle
		if c.policy == PolicyCapability {
			candidates = candidates[:0:0]
			for _, id := range idle {
				if c.agents.CanHandle(id, t) {
					candidates = append(candidates, id)
				}
			}
		}
		if len(candidates) == 0 {
			continue
		}
		pick := candidates[c.rng.Intn(len(candidates))]
		if err := c.assignLocked(pick, t.ID); err != nil {
			continue
		}
		started++
		idle = without(idle, pick)
	}
	return started
}

func without(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

// Assign hands a pending task to an agent. A task the agent cannot handle
// goes back to its original queue position and ErrCannotHandle is returned.
func (c *Coordinator) Assign(agentID, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, err := c.agents.Get(agentID); err != nil {
		return err
	}
	return c.assignLocked(agentID, taskID)
}

func (c *Coordinator) assignLocked(agentID, taskID string) error {
	t, pos, err := c.queue.Take(taskID)
	if err != nil {
		return err
	}

	if !c.agents.CanHandle(agentID, t) {
		c.queue.Requeue(t, pos)
		c.agents.AppendLog(agentID, fmt.Sprintf("Cannot handle task type: %s", t.Type), model.LogLevelWarn)
		c.metrics.Rejected(agentID)
		c.logger.WithFields(logrus.Fields{"agent_id": agentID, "task_id": t.ID}).
			Warnf("Agent cannot handle %s, task stays queued", t.Type)
		c.bus.Publish(events.Event{Type: events.TypeTaskRejected, TaskID: t.ID, TaskType: t.Type, AgentID: agentID, Status: string(t.Status)})
		return fmt.Errorf("%w: %s on %s", ErrCannotHandle, t.Type, agentID)
	}

	if err := c.agents.Begin(agentID, t.ID); err != nil {
		c.queue.Requeue(t, pos)
		return err
	}
	c.queue.Activate(t, agentID)
	c.agents.AppendLog(agentID, fmt.Sprintf("Starting task: %s", t.Type), model.LogLevelInfo)
	c.metrics.SetQueue(c.queue.PendingLen(), c.queue.ActiveLen())
	c.logger.WithFields(logrus.Fields{"agent_id": agentID, "task_id": t.ID}).Infof("Assigned %s", t.Type)
	c.bus.Publish(events.Event{Type: events.TypeTaskStarted, TaskID: t.ID, TaskType: t.Type, AgentID: agentID, Status: string(t.Status)})

	agent, _ := c.agents.Get(agentID)
	c.wg.Add(1)
	go c.execute(agentID, t.Clone(), c.schedules[agent.Kind])
	return nil
}

// execute ramps progress by the schedule increment until 100 or failure
func (c *Coordinator) execute(agentID string, task model.Task, sched model.Schedule) {
	defer c.wg.Done()

	delay := time.Duration(float64(sched.Delay) * c.sim.DelayScale)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	progress := 0
	for progress < 100 {
		select {
		case <-c.ctx.Done():
			c.finish(agentID, task.ID, model.TaskStatusFailed, ErrInterrupted)
			return
		case <-timer.C:
		}

		if err := c.stepFault(task, progress); err != nil {
			c.finish(agentID, task.ID, model.TaskStatusFailed, err.Error())
			return
		}

		progress += sched.Increment
		if progress > 100 {
			progress = 100
		}
		c.step(agentID, task, progress)
		timer.Reset(delay)
	}
	c.finish(agentID, task.ID, model.TaskStatusCompleted, "")
}

func (c *Coordinator) stepFault(task model.Task, progress int) error {
	if c.sim.Fault != nil {
		if err := c.sim.Fault(task, progress); err != nil {
			return err
		}
	}
	if c.sim.FailureRate <= 0 {
		return nil
	}
	c.mu.Lock()
	roll := c.rng.Float64()
	c.mu.Unlock()
	if roll < c.sim.FailureRate {
		return fmt.Errorf("simulated failure at %d%%", progress)
	}
	return nil
}

func (c *Coordinator) step(agentID string, task model.Task, progress int) {
	c.mu.Lock()
	a, ok := c.queue.ActiveFor(task.ID)
	if !ok {
		c.mu.Unlock()
		return
	}
	a.Task.Progress = progress
	c.agents.SetProgress(agentID, progress)
	c.agents.AppendLog(agentID, fmt.Sprintf("Progress: %d%%", progress), model.LogLevelInfo)
	c.mu.Unlock()

	c.bus.Publish(events.Event{
		Type:     events.TypeTaskProgress,
		TaskID:   task.ID,
		TaskType: task.Type,
		AgentID:  agentID,
		Status:   string(model.TaskStatusInProgress),
		Progress: progress,
	})
}

// finish performs the terminal transition exactly once and notifies watchers
func (c *Coordinator) finish(agentID, taskID string, status model.TaskStatus, errMsg string) {
	c.mu.Lock()
	a, ok := c.queue.ActiveFor(taskID)
	if !ok {
		c.mu.Unlock()
		return
	}
	elapsed := time.Since(a.Start)
	t, ok := c.queue.Finish(taskID, status, errMsg)
	if !ok {
		c.mu.Unlock()
		return
	}

	entry := c.logger.WithFields(logrus.Fields{"agent_id": agentID, "task_id": taskID})
	ev := events.Event{TaskID: t.ID, TaskType: t.Type, AgentID: agentID, Status: string(status), Progress: t.Progress, Error: errMsg}
	if status == model.TaskStatusCompleted {
		c.agents.Release(agentID, 100)
		c.agents.AppendLog(agentID, fmt.Sprintf("Completed task: %s", t.Type), model.LogLevelInfo)
		entry.Infof("Completed %s in %v", t.Type, elapsed.Round(time.Millisecond))
		ev.Type = events.TypeTaskCompleted
	} else {
		c.agents.Release(agentID, 0)
		c.agents.AppendLog(agentID, fmt.Sprintf("Error in task %s: %s", t.Type, errMsg), model.LogLevelError)
		entry.Warnf("Task %s failed: %s", t.Type, errMsg)
		ev.Type = events.TypeTaskFailed
	}
	c.metrics.Finished(t.Type, string(status), elapsed)

	snapshot := t.Clone()
	for _, ch := range c.watchers[taskID] {
		ch <- snapshot
		close(ch)
	}
	delete(c.watchers, taskID)

	if status == model.TaskStatusCompleted && !c.closed {
		c.followUpLocked(agentID, t)
	}
	if !c.closed {
		c.dispatchLocked()
	}
	c.metrics.SetQueue(c.queue.PendingLen(), c.queue.ActiveLen())
	c.mu.Unlock()

	c.bus.Publish(ev)
}

// followUpLocked chains the next stage for tasks that carry a dataset_type
func (c *Coordinator) followUpLocked(agentID string, t *model.Task) {
	dataset := t.StringParam("dataset_type")
	if dataset == "" {
		return
	}
	agent, err := c.agents.Get(agentID)
	if err != nil {
		return
	}
	next := c.schedules[agent.Kind].FollowUp
	if next == "" {
		return
	}

	params := map[string]any{"dataset_type": dataset}
	params[fmt.Sprintf("%s_task_id", agent.Kind)] = t.ID
	if _, err := c.enqueueLocked(TaskRequest{Type: next, Parameters: params}); err != nil {
		c.logger.Warnf("Failed to queue follow-up %s: %v", next, err)
		return
	}
	c.agents.AppendLog(agentID, fmt.Sprintf("Queued follow-up task: %s", next), model.LogLevelInfo)
}

// Watch returns a channel that receives the task once it is terminal and is then closed.
// A task that is already terminal is delivered immediately.
func (c *Coordinator) Watch(taskID string) (<-chan model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := c.queue.Lookup(taskID)
	if err != nil {
		return nil, err
	}
	ch := make(chan model.Task, 1)
	if t.Status.Terminal() {
		ch <- t.Clone()
		close(ch)
		return ch, nil
	}
	c.watchers[taskID] = append(c.watchers[taskID], ch)
	return ch, nil
}

// Wait blocks until the task is terminal or ctx is done
func (c *Coordinator) Wait(ctx context.Context, taskID string) (model.Task, error) {
	ch, err := c.Watch(taskID)
	if err != nil {
		return model.Task{}, err
	}
	select {
	case t := <-ch:
		return t, nil
	case <-ctx.Done():
		return model.Task{}, ctx.Err()
	}
}

// SetAgentStatus applies an operator status change; an agent brought online is offered pending work
func (c *Coordinator) SetAgentStatus(agentID string, status model.AgentStatus) (model.Agent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, err := c.agents.SetStatus(agentID, status)
	if err != nil {
		return model.Agent{}, err
	}
	c.logger.WithField("agent_id", agentID).Infof("Status changed from %s to %s", prev, status)
	c.bus.Publish(events.Event{Type: events.TypeAgentStatus, AgentID: agentID, Status: string(status)})

	if status == model.AgentStatusOnline && !c.closed {
		c.dispatchLocked()
	}
	a, _ := c.agents.Get(agentID)
	return a.Clone(), nil
}

// Shutdown stops new work, interrupts running tasks and waits for them to be failed
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.logger.Info("Shutting down coordinator...")
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		c.logger.Info("Coordinator stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("coordinator shutdown: %w", ctx.Err())
	}
}

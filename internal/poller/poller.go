package poller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"agentdash/internal/apiclient"
	"agentdash/internal/dashboard"
	"agentdash/internal/metrics"
)

// Source is the backend as seen by the poller
type Source interface {
	AgentIDs(ctx context.Context) ([]string, error)
	AgentProgress(ctx context.Context, id string) (apiclient.AgentProgress, error)
	Tasks(ctx context.Context) (apiclient.TaskBoard, error)
	Graph(ctx context.Context) (apiclient.Graph, error)
}

// Config holds the poller configuration
type Config struct {
	Source      Source
	State       *dashboard.State
	Logger      *logrus.Entry
	Metrics     *metrics.Poll
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
	// AgentIDs, when empty, are discovered from the backend on every poll.
	AgentIDs []string
}

// Poller mirrors backend state into the dashboard state while at least one view is active.
// It only reads from the backend.
type Poller struct {
	src         Source
	state       *dashboard.State
	logger      *logrus.Entry
	metrics     *metrics.Poll
	interval    time.Duration
	timeout     time.Duration
	concurrency int
	agentIDs    []string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	active   map[dashboard.View]int
	stopLoop context.CancelFunc
	loopDone chan struct{}
	trigger  chan struct{}
	wg       sync.WaitGroup
}

// New creates a poller. Requests outlive deactivation and are only cancelled by Stop.
func New(cfg *Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		src:         cfg.Source,
		state:       cfg.State,
		logger:      cfg.Logger.WithField("component", "progress-poller"),
		metrics:     cfg.Metrics,
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		agentIDs:    append([]string(nil), cfg.AgentIDs...),
		ctx:         ctx,
		cancel:      cancel,
		active:      make(map[dashboard.View]int),
		trigger:     make(chan struct{}, 1),
	}
}

// Activate marks a view as shown. The first active view starts the timer with an immediate poll.
func (p *Poller) Activate(v dashboard.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active[v]++
	if p.stopLoop != nil || p.ctx.Err() != nil {
		return
	}
	loopCtx, stop := context.WithCancel(p.ctx)
	done := make(chan struct{})
	prev := p.loopDone
	p.stopLoop = stop
	p.loopDone = done
	p.wg.Add(1)
	go p.run(loopCtx, prev, done)
	p.logger.Infof("Polling started (interval=%v)", p.interval)
}

// Deactivate marks a view as hidden. When no view is left the timer stops.
func (p *Poller) Deactivate(v dashboard.View) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active[v] > 0 {
		p.active[v]--
	}
	if p.active[v] == 0 {
		delete(p.active, v)
	}
	if len(p.active) == 0 && p.stopLoop != nil {
		p.stopLoop()
		p.stopLoop = nil
		p.logger.Info("Polling paused, no active views")
	}
}

// ActiveViews lists the currently active views in display order
func (p *Poller) ActiveViews() []dashboard.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []dashboard.View
	for _, v := range dashboard.Views {
		if p.active[v] > 0 {
			out = append(out, v)
		}
	}
	return out
}

// Running reports whether the timer is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLoop != nil
}

// Trigger requests an immediate poll. It is dropped when polling is paused or a poll is already pending.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the timer and in-flight requests and waits for the loop to exit
func (p *Poller) Stop() {
	p.mu.Lock()
	p.cancel()
	p.stopLoop = nil
	p.mu.Unlock()
	p.wg.Wait()
	p.logger.Info("Poller stopped")
}

// run waits for the previous loop, if any, so two loops never poll at once
func (p *Poller) run(ctx context.Context, prev <-chan struct{}, done chan struct{}) {
	defer p.wg.Done()
	defer close(done)

	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce()
		case <-p.trigger:
			p.PollOnce()
		}
	}
}

// PollOnce fetches every active view concurrently and merges the results
func (p *Poller) PollOnce() {
	views := p.ActiveViews()
	if len(views) == 0 {
		return
	}
	start := time.Now()
	defer func() { p.metrics.Cycle(time.Since(start)) }()

	var g errgroup.Group
	for _, v := range views {
		switch v {
		case dashboard.ViewAgents:
			g.Go(func() error { p.pollAgents(); return nil })
		case dashboard.ViewTasks:
			g.Go(func() error { p.pollTasks(); return nil })
		case dashboard.ViewGraph:
			g.Go(func() error { p.pollGraph(); return nil })
		}
	}
	_ = g.Wait()
}

func (p *Poller) requestCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(p.ctx, p.timeout)
}

func (p *Poller) pollAgents() {
	ids := p.agentIDs
	if len(ids) == 0 {
		ctx, cancel := p.requestCtx()
		discovered, err := p.src.AgentIDs(ctx)
		cancel()
		p.metrics.Request(string(dashboard.ViewAgents), err)
		if err != nil {
			p.logger.Warnf("Failed to list agents: %v", err)
			return
		}
		ids = discovered
	}

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			ctx, cancel := p.requestCtx()
			defer cancel()
			progress, err := p.src.AgentProgress(ctx, id)
			p.metrics.Request(string(dashboard.ViewAgents), err)
			if err != nil {
				p.logger.WithField("agent_id", id).Warnf("Failed to fetch agent progress: %v", err)
				p.state.MarkAgentUnavailable(id, err)
				return nil
			}
			progress.AgentID = id
			p.state.MergeAgent(progress)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Poller) pollTasks() {
	ctx, cancel := p.requestCtx()
	defer cancel()
	board, err := p.src.Tasks(ctx)
	p.metrics.Request(string(dashboard.ViewTasks), err)
	if err != nil {
		p.logger.Warnf("Failed to fetch tasks: %v", err)
		p.state.MarkTasksUnavailable(err)
		return
	}
	p.state.MergeTasks(board)
}

func (p *Poller) pollGraph() {
	ctx, cancel := p.requestCtx()
	defer cancel()
	g, err := p.src.Graph(ctx)
	p.metrics.Request(string(dashboard.ViewGraph), err)
	if err != nil {
		p.logger.Debugf("Graph structure unavailable: %v", err)
		p.state.MarkGraphUnavailable(err)
		return
	}
	p.state.MergeGraph(g)
}

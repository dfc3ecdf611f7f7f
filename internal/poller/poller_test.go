package poller

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdash/internal/apiclient"
	"agentdash/internal/dashboard"
	"agentdash/internal/metrics"
)

type fakeSource struct {
	mu          sync.Mutex
	progress    map[string]apiclient.AgentProgress
	failAgents  map[string]error
	tasksErr    error
	graphErr    error
	agentCalls  atomic.Int32
	taskCalls   atomic.Int32
	graphCalls  atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	delay       time.Duration
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		progress: map[string]apiclient.AgentProgress{
			"data_agent":     {AgentName: "Data Agent", Status: "online"},
			"analysis_agent": {AgentName: "Analysis Agent", Status: "busy", Progress: 40},
			"report_agent":   {AgentName: "Report Agent", Status: "offline"},
		},
		failAgents: map[string]error{},
	}
}

func (f *fakeSource) AgentIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.progress {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeSource) AgentProgress(_ context.Context, id string) (apiclient.AgentProgress, error) {
	f.agentCalls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(f.delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failAgents[id]; err != nil {
		return apiclient.AgentProgress{}, err
	}
	p := f.progress[id]
	p.RecentLogs = []apiclient.LogEntry{}
	return p, nil
}

func (f *fakeSource) Tasks(context.Context) (apiclient.TaskBoard, error) {
	f.taskCalls.Add(1)
	if f.tasksErr != nil {
		return apiclient.TaskBoard{}, f.tasksErr
	}
	return apiclient.TaskBoard{
		Active:    []apiclient.TaskRow{},
		Queued:    []apiclient.TaskRow{{ID: "task_1", Type: "trend_analysis", Status: "queued", Parameters: map[string]any{}}},
		Completed: []apiclient.TaskRow{},
	}, nil
}

func (f *fakeSource) Graph(context.Context) (apiclient.Graph, error) {
	f.graphCalls.Add(1)
	if f.graphErr != nil {
		return apiclient.Graph{}, f.graphErr
	}
	return apiclient.Graph{Mode: "fallback", TotalNodes: 4}, nil
}

func newTestPoller(src Source, interval time.Duration, ids ...string) (*Poller, *dashboard.State) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	state := dashboard.NewState(0)
	p := New(&Config{
		Source:      src,
		State:       state,
		Logger:      logrus.NewEntry(l),
		Metrics:     metrics.MustNewPoll(prometheus.NewRegistry()),
		Interval:    interval,
		Timeout:     time.Second,
		Concurrency: 2,
		AgentIDs:    ids,
	})
	return p, state
}

func TestPollOnceOnlyFetchesActiveViews(t *testing.T) {
	src := newFakeSource()
	p, state := newTestPoller(src, time.Hour)
	defer p.Stop()

	p.PollOnce()
	assert.Equal(t, int32(0), src.taskCalls.Load())

	p.Activate(dashboard.ViewTasks)
	require.Eventually(t, func() bool { return src.taskCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, int32(0), src.agentCalls.Load())
	assert.Equal(t, int32(0), src.graphCalls.Load())
	require.Eventually(t, func() bool { return len(state.Snapshot().Tasks.Queued) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAgentFanOutIsBounded(t *testing.T) {
	src := newFakeSource()
	src.delay = 20 * time.Millisecond
	src.progress["visualization_agent"] = apiclient.AgentProgress{Status: "online"}
	p, state := newTestPoller(src, time.Hour)
	defer p.Stop()

	p.Activate(dashboard.ViewAgents)
	require.Eventually(t, func() bool { return len(state.Snapshot().Agents) == 4 }, 2*time.Second, 5*time.Millisecond)

	assert.LessOrEqual(t, src.maxInFlight.Load(), int32(2))
	snap := state.Snapshot()
	assert.Equal(t, "analysis_agent", snap.Agents[0].AgentID)
	assert.Equal(t, 40, snap.Agents[0].Progress)
}

func TestFailuresMarkViewsUnavailable(t *testing.T) {
	src := newFakeSource()
	src.failAgents["report_agent"] = errors.New("connection refused")
	src.tasksErr = errors.New("timeout")
	src.graphErr = errors.New("404")
	p, state := newTestPoller(src, time.Hour, "data_agent", "report_agent")
	defer p.Stop()

	p.Activate(dashboard.ViewAgents)
	p.Activate(dashboard.ViewTasks)
	p.Activate(dashboard.ViewGraph)
	p.PollOnce()

	snap := state.Snapshot()
	require.Len(t, snap.Agents, 2)
	assert.True(t, snap.Agents[0].Available)
	assert.False(t, snap.Agents[1].Available)
	assert.Equal(t, "connection refused", snap.Agents[1].LastError)
	assert.False(t, snap.Tasks.Available)
	assert.Equal(t, "timeout", snap.Tasks.LastError)
	assert.False(t, snap.Graph.Available)
}

func TestDeactivateStopsTimer(t *testing.T) {
	src := newFakeSource()
	p, _ := newTestPoller(src, 10*time.Millisecond)
	defer p.Stop()

	p.Activate(dashboard.ViewTasks)
	p.Activate(dashboard.ViewTasks)
	assert.True(t, p.Running())
	require.Eventually(t, func() bool { return src.taskCalls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	p.Deactivate(dashboard.ViewTasks)
	assert.True(t, p.Running(), "one viewer is still attached")

	p.Deactivate(dashboard.ViewTasks)
	assert.False(t, p.Running())
	assert.Empty(t, p.ActiveViews())

	time.Sleep(30 * time.Millisecond)
	settled := src.taskCalls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, src.taskCalls.Load())
}

func TestTriggerPollsImmediately(t *testing.T) {
	src := newFakeSource()
	p, _ := newTestPoller(src, time.Hour)
	defer p.Stop()

	p.Activate(dashboard.ViewGraph)
	require.Eventually(t, func() bool { return src.graphCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	p.Trigger()
	require.Eventually(t, func() bool { return src.graphCalls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestIdenticalPollsDoNotBumpVersion(t *testing.T) {
	src := newFakeSource()
	p, state := newTestPoller(src, time.Hour, "data_agent")
	defer p.Stop()

	p.Activate(dashboard.ViewAgents)
	require.Eventually(t, func() bool { return state.Version() == 1 }, time.Second, 5*time.Millisecond)

	p.PollOnce()
	p.PollOnce()
	assert.Equal(t, uint64(1), state.Version())
}

func TestReopenWaitsForPreviousLoop(t *testing.T) {
	src := newFakeSource()
	src.delay = 50 * time.Millisecond
	p, _ := newTestPoller(src, time.Hour, "data_agent")
	defer p.Stop()

	p.Activate(dashboard.ViewAgents)
	require.Eventually(t, func() bool { return src.inFlight.Load() == 1 }, time.Second, time.Millisecond)

	p.Deactivate(dashboard.ViewAgents)
	p.Activate(dashboard.ViewAgents)

	require.Eventually(t, func() bool { return src.agentCalls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), src.maxInFlight.Load())
	assert.True(t, p.Running())
}

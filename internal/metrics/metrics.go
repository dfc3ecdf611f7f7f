package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "agentdash"

// Dispatch exposes coordinator activity. A nil *Dispatch is a valid no-op.
type Dispatch struct {
	enqueued   *prometheus.CounterVec
	finished   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	queueDepth prometheus.Gauge
	active     prometheus.Gauge
	duration   *prometheus.HistogramVec
}

// MustNewDispatch registers the coordinator collectors on reg and panics on conflict
func MustNewDispatch(reg prometheus.Registerer) *Dispatch {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Dispatch{
		enqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "tasks_enqueued_total",
			Help:      "Tasks accepted into the queue.",
		}, []string{"type"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal state.",
		}, []string{"type", "status"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "assign_rejections_total",
			Help:      "Assignments refused because the agent could not handle the task.",
		}, []string{"agent"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "queue_depth",
			Help:      "Tasks waiting for an agent.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "tasks_active",
			Help:      "Tasks currently running on an agent.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "task_duration_seconds",
			Help:      "Wall time from assignment to terminal state.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"type", "status"}),
	}
	reg.MustRegister(m.enqueued, m.finished, m.rejections, m.queueDepth, m.active, m.duration)
	return m
}

// Enqueued counts an accepted task
func (m *Dispatch) Enqueued(taskType string) {
	if m == nil {
		return
	}
	m.enqueued.WithLabelValues(taskType).Inc()
}

// Finished counts a terminal transition and its duration
func (m *Dispatch) Finished(taskType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(taskType, status).Inc()
	m.duration.WithLabelValues(taskType, status).Observe(d.Seconds())
}

// Rejected counts a refused assignment
func (m *Dispatch) Rejected(agentID string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(agentID).Inc()
}

// SetQueue records pending and active sizes
func (m *Dispatch) SetQueue(pending, active int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(pending))
	m.active.Set(float64(active))
}

// Poll exposes dashboard poller activity. A nil *Poll is a valid no-op.
type Poll struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
}

// MustNewPoll registers the poller collectors on reg
func MustNewPoll(reg prometheus.Registerer) *Poll {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Poll{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "requests_total",
			Help:      "Backend requests issued by the poller.",
		}, []string{"view", "result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent in one poll cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// Request counts one backend call for view
func (m *Poll) Request(view string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.requests.WithLabelValues(view, result).Inc()
}

// Cycle records the duration of a whole poll
func (m *Poll) Cycle(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

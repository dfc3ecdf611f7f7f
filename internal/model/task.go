package model

import "time"

// TaskStatus is the state of a task: queued -> in_progress -> completed | failed
type TaskStatus string

// Task status constants
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transitions can happen
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Priority is advisory only; it never affects ordering
type Priority string

// Priority constants
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task type constants understood by the stock agents
const (
	TaskTypeDataProcessing      = "data_processing"
	TaskTypeDataCleaning        = "data_cleaning"
	TaskTypeDataValidation      = "data_validation"
	TaskTypeStatisticalAnalysis = "statistical_analysis"
	TaskTypeTrendAnalysis       = "trend_analysis"
	TaskTypeCorrelationAnalysis = "correlation_analysis"
	TaskTypeChartGeneration     = "chart_generation"
	TaskTypeDashboardUpdate     = "dashboard_update"
	TaskTypeInteractivePlots    = "interactive_plots"
	TaskTypeReportGeneration    = "report_generation"
	TaskTypePDFExport           = "pdf_export"
	TaskTypeHTMLExport          = "html_export"
)

// Task is a unit of simulated work
type Task struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Priority      Priority       `json:"priority"`
	Parameters    map[string]any `json:"parameters"`
	Status        TaskStatus     `json:"status"`
	Progress      int            `json:"progress"`
	AssignedAgent string         `json:"assigned_agent,omitempty"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// Clone copies the task including its parameter map (shallow values)
func (t *Task) Clone() Task {
	out := *t
	if t.Parameters != nil {
		out.Parameters = make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			out.Parameters[k] = v
		}
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		out.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		out.CompletedAt = &ts
	}
	return out
}

// StringParam returns a string parameter or "" when missing or not a string
func (t *Task) StringParam(key string) string {
	if t.Parameters == nil {
		return ""
	}
	v, _ := t.Parameters[key].(string)
	return v
}

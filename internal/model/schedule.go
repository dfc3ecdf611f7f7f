package model

import "time"

// Schedule is the simulated step plan of an agent kind
type Schedule struct {
	Increment int
	Delay     time.Duration
	// FollowUp is the task type queued after a chained task completes, if any.
	FollowUp string
}

// AgentSpec declares one agent at startup
type AgentSpec struct {
	ID           string
	Name         string
	Kind         AgentKind
	Capabilities []string
}

// DefaultSchedules returns the stock step plan per kind
func DefaultSchedules() map[AgentKind]Schedule {
	return map[AgentKind]Schedule{
		AgentKindData:          {Increment: 10, Delay: 500 * time.Millisecond},
		AgentKindAnalysis:      {Increment: 20, Delay: 700 * time.Millisecond, FollowUp: TaskTypeChartGeneration},
		AgentKindVisualization: {Increment: 25, Delay: 400 * time.Millisecond, FollowUp: TaskTypeReportGeneration},
		AgentKindReport:        {Increment: 20, Delay: 600 * time.Millisecond},
	}
}

// DefaultAgents returns the four stock agents in display order
func DefaultAgents() []AgentSpec {
	return []AgentSpec{
		{
			ID:           "data_agent",
			Name:         "Data Agent",
			Kind:         AgentKindData,
			Capabilities: []string{TaskTypeDataProcessing, TaskTypeDataCleaning, TaskTypeDataValidation},
		},
		{
			ID:           "analysis_agent",
			Name:         "Analysis Agent",
			Kind:         AgentKindAnalysis,
			Capabilities: []string{TaskTypeStatisticalAnalysis, TaskTypeTrendAnalysis, TaskTypeCorrelationAnalysis},
		},
		{
			ID:           "visualization_agent",
			Name:         "Visualization Agent",
			Kind:         AgentKindVisualization,
			Capabilities: []string{TaskTypeChartGeneration, TaskTypeDashboardUpdate, TaskTypeInteractivePlots},
		},
		{
			ID:           "report_agent",
			Name:         "Report Agent",
			Kind:         AgentKindReport,
			Capabilities: []string{TaskTypeReportGeneration, TaskTypePDFExport, TaskTypeHTMLExport},
		},
	}
}

// WorkflowTaskTypes is the fixed pipeline started by the workflow endpoint
func WorkflowTaskTypes() []string {
	return []string{
		TaskTypeDataProcessing,
		TaskTypeStatisticalAnalysis,
		TaskTypeChartGeneration,
		TaskTypeReportGeneration,
	}
}

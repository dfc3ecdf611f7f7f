package apierr

import (
	"errors"

	"agentdash/internal/coordinator"
	"agentdash/internal/httpx"
	"agentdash/internal/queue"
	"agentdash/internal/registry"
)

// From maps coordinator errors onto API errors
func From(err error) *httpx.AppError {
	var appErr *httpx.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, registry.ErrUnknownAgent):
		return httpx.ErrNotFound("agent not found")
	case errors.Is(err, queue.ErrUnknownTask):
		return httpx.ErrNotFound("task not found")
	case errors.Is(err, queue.ErrEmptyTaskType):
		return httpx.ErrParamMissing("task type is required")
	case errors.Is(err, registry.ErrInvalidStatus):
		return httpx.ErrParamIllegal(err.Error())
	case errors.Is(err, registry.ErrAgentBusy), errors.Is(err, coordinator.ErrCannotHandle):
		return httpx.ErrStateConflict(err.Error())
	case errors.Is(err, coordinator.ErrClosed):
		return httpx.ErrServiceStopped("")
	default:
		return httpx.ErrInternalError("", err)
	}
}

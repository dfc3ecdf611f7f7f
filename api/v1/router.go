package v1

import (
	"net/http"

	"agentdash/api/v1/agents"
	"agentdash/api/v1/dashboard"
	"agentdash/api/v1/middleware"
	"agentdash/api/v1/system"
	"agentdash/api/v1/tasks"
	"agentdash/internal/coordinator"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// quietRoutes are polled every few seconds and only logged at debug level
var quietRoutes = []string{
	"/health",
	"/api/status",
	"/api/tasks",
	"/api/agents/:id/progress",
	"/api/graph/structure",
}

// SetupRouter sets up the backend routes on r
func SetupRouter(r *gin.Engine, coord *coordinator.Coordinator, metrics http.Handler, logger *logrus.Entry) {
	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger(logger, quietRoutes...))

	systemHandler := system.NewHandler(coord)
	r.GET("/health", systemHandler.Health)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	api := r.Group("/api")
	{
		api.GET("/status", systemHandler.Status)
		api.GET("/graph/structure", systemHandler.Graph)

		agentsHandler := agents.NewHandler(coord)
		agentsGroup := api.Group("/agents")
		{
			agentsGroup.GET("", agentsHandler.List)
			agentsGroup.GET("/:id/progress", agentsHandler.Progress)
			agentsGroup.POST("/:id/status", agentsHandler.SetStatus)
		}
		api.GET("/logs/:id", agentsHandler.Logs)

		tasksHandler := tasks.NewHandler(coord)
		tasksGroup := api.Group("/tasks")
		{
			tasksGroup.GET("", tasksHandler.List)
			tasksGroup.POST("", tasksHandler.Create)
			tasksGroup.GET("/:id/status", tasksHandler.Status)
		}
		api.POST("/workflow/start", tasksHandler.StartWorkflow)
	}
}

// SetupDashboardRouter sets up the dashboard routes on r.
// socket serves the Socket.IO endpoint; metrics may be nil.
func SetupDashboardRouter(r *gin.Engine, h *dashboard.Handler, socket http.Handler, metrics http.Handler, logger *logrus.Entry) {
	r.Use(middleware.CORS())
	r.Use(middleware.RequestLogger(logger, "/api/dashboard/state", "/socket.io/*any"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	if socket != nil {
		r.GET("/socket.io/*any", gin.WrapH(socket))
		r.POST("/socket.io/*any", gin.WrapH(socket))
	}

	api := r.Group("/api/dashboard")
	{
		api.GET("/state", h.State)
		api.POST("/tasks", h.SubmitTask)
		api.GET("/tasks/:id", h.TaskStatus)
		api.POST("/workflow", h.StartWorkflow)
		api.POST("/views/:view/open", h.OpenView)
		api.POST("/views/:view/close", h.CloseView)
	}
}

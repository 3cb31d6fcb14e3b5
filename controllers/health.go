package controllers

import (
	"net/http"

	"lessonpro-backend/services"

	"github.com/gin-gonic/gin"
)

// SchedulerController exposes the scheduler's liveness state to operators.
type SchedulerController struct {
	scheduler *services.SchedulerService
}

func NewSchedulerController(scheduler *services.SchedulerService) *SchedulerController {
	return &SchedulerController{scheduler: scheduler}
}

// Status handles GET /api/scheduler/status
func (ctl *SchedulerController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.scheduler.Status())
}

// Health handles GET /api/scheduler/health
func (ctl *SchedulerController) Health(c *gin.Context) {
	health := ctl.scheduler.Health()
	code := http.StatusOK
	if health.Status != "running" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

// ManualCheck handles POST /api/scheduler/check. The tick runs in the
// background; the in-progress guard makes concurrent triggers harmless.
func (ctl *SchedulerController) ManualCheck(c *gin.Context) {
	go ctl.scheduler.ManualCheck()
	c.JSON(http.StatusAccepted, gin.H{"message": "Check triggered"})
}

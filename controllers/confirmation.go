package controllers

import (
	"errors"
	"net/http"

	"lessonpro-backend/services"
	"lessonpro-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConfirmationController exposes reminder acknowledgment to clients: a public
// token-based endpoint (the token is the credential) and an authenticated
// in-app path by reminder ID.
type ConfirmationController struct {
	service *services.ConfirmationService
}

func NewConfirmationController(service *services.ConfirmationService) *ConfirmationController {
	return &ConfirmationController{service: service}
}

// ConfirmByToken handles POST /confirm/:token
func (ctl *ConfirmationController) ConfirmByToken(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "Confirmation token required")
		return
	}

	result, err := ctl.service.AcknowledgeByToken(c.Request.Context(), token)
	ctl.respond(c, result, err)
}

// Acknowledge handles POST /api/reminders/:id/acknowledge
func (ctl *ConfirmationController) Acknowledge(c *gin.Context) {
	reminderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid reminder ID format")
		return
	}

	result, err := ctl.service.AcknowledgeByID(c.Request.Context(), reminderUUID)
	ctl.respond(c, result, err)
}

func (ctl *ConfirmationController) respond(c *gin.Context, result *services.AckResult, err error) {
	switch {
	case errors.Is(err, services.ErrReminderNotFound):
		utils.RespondWithError(c, http.StatusNotFound, "Invalid or unknown confirmation token")
	case errors.Is(err, services.ErrReminderExpired):
		utils.RespondWithError(c, http.StatusGone, "This confirmation request has expired")
	case errors.Is(err, services.ErrAppointmentCancelled):
		utils.RespondWithError(c, http.StatusConflict, "This lesson has been cancelled")
	case err != nil:
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to process confirmation")
	case result.AlreadyConfirmed:
		c.JSON(http.StatusOK, gin.H{
			"message":          "Lesson was already confirmed",
			"alreadyConfirmed": true,
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"message":          "Lesson confirmed, see you there!",
			"alreadyConfirmed": false,
			"confirmedAt":      result.ConfirmedAt,
		})
	}
}

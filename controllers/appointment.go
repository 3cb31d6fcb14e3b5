package controllers

import (
	"errors"
	"net/http"
	"time"

	"lessonpro-backend/config"
	"lessonpro-backend/models"
	"lessonpro-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateAppointmentInput defines the expected JSON structure for booking a lesson
type CreateAppointmentInput struct {
	ClientID        uuid.UUID `json:"clientId" binding:"required"`
	ScheduledAt     time.Time `json:"scheduledAt" binding:"required"`
	DurationMinutes int       `json:"durationMinutes"`
	Location        string    `json:"location"`
	Notes           string    `json:"notes"`
}

// UpdateAppointmentStatusInput covers manual status transitions by the coach
type UpdateAppointmentStatusInput struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=scheduled confirmed cancelled"`
	Reason string                   `json:"reason"`
}

// CreateAppointment books a new lesson with a client
func CreateAppointment(c *gin.Context) {
	coachUUID, ok := coachIDFromContext(c)
	if !ok {
		return
	}

	var input CreateAppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if input.ScheduledAt.Before(time.Now()) {
		utils.RespondWithError(c, http.StatusBadRequest, "Lesson cannot be scheduled in the past")
		return
	}

	// Client must belong to this coach
	var client models.Client
	if err := config.DB.Where("coach_id = ? AND id = ?", coachUUID, input.ClientID).
		First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Client not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	appointment := models.Appointment{
		CoachID:         coachUUID,
		ClientID:        input.ClientID,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Location:        input.Location,
		Notes:           input.Notes,
		Status:          models.AppointmentScheduled,
	}
	if appointment.DurationMinutes == 0 {
		appointment.DurationMinutes = 60
	}

	if err := config.DB.Create(&appointment).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create appointment")
		return
	}

	c.JSON(http.StatusCreated, appointment)
}

// GetAppointments lists the coach's appointments, optionally filtered by status
func GetAppointments(c *gin.Context) {
	coachUUID, ok := coachIDFromContext(c)
	if !ok {
		return
	}

	query := config.DB.Where("coach_id = ?", coachUUID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var appointments []models.Appointment
	if err := query.Preload("Client").Order("scheduled_at asc").Find(&appointments).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve appointments")
		return
	}

	c.JSON(http.StatusOK, appointments)
}

// GetAppointment retrieves a specific appointment by ID
func GetAppointment(c *gin.Context) {
	coachUUID, ok := coachIDFromContext(c)
	if !ok {
		return
	}

	appointmentUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid appointment ID format")
		return
	}

	var appointment models.Appointment
	if err := config.DB.Preload("Client").
		Where("coach_id = ? AND id = ?", coachUUID, appointmentUUID).
		First(&appointment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Appointment not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	c.JSON(http.StatusOK, appointment)
}

// UpdateAppointmentStatus applies a manual status transition. Cancelled is
// terminal: further transitions are rejected.
func UpdateAppointmentStatus(c *gin.Context) {
	coachUUID, ok := coachIDFromContext(c)
	if !ok {
		return
	}

	appointmentUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid appointment ID format")
		return
	}

	var input UpdateAppointmentStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var appointment models.Appointment
	if err := config.DB.Where("coach_id = ? AND id = ?", coachUUID, appointmentUUID).
		First(&appointment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "Appointment not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if appointment.Status == models.AppointmentCancelled {
		utils.RespondWithError(c, http.StatusConflict, "Cancelled appointments cannot be updated")
		return
	}

	updates := map[string]interface{}{"status": input.Status}
	if input.Status == models.AppointmentCancelled {
		reason := input.Reason
		if reason == "" {
			reason = "cancelled by coach"
		}
		updates["cancel_reason"] = reason
	}

	if err := config.DB.Model(&appointment).Updates(updates).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update appointment")
		return
	}

	c.JSON(http.StatusOK, appointment)
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	CoachID  uuid.UUID `gorm:"type:uuid;index;not null"`
	ClientID uuid.UUID `gorm:"type:uuid;index;not null"`

	ScheduledAt     time.Time         `gorm:"index;not null"`
	DurationMinutes int               `gorm:"default:60"`
	Location        string
	Notes           string
	Status          AppointmentStatus `gorm:"type:varchar(20);index;default:'scheduled'"`

	// Confirmation tracking, written by the reminder scheduler
	ReminderSent         bool `gorm:"default:false"`
	ReminderSentAt       *time.Time
	ConfirmationRequired bool `gorm:"default:false"`
	ConfirmationDeadline *time.Time
	ConfirmedAt          *time.Time
	CancelReason         string

	Client Client `gorm:"foreignKey:ClientID"`

	gorm.Model
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

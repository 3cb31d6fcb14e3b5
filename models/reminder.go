package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReminderStatus string

const (
	ReminderSent      ReminderStatus = "sent"
	ReminderConfirmed ReminderStatus = "confirmed"
	ReminderExpired   ReminderStatus = "expired"
)

// ReminderTypeLessonConfirmation is the only reminder type currently issued.
const ReminderTypeLessonConfirmation = "lesson_confirmation"

type Reminder struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	AppointmentID uuid.UUID `gorm:"type:uuid;index;not null"`
	ClientID      uuid.UUID `gorm:"type:uuid;index;not null"`
	CoachID       uuid.UUID `gorm:"type:uuid;index;not null"`

	Type        string         `gorm:"type:varchar(40);not null"`
	Token       string         `gorm:"uniqueIndex;not null"` // single-use confirmation token
	Status      ReminderStatus `gorm:"type:varchar(20);index;default:'sent'"`
	SentAt      time.Time
	ExpiresAt   time.Time `gorm:"index;not null"`
	ConfirmedAt *time.Time

	Appointment Appointment `gorm:"foreignKey:AppointmentID"`

	gorm.Model
}

func (r *Reminder) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

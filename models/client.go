package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Client struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key"`
	CoachID uuid.UUID `gorm:"type:uuid;index;not null"`

	Name         string `gorm:"not null"`
	Phone        string `gorm:"not null;uniqueIndex:idx_coach_phone,priority:2"`
	Email        string
	Notes        string
	TotalLessons int    `gorm:"default:0"`
	LastLesson   *time.Time
	IsActive     bool `gorm:"default:true"`

	Appointments []Appointment `gorm:"foreignKey:ClientID"`

	gorm.Model
}

func (c *Client) BeforeCreate(tx *gorm.DB) (err error) {
	c.ID = uuid.New()
	return
}

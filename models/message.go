package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is an in-app message delivered to a client's conversation.
// Rendering is handled by the frontend; this subsystem only writes rows.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key"`
	ConversationID string    `gorm:"index;not null"` // "<coachID>:<clientID>"
	CoachID        uuid.UUID `gorm:"type:uuid;index;not null"`
	ClientID       uuid.UUID `gorm:"type:uuid;index;not null"`

	Sender      string `gorm:"type:varchar(20);default:'system'"`
	Body        string `gorm:"type:text;not null"`
	RequiresAck bool   `gorm:"default:false"`
	AckedAt     *time.Time

	gorm.Model
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	m.ID = uuid.New()
	return
}

// ConversationKey builds the conversation identifier shared with the frontend.
func ConversationKey(coachID, clientID uuid.UUID) string {
	return coachID.String() + ":" + clientID.String()
}

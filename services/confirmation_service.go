// services/confirmation_service.go
package services

import (
	"context"
	"time"

	"lessonpro-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AckResult reports the outcome of acknowledging a reminder. AlreadyConfirmed
// is set when the reminder had been confirmed before this call, so duplicate
// submissions succeed without side effects.
type AckResult struct {
	AlreadyConfirmed bool       `json:"alreadyConfirmed"`
	ConfirmedAt      *time.Time `json:"confirmedAt,omitempty"`
}

// ConfirmationService transitions reminders to confirmed on behalf of
// clients acknowledging a confirmation request.
type ConfirmationService struct {
	reminders    ReminderRepository
	appointments AppointmentRepository
	log          *logrus.Logger
	now          func() time.Time
}

func NewConfirmationService(reminders ReminderRepository, appointments AppointmentRepository, log *logrus.Logger) *ConfirmationService {
	return &ConfirmationService{
		reminders:    reminders,
		appointments: appointments,
		log:          log,
		now:          time.Now,
	}
}

// AcknowledgeByToken confirms the reminder carrying the given token. The
// token is the credential on the public confirmation link.
func (s *ConfirmationService) AcknowledgeByToken(ctx context.Context, token string) (*AckResult, error) {
	reminder, err := s.reminders.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.acknowledge(ctx, reminder)
}

// AcknowledgeByID confirms a reminder by identifier, used by the
// authenticated in-app acknowledgment path.
func (s *ConfirmationService) AcknowledgeByID(ctx context.Context, id uuid.UUID) (*AckResult, error) {
	reminder, err := s.reminders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.acknowledge(ctx, reminder)
}

func (s *ConfirmationService) acknowledge(ctx context.Context, reminder *models.Reminder) (*AckResult, error) {
	switch reminder.Status {
	case models.ReminderConfirmed:
		return &AckResult{AlreadyConfirmed: true, ConfirmedAt: reminder.ConfirmedAt}, nil
	case models.ReminderExpired:
		return nil, ErrReminderExpired
	}

	now := s.now()
	if now.After(reminder.ExpiresAt) {
		// Past deadline but not yet swept by the expiry pass.
		return nil, ErrReminderExpired
	}

	confirmed, err := s.reminders.MarkConfirmed(ctx, reminder.ID, now)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		// Lost a race with a duplicate submission, which is fine.
		return &AckResult{AlreadyConfirmed: true}, nil
	}

	stamped, err := s.appointments.SetConfirmedAt(ctx, reminder.AppointmentID, now)
	if err != nil {
		s.log.Errorf("Reminder %s confirmed but appointment %s stamp failed: %v",
			reminder.ID, reminder.AppointmentID, err)
		return nil, err
	}
	if !stamped {
		// The appointment left the confirmed state, typically a manual
		// cancellation, while its reminder was still live.
		s.log.Warnf("Reminder %s acknowledged but appointment %s is no longer confirmed",
			reminder.ID, reminder.AppointmentID)
		return nil, ErrAppointmentCancelled
	}

	s.log.Infof("Reminder %s confirmed for appointment %s", reminder.ID, reminder.AppointmentID)
	return &AckResult{ConfirmedAt: &now}, nil
}

// services/ports.go
package services

import (
	"context"
	"time"

	"lessonpro-backend/models"

	"github.com/google/uuid"
)

// Persistence interfaces consumed by the scheduler services. The repository
// package provides the GORM-backed implementations; tests substitute
// in-memory fakes.

type AppointmentRepository interface {
	// FindConfirmedInWindow returns confirmed, not-yet-reminded appointments
	// whose scheduled time falls inside [start, end] (closed interval).
	FindConfirmedInWindow(ctx context.Context, start, end time.Time) ([]models.Appointment, error)
	// MarkReminderSent sets the reminder flags conditionally on
	// reminder_sent = false and reports whether this caller claimed the row.
	MarkReminderSent(ctx context.Context, id uuid.UUID, sentAt, deadline time.Time) (bool, error)
	// Cancel transitions a confirmed appointment to cancelled and reports
	// whether the transition happened. Cancelled is terminal.
	Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	// SetConfirmedAt stamps confirmed_at conditionally on the appointment
	// still being confirmed, and reports whether a row was updated.
	SetConfirmedAt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
}

type ReminderRepository interface {
	Create(ctx context.Context, r *models.Reminder) error
	// ExistsForAppointmentNear reports whether a non-expired reminder row
	// already exists for the appointment with sent_at within the given
	// tolerance of around.
	ExistsForAppointmentNear(ctx context.Context, appointmentID uuid.UUID, around time.Time, tolerance time.Duration) (bool, error)
	// FindExpiredUnconfirmed returns sent reminders past their deadline whose
	// appointment is still confirmed and unacknowledged.
	FindExpiredUnconfirmed(ctx context.Context, now time.Time) ([]models.Reminder, error)
	MarkExpired(ctx context.Context, id uuid.UUID) error
	// MarkConfirmed flips a sent reminder to confirmed and reports whether
	// this call performed the transition (false when already confirmed).
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FindByToken(ctx context.Context, token string) (*models.Reminder, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

// ConfirmationReminderParams carries everything the gateway needs to notify a
// client that a lesson requires confirmation.
type ConfirmationReminderParams struct {
	Email          string
	Phone          string
	ClientName     string
	CoachName      string
	LessonDate     string
	LessonTime     string
	HoursRemaining int
	SMS            bool
	WhatsApp       bool
}

// AutoCancelledParams carries the details of an auto-cancellation notice.
type AutoCancelledParams struct {
	Email          string
	Phone          string
	ClientName     string
	CoachName      string
	LessonDateTime string
	SMS            bool
	WhatsApp       bool
}

// NotificationGateway sends client-facing notifications. Both operations are
// fire-and-forget booleans; delivery retries are the caller's concern.
type NotificationGateway interface {
	SendConfirmationReminder(ctx context.Context, p ConfirmationReminderParams) bool
	SendAutoCancelled(ctx context.Context, p AutoCancelledParams) bool
}

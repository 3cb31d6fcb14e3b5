// services/reminder_service.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lessonpro-backend/models"
	"lessonpro-backend/utils"

	"github.com/sirupsen/logrus"
)

const (
	// Reminders target appointments 48h out, with 1h of tolerance on either
	// side to absorb tick jitter.
	lookAheadTarget    = 48 * time.Hour
	lookAheadTolerance = time.Hour

	// Clients get 24h from dispatch to confirm before auto-cancellation.
	confirmationWindow = 24 * time.Hour

	// CancelReasonUnconfirmed is stamped on appointments the expiry pass cancels.
	CancelReasonUnconfirmed = "no confirmation received before deadline"

	maxDeliveryAttempts  = 3
	maxPendingDeliveries = 128
)

// pendingDelivery is a notification that failed to send and is waiting for a
// bounded retry on a later tick. Exactly one of the two fields is set.
type pendingDelivery struct {
	confirmation *ConfirmationReminderParams
	cancellation *AutoCancelledParams
	attempts     int
}

// ReminderService runs the two scheduler passes: the reminder pass dispatches
// confirmation requests for upcoming lessons, and the expiry pass cancels
// lessons whose confirmation deadline lapsed.
type ReminderService struct {
	appointments AppointmentRepository
	reminders    ReminderRepository
	messages     MessageRepository
	users        UserRepository
	clients      ClientRepository
	gateway      NotificationGateway
	log          *logrus.Logger

	// now is swappable so tests can drive the clock.
	now func() time.Time

	mu       sync.Mutex
	sentKeys map[string]struct{}
	pending  []pendingDelivery
}

func NewReminderService(
	appointments AppointmentRepository,
	reminders ReminderRepository,
	messages MessageRepository,
	users UserRepository,
	clients ClientRepository,
	gateway NotificationGateway,
	log *logrus.Logger,
) *ReminderService {
	return &ReminderService{
		appointments: appointments,
		reminders:    reminders,
		messages:     messages,
		users:        users,
		clients:      clients,
		gateway:      gateway,
		log:          log,
		now:          time.Now,
		sentKeys:     make(map[string]struct{}),
	}
}

// SentRemindersCount reports the size of the in-process dedup set.
func (s *ReminderService) SentRemindersCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sentKeys)
}

// RunReminderPass selects appointments inside the lookahead window and
// dispatches a confirmation reminder to each one that survives the dedup
// guard. Failures are isolated per appointment.
func (s *ReminderService) RunReminderPass(ctx context.Context) error {
	now := s.now()

	s.retryPendingDeliveries(ctx)

	start := now.Add(lookAheadTarget - lookAheadTolerance)
	end := now.Add(lookAheadTarget + lookAheadTolerance)

	candidates, err := s.appointments.FindConfirmedInWindow(ctx, start, end)
	if err != nil {
		s.log.Errorf("Reminder pass: failed to query candidates: %v", err)
		return err
	}

	for i := range candidates {
		appointment := &candidates[i]
		if s.alreadyDispatched(ctx, appointment, now) {
			continue
		}
		if err := s.dispatch(ctx, appointment, now); err != nil {
			// Retried on a later tick: the reminder flags were never set.
			s.log.Errorf("Reminder pass: dispatch failed for appointment %s: %v", appointment.ID, err)
		}
	}

	return nil
}

func (s *ReminderService) dedupKey(appointmentID string, now time.Time) string {
	return appointmentID + "|" + utils.DateBucket(now) + "|" + models.ReminderTypeLessonConfirmation
}

// alreadyDispatched is the dedup guard. The in-process set is the fast path;
// the persisted existence check is the one that survives restarts.
func (s *ReminderService) alreadyDispatched(ctx context.Context, appointment *models.Appointment, now time.Time) bool {
	key := s.dedupKey(appointment.ID.String(), now)

	s.mu.Lock()
	_, hit := s.sentKeys[key]
	s.mu.Unlock()
	if hit {
		s.log.Infof("Skipping appointment %s: reminder already sent this tick cycle", appointment.ID)
		return true
	}

	exists, err := s.reminders.ExistsForAppointmentNear(ctx, appointment.ID, now, lookAheadTolerance)
	if err != nil {
		// Treat as dispatched: better a delayed reminder than a duplicate.
		s.log.Errorf("Dedup check failed for appointment %s: %v", appointment.ID, err)
		return true
	}
	if exists {
		s.log.Infof("Skipping appointment %s: persisted reminder already exists", appointment.ID)
		return true
	}
	return false
}

func (s *ReminderService) dispatch(ctx context.Context, appointment *models.Appointment, now time.Time) error {
	token, err := utils.GenerateConfirmationToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	deadline := now.Add(confirmationWindow)
	reminder := &models.Reminder{
		AppointmentID: appointment.ID,
		ClientID:      appointment.ClientID,
		CoachID:       appointment.CoachID,
		Type:          models.ReminderTypeLessonConfirmation,
		Token:         token,
		Status:        models.ReminderSent,
		SentAt:        now,
		ExpiresAt:     deadline,
	}
	if err := s.reminders.Create(ctx, reminder); err != nil {
		return fmt.Errorf("persist reminder: %w", err)
	}

	claimed, err := s.appointments.MarkReminderSent(ctx, appointment.ID, now, deadline)
	if err != nil {
		// The reminder row is committed but the appointment was never
		// flagged. Retire the row so the expiry pass cannot cancel an
		// appointment nobody was asked to confirm, and so the persisted
		// dedup check does not block the retry on the next tick.
		if retireErr := s.reminders.MarkExpired(ctx, reminder.ID); retireErr != nil {
			s.log.Errorf("Failed to retire orphan reminder %s: %v", reminder.ID, retireErr)
		}
		return fmt.Errorf("update appointment flags: %w", err)
	}
	if !claimed {
		// Another instance got there first; retire our reminder so at most
		// one live reminder exists for the appointment.
		s.log.Warnf("Appointment %s was claimed concurrently, retiring duplicate reminder %s", appointment.ID, reminder.ID)
		if err := s.reminders.MarkExpired(ctx, reminder.ID); err != nil {
			s.log.Errorf("Failed to retire duplicate reminder %s: %v", reminder.ID, err)
		}
		return nil
	}

	s.createAckMessage(ctx, appointment, deadline)
	s.notifyConfirmation(ctx, appointment, deadline)

	s.mu.Lock()
	s.sentKeys[s.dedupKey(appointment.ID.String(), now)] = struct{}{}
	s.mu.Unlock()

	s.log.Infof("Reminder %s dispatched for appointment %s, expires %s",
		reminder.ID, appointment.ID, deadline.Format(time.RFC3339))
	return nil
}

func (s *ReminderService) createAckMessage(ctx context.Context, appointment *models.Appointment, deadline time.Time) {
	message := &models.Message{
		ConversationID: models.ConversationKey(appointment.CoachID, appointment.ClientID),
		CoachID:        appointment.CoachID,
		ClientID:       appointment.ClientID,
		Sender:         "system",
		Body: fmt.Sprintf("Your lesson on %s needs confirmation by %s, or it will be cancelled automatically.",
			appointment.ScheduledAt.Format("Mon Jan 2 15:04"), deadline.Format("Mon Jan 2 15:04")),
		RequiresAck: true,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		s.log.Errorf("Failed to create ack message for appointment %s: %v", appointment.ID, err)
	}
}

func (s *ReminderService) notifyConfirmation(ctx context.Context, appointment *models.Appointment, deadline time.Time) {
	params, err := s.confirmationParams(ctx, appointment, deadline)
	if err != nil {
		s.log.Errorf("Cannot notify client for appointment %s: %v", appointment.ID, err)
		return
	}
	if !s.gateway.SendConfirmationReminder(ctx, *params) {
		// Delivery failed but the appointment is already marked reminded;
		// queue a bounded retry instead of dropping the notification.
		s.log.Errorf("Confirmation notification failed for appointment %s, queueing retry", appointment.ID)
		s.enqueueDelivery(pendingDelivery{confirmation: params, attempts: 1})
	}
}

func (s *ReminderService) confirmationParams(ctx context.Context, appointment *models.Appointment, deadline time.Time) (*ConfirmationReminderParams, error) {
	client, err := s.clients.FindByID(ctx, appointment.ClientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	coach, err := s.users.FindByID(ctx, appointment.CoachID)
	if err != nil {
		return nil, fmt.Errorf("load coach: %w", err)
	}
	return &ConfirmationReminderParams{
		Email:          client.Email,
		Phone:          client.Phone,
		ClientName:     client.Name,
		CoachName:      coach.Name,
		LessonDate:     appointment.ScheduledAt.Format("Monday, Jan 2 2006"),
		LessonTime:     appointment.ScheduledAt.Format("15:04"),
		HoursRemaining: int(deadline.Sub(s.now()).Hours()),
		SMS:            coach.SMSNotifications,
		WhatsApp:       coach.WhatsAppNotifications,
	}, nil
}

// RunExpiryPass cancels appointments whose unacknowledged reminders have
// passed their deadline. Idempotent: the conditional cancel only fires while
// the appointment is still confirmed.
func (s *ReminderService) RunExpiryPass(ctx context.Context) error {
	now := s.now()

	expired, err := s.reminders.FindExpiredUnconfirmed(ctx, now)
	if err != nil {
		s.log.Errorf("Expiry pass: failed to query expired reminders: %v", err)
		return err
	}

	for i := range expired {
		reminder := &expired[i]

		cancelled, err := s.appointments.Cancel(ctx, reminder.AppointmentID, CancelReasonUnconfirmed)
		if err != nil {
			s.log.Errorf("Expiry pass: failed to cancel appointment %s: %v", reminder.AppointmentID, err)
			continue
		}

		if err := s.reminders.MarkExpired(ctx, reminder.ID); err != nil {
			s.log.Errorf("Expiry pass: failed to expire reminder %s: %v", reminder.ID, err)
		}

		if !cancelled {
			// Appointment already reached a terminal state elsewhere.
			continue
		}

		s.log.Infof("Appointment %s auto-cancelled: reminder %s expired at %s",
			reminder.AppointmentID, reminder.ID, reminder.ExpiresAt.Format(time.RFC3339))
		s.notifyCancellation(ctx, reminder)
	}

	return nil
}

func (s *ReminderService) notifyCancellation(ctx context.Context, reminder *models.Reminder) {
	appointment, err := s.appointments.FindByID(ctx, reminder.AppointmentID)
	if err != nil {
		s.log.Errorf("Cannot load cancelled appointment %s: %v", reminder.AppointmentID, err)
		return
	}

	message := &models.Message{
		ConversationID: models.ConversationKey(reminder.CoachID, reminder.ClientID),
		CoachID:        reminder.CoachID,
		ClientID:       reminder.ClientID,
		Sender:         "system",
		Body: fmt.Sprintf("Your lesson on %s was cancelled because it was not confirmed in time.",
			appointment.ScheduledAt.Format("Mon Jan 2 15:04")),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		s.log.Errorf("Failed to create cancellation message for appointment %s: %v", reminder.AppointmentID, err)
	}

	client, err := s.clients.FindByID(ctx, reminder.ClientID)
	if err != nil {
		s.log.Errorf("Cannot notify client %s of cancellation: %v", reminder.ClientID, err)
		return
	}
	coach, err := s.users.FindByID(ctx, reminder.CoachID)
	if err != nil {
		s.log.Errorf("Cannot load coach %s for cancellation notice: %v", reminder.CoachID, err)
		return
	}

	params := &AutoCancelledParams{
		Email:          client.Email,
		Phone:          client.Phone,
		ClientName:     client.Name,
		CoachName:      coach.Name,
		LessonDateTime: appointment.ScheduledAt.Format("Monday, Jan 2 2006 15:04"),
		SMS:            coach.SMSNotifications,
		WhatsApp:       coach.WhatsAppNotifications,
	}
	if !s.gateway.SendAutoCancelled(ctx, *params) {
		s.log.Errorf("Cancellation notification failed for appointment %s, queueing retry", reminder.AppointmentID)
		s.enqueueDelivery(pendingDelivery{cancellation: params, attempts: 1})
	}
}

func (s *ReminderService) enqueueDelivery(d pendingDelivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= maxPendingDeliveries {
		s.log.Errorf("Delivery retry queue full, dropping notification")
		return
	}
	s.pending = append(s.pending, d)
}

// retryPendingDeliveries drains the retry queue at the start of each reminder
// pass, re-enqueueing failures up to the attempt limit.
func (s *ReminderService) retryPendingDeliveries(ctx context.Context) {
	s.mu.Lock()
	queue := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, d := range queue {
		var ok bool
		switch {
		case d.confirmation != nil:
			ok = s.gateway.SendConfirmationReminder(ctx, *d.confirmation)
		case d.cancellation != nil:
			ok = s.gateway.SendAutoCancelled(ctx, *d.cancellation)
		}
		if ok {
			continue
		}
		if d.attempts+1 >= maxDeliveryAttempts {
			s.log.Errorf("Dropping notification after %d failed delivery attempts", d.attempts+1)
			continue
		}
		d.attempts++
		s.enqueueDelivery(d)
	}
}

package services

import (
	"context"
	"sync"
	"time"

	"lessonpro-backend/models"

	"github.com/google/uuid"
)

// In-memory repository fakes used across the scheduler tests.

type fakeAppointments struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Appointment

	failMarkSent bool
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{rows: make(map[uuid.UUID]*models.Appointment)}
}

func (f *fakeAppointments) add(a *models.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.rows[a.ID] = a
}

func (f *fakeAppointments) get(id uuid.UUID) *models.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeAppointments) FindConfirmedInWindow(_ context.Context, start, end time.Time) ([]models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Appointment
	for _, a := range f.rows {
		if a.Status != models.AppointmentConfirmed || a.ReminderSent {
			continue
		}
		if a.ScheduledAt.Before(start) || a.ScheduledAt.After(end) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAppointments) MarkReminderSent(_ context.Context, id uuid.UUID, sentAt, deadline time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarkSent {
		return false, errFakeDown
	}
	a, ok := f.rows[id]
	if !ok || a.ReminderSent {
		return false, nil
	}
	a.ReminderSent = true
	a.ReminderSentAt = &sentAt
	a.ConfirmationRequired = true
	a.ConfirmationDeadline = &deadline
	return true, nil
}

func (f *fakeAppointments) Cancel(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok || a.Status != models.AppointmentConfirmed {
		return false, nil
	}
	a.Status = models.AppointmentCancelled
	a.CancelReason = reason
	return true, nil
}

func (f *fakeAppointments) SetConfirmedAt(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[id]; ok && a.Status == models.AppointmentConfirmed {
		a.ConfirmedAt = &at
		return true, nil
	}
	return false, nil
}

func (f *fakeAppointments) FindByID(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.rows[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, errFakeNotFound
}

type fakeReminders struct {
	mu    sync.Mutex
	rows  map[uuid.UUID]*models.Reminder
	appts *fakeAppointments

	failCreate bool
}

func newFakeReminders(appts *fakeAppointments) *fakeReminders {
	return &fakeReminders{rows: make(map[uuid.UUID]*models.Reminder), appts: appts}
}

func (f *fakeReminders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeReminders) countByStatus(status models.ReminderStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (f *fakeReminders) single() *models.Reminder {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		return r
	}
	return nil
}

func (f *fakeReminders) Create(_ context.Context, r *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errFakeDown
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	copied := *r
	f.rows[r.ID] = &copied
	return nil
}

func (f *fakeReminders) ExistsForAppointmentNear(_ context.Context, appointmentID uuid.UUID, around time.Time, tolerance time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.AppointmentID != appointmentID || r.Status == models.ReminderExpired {
			continue
		}
		if r.SentAt.After(around.Add(-tolerance)) && r.SentAt.Before(around.Add(tolerance)) {
			return true, nil
		}
		if r.SentAt.Equal(around.Add(-tolerance)) || r.SentAt.Equal(around.Add(tolerance)) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReminders) FindExpiredUnconfirmed(_ context.Context, now time.Time) ([]models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Reminder
	for _, r := range f.rows {
		if r.Status != models.ReminderSent || !r.ExpiresAt.Before(now) {
			continue
		}
		a := f.appts.get(r.AppointmentID)
		if a == nil || a.ConfirmedAt != nil || a.Status != models.AppointmentConfirmed {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeReminders) MarkExpired(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok && r.Status == models.ReminderSent {
		r.Status = models.ReminderExpired
	}
	return nil
}

func (f *fakeReminders) MarkConfirmed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != models.ReminderSent {
		return false, nil
	}
	r.Status = models.ReminderConfirmed
	r.ConfirmedAt = &at
	return true, nil
}

func (f *fakeReminders) FindByToken(_ context.Context, token string) (*models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Token == token {
			copied := *r
			return &copied, nil
		}
	}
	return nil, ErrReminderNotFound
}

func (f *fakeReminders) FindByID(_ context.Context, id uuid.UUID) (*models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rows[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, ErrReminderNotFound
}

type fakeMessages struct {
	mu   sync.Mutex
	rows []models.Message
}

func (f *fakeMessages) Create(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, *m)
	return nil
}

func (f *fakeMessages) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeUsers struct {
	user models.User
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	copied := f.user
	copied.ID = id
	return &copied, nil
}

type fakeClients struct {
	client models.Client
}

func (f *fakeClients) FindByID(_ context.Context, id uuid.UUID) (*models.Client, error) {
	copied := f.client
	copied.ID = id
	return &copied, nil
}

type fakeGateway struct {
	mu            sync.Mutex
	confirmations int
	cancellations int
	failSends     bool
}

func (f *fakeGateway) SendConfirmationReminder(_ context.Context, _ ConfirmationReminderParams) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations++
	return !f.failSends
}

func (f *fakeGateway) SendAutoCancelled(_ context.Context, _ AutoCancelledParams) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancellations++
	return !f.failSends
}

func (f *fakeGateway) sent() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmations, f.cancellations
}

func (f *fakeGateway) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSends = v
}

var (
	errFakeDown     = fakeError("store unavailable")
	errFakeNotFound = fakeError("not found")
)

type fakeError string

func (e fakeError) Error() string { return string(e) }

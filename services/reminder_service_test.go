package services

import (
	"context"
	"io"
	"testing"
	"time"

	"lessonpro-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type harness struct {
	appts   *fakeAppointments
	rems    *fakeReminders
	msgs    *fakeMessages
	users   *fakeUsers
	clients *fakeClients
	gateway *fakeGateway
	svc     *ReminderService
	clock   time.Time
}

func newHarness(t *testing.T, start time.Time) *harness {
	t.Helper()
	h := &harness{
		appts: newFakeAppointments(),
		msgs:  &fakeMessages{},
		users: &fakeUsers{user: models.User{
			Name: "Coach Kim", Email: "kim@example.com", SMSNotifications: true,
		}},
		clients: &fakeClients{client: models.Client{
			Name: "Alex", Email: "alex@example.com", Phone: "+15550001111",
		}},
		gateway: &fakeGateway{},
		clock:   start,
	}
	h.rems = newFakeReminders(h.appts)
	h.svc = NewReminderService(h.appts, h.rems, h.msgs, h.users, h.clients, h.gateway, testLogger())
	h.svc.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) addConfirmedAppointment(scheduledAt time.Time) *models.Appointment {
	a := &models.Appointment{
		CoachID:     uuid.New(),
		ClientID:    uuid.New(),
		ScheduledAt: scheduledAt,
		Status:      models.AppointmentConfirmed,
	}
	h.appts.add(a)
	return a
}

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestReminderPassDispatchesOnce(t *testing.T) {
	h := newHarness(t, t0)
	a := h.addConfirmedAppointment(t0.Add(48*time.Hour + 10*time.Minute))

	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}

	if got := h.rems.count(); got != 1 {
		t.Fatalf("expected 1 reminder, got %d", got)
	}
	r := h.rems.single()
	if r.Status != models.ReminderSent {
		t.Fatalf("expected status sent, got %s", r.Status)
	}
	if r.Token == "" {
		t.Fatal("expected a confirmation token")
	}
	if want := t0.Add(24 * time.Hour); !r.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, r.ExpiresAt)
	}

	updated := h.appts.get(a.ID)
	if !updated.ReminderSent || !updated.ConfirmationRequired {
		t.Fatal("appointment reminder flags not set")
	}
	if updated.ReminderSentAt == nil || !updated.ReminderSentAt.Equal(t0) {
		t.Fatalf("expected reminderSentAt %v, got %v", t0, updated.ReminderSentAt)
	}
	if updated.ConfirmationDeadline == nil || !updated.ConfirmationDeadline.Equal(t0.Add(24*time.Hour)) {
		t.Fatal("confirmation deadline not stamped")
	}
	if !r.ExpiresAt.Equal(updated.ReminderSentAt.Add(24 * time.Hour)) {
		t.Fatal("expiresAt must equal reminderSentAt + 24h")
	}

	if got := h.msgs.count(); got != 1 {
		t.Fatalf("expected 1 in-app message, got %d", got)
	}
	if confirmations, _ := h.gateway.sent(); confirmations != 1 {
		t.Fatalf("expected 1 confirmation notification, got %d", confirmations)
	}
}

func TestReminderPassIdempotent(t *testing.T) {
	h := newHarness(t, t0)
	h.addConfirmedAppointment(t0.Add(48 * time.Hour))

	for i := 0; i < 3; i++ {
		if err := h.svc.RunReminderPass(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	if got := h.rems.count(); got != 1 {
		t.Fatalf("expected exactly 1 reminder after repeated passes, got %d", got)
	}
	if confirmations, _ := h.gateway.sent(); confirmations != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", confirmations)
	}
}

func TestReminderPassIdempotentAcrossRestart(t *testing.T) {
	h := newHarness(t, t0)
	h.addConfirmedAppointment(t0.Add(48 * time.Hour))

	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// Simulate a restart: new service instance over the same persisted rows,
	// with an empty in-process dedup set.
	restarted := NewReminderService(h.appts, h.rems, h.msgs, h.users, h.clients, h.gateway, testLogger())
	restarted.now = func() time.Time { return h.clock }
	if err := restarted.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("pass after restart: %v", err)
	}

	if got := h.rems.count(); got != 1 {
		t.Fatalf("expected 1 reminder after restart, got %d", got)
	}
}

func TestWindowBoundaries(t *testing.T) {
	tests := []struct {
		name        string
		scheduledAt time.Time
		want        bool
	}{
		{"exactly 47h ahead", t0.Add(47 * time.Hour), true},
		{"48h ahead", t0.Add(48 * time.Hour), true},
		{"exactly 49h ahead", t0.Add(49 * time.Hour), true},
		{"49h1m ahead", t0.Add(49*time.Hour + time.Minute), false},
		{"46h59m ahead", t0.Add(47*time.Hour - time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, t0)
			h.addConfirmedAppointment(tt.scheduledAt)

			if err := h.svc.RunReminderPass(context.Background()); err != nil {
				t.Fatalf("reminder pass: %v", err)
			}

			got := h.rems.count() == 1
			if got != tt.want {
				t.Fatalf("candidate selected = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduledAndCancelledExcluded(t *testing.T) {
	h := newHarness(t, t0)

	pending := &models.Appointment{
		CoachID: uuid.New(), ClientID: uuid.New(),
		ScheduledAt: t0.Add(48 * time.Hour), Status: models.AppointmentScheduled,
	}
	cancelled := &models.Appointment{
		CoachID: uuid.New(), ClientID: uuid.New(),
		ScheduledAt: t0.Add(48 * time.Hour), Status: models.AppointmentCancelled,
	}
	h.appts.add(pending)
	h.appts.add(cancelled)

	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}
	if got := h.rems.count(); got != 0 {
		t.Fatalf("expected no reminders for non-confirmed appointments, got %d", got)
	}
}

func TestExpiryCancelsUnconfirmedOnce(t *testing.T) {
	h := newHarness(t, t0)
	a := h.addConfirmedAppointment(t0.Add(48*time.Hour + 10*time.Minute))

	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}

	// No acknowledgment arrives; next tick is after the deadline.
	h.clock = t0.Add(25 * time.Hour)
	if err := h.svc.RunExpiryPass(context.Background()); err != nil {
		t.Fatalf("expiry pass: %v", err)
	}

	updated := h.appts.get(a.ID)
	if updated.Status != models.AppointmentCancelled {
		t.Fatalf("expected appointment cancelled, got %s", updated.Status)
	}
	if updated.CancelReason != CancelReasonUnconfirmed {
		t.Fatalf("unexpected cancel reason %q", updated.CancelReason)
	}
	if r := h.rems.single(); r.Status != models.ReminderExpired {
		t.Fatalf("expected reminder expired, got %s", r.Status)
	}
	if _, cancellations := h.gateway.sent(); cancellations != 1 {
		t.Fatalf("expected exactly 1 cancellation notification, got %d", cancellations)
	}

	// Re-running the pass must be a no-op.
	h.clock = t0.Add(26 * time.Hour)
	if err := h.svc.RunExpiryPass(context.Background()); err != nil {
		t.Fatalf("second expiry pass: %v", err)
	}
	if _, cancellations := h.gateway.sent(); cancellations != 1 {
		t.Fatalf("appointment cancelled twice: %d notifications", cancellations)
	}
}

func TestConfirmedAppointmentNeverCancelled(t *testing.T) {
	h := newHarness(t, t0)
	a := h.addConfirmedAppointment(t0.Add(48*time.Hour + 10*time.Minute))

	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}

	// Client acknowledges 2h after dispatch.
	conf := NewConfirmationService(h.rems, h.appts, testLogger())
	h.clock = t0.Add(2 * time.Hour)
	conf.now = func() time.Time { return h.clock }
	if _, err := conf.AcknowledgeByToken(context.Background(), h.rems.single().Token); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	// Ticks long past the deadline must skip the appointment.
	for _, offset := range []time.Duration{25 * time.Hour, 30 * time.Hour, 72 * time.Hour} {
		h.clock = t0.Add(offset)
		if err := h.svc.RunExpiryPass(context.Background()); err != nil {
			t.Fatalf("expiry pass at +%v: %v", offset, err)
		}
	}

	updated := h.appts.get(a.ID)
	if updated.Status != models.AppointmentConfirmed {
		t.Fatalf("confirmed appointment was cancelled: %s", updated.Status)
	}
	if updated.ConfirmedAt == nil {
		t.Fatal("confirmedAt not stamped")
	}
	if _, cancellations := h.gateway.sent(); cancellations != 0 {
		t.Fatalf("expected no cancellation notifications, got %d", cancellations)
	}
}

func TestDispatchRetriedAfterPersistFailure(t *testing.T) {
	h := newHarness(t, t0)
	a := h.addConfirmedAppointment(t0.Add(48 * time.Hour))

	h.rems.failCreate = true
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}

	// Candidate aborted: no partial state committed.
	if got := h.rems.count(); got != 0 {
		t.Fatalf("expected no reminders after failed persist, got %d", got)
	}
	if h.appts.get(a.ID).ReminderSent {
		t.Fatal("reminderSent must not be set when persist failed")
	}

	// Next tick succeeds.
	h.rems.failCreate = false
	h.clock = t0.Add(15 * time.Minute)
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("retry pass: %v", err)
	}
	if got := h.rems.count(); got != 1 {
		t.Fatalf("expected 1 reminder after retry, got %d", got)
	}
}

func TestDispatchRetriedAfterFlagUpdateFailure(t *testing.T) {
	h := newHarness(t, t0)
	a := h.addConfirmedAppointment(t0.Add(48 * time.Hour))

	h.appts.failMarkSent = true
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}

	// The reminder row was persisted before the flag update failed; it must
	// be retired so no live reminder exists for an unflagged appointment.
	if got := h.rems.countByStatus(models.ReminderSent); got != 0 {
		t.Fatalf("expected no live reminders after failed flag update, got %d", got)
	}
	if h.appts.get(a.ID).ReminderSent {
		t.Fatal("reminderSent must not be set when the flag update failed")
	}
	if confirmations, _ := h.gateway.sent(); confirmations != 0 {
		t.Fatalf("expected no notifications after failed dispatch, got %d", confirmations)
	}

	// Next tick picks the appointment up again.
	h.appts.failMarkSent = false
	h.clock = t0.Add(15 * time.Minute)
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("retry pass: %v", err)
	}
	if got := h.rems.countByStatus(models.ReminderSent); got != 1 {
		t.Fatalf("expected exactly 1 live reminder after retry, got %d", got)
	}
	if !h.appts.get(a.ID).ReminderSent {
		t.Fatal("reminderSent not set on retry")
	}
	if confirmations, _ := h.gateway.sent(); confirmations != 1 {
		t.Fatalf("expected exactly 1 notification after retry, got %d", confirmations)
	}
}

func TestFailedDispatchNeverCancelsAppointment(t *testing.T) {
	h := newHarness(t, t0)
	a := h.addConfirmedAppointment(t0.Add(48 * time.Hour))

	h.appts.failMarkSent = true
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}

	// No reminder ever reached the client, so expiry ticks long after the
	// would-be deadline must leave the appointment alone.
	for _, offset := range []time.Duration{25 * time.Hour, 48 * time.Hour} {
		h.clock = t0.Add(offset)
		if err := h.svc.RunExpiryPass(context.Background()); err != nil {
			t.Fatalf("expiry pass at +%v: %v", offset, err)
		}
	}

	updated := h.appts.get(a.ID)
	if updated.Status != models.AppointmentConfirmed {
		t.Fatalf("appointment cancelled without a delivered reminder: %s", updated.Status)
	}
	if _, cancellations := h.gateway.sent(); cancellations != 0 {
		t.Fatalf("expected no cancellation notifications, got %d", cancellations)
	}
}

func TestNotificationFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t, t0)
	a := h.addConfirmedAppointment(t0.Add(48 * time.Hour))

	h.gateway.setFail(true)
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}

	// Reminder row and flags stay committed despite the failed send.
	if got := h.rems.count(); got != 1 {
		t.Fatalf("expected reminder row despite delivery failure, got %d", got)
	}
	if !h.appts.get(a.ID).ReminderSent {
		t.Fatal("reminderSent must stay set despite delivery failure")
	}

	// Delivery is retried on the next pass once the gateway recovers.
	h.gateway.setFail(false)
	h.clock = t0.Add(time.Hour)
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("retry pass: %v", err)
	}
	if confirmations, _ := h.gateway.sent(); confirmations != 2 {
		t.Fatalf("expected failed delivery to be retried, got %d attempts", confirmations)
	}
	// And not retried again once delivered.
	h.clock = t0.Add(2 * time.Hour)
	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("third pass: %v", err)
	}
	if confirmations, _ := h.gateway.sent(); confirmations != 2 {
		t.Fatalf("delivered notification retried again: %d attempts", confirmations)
	}
}

func TestDeliveryRetriesAreBounded(t *testing.T) {
	h := newHarness(t, t0)
	h.addConfirmedAppointment(t0.Add(48 * time.Hour))

	h.gateway.setFail(true)
	for i := 0; i < 6; i++ {
		h.clock = t0.Add(time.Duration(i) * time.Hour)
		if err := h.svc.RunReminderPass(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
	}

	confirmations, _ := h.gateway.sent()
	if confirmations != maxDeliveryAttempts {
		t.Fatalf("expected %d bounded delivery attempts, got %d", maxDeliveryAttempts, confirmations)
	}
}

func TestDedupSetCountsDispatches(t *testing.T) {
	h := newHarness(t, t0)
	h.addConfirmedAppointment(t0.Add(48 * time.Hour))
	h.addConfirmedAppointment(t0.Add(48*time.Hour + 30*time.Minute))

	if err := h.svc.RunReminderPass(context.Background()); err != nil {
		t.Fatalf("reminder pass: %v", err)
	}
	if got := h.svc.SentRemindersCount(); got != 2 {
		t.Fatalf("expected dedup set size 2, got %d", got)
	}
}

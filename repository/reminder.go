// repository/reminder.go
package repository

import (
	"context"
	"errors"
	"time"

	"lessonpro-backend/models"
	"lessonpro-backend/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	return r.db.WithContext(ctx).Create(reminder).Error
}

// ExistsForAppointmentNear is the persisted half of the dedup guard: it
// survives process restarts, unlike the in-memory key set. Expired rows do
// not count, a retired reminder must not block a later dispatch.
func (r *ReminderRepository) ExistsForAppointmentNear(ctx context.Context, appointmentID uuid.UUID, around time.Time, tolerance time.Duration) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("appointment_id = ? AND status <> ? AND sent_at BETWEEN ? AND ?",
			appointmentID, models.ReminderExpired, around.Add(-tolerance), around.Add(tolerance)).
		Count(&count).Error
	return count > 0, err
}

func (r *ReminderRepository) FindExpiredUnconfirmed(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := r.db.WithContext(ctx).
		Joins("JOIN appointments ON appointments.id = reminders.appointment_id").
		Where("reminders.status = ? AND reminders.expires_at < ?", models.ReminderSent, now).
		Where("appointments.confirmed_at IS NULL AND appointments.status = ?", models.AppointmentConfirmed).
		Find(&reminders).Error
	return reminders, err
}

func (r *ReminderRepository) MarkExpired(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ? AND status = ?", id, models.ReminderSent).
		Update("status", models.ReminderExpired).Error
}

func (r *ReminderRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Reminder{}).
		Where("id = ? AND status = ?", id, models.ReminderSent).
		Updates(map[string]interface{}{
			"status":       models.ReminderConfirmed,
			"confirmed_at": at,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *ReminderRepository) FindByToken(ctx context.Context, token string) (*models.Reminder, error) {
	var reminder models.Reminder
	err := r.db.WithContext(ctx).First(&reminder, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrReminderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

func (r *ReminderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reminder, error) {
	var reminder models.Reminder
	err := r.db.WithContext(ctx).First(&reminder, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrReminderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// repository/appointment.go
package repository

import (
	"context"
	"time"

	"lessonpro-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) FindConfirmedInWindow(ctx context.Context, start, end time.Time) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = false AND scheduled_at >= ? AND scheduled_at <= ?",
			models.AppointmentConfirmed, start, end).
		Find(&appointments).Error
	return appointments, err
}

// MarkReminderSent uses a conditional update so that only one caller can claim
// a given appointment even if two passes race.
func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, sentAt, deadline time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND reminder_sent = false", id).
		Updates(map[string]interface{}{
			"reminder_sent":         true,
			"reminder_sent_at":      sentAt,
			"confirmation_required": true,
			"confirmation_deadline": deadline,
		})
	return tx.RowsAffected > 0, tx.Error
}

// Cancel only fires while the appointment is still confirmed, which makes the
// expiry pass a no-op once the row has reached its terminal state.
func (r *AppointmentRepository) Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, models.AppointmentConfirmed).
		Updates(map[string]interface{}{
			"status":        models.AppointmentCancelled,
			"cancel_reason": reason,
		})
	return tx.RowsAffected > 0, tx.Error
}

func (r *AppointmentRepository) SetConfirmedAt(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ? AND status = ?", id, models.AppointmentConfirmed).
		Update("confirmed_at", at)
	return tx.RowsAffected > 0, tx.Error
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	if err := r.db.WithContext(ctx).First(&appointment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

// services/errors.go
package services

import "errors"

var (
	// ErrReminderNotFound is returned when no reminder matches the given
	// token or identifier.
	ErrReminderNotFound = errors.New("reminder not found")
	// ErrReminderExpired is returned when acknowledging a reminder whose
	// deadline has already lapsed.
	ErrReminderExpired = errors.New("reminder expired")
	// ErrAppointmentCancelled is returned when a reminder is acknowledged
	// after its appointment was cancelled out from under it.
	ErrAppointmentCancelled = errors.New("appointment cancelled")
)

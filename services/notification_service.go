// services/notification_service.go
package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"
)

// NotificationService sends confirmation reminders and cancellation notices
// to clients over email (SMTP) and optionally SMS/WhatsApp (Twilio).
type NotificationService struct {
	dialer      *gomail.Dialer
	from        string
	client      *twilio.RestClient
	smsFrom     string
	waFrom      string
	log         *logrus.Logger
	sendTimeout time.Duration
}

func NewNotificationService(log *logrus.Logger) *NotificationService {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")

	s := &NotificationService{
		from:    os.Getenv("SMTP_FROM"),
		smsFrom: os.Getenv("TWILIO_PHONE_NUMBER"),
		waFrom:  os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSid,
			Password: authToken,
		}),
		log:         log,
		sendTimeout: 15 * time.Second,
	}

	host := os.Getenv("SMTP_HOST")
	if host != "" {
		port := 587
		if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil {
			port = p
		}
		s.dialer = gomail.NewDialer(host, port, os.Getenv("SMTP_USER"), os.Getenv("SMTP_PASS"))
	}

	return s
}

func (s *NotificationService) SendConfirmationReminder(ctx context.Context, p ConfirmationReminderParams) bool {
	subject := fmt.Sprintf("Please confirm your lesson on %s", p.LessonDate)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour lesson with %s is scheduled for %s at %s.\n"+
			"Please confirm within the next %d hours or the lesson will be cancelled automatically.\n",
		p.ClientName, p.CoachName, p.LessonDate, p.LessonTime, p.HoursRemaining)

	ok := s.sendEmail(ctx, p.Email, subject, body)

	text := fmt.Sprintf("Lesson with %s on %s at %s needs your confirmation within %dh.",
		p.CoachName, p.LessonDate, p.LessonTime, p.HoursRemaining)
	s.sendText(p.Phone, text, p.SMS, p.WhatsApp)

	return ok
}

func (s *NotificationService) SendAutoCancelled(ctx context.Context, p AutoCancelledParams) bool {
	subject := "Your lesson has been cancelled"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour lesson with %s on %s was cancelled because it was not confirmed in time.\n"+
			"Please contact %s to reschedule.\n",
		p.ClientName, p.CoachName, p.LessonDateTime, p.CoachName)

	ok := s.sendEmail(ctx, p.Email, subject, body)

	text := fmt.Sprintf("Your lesson with %s on %s was cancelled (no confirmation received).",
		p.CoachName, p.LessonDateTime)
	s.sendText(p.Phone, text, p.SMS, p.WhatsApp)

	return ok
}

// sendEmail delivers a plain-text email, bounded by the send timeout so a
// hung SMTP connection cannot stall a scheduler tick.
func (s *NotificationService) sendEmail(ctx context.Context, to, subject, body string) bool {
	if s.dialer == nil || to == "" {
		s.log.Warnf("Email to %q skipped: SMTP not configured or recipient empty", to)
		return false
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	timeout := time.NewTimer(s.sendTimeout)
	defer timeout.Stop()

	select {
	case err := <-done:
		if err != nil {
			s.log.Errorf("Failed to send email to %s: %v", to, err)
			return false
		}
		return true
	case <-timeout.C:
		s.log.Errorf("Email send to %s timed out after %v", to, s.sendTimeout)
		return false
	case <-ctx.Done():
		s.log.Errorf("Email send to %s aborted: %v", to, ctx.Err())
		return false
	}
}

// sendText delivers via WhatsApp when enabled and the phone is in E.164
// format, otherwise SMS when enabled. Failures are logged, never fatal.
func (s *NotificationService) sendText(phone, body string, sms, whatsApp bool) {
	if phone == "" || (!sms && !whatsApp) {
		return
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetBody(body)

	if whatsApp && len(phone) > 0 && phone[0] == '+' {
		params.SetTo("whatsapp:" + phone)
		params.SetFrom("whatsapp:" + s.waFrom)
	} else if sms {
		params.SetTo(phone)
		params.SetFrom(s.smsFrom)
	} else {
		return
	}

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		s.log.Errorf("Failed to send message to %s: %v", phone, err)
		return
	}
	if resp.Sid != nil {
		s.log.Debugf("Message sent to %s, SID: %s", phone, *resp.Sid)
	}
}

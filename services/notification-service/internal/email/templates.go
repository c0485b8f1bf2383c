package email

import (
	"fmt"
	"time"
)

const appointmentTimeLayout = "Monday, 2 January 2006 at 15:04 MST"

func firstName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

// Confirmed is the email sent when an appointment is confirmed by the studio.
func Confirmed(customerName string, start time.Time) (subject, body string) {
	subject = "Your fitting appointment is confirmed"
	body = fmt.Sprintf(
		"Hi %s,\n\nYour appointment on %s is confirmed. We look forward to seeing you at the studio.\n\nSartor Atelier",
		firstName(customerName), start.UTC().Format(appointmentTimeLayout),
	)
	return subject, body
}

// Cancelled is the email sent when an appointment is cancelled.
func Cancelled(customerName string, start time.Time) (subject, body string) {
	subject = "Your appointment has been cancelled"
	body = fmt.Sprintf(
		"Hi %s,\n\nYour appointment on %s has been cancelled. You can book a new slot at any time.\n\nSartor Atelier",
		firstName(customerName), start.UTC().Format(appointmentTimeLayout),
	)
	return subject, body
}

// Reminder is the email sent ahead of a confirmed appointment.
func Reminder(customerName string, start time.Time) (subject, body string) {
	subject = "Reminder: your appointment is coming up"
	body = fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder that your appointment is on %s. If you can no longer make it, please cancel or reschedule.\n\nSartor Atelier",
		firstName(customerName), start.UTC().Format(appointmentTimeLayout),
	)
	return subject, body
}

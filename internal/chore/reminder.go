package chore

import (
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/rota/internal/model"
)

var (
	// ErrReminderAlreadySent guards against nudging the same turn twice.
	ErrReminderAlreadySent = errors.New("reminder already sent for this turn")
	// ErrOwnTurn is returned when a member tries to remind themselves.
	ErrOwnTurn = errors.New("it is your own turn")
	// ErrNotDue is returned when a scheduled task is not yet due.
	ErrNotDue = errors.New("task is not due yet")
)

// DueForReminder reports whether the daily sweep should notify the task's
// assignee. Only scheduled tasks with someone in rotation qualify.
func DueForReminder(t model.Task, now time.Time) (Urgency, bool) {
	if t.FrequencyDays == nil || len(t.Rotation) == 0 {
		return UrgencyManual, false
	}
	u := GetUrgency(t, now)
	return u, u == UrgencyDueToday || u == UrgencyOverdue
}

// CheckManualReminder decides whether requesterID may nudge the current
// assignee and returns who should receive it.
func CheckManualReminder(t model.Task, requesterID string, now time.Time) (string, error) {
	assignee, ok := CurrentAssignee(t)
	if !ok {
		return "", ErrEmptyRotation
	}
	if assignee == requesterID {
		return "", ErrOwnTurn
	}
	if GetUrgency(t, now) == UrgencyUpcoming {
		return "", ErrNotDue
	}
	if t.ManualReminderSent {
		return "", ErrReminderAlreadySent
	}
	return assignee, nil
}

// ReminderMessage builds the notification title and body for a task.
func ReminderMessage(taskName string, u Urgency) (title, body string) {
	title = "Reminder: " + taskName
	switch u {
	case UrgencyOverdue:
		body = fmt.Sprintf("Friendly reminder: The %s is overdue and it's your turn.", taskName)
	case UrgencyDueToday:
		body = fmt.Sprintf("It's your turn to do the %s today.", taskName)
	default:
		body = fmt.Sprintf("It's your turn to do the %s.", taskName)
	}
	return title, body
}

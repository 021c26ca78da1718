// Package chore computes who owns a rotating household task, how urgent it
// is, and who comes next. Every function here is pure: callers pass the task,
// the roster and the current time, and persist whatever comes back.
package chore

import (
	"fmt"
	"time"

	"github.com/dukerupert/rota/internal/model"
)

type Urgency string

const (
	UrgencyManual   Urgency = "manual"
	UrgencyOverdue  Urgency = "overdue"
	UrgencyDueToday Urgency = "due-today"
	UrgencyUpcoming Urgency = "upcoming"
)

// DefaultForecast is the number of turns UpcomingRotation returns when the
// caller does not ask for a specific count.
const DefaultForecast = 8

// UnknownMember is shown for rotation ids that are no longer on the roster.
const UnknownMember = "Unknown"

// Turn is one projected entry of the permanent rotation.
type Turn struct {
	MemberID      string     `json:"member_id"`
	Name          string     `json:"name"`
	TentativeDate *time.Time `json:"tentative_date"`
}

// CurrentAssignee returns the member responsible for the task right now. A
// pending swap wins over the rotation pointer. The second result is false
// when nobody is in the rotation, even if a swap is still recorded.
func CurrentAssignee(t model.Task) (string, bool) {
	if len(t.Rotation) == 0 {
		return "", false
	}
	if t.TemporarySwap != nil {
		return t.TemporarySwap.StandIn, true
	}
	return rotationAssignee(t)
}

// rotationAssignee resolves the bare rotation pointer, ignoring any swap.
func rotationAssignee(t model.Task) (string, bool) {
	n := len(t.Rotation)
	if n == 0 {
		return "", false
	}
	return t.Rotation[normalizeIndex(t.CurrentIndex, n)], true
}

// NextDueDate returns when the task is next due. A task that was never
// completed is due immediately. Manual tasks have no due date.
func NextDueDate(t model.Task, now time.Time) (time.Time, bool) {
	if t.FrequencyDays == nil {
		return time.Time{}, false
	}
	if t.LastCompletedDate == nil {
		return now, true
	}
	return t.LastCompletedDate.In(now.Location()).AddDate(0, 0, *t.FrequencyDays), true
}

// DaysUntilDue is the calendar-day offset between today and the due date in
// now's location: negative when overdue, zero when due today.
func DaysUntilDue(t model.Task, now time.Time) (int, bool) {
	due, ok := NextDueDate(t, now)
	if !ok {
		return 0, false
	}
	return daysBetween(now, due.In(now.Location())), true
}

// GetUrgency classifies the task relative to today's date.
func GetUrgency(t model.Task, now time.Time) Urgency {
	days, ok := DaysUntilDue(t, now)
	if !ok {
		return UrgencyManual
	}
	switch {
	case days < 0:
		return UrgencyOverdue
	case days == 0:
		return UrgencyDueToday
	default:
		return UrgencyUpcoming
	}
}

// DueText renders the relative due label shown next to a task.
func DueText(t model.Task, now time.Time) string {
	days, ok := DaysUntilDue(t, now)
	if !ok {
		return "when needed"
	}
	return FormatDays(days)
}

// FormatDays turns a day offset into its label.
func FormatDays(days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("%d days overdue", -days)
	case days == -1:
		return "yesterday"
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	default:
		return fmt.Sprintf("in %d days", days)
	}
}

// UpcomingRotation forecasts the next count turns of the permanent rotation.
// It deliberately ignores any temporary swap. Tentative dates are projected
// from the last completion (or now) in steps of the task's frequency and are
// omitted for manual tasks. The result wraps around the rotation and has
// exactly count entries; it is empty when nobody is in the rotation or count
// is not positive.
func UpcomingRotation(t model.Task, members []model.Member, count int, now time.Time) []Turn {
	n := len(t.Rotation)
	if n == 0 || count <= 0 {
		return []Turn{}
	}

	anchor := now
	if t.LastCompletedDate != nil {
		anchor = t.LastCompletedDate.In(now.Location())
	}

	turns := make([]Turn, 0, count)
	for i := 0; i < count; i++ {
		id := t.Rotation[normalizeIndex(t.CurrentIndex+i, n)]
		turn := Turn{MemberID: id, Name: MemberName(members, id)}
		if t.FrequencyDays != nil {
			d := anchor.AddDate(0, 0, *t.FrequencyDays*i)
			turn.TentativeDate = &d
		}
		turns = append(turns, turn)
	}
	return turns
}

// MemberName looks up a display name, falling back to UnknownMember for ids
// that have left the roster.
func MemberName(members []model.Member, id string) string {
	for _, m := range members {
		if m.ID == id {
			if m.DisplayName == "" {
				return UnknownMember
			}
			return m.DisplayName
		}
	}
	return UnknownMember
}

func normalizeIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return ((i % n) + n) % n
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b using their wall-clock dates,
// so DST transitions never produce fractional days.
func daysBetween(a, b time.Time) int {
	from := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

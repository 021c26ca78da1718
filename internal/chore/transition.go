package chore

import (
	"errors"
	"time"

	"github.com/dukerupert/rota/internal/model"
)

var (
	// ErrEmptyRotation is returned when an operation needs somebody in the rotation.
	ErrEmptyRotation = errors.New("task has no one in rotation")
	// ErrDuplicateMember is returned when a rotation lists the same member twice.
	ErrDuplicateMember = errors.New("rotation contains a member more than once")
	// ErrInvalidFrequency is returned for a frequency below one day.
	ErrInvalidFrequency = errors.New("frequency must be at least 1 day")
)

// Complete hands the task to the next member in rotation and records the
// completion. Any pending swap and manual reminder are cleared.
func Complete(t model.Task, by model.Member, now time.Time) (model.Task, error) {
	n := len(t.Rotation)
	if n == 0 {
		return t, ErrEmptyRotation
	}

	next := t.Clone()
	next.CurrentIndex = normalizeIndex(t.CurrentIndex+1, n)
	completedAt := now
	next.LastCompletedDate = &completedAt
	next.LastCompletedBy = by.DisplayName
	next.TemporarySwap = nil
	next.ManualReminderSent = false
	next.History = PushHistory(t.History, model.HistoryEntry{
		MemberID: by.ID,
		Name:     by.DisplayName,
		Date:     now,
	})
	return next, nil
}

// SetRotation replaces the turn order and re-normalizes the pointer. An empty
// rotation is allowed and leaves the task unassigned, dropping any swap.
func SetRotation(t model.Task, rotation []string) (model.Task, error) {
	seen := make(map[string]struct{}, len(rotation))
	for _, id := range rotation {
		if _, dup := seen[id]; dup {
			return t, ErrDuplicateMember
		}
		seen[id] = struct{}{}
	}

	next := t.Clone()
	next.Rotation = append([]string{}, rotation...)
	next.CurrentIndex = normalizeIndex(t.CurrentIndex, max(len(rotation), 1))
	if len(rotation) == 0 {
		next.TemporarySwap = nil
	}
	return next, nil
}

// SetFrequency changes the cadence. A nil frequency makes the task manual.
func SetFrequency(t model.Task, days *int) (model.Task, error) {
	if days != nil && *days < 1 {
		return t, ErrInvalidFrequency
	}
	next := t.Clone()
	if days == nil {
		next.FrequencyDays = nil
	} else {
		d := *days
		next.FrequencyDays = &d
	}
	return next, nil
}

// Override gives the current turn to standIn once. The original assignee is
// always taken from the rotation pointer, never from an earlier swap, so
// repeated overrides do not compound.
func Override(t model.Task, standIn string) (model.Task, error) {
	original, ok := rotationAssignee(t)
	if !ok {
		return t, ErrEmptyRotation
	}
	next := t.Clone()
	next.TemporarySwap = &model.TemporarySwap{
		OriginalAssignee: original,
		StandIn:          standIn,
	}
	return next, nil
}

// RemoveMember strips memberID from every rotation, keeps each pointer valid
// and drops any swap that mentions the member.
func RemoveMember(tasks []model.Task, memberID string) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		next := t.Clone()
		rotation := make([]string, 0, len(t.Rotation))
		for _, id := range t.Rotation {
			if id != memberID {
				rotation = append(rotation, id)
			}
		}
		next.Rotation = rotation
		next.CurrentIndex = normalizeIndex(t.CurrentIndex, len(rotation))
		if s := t.TemporarySwap; s != nil && (s.OriginalAssignee == memberID || s.StandIn == memberID) {
			next.TemporarySwap = nil
		}
		out = append(out, next)
	}
	return out
}

// MarkReminderSent records that the pending turn has been manually nudged.
func MarkReminderSent(t model.Task) model.Task {
	next := t.Clone()
	next.ManualReminderSent = true
	return next
}

// ResetReminders clears the manual reminder flag on every task. The second
// result reports whether any flag was actually set.
func ResetReminders(tasks []model.Task) ([]model.Task, bool) {
	changed := false
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		next := t.Clone()
		if next.ManualReminderSent {
			next.ManualReminderSent = false
			changed = true
		}
		out = append(out, next)
	}
	return out, changed
}

package model

import "time"

type Task struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Icon               string         `json:"icon"`
	Rotation           []string       `json:"rotation"`
	CurrentIndex       int            `json:"current_index"`
	FrequencyDays      *int           `json:"frequency_days"`
	LastCompletedDate  *time.Time     `json:"last_completed_date"`
	LastCompletedBy    string         `json:"last_completed_by,omitempty"`
	History            []HistoryEntry `json:"history"`
	TemporarySwap      *TemporarySwap `json:"temporary_swap"`
	ManualReminderSent bool           `json:"manual_reminder_sent"`
}

// TemporarySwap hands the current turn to StandIn without moving the rotation pointer.
type TemporarySwap struct {
	OriginalAssignee string `json:"original_assignee"`
	StandIn          string `json:"stand_in"`
}

type HistoryEntry struct {
	MemberID string    `json:"member_id"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
}

// Clone returns a deep copy so transitions never alias the caller's slices or pointers.
func (t Task) Clone() Task {
	c := t
	if t.Rotation != nil {
		c.Rotation = append([]string{}, t.Rotation...)
	}
	if t.History != nil {
		c.History = append([]HistoryEntry{}, t.History...)
	}
	if t.FrequencyDays != nil {
		f := *t.FrequencyDays
		c.FrequencyDays = &f
	}
	if t.LastCompletedDate != nil {
		d := *t.LastCompletedDate
		c.LastCompletedDate = &d
	}
	if t.TemporarySwap != nil {
		s := *t.TemporarySwap
		c.TemporarySwap = &s
	}
	return c
}

// Days is a convenience for building a FrequencyDays value.
func Days(n int) *int {
	return &n
}

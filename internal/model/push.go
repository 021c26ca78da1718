package model

import "time"

// Notification kinds, used as the push payload tag prefix.
const (
	NotifTypeTaskDue        = "task_due"
	NotifTypeManualReminder = "manual_reminder"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	MemberID   string    `json:"member_id"`
	GroupID    string    `json:"group_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// SweepRun records one execution of the daily reminder sweep.
type SweepRun struct {
	ID                int64     `json:"id"`
	Trigger           string    `json:"trigger"`
	Groups            int       `json:"groups"`
	TasksDue          int       `json:"tasks_due"`
	NotificationsSent int       `json:"notifications_sent"`
	Failures          int       `json:"failures"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// Package sweep runs the daily reminder pass over every group: it nudges the
// assignee of each scheduled task that is due or overdue, then re-arms the
// manual remind button everywhere.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/rota/internal/chore"
	"github.com/dukerupert/rota/internal/model"
	"github.com/dukerupert/rota/internal/push"
	"github.com/dukerupert/rota/internal/store"
	"github.com/dukerupert/rota/internal/websocket"
)

// Triggers recorded with each run.
const (
	TriggerScheduler = "scheduler"
	TriggerHTTP      = "http"
	TriggerCLI       = "cli"
)

// Report summarizes one sweep.
type Report struct {
	Groups            int `json:"groups"`
	TasksDue          int `json:"tasks_due"`
	NotificationsSent int `json:"notifications_sent"`
	Failures          int `json:"failures"`
}

type Sweeper struct {
	mu       sync.Mutex
	groups   *store.GroupStore
	runs     *store.SweepStore
	notifier push.Notifier
	hub      *websocket.Hub
	logger   *slog.Logger
}

// NewSweeper builds a sweeper. hub may be nil when nothing is listening.
func NewSweeper(groups *store.GroupStore, runs *store.SweepStore, notifier push.Notifier, hub *websocket.Hub, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		groups:   groups,
		runs:     runs,
		notifier: notifier,
		hub:      hub,
		logger:   logger.With("component", "sweep"),
	}
}

// Run sweeps every group once. Runs are serialized; running twice on the same
// day sends the reminders again, which is tolerated.
func (s *Sweeper) Run(ctx context.Context, now time.Time, trigger string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	ids, err := s.groups.ListIDs()
	if err != nil {
		return Report{}, fmt.Errorf("list groups: %w", err)
	}

	var rep Report
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := s.sweepGroup(ctx, id, now, &rep); err != nil {
			s.logger.Error("sweep group", "group_id", id, "error", err)
			rep.Failures++
			continue
		}
		rep.Groups++
	}

	_, err = s.runs.Record(model.SweepRun{
		Trigger:           trigger,
		Groups:            rep.Groups,
		TasksDue:          rep.TasksDue,
		NotificationsSent: rep.NotificationsSent,
		Failures:          rep.Failures,
		StartedAt:         started,
		FinishedAt:        time.Now(),
	})
	if err != nil {
		s.logger.Error("record sweep run", "error", err)
	}

	s.logger.Info("sweep finished",
		"trigger", trigger,
		"groups", rep.Groups,
		"tasks_due", rep.TasksDue,
		"sent", rep.NotificationsSent,
		"failures", rep.Failures,
		"duration", time.Since(started),
	)
	return rep, nil
}

func (s *Sweeper) sweepGroup(ctx context.Context, groupID string, now time.Time, rep *Report) error {
	g, err := s.groups.GetByID(groupID)
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}

	for _, t := range g.Tasks {
		u, due := chore.DueForReminder(t, now)
		if !due {
			continue
		}
		assignee, ok := chore.CurrentAssignee(t)
		if !ok {
			continue
		}
		member := g.Member(assignee)
		if member == nil {
			continue
		}
		rep.TasksDue++

		title, body := chore.ReminderMessage(t.Name, u)
		res, err := s.notifier.Notify(ctx, g.ID, *member, push.Payload{
			Title: title,
			Body:  body,
			URL:   "/",
			Tag:   model.NotifTypeTaskDue + "-" + t.ID,
		})
		switch {
		case errors.Is(err, push.ErrNoDevices):
			s.logger.Debug("assignee has no devices", "group_id", g.ID, "task_id", t.ID, "member_id", member.ID)
		case err != nil:
			s.logger.Error("notify assignee", "group_id", g.ID, "task_id", t.ID, "error", err)
			rep.Failures++
		case res.Sent == 0:
			rep.Failures++
		default:
			rep.NotificationsSent++
		}
	}

	return s.resetReminders(g)
}

// resetReminders clears every manual reminder flag in one write.
func (s *Sweeper) resetReminders(g *model.Group) error {
	if _, changed := chore.ResetReminders(g.Tasks); !changed {
		return nil
	}
	_, err := s.groups.Update(g.ID, func(g *model.Group) error {
		g.Tasks, _ = chore.ResetReminders(g.Tasks)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reset reminders: %w", err)
	}
	if s.hub != nil {
		s.hub.Broadcast(g.ID, websocket.NewMessage("task", "reminders_reset", "", nil))
	}
	return nil
}

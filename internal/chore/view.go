package chore

import (
	"time"

	"github.com/dukerupert/rota/internal/model"
)

// BoardForecast is how many upcoming turns a task card shows.
const BoardForecast = 6

type TaskView struct {
	model.Task
	AssigneeID   string     `json:"assignee_id,omitempty"`
	AssigneeName string     `json:"assignee_name,omitempty"`
	Swapped      bool       `json:"swapped"`
	Urgency      Urgency    `json:"urgency"`
	DueDate      *time.Time `json:"due_date"`
	DaysUntilDue *int       `json:"days_until_due"`
	DueText      string     `json:"due_text"`
	Upcoming     []Turn     `json:"upcoming"`
}

// BuildView derives the read-only card for a task.
func BuildView(t model.Task, members []model.Member, now time.Time, forecast int) TaskView {
	v := TaskView{
		Task:     t,
		Swapped:  t.TemporarySwap != nil && len(t.Rotation) > 0,
		Urgency:  GetUrgency(t, now),
		DueText:  DueText(t, now),
		Upcoming: UpcomingRotation(t, members, forecast, now),
	}
	if id, ok := CurrentAssignee(t); ok {
		v.AssigneeID = id
		v.AssigneeName = MemberName(members, id)
	}
	if due, ok := NextDueDate(t, now); ok {
		d := startOfDay(due.In(now.Location()))
		v.DueDate = &d
	}
	if days, ok := DaysUntilDue(t, now); ok {
		v.DaysUntilDue = &days
	}
	return v
}

func BuildViews(tasks []model.Task, members []model.Member, now time.Time, forecast int) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, BuildView(t, members, now, forecast))
	}
	return views
}

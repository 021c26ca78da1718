package handler

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/chore"
	"github.com/dukerupert/rota/internal/model"
	"github.com/dukerupert/rota/internal/push"
	"github.com/dukerupert/rota/internal/store"
	"github.com/dukerupert/rota/internal/websocket"
)

// maxScheduleCount caps the forecast length of the schedule endpoint.
const maxScheduleCount = 30

type TaskHandler struct {
	broadcaster
	groups   *store.GroupStore
	notifier push.Notifier
	now      clock
	logger   *slog.Logger
}

func NewTaskHandler(gs *store.GroupStore, notifier push.Notifier, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		broadcaster: broadcaster{hub: hub},
		groups:      gs,
		notifier:    notifier,
		now:         newClock(loc),
		logger:      logger.With("component", "task"),
	}
}

// updateTask applies fn to the task named in the path and returns the
// resulting view.
func (h *TaskHandler) updateTask(r *http.Request, fn func(g *model.Group, t model.Task) (model.Task, error)) (*model.Group, chore.TaskView, error) {
	taskID := r.PathValue("task_id")
	var view chore.TaskView
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		t := g.Task(taskID)
		if t == nil {
			return errTaskNotFound
		}
		next, err := fn(g, *t)
		if err != nil {
			return err
		}
		*t = next
		view = chore.BuildView(next, g.Members, h.now(), chore.BoardForecast)
		return nil
	})
	return g, view, err
}

// List handles GET /api/groups/{group_id}/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	g := loadGroup(w, r, h.groups, h.logger)
	if g == nil {
		return
	}
	writeJSON(w, http.StatusOK, chore.BuildViews(g.Tasks, g.Members, h.now(), chore.BoardForecast))
}

type createTaskRequest struct {
	Name          string   `json:"name"`
	Icon          string   `json:"icon"`
	FrequencyDays *int     `json:"frequency_days"`
	Rotation      []string `json:"rotation"`
}

// Create handles POST /api/groups/{group_id}/tasks. Without an explicit
// rotation the task starts with every current member.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := cleanName(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	var view chore.TaskView
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		rotation := req.Rotation
		if rotation == nil {
			for _, m := range g.Members {
				rotation = append(rotation, m.ID)
			}
		}
		if err := requireMembers(g, rotation); err != nil {
			return err
		}

		t := model.Task{
			ID:      uuid.NewString(),
			Name:    name,
			Icon:    strings.TrimSpace(req.Icon),
			History: []model.HistoryEntry{},
		}
		if t.Icon == "" {
			t.Icon = "✅"
		}
		t, err := chore.SetRotation(t, rotation)
		if err != nil {
			return err
		}
		if t, err = chore.SetFrequency(t, req.FrequencyDays); err != nil {
			return err
		}
		g.Tasks = append(g.Tasks, t)
		view = chore.BuildView(t, g.Members, h.now(), chore.BoardForecast)
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to create task")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("task", "created", view.ID, nil))
	writeJSON(w, http.StatusCreated, view)
}

// Delete handles DELETE /api/groups/{group_id}/tasks/{task_id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		for i := range g.Tasks {
			if g.Tasks[i].ID == taskID {
				g.Tasks = append(g.Tasks[:i:i], g.Tasks[i+1:]...)
				return nil
			}
		}
		return errTaskNotFound
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to delete task")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("task", "deleted", taskID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Schedule handles GET /api/groups/{group_id}/tasks/{task_id}/schedule?count=N
func (h *TaskHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	count := chore.DefaultForecast
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "count must be a positive integer"})
			return
		}
		count = min(n, maxScheduleCount)
	}

	g := loadGroup(w, r, h.groups, h.logger)
	if g == nil {
		return
	}
	t := g.Task(r.PathValue("task_id"))
	if t == nil {
		writeError(w, h.logger, errTaskNotFound, "")
		return
	}
	writeJSON(w, http.StatusOK, chore.BuildView(*t, g.Members, h.now(), count))
}

// Complete handles POST /api/groups/{group_id}/tasks/{task_id}/complete. Only
// the member whose turn it is may complete the task.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())

	g, view, err := h.updateTask(r, func(g *model.Group, t model.Task) (model.Task, error) {
		assignee, ok := chore.CurrentAssignee(t)
		if !ok {
			return t, chore.ErrEmptyRotation
		}
		if assignee != uid {
			return t, errStatus(http.StatusForbidden, "it is not your turn")
		}
		by := g.Member(uid)
		if by == nil {
			return t, errMemberNotFound
		}
		return chore.Complete(t, *by, h.now())
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to complete task")
		return
	}

	h.logger.Info("task completed", "group_id", g.ID, "task_id", view.ID, "by", uid, "next", view.AssigneeID)
	h.broadcast(g.ID, websocket.NewMessage("task", "completed", view.ID, map[string]any{"by": uid}))
	writeJSON(w, http.StatusOK, view)
}

type overrideRequest struct {
	StandIn string `json:"stand_in"`
}

// Override handles POST /api/groups/{group_id}/tasks/{task_id}/override
func (h *TaskHandler) Override(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, view, err := h.updateTask(r, func(g *model.Group, t model.Task) (model.Task, error) {
		if g.Member(req.StandIn) == nil {
			return t, errStatus(http.StatusBadRequest, "stand_in must be a group member")
		}
		return chore.Override(t, req.StandIn)
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to override task")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("task", "overridden", view.ID, map[string]any{"stand_in": req.StandIn}))
	writeJSON(w, http.StatusOK, view)
}

type rotationRequest struct {
	Rotation []string `json:"rotation"`
}

// SetRotation handles PUT /api/groups/{group_id}/tasks/{task_id}/rotation
func (h *TaskHandler) SetRotation(w http.ResponseWriter, r *http.Request) {
	var req rotationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Rotation) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rotation must include at least one member"})
		return
	}

	g, view, err := h.updateTask(r, func(g *model.Group, t model.Task) (model.Task, error) {
		if err := requireMembers(g, req.Rotation); err != nil {
			return t, err
		}
		return chore.SetRotation(t, req.Rotation)
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to set rotation")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("task", "rotation_updated", view.ID, nil))
	writeJSON(w, http.StatusOK, view)
}

type frequencyRequest struct {
	FrequencyDays *int `json:"frequency_days"`
}

// SetFrequency handles PUT /api/groups/{group_id}/tasks/{task_id}/frequency.
// A null frequency turns the task into a manual one.
func (h *TaskHandler) SetFrequency(w http.ResponseWriter, r *http.Request) {
	var req frequencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, view, err := h.updateTask(r, func(g *model.Group, t model.Task) (model.Task, error) {
		return chore.SetFrequency(t, req.FrequencyDays)
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to set frequency")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("task", "frequency_updated", view.ID, nil))
	writeJSON(w, http.StatusOK, view)
}

// Remind handles POST /api/groups/{group_id}/tasks/{task_id}/remind. The
// notification goes out before the flag is stored, so a failed delivery
// leaves the button available.
func (h *TaskHandler) Remind(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := auth.UserID(ctx)
	now := h.now()

	g := loadGroup(w, r, h.groups, h.logger)
	if g == nil {
		return
	}
	t := g.Task(r.PathValue("task_id"))
	if t == nil {
		writeError(w, h.logger, errTaskNotFound, "")
		return
	}

	assigneeID, err := chore.CheckManualReminder(*t, uid, now)
	if err != nil {
		writeError(w, h.logger, err, "failed to check reminder")
		return
	}
	assignee := g.Member(assigneeID)
	if assignee == nil {
		writeError(w, h.logger, errMemberNotFound, "")
		return
	}

	title, body := chore.ReminderMessage(t.Name, chore.GetUrgency(*t, now))
	res, err := h.notifier.Notify(ctx, g.ID, *assignee, push.Payload{
		Title: title,
		Body:  body,
		URL:   "/",
		Tag:   model.NotifTypeManualReminder + "-" + t.ID,
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to send reminder")
		return
	}
	if res.Sent == 0 {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "reminder could not be delivered"})
		return
	}

	// A concurrent reminder may have recorded the flag while this one was
	// being delivered. Both went out, so this one succeeds too.
	var concurrent bool
	g, view, err := h.updateTask(r, func(_ *model.Group, t model.Task) (model.Task, error) {
		if t.ManualReminderSent {
			concurrent = true
			return t, nil
		}
		return chore.MarkReminderSent(t), nil
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to record reminder")
		return
	}

	h.logger.Info("manual reminder sent", "group_id", g.ID, "task_id", view.ID, "from", uid, "to", assigneeID, "concurrent", concurrent)
	if !concurrent {
		h.broadcast(g.ID, websocket.NewMessage("task", "reminded", view.ID, nil))
	}
	writeJSON(w, http.StatusOK, view)
}

type historyRow struct {
	TaskID   string    `json:"task_id"`
	TaskName string    `json:"task_name"`
	TaskIcon string    `json:"task_icon"`
	MemberID string    `json:"member_id"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
}

// History handles GET /api/groups/{group_id}/history?task_id=
func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	g := loadGroup(w, r, h.groups, h.logger)
	if g == nil {
		return
	}
	filter := r.URL.Query().Get("task_id")

	rows := []historyRow{}
	for _, t := range g.Tasks {
		if filter != "" && t.ID != filter {
			continue
		}
		for _, e := range t.History {
			rows = append(rows, historyRow{
				TaskID:   t.ID,
				TaskName: t.Name,
				TaskIcon: t.Icon,
				MemberID: e.MemberID,
				Name:     e.Name,
				Date:     e.Date,
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.After(rows[j].Date) })
	writeJSON(w, http.StatusOK, rows)
}

func requireMembers(g *model.Group, ids []string) error {
	for _, id := range ids {
		if g.Member(id) == nil {
			return errStatus(http.StatusBadRequest, "rotation includes someone who is not a group member")
		}
	}
	return nil
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/chore"
	"github.com/dukerupert/rota/internal/database"
	"github.com/dukerupert/rota/internal/middleware"
	"github.com/dukerupert/rota/internal/model"
	"github.com/dukerupert/rota/internal/push"
	"github.com/dukerupert/rota/internal/sweep"
)

type fcmSend struct {
	tokens  []string
	payload push.Payload
}

type fakeFCM struct {
	mu    sync.Mutex
	sends []fcmSend
	// onSend runs during delivery, outside the lock.
	onSend func()
}

func (f *fakeFCM) SendMulticast(_ context.Context, tokens []string, payload push.Payload) (push.MulticastResult, error) {
	f.mu.Lock()
	f.sends = append(f.sends, fcmSend{tokens: append([]string{}, tokens...), payload: payload})
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return push.MulticastResult{SuccessCount: len(tokens)}, nil
}

func (f *fakeFCM) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type testServer struct {
	t       *testing.T
	srv     *Server
	handler http.Handler
	fcm     *fakeFCM
}

func newTestServer(t *testing.T, sweepSecret string) *testServer {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := middleware.HashSecret(sweepSecret)
	require.NoError(t, err)

	fcm := &fakeFCM{}
	srv := New(db, Options{
		Location:        time.UTC,
		Verifier:        auth.HeaderVerifier{},
		FCM:             fcm,
		SweepSecretHash: hash,
		SweepHour:       9,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &testServer{t: t, srv: srv, handler: srv.Router(), fcm: fcm}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type groupJSON struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	InviteCode string           `json:"invite_code"`
	AdminID    string           `json:"admin_id"`
	IsAdmin    bool             `json:"is_admin"`
	Members    []model.Member   `json:"members"`
	Tasks      []chore.TaskView `json:"tasks"`
}

func (g groupJSON) task(id string) *chore.TaskView {
	for i := range g.Tasks {
		if g.Tasks[i].ID == id {
			return &g.Tasks[i]
		}
	}
	return nil
}

// household creates a group administered by u1 and has u2 join it. It
// returns the base path of the group.
func (ts *testServer) household() (string, groupJSON) {
	ts.t.Helper()
	rec := ts.do("POST", "/api/groups", "u1:Ada", map[string]string{"name": "Flat 4B"})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	g := decode[groupJSON](ts.t, rec)

	rec = ts.do("POST", "/api/groups/join", "u2:Grace", map[string]string{"invite_code": g.InviteCode})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	return "/api/groups/" + g.ID, decode[groupJSON](ts.t, rec)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	rec := ts.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestIdentityRequired(t *testing.T) {
	ts := newTestServer(t, "")
	assert.Equal(t, http.StatusUnauthorized, ts.do("GET", "/api/me/groups", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do("POST", "/api/groups", "", map[string]string{}).Code)
}

func TestCreateJoinAndGet(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do("POST", "/api/groups", "u1:Ada", map[string]string{"name": "  Flat 4B "})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[groupJSON](t, rec)
	assert.Equal(t, "Flat 4B", created.Name)
	assert.Equal(t, "u1", created.AdminID)
	assert.True(t, created.IsAdmin)
	assert.Len(t, created.InviteCode, 6)
	require.Len(t, created.Tasks, 2)
	assert.NotNil(t, created.task("trash"))
	assert.NotNil(t, created.task("bathroom"))

	path := "/api/groups/" + created.ID
	for range 2 {
		rec = ts.do("POST", "/api/groups/join", "u2:Grace", map[string]string{"invite_code": created.InviteCode})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[groupJSON](t, rec).Members, 2, "joining twice is a no-op")
	}

	rec = ts.do("GET", path, "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[groupJSON](t, rec)
	assert.False(t, got.IsAdmin)
	for _, m := range got.Members {
		assert.Empty(t, m.DeviceTokens)
	}

	assert.Equal(t, http.StatusNotFound, ts.do("GET", path, "u3", nil).Code, "non-members cannot see the group")

	rec = ts.do("GET", "/api/me/groups", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]model.GroupSummary](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, 2, mine[0].MemberCount)
	assert.False(t, mine[0].IsAdmin)
}

func TestJoinRejectsBadCodes(t *testing.T) {
	ts := newTestServer(t, "")
	assert.Equal(t, http.StatusBadRequest, ts.do("POST", "/api/groups/join", "u2", map[string]string{"invite_code": " "}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do("POST", "/api/groups/join", "u2", map[string]string{"invite_code": "ZZZZZZ"}).Code)
}

func TestAdminOnlyRoutes(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	cases := []struct {
		method, path string
		body         any
	}{
		{"PUT", path, map[string]string{"name": "Mine now"}},
		{"POST", path + "/tasks", map[string]string{"name": "Dishes"}},
		{"DELETE", path + "/tasks/trash", nil},
		{"POST", path + "/tasks/trash/override", map[string]string{"stand_in": "u2"}},
		{"PUT", path + "/tasks/trash/rotation", map[string][]string{"rotation": {"u2"}}},
		{"PUT", path + "/tasks/bathroom/frequency", map[string]int{"frequency_days": 3}},
	}
	for _, tc := range cases {
		rec := ts.do(tc.method, tc.path, "u2", tc.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestCompleteOnlyByCurrentAssignee(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	rec := ts.do("PUT", path+"/tasks/bathroom/rotation", "u1", map[string][]string{"rotation": {"u1", "u2"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do("POST", path+"/tasks/bathroom/complete", "u2", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do("POST", path+"/tasks/bathroom/complete", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[chore.TaskView](t, rec)
	assert.Equal(t, "u2", view.AssigneeID)
	assert.Equal(t, 1, view.CurrentIndex)
	assert.Equal(t, chore.UrgencyUpcoming, view.Urgency)
	require.Len(t, view.History, 1)
	assert.Equal(t, "Ada", view.History[0].Name)

	assert.Equal(t, http.StatusNotFound, ts.do("POST", path+"/tasks/nope/complete", "u1", nil).Code)
}

func TestOverrideHandsTurnToStandIn(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	rec := ts.do("PUT", path+"/tasks/trash/rotation", "u1", map[string][]string{"rotation": {"u1", "u2"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do("POST", path+"/tasks/trash/override", "u1", map[string]string{"stand_in": "u3"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("POST", path+"/tasks/trash/override", "u1", map[string]string{"stand_in": "u2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[chore.TaskView](t, rec)
	assert.Equal(t, "u2", view.AssigneeID)
	assert.True(t, view.Swapped)
	assert.Equal(t, 0, view.CurrentIndex)

	assert.Equal(t, http.StatusForbidden, ts.do("POST", path+"/tasks/trash/complete", "u1", nil).Code)

	rec = ts.do("POST", path+"/tasks/trash/complete", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[chore.TaskView](t, rec)
	assert.False(t, view.Swapped)
	assert.Nil(t, view.TemporarySwap)
	assert.Equal(t, 1, view.CurrentIndex)
}

func TestSetRotationValidation(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	for _, rotation := range [][]string{{}, {"u1", "u1"}, {"u1", "u9"}} {
		rec := ts.do("PUT", path+"/tasks/trash/rotation", "u1", map[string][]string{"rotation": rotation})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "rotation %v", rotation)
	}

	rec := ts.do("PUT", path+"/tasks/trash/rotation", "u1", map[string][]string{"rotation": {"u2", "u1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u2", "u1"}, decode[chore.TaskView](t, rec).Rotation)
}

func TestSetFrequency(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	rec := ts.do("PUT", path+"/tasks/trash/frequency", "u1", map[string]int{"frequency_days": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("PUT", path+"/tasks/trash/frequency", "u1", map[string]int{"frequency_days": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[chore.TaskView](t, rec)
	require.NotNil(t, view.FrequencyDays)
	assert.Equal(t, 3, *view.FrequencyDays)

	rec = ts.do("PUT", path+"/tasks/trash/frequency", "u1", map[string]any{"frequency_days": nil})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[chore.TaskView](t, rec)
	assert.Nil(t, view.FrequencyDays)
	assert.Equal(t, chore.UrgencyManual, view.Urgency)
}

func TestCreateAndDeleteTask(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	rec := ts.do("POST", path+"/tasks", "u1", map[string]any{"name": "Dishes", "frequency_days": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[chore.TaskView](t, rec)
	assert.Equal(t, []string{"u1", "u2"}, view.Rotation, "defaults to every member")
	assert.Equal(t, "✅", view.Icon)

	rec = ts.do("POST", path+"/tasks", "u1", map[string]any{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, ts.do("DELETE", path+"/tasks/"+view.ID, "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do("DELETE", path+"/tasks/"+view.ID, "u1", nil).Code)
}

func TestScheduleCount(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	for _, q := range []string{"0", "-2", "abc"} {
		assert.Equal(t, http.StatusBadRequest, ts.do("GET", path+"/tasks/bathroom/schedule?count="+q, "u2", nil).Code, q)
	}

	rec := ts.do("GET", path+"/tasks/bathroom/schedule", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[chore.TaskView](t, rec).Upcoming, chore.DefaultForecast)

	rec = ts.do("GET", path+"/tasks/bathroom/schedule?count=100", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[chore.TaskView](t, rec).Upcoming, 30)
}

func TestRemind(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	rec := ts.do("POST", path+"/tasks/trash/remind", "u1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "cannot remind yourself")

	rec = ts.do("POST", path+"/tasks/trash/remind", "u2", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "assignee has no devices")
	assert.Equal(t, 0, ts.fcm.count())

	rec = ts.do("POST", path+"/devices", "u1", map[string]string{"token": "tok-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do("POST", path+"/tasks/trash/remind", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[chore.TaskView](t, rec).ManualReminderSent)
	require.Equal(t, 1, ts.fcm.count())
	assert.Equal(t, []string{"tok-1"}, ts.fcm.sends[0].tokens)
	assert.Equal(t, "Reminder: Take Out Trash", ts.fcm.sends[0].payload.Title)

	rec = ts.do("POST", path+"/tasks/trash/remind", "u2", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "one reminder per turn")
	assert.Equal(t, 1, ts.fcm.count())
}

func TestRemindRacingAnotherReminder(t *testing.T) {
	ts := newTestServer(t, "")
	path, g := ts.household()
	require.Equal(t, http.StatusOK, ts.do("POST", path+"/devices", "u1", map[string]string{"token": "tok-1"}).Code)

	// Another reminder for the same turn lands while this one is delivering.
	ts.fcm.onSend = func() {
		_, err := ts.srv.groupStore.Update(g.ID, func(grp *model.Group) error {
			grp.Task("trash").ManualReminderSent = true
			return nil
		})
		require.NoError(t, err)
	}

	rec := ts.do("POST", path+"/tasks/trash/remind", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[chore.TaskView](t, rec).ManualReminderSent)
	assert.Equal(t, 1, ts.fcm.count())
}

func TestRemindNotDue(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	require.Equal(t, http.StatusOK, ts.do("POST", path+"/tasks/bathroom/complete", "u1", nil).Code)

	rec := ts.do("POST", path+"/tasks/bathroom/remind", "u2", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), chore.ErrNotDue.Error())
}

func TestHistoryNewestFirst(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	require.Equal(t, http.StatusOK, ts.do("POST", path+"/tasks/bathroom/complete", "u1", nil).Code)
	require.Equal(t, http.StatusOK, ts.do("POST", path+"/tasks/trash/complete", "u1", nil).Code)

	type row struct {
		TaskID string `json:"task_id"`
		Name   string `json:"name"`
	}
	rec := ts.do("GET", path+"/history", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]row](t, rec)
	require.Len(t, rows, 2)
	assert.Equal(t, "trash", rows[0].TaskID)
	assert.Equal(t, "Ada", rows[0].Name)

	rec = ts.do("GET", path+"/history?task_id=bathroom", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows = decode[[]row](t, rec)
	require.Len(t, rows, 1)
	assert.Equal(t, "bathroom", rows[0].TaskID)
}

func TestShoppingList(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	assert.Equal(t, http.StatusBadRequest, ts.do("POST", path+"/shopping", "u1", map[string]string{"text": "  "}).Code)

	rec := ts.do("POST", path+"/shopping", "u1", map[string]string{"text": "Milk"})
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[model.ShoppingItem](t, rec)
	assert.Equal(t, "Ada", item.AddedByName)

	rec = ts.do("POST", path+"/shopping/"+item.ID+"/claim", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", decode[model.ShoppingItem](t, rec).ClaimedByID)

	rec = ts.do("DELETE", path+"/shopping/"+item.ID+"/claim", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[model.ShoppingItem](t, rec).ClaimedByID)

	rec = ts.do("POST", path+"/shopping/"+item.ID+"/complete", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.ShoppingItem](t, rec).Completed)

	rec = ts.do("GET", path+"/shopping", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.ShoppingItem](t, rec), 1)

	assert.Equal(t, http.StatusNoContent, ts.do("DELETE", path+"/shopping/"+item.ID, "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do("DELETE", path+"/shopping/"+item.ID, "u1", nil).Code)
}

func TestFeedback(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	rec := ts.do("POST", path+"/feedback", "u2", map[string]string{"text": "Buy a new mop"})
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[model.FeedbackItem](t, rec)
	assert.Equal(t, model.FeedbackNew, item.Status)
	assert.Equal(t, "Grace", item.AuthorName)

	rec = ts.do("PUT", path+"/feedback/"+item.ID, "u1", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do("PUT", path+"/feedback/"+item.ID, "u1", map[string]string{"status": "done"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.FeedbackDone, decode[model.FeedbackItem](t, rec).Status)

	rec = ts.do("GET", path+"/feedback", "u2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.FeedbackItem](t, rec), 1)
}

func TestRemoveMember(t *testing.T) {
	ts := newTestServer(t, "")
	path, g := ts.household()
	require.Equal(t, http.StatusOK, ts.do("POST", "/api/groups/join", "u3:Linus", map[string]string{"invite_code": g.InviteCode}).Code)

	require.Equal(t, http.StatusOK, ts.do("PUT", path+"/tasks/trash/rotation", "u1", map[string][]string{"rotation": {"u1", "u2", "u3"}}).Code)
	rec := ts.do("POST", path+"/shopping", "u1", map[string]string{"text": "Bread"})
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[model.ShoppingItem](t, rec)
	require.Equal(t, http.StatusOK, ts.do("POST", path+"/shopping/"+item.ID+"/claim", "u2", nil).Code)

	assert.Equal(t, http.StatusForbidden, ts.do("DELETE", path+"/members/u3", "u2", nil).Code)
	assert.Equal(t, http.StatusConflict, ts.do("DELETE", path+"/members/u1", "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do("DELETE", path+"/members/u9", "u1", nil).Code)

	assert.Equal(t, http.StatusNoContent, ts.do("DELETE", path+"/members/me", "u2", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do("GET", path, "u2", nil).Code)

	rec = ts.do("GET", path, "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[groupJSON](t, rec)
	assert.Len(t, got.Members, 2)
	assert.Equal(t, []string{"u1", "u3"}, got.task("trash").Rotation)

	rec = ts.do("GET", path+"/shopping", "u1", nil)
	items := decode[[]model.ShoppingItem](t, rec)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].ClaimedByID)

	assert.Equal(t, http.StatusNoContent, ts.do("DELETE", path+"/members/u3", "u1", nil).Code)
}

func TestRemovedMemberLosesLiveFeed(t *testing.T) {
	ts := newTestServer(t, "")
	path, g := ts.household()

	httpSrv := httptest.NewServer(ts.handler)
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dial := func(token string) *cws.Conn {
		url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + path + "/ws?access_token=" + token
		conn, _, err := cws.Dial(ctx, url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.CloseNow() })
		return conn
	}
	admin := dial("u1")
	leaving := dial("u2")
	require.Eventually(t, func() bool { return ts.srv.hub.ClientCount(g.ID) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusNoContent, ts.do("DELETE", path+"/members/u2", "u1", nil).Code)

	_, data, err := leaving.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"member_removed"`)

	_, _, err = leaving.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, cws.StatusPolicyViolation, cws.CloseStatus(err))

	_, data, err = admin.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"member_removed"`)
	assert.Eventually(t, func() bool { return ts.srv.hub.ClientCount(g.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	// A former member cannot reconnect.
	_, _, err = cws.Dial(ctx, "ws"+strings.TrimPrefix(httpSrv.URL, "http")+path+"/ws?access_token=u2", nil)
	assert.Error(t, err)
}

func TestUpdateProfile(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	assert.Equal(t, http.StatusBadRequest, ts.do("PUT", path+"/members/me", "u2", map[string]string{"display_name": " "}).Code)

	rec := ts.do("PUT", path+"/members/me", "u2", map[string]string{"display_name": "Grace H"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Grace H", decode[model.Member](t, rec).DisplayName)
}

func TestSweepEndpoint(t *testing.T) {
	ts := newTestServer(t, "s3cret")
	path, _ := ts.household()

	assert.Equal(t, http.StatusUnauthorized, ts.do("POST", "/api/cron/reminders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do("POST", "/api/cron/reminders", "wrong", nil).Code)

	rec := ts.do("GET", "/api/cron/reminders", "s3cret", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decode[sweep.Report](t, rec)
	assert.Equal(t, 1, rep.Groups)
	assert.Equal(t, 1, rep.TasksDue, "the never-completed bathroom is due")
	assert.Equal(t, 0, rep.NotificationsSent)
	assert.Equal(t, 0, rep.Failures)

	require.Equal(t, http.StatusOK, ts.do("POST", path+"/devices", "u1", map[string]string{"token": "tok-1"}).Code)
	require.Equal(t, http.StatusOK, ts.do("POST", path+"/tasks/trash/remind", "u2", nil).Code)

	rec = ts.do("POST", "/api/cron/reminders", "s3cret", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep = decode[sweep.Report](t, rec)
	assert.Equal(t, 1, rep.NotificationsSent)
	assert.Equal(t, 2, ts.fcm.count(), "one manual reminder, one sweep reminder")

	rec = ts.do("GET", path+"/tasks", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	for _, v := range decode[[]chore.TaskView](t, rec) {
		assert.False(t, v.ManualReminderSent, "sweep re-arms %s", v.ID)
	}
}

func TestSweepEndpointDisabledWithoutSecret(t *testing.T) {
	ts := newTestServer(t, "")
	assert.Equal(t, http.StatusForbidden, ts.do("POST", "/api/cron/reminders", "anything", nil).Code)
}

func TestWebPushWithoutVAPID(t *testing.T) {
	ts := newTestServer(t, "")
	path, _ := ts.household()

	rec := ts.do("GET", "/api/push/vapid-key", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string]string](t, rec)["public_key"])

	rec = ts.do("POST", path+"/push/subscribe", "u1", map[string]string{"endpoint": "https://push.example/1", "p256dh": "k", "auth": "a"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJoinIsRateLimited(t *testing.T) {
	ts := newTestServer(t, "")
	var last int
	for range 11 {
		last = ts.do("POST", "/api/groups/join", "u2", map[string]string{"invite_code": "ZZZZZZ"}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

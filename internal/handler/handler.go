package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/chore"
	"github.com/dukerupert/rota/internal/lists"
	"github.com/dukerupert/rota/internal/model"
	"github.com/dukerupert/rota/internal/push"
	"github.com/dukerupert/rota/internal/store"
	"github.com/dukerupert/rota/internal/websocket"
)

const maxBodyBytes = 64 << 10

// statusError carries an HTTP status out of a store update callback.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func errStatus(status int, msg string) error {
	return &statusError{status: status, msg: msg}
}

var (
	errTaskNotFound   = errStatus(http.StatusNotFound, "task not found")
	errMemberNotFound = errStatus(http.StatusNotFound, "member not found")
	errAdminOnly      = errStatus(http.StatusForbidden, "admin only")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return false
	}
	return true
}

// writeError maps domain errors to a status; anything unrecognized is logged
// and reported as fallback with a 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	var se *statusError
	status, msg := http.StatusInternalServerError, fallback
	switch {
	case errors.As(err, &se):
		status, msg = se.status, se.msg
	case errors.Is(err, store.ErrGroupNotFound):
		status, msg = http.StatusNotFound, "group not found"
	case errors.Is(err, chore.ErrDuplicateMember),
		errors.Is(err, chore.ErrInvalidFrequency),
		errors.Is(err, lists.ErrTextRequired),
		errors.Is(err, lists.ErrInvalidStatus):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, chore.ErrEmptyRotation),
		errors.Is(err, chore.ErrReminderAlreadySent),
		errors.Is(err, chore.ErrOwnTurn),
		errors.Is(err, chore.ErrNotDue),
		errors.Is(err, push.ErrNoDevices):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, lists.ErrItemNotFound):
		status, msg = http.StatusNotFound, err.Error()
	default:
		logger.Error(fallback, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// broadcaster is embedded by handlers that publish group changes.
type broadcaster struct {
	hub *websocket.Hub
}

func (b broadcaster) broadcast(groupID string, msg websocket.Message) {
	if b.hub != nil {
		b.hub.Broadcast(groupID, msg)
	}
}

// disconnect closes a former member's live feeds for the group.
func (b broadcaster) disconnect(groupID, memberID string) {
	if b.hub != nil {
		b.hub.DisconnectMember(groupID, memberID)
	}
}

// clock returns the current time in the household's zone.
type clock func() time.Time

func newClock(loc *time.Location) clock {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time { return time.Now().In(loc) }
}

// loadGroup reads the group from the request context, writing the error
// response itself when it returns nil.
func loadGroup(w http.ResponseWriter, r *http.Request, groups *store.GroupStore, logger *slog.Logger) *model.Group {
	g, err := groups.GetByID(auth.GroupID(r.Context()))
	if err != nil {
		writeError(w, logger, err, "failed to get group")
		return nil
	}
	if g == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "group not found"})
		return nil
	}
	return g
}

// publicMembers strips device tokens before a roster leaves the server.
func publicMembers(members []model.Member) []model.Member {
	out := make([]model.Member, len(members))
	for i, m := range members {
		m.DeviceTokens = nil
		out[i] = m
	}
	return out
}

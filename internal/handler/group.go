package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/chore"
	"github.com/dukerupert/rota/internal/model"
	"github.com/dukerupert/rota/internal/store"
	"github.com/dukerupert/rota/internal/websocket"
)

const maxNameLength = 60

type GroupHandler struct {
	broadcaster
	groups *store.GroupStore
	push   *store.PushStore
	now    clock
	logger *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, ps *store.PushStore, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{
		broadcaster: broadcaster{hub: hub},
		groups:      gs,
		push:        ps,
		now:         newClock(loc),
		logger:      logger.With("component", "group"),
	}
}

type groupResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	InviteCode string           `json:"invite_code"`
	AdminID    string           `json:"admin_id"`
	IsAdmin    bool             `json:"is_admin"`
	Members    []model.Member   `json:"members"`
	Tasks      []chore.TaskView `json:"tasks"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (h *GroupHandler) response(g *model.Group, viewerID string) groupResponse {
	return groupResponse{
		ID:         g.ID,
		Name:       g.Name,
		InviteCode: g.InviteCode,
		AdminID:    g.AdminID,
		IsAdmin:    g.IsAdmin(viewerID),
		Members:    publicMembers(g.Members),
		Tasks:      chore.BuildViews(g.Tasks, g.Members, h.now(), chore.BoardForecast),
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > maxNameLength {
		name = string(r[:maxNameLength])
	}
	return name
}

func memberFromIdentity(id auth.Identity) model.Member {
	name := cleanName(id.DisplayName)
	if name == "" {
		name = "Member"
	}
	return model.Member{
		ID:          id.UID,
		DisplayName: name,
		Email:       id.Email,
		PhotoURL:    id.PhotoURL,
	}
}

// ListMine handles GET /api/me/groups
func (h *GroupHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserID(r.Context())

	groups, err := h.groups.ListByMember(uid)
	if err != nil {
		writeError(w, h.logger, err, "failed to list groups")
		return
	}
	out := make([]model.GroupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.GroupSummary{
			ID:          g.ID,
			Name:        g.Name,
			MemberCount: len(g.Members),
			IsAdmin:     g.IsAdmin(uid),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createGroupRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/groups
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	g, err := h.groups.Create(cleanName(req.Name), memberFromIdentity(id))
	if err != nil {
		writeError(w, h.logger, err, "failed to create group")
		return
	}
	h.logger.Info("group created", "group_id", g.ID, "admin_id", g.AdminID)
	writeJSON(w, http.StatusCreated, h.response(g, id.UID))
}

type joinGroupRequest struct {
	InviteCode string `json:"invite_code"`
}

// Join handles POST /api/groups/join. Joining a group twice is a no-op.
func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var req joinGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.InviteCode) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invite_code is required"})
		return
	}

	found, err := h.groups.GetByInviteCode(req.InviteCode)
	if err != nil {
		writeError(w, h.logger, err, "failed to look up invite code")
		return
	}
	if found == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "invalid invite code"})
		return
	}

	joined := false
	g, err := h.groups.Update(found.ID, func(g *model.Group) error {
		if g.Member(id.UID) != nil {
			return nil
		}
		g.Members = append(g.Members, memberFromIdentity(id))
		joined = true
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to join group")
		return
	}

	if joined {
		h.broadcast(g.ID, websocket.NewMessage("member", "joined", id.UID, nil))
	}
	writeJSON(w, http.StatusOK, h.response(g, id.UID))
}

// Get handles GET /api/groups/{group_id}
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	g := loadGroup(w, r, h.groups, h.logger)
	if g == nil {
		return
	}
	writeJSON(w, http.StatusOK, h.response(g, auth.UserID(r.Context())))
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

// Rename handles PUT /api/groups/{group_id}
func (h *GroupHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req renameGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := cleanName(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		g.Name = name
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to rename group")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("group", "updated", g.ID, nil))
	writeJSON(w, http.StatusOK, h.response(g, auth.UserID(r.Context())))
}

// RemoveMember handles DELETE /api/groups/{group_id}/members/{member_id}. The
// admin may remove anyone but themselves; members may only remove themselves.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	callerID := auth.UserID(ctx)
	targetID := r.PathValue("member_id")
	if targetID == "me" {
		targetID = callerID
	}

	g, err := h.groups.Update(auth.GroupID(ctx), func(g *model.Group) error {
		if g.Member(targetID) == nil {
			return errMemberNotFound
		}
		if targetID == g.AdminID {
			return errStatus(http.StatusConflict, "the admin cannot leave the group")
		}
		if targetID != callerID && !g.IsAdmin(callerID) {
			return errAdminOnly
		}

		members := make([]model.Member, 0, len(g.Members))
		for _, m := range g.Members {
			if m.ID != targetID {
				members = append(members, m)
			}
		}
		g.Members = members
		g.Tasks = chore.RemoveMember(g.Tasks, targetID)
		for i := range g.ShoppingList {
			if g.ShoppingList[i].ClaimedByID == targetID {
				g.ShoppingList[i].ClaimedByID = ""
				g.ShoppingList[i].ClaimedByName = ""
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to remove member")
		return
	}

	if err := h.push.DeleteByMember(g.ID, targetID); err != nil {
		h.logger.Error("delete removed member subscriptions", "group_id", g.ID, "member_id", targetID, "error", err)
	}

	h.logger.Info("member removed", "group_id", g.ID, "member_id", targetID, "by", callerID)
	h.broadcast(g.ID, websocket.NewMessage("member", "removed", targetID, nil))
	// Queued after the removal notice, so the removed member still sees it.
	h.disconnect(g.ID, targetID)
	w.WriteHeader(http.StatusNoContent)
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	PhotoURL    *string `json:"photo_url"`
}

// UpdateProfile handles PUT /api/groups/{group_id}/members/me
func (h *GroupHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := auth.UserID(ctx)

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var name string
	if req.DisplayName != nil {
		if name = cleanName(*req.DisplayName); name == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name cannot be empty"})
			return
		}
	}

	var updated model.Member
	g, err := h.groups.Update(auth.GroupID(ctx), func(g *model.Group) error {
		m := g.Member(uid)
		if m == nil {
			return errMemberNotFound
		}
		if req.DisplayName != nil {
			m.DisplayName = name
		}
		if req.PhotoURL != nil {
			m.PhotoURL = strings.TrimSpace(*req.PhotoURL)
		}
		updated = *m
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to update profile")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("member", "updated", uid, nil))
	updated.DeviceTokens = nil
	writeJSON(w, http.StatusOK, updated)
}

type registerDeviceRequest struct {
	Token string `json:"token"`
}

// RegisterDevice handles POST /api/groups/{group_id}/devices
func (h *GroupHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := auth.UserID(ctx)

	var req registerDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	var count int
	_, err := h.groups.Update(auth.GroupID(ctx), func(g *model.Group) error {
		m := g.Member(uid)
		if m == nil {
			return errMemberNotFound
		}
		m.AddDeviceToken(token)
		count = len(m.DeviceTokens)
		return nil
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to register device")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"devices": count})
}

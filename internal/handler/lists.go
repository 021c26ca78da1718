package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/rota/internal/auth"
	"github.com/dukerupert/rota/internal/lists"
	"github.com/dukerupert/rota/internal/model"
	"github.com/dukerupert/rota/internal/store"
	"github.com/dukerupert/rota/internal/websocket"
)

// ListsHandler serves the shared shopping list and the feedback board.
type ListsHandler struct {
	broadcaster
	groups *store.GroupStore
	now    clock
	logger *slog.Logger
}

func NewListsHandler(gs *store.GroupStore, hub *websocket.Hub, loc *time.Location, logger *slog.Logger) *ListsHandler {
	return &ListsHandler{
		broadcaster: broadcaster{hub: hub},
		groups:      gs,
		now:         newClock(loc),
		logger:      logger.With("component", "lists"),
	}
}

// caller returns the requesting member from the loaded group.
func caller(g *model.Group, r *http.Request) (model.Member, error) {
	m := g.Member(auth.UserID(r.Context()))
	if m == nil {
		return model.Member{}, errMemberNotFound
	}
	return *m, nil
}

// ListShopping handles GET /api/groups/{group_id}/shopping
func (h *ListsHandler) ListShopping(w http.ResponseWriter, r *http.Request) {
	g := loadGroup(w, r, h.groups, h.logger)
	if g == nil {
		return
	}
	writeJSON(w, http.StatusOK, g.ShoppingList)
}

type textRequest struct {
	Text string `json:"text"`
}

// AddShopping handles POST /api/groups/{group_id}/shopping
func (h *ListsHandler) AddShopping(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var item model.ShoppingItem
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		by, err := caller(g, r)
		if err != nil {
			return err
		}
		item, err = lists.AddShoppingItem(g, req.Text, by, h.now())
		return err
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to add shopping item")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("shopping_item", "added", item.ID, nil))
	writeJSON(w, http.StatusCreated, item)
}

// updateItem runs a shopping list operation and broadcasts action on success.
func (h *ListsHandler) updateItem(w http.ResponseWriter, r *http.Request, action string, fn func(g *model.Group, id string) (model.ShoppingItem, error)) {
	id := r.PathValue("item_id")
	var item model.ShoppingItem
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		var err error
		item, err = fn(g, id)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to update shopping item")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("shopping_item", action, id, nil))
	writeJSON(w, http.StatusOK, item)
}

// Claim handles POST /api/groups/{group_id}/shopping/{item_id}/claim
func (h *ListsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.updateItem(w, r, "claimed", func(g *model.Group, id string) (model.ShoppingItem, error) {
		by, err := caller(g, r)
		if err != nil {
			return model.ShoppingItem{}, err
		}
		return lists.Claim(g, id, by)
	})
}

// Unclaim handles DELETE /api/groups/{group_id}/shopping/{item_id}/claim
func (h *ListsHandler) Unclaim(w http.ResponseWriter, r *http.Request) {
	h.updateItem(w, r, "unclaimed", lists.Unclaim)
}

// Complete handles POST /api/groups/{group_id}/shopping/{item_id}/complete
func (h *ListsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.updateItem(w, r, "completed", lists.CompleteItem)
}

// Remove handles DELETE /api/groups/{group_id}/shopping/{item_id}
func (h *ListsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("item_id")
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		return lists.RemoveItem(g, id)
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to remove shopping item")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("shopping_item", "removed", id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// ListFeedback handles GET /api/groups/{group_id}/feedback
func (h *ListsHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	g := loadGroup(w, r, h.groups, h.logger)
	if g == nil {
		return
	}
	writeJSON(w, http.StatusOK, g.Feedback)
}

// AddFeedback handles POST /api/groups/{group_id}/feedback
func (h *ListsHandler) AddFeedback(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var item model.FeedbackItem
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		by, err := caller(g, r)
		if err != nil {
			return err
		}
		item, err = lists.AddFeedback(g, req.Text, by, h.now())
		return err
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to add feedback")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("feedback", "added", item.ID, nil))
	writeJSON(w, http.StatusCreated, item)
}

type feedbackStatusRequest struct {
	Status model.FeedbackStatus `json:"status"`
}

// SetFeedbackStatus handles PUT /api/groups/{group_id}/feedback/{item_id}
func (h *ListsHandler) SetFeedbackStatus(w http.ResponseWriter, r *http.Request) {
	var req feedbackStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("item_id")
	var item model.FeedbackItem
	g, err := h.groups.Update(auth.GroupID(r.Context()), func(g *model.Group) error {
		var err error
		item, err = lists.SetFeedbackStatus(g, id, req.Status)
		return err
	})
	if err != nil {
		writeError(w, h.logger, err, "failed to update feedback")
		return
	}

	h.broadcast(g.ID, websocket.NewMessage("feedback", "updated", id, map[string]any{"status": string(item.Status)}))
	writeJSON(w, http.StatusOK, item)
}

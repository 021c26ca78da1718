package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukerupert/rota/internal/chore"
	"github.com/dukerupert/rota/internal/model"
)

// groupDocument is the JSON body stored per group. Scalar fields that need
// indexing (name, invite code, admin) live in their own columns.
type groupDocument struct {
	Members      []model.Member       `json:"members"`
	Tasks        []model.Task         `json:"tasks"`
	ShoppingList []model.ShoppingItem `json:"shopping_list"`
	Feedback     []model.FeedbackItem `json:"feedback"`
}

func encodeDocument(g *model.Group) (string, error) {
	data, err := json.Marshal(groupDocument{
		Members:      g.Members,
		Tasks:        g.Tasks,
		ShoppingList: g.ShoppingList,
		Feedback:     g.Feedback,
	})
	if err != nil {
		return "", fmt.Errorf("encode group document: %w", err)
	}
	return string(data), nil
}

// decodeDocument fills g from a stored document. It never fails: a field of
// the wrong shape is treated as absent and a malformed list element is
// skipped, so one bad entry cannot hide the rest of the group.
func decodeDocument(g *model.Group, data []byte) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("malformed group document", "group_id", g.ID, "error", err)
		raw = nil
	}

	g.Members = decodeList[model.Member](g.ID, "members", raw["members"])
	g.Tasks = decodeList[model.Task](g.ID, "tasks", raw["tasks"])
	g.ShoppingList = decodeList[model.ShoppingItem](g.ID, "shopping_list", raw["shopping_list"])
	g.Feedback = decodeList[model.FeedbackItem](g.ID, "feedback", raw["feedback"])
	normalizeGroup(g)
}

func decodeList[T any](groupID, field string, data json.RawMessage) []T {
	out := []T{}
	if len(data) == 0 {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("group document field is not a list", "group_id", groupID, "field", field)
		return out
	}
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			slog.Warn("skipping malformed entry", "group_id", groupID, "field", field, "index", i, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// normalizeGroup brings a decoded group back within the engine's invariants.
func normalizeGroup(g *model.Group) {
	if g.Name == "" {
		g.Name = "Unnamed Group"
	}
	for i := range g.Tasks {
		normalizeTask(&g.Tasks[i])
	}
	for i := range g.Feedback {
		if !g.Feedback[i].Status.Valid() {
			g.Feedback[i].Status = model.FeedbackNew
		}
	}
}

func normalizeTask(t *model.Task) {
	if t.Rotation == nil {
		t.Rotation = []string{}
	}
	if t.History == nil {
		t.History = []model.HistoryEntry{}
	}
	if len(t.History) > chore.HistoryLimit {
		t.History = t.History[:chore.HistoryLimit]
	}
	if n := len(t.Rotation); n == 0 {
		t.CurrentIndex = 0
	} else {
		t.CurrentIndex = ((t.CurrentIndex % n) + n) % n
	}
	if t.FrequencyDays != nil && *t.FrequencyDays < 1 {
		t.FrequencyDays = nil
	}
	if t.TemporarySwap != nil && (t.TemporarySwap.StandIn == "" || len(t.Rotation) == 0) {
		t.TemporarySwap = nil
	}
}

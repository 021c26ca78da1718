package chore

import "github.com/dukerupert/rota/internal/model"

// HistoryLimit bounds a task's completion log.
const HistoryLimit = 50

// PushHistory returns a new log with e at the front. When the log is full the
// oldest entries fall off the end; the newest are never dropped.
func PushHistory(h []model.HistoryEntry, e model.HistoryEntry) []model.HistoryEntry {
	keep := min(len(h), HistoryLimit-1)
	out := make([]model.HistoryEntry, 0, keep+1)
	out = append(out, e)
	return append(out, h[:keep]...)
}

package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/rota/internal/model"
)

type SweepStore struct {
	db *sql.DB
}

func NewSweepStore(db *sql.DB) *SweepStore {
	return &SweepStore{db: db}
}

const sweepCols = `id, trigger_source, groups_checked, tasks_due, notifications_sent, failures, started_at, finished_at`

func scanSweepRun(scanner interface{ Scan(...any) error }) (*model.SweepRun, error) {
	var r model.SweepRun
	err := scanner.Scan(&r.ID, &r.Trigger, &r.Groups, &r.TasksDue, &r.NotificationsSent, &r.Failures, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SweepStore) Record(run model.SweepRun) (*model.SweepRun, error) {
	result, err := s.db.Exec(
		`INSERT INTO sweep_runs (trigger_source, groups_checked, tasks_due, notifications_sent, failures, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.Trigger, run.Groups, run.TasksDue, run.NotificationsSent, run.Failures, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert sweep run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+sweepCols+` FROM sweep_runs WHERE id = ?`, id)
	return scanSweepRun(row)
}

// Last returns the most recent run, or nil if the sweep never ran.
func (s *SweepStore) Last() (*model.SweepRun, error) {
	row := s.db.QueryRow(`SELECT ` + sweepCols + ` FROM sweep_runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	r, err := scanSweepRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last sweep run: %w", err)
	}
	return r, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/ghostd/internal/model"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteRepository stores the task document in SQLite. SaveTasks is a
// single transaction that replaces every row, matching the
// whole-document contract of Repository.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) LoadTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, notes, date, recurrence, completed_dates, exception_dates,
		       subtask_overlay, series_id, detached_from_id, deadline, estimated_mins,
		       color, importance, created_at
		FROM tasks ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	index := make(map[string]int)
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		index[task.ID] = len(out)
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subRows, err := r.db.QueryContext(ctx, `
		SELECT task_id, id, title, completed, deadline, estimated_mins
		FROM subtasks ORDER BY task_id, position ASC`)
	if err != nil {
		return nil, err
	}
	defer subRows.Close()

	for subRows.Next() {
		var taskID string
		var st model.Subtask
		var completed int
		if err := subRows.Scan(&taskID, &st.ID, &st.Title, &completed, &st.Deadline, &st.EstimatedMins); err != nil {
			return nil, err
		}
		st.Completed = completed == 1
		if at, ok := index[taskID]; ok {
			out[at].Subtasks = append(out[at].Subtasks, st)
		}
	}
	return out, subRows.Err()
}

func (r *SQLiteRepository) SaveTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subtasks`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}

	for pos, t := range tasks {
		completed, err := marshalDates(t.CompletedDates)
		if err != nil {
			return err
		}
		excepted, err := marshalDates(t.ExceptionDates)
		if err != nil {
			return err
		}
		overlay, err := marshalOverlay(t.SubtaskOverlay)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, title, notes, date, recurrence, completed_dates,
				exception_dates, subtask_overlay, series_id, detached_from_id,
				deadline, estimated_mins, color, importance, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Title, t.Notes, t.Date, t.Recurrence, completed, excepted, overlay,
			t.SeriesID, t.DetachedFromID, t.Deadline, t.EstimatedMins, t.Color,
			t.Importance, mustTime(t.CreatedAt), pos,
		); err != nil {
			return err
		}
		for i, st := range t.Subtasks {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO subtasks (task_id, id, position, title, completed, deadline, estimated_mins)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				t.ID, st.ID, i, st.Title, boolInt(st.Completed), st.Deadline, st.EstimatedMins,
			); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var out model.Task
	var completed, excepted, overlay, created string
	if err := s.Scan(&out.ID, &out.Title, &out.Notes, &out.Date, &out.Recurrence,
		&completed, &excepted, &overlay, &out.SeriesID, &out.DetachedFromID,
		&out.Deadline, &out.EstimatedMins, &out.Color, &out.Importance, &created); err != nil {
		return model.Task{}, err
	}
	createdAt, err := time.Parse(sqliteTimeLayout, created)
	if err != nil {
		return model.Task{}, err
	}
	out.CreatedAt = createdAt
	if out.CompletedDates, err = unmarshalDates(completed); err != nil {
		return model.Task{}, err
	}
	if out.ExceptionDates, err = unmarshalDates(excepted); err != nil {
		return model.Task{}, err
	}
	if out.SubtaskOverlay, err = unmarshalOverlay(overlay); err != nil {
		return model.Task{}, err
	}
	return out, nil
}

func marshalDates(s model.DateSet) (string, error) {
	raw, err := json.Marshal(s.Sorted())
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalDates(raw string) (model.DateSet, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var dates []string
	if err := json.Unmarshal([]byte(raw), &dates); err != nil {
		return nil, err
	}
	return model.NewDateSet(dates...), nil
}

func marshalOverlay(o model.SubtaskOverlay) (string, error) {
	if len(o) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalOverlay(raw string) (model.SubtaskOverlay, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var out model.SubtaskOverlay
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

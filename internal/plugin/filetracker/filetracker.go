// Package filetracker implements the Tracker plugin contract (spec §6.3) by
// storing tasks as one JSON file per task in a directory, grounded on
// internal/tasks.FileStore's directory-per-entity + atomic meta.json
// pattern, via internal/storage/dirstore.Store[meta] adapted from that
// package's UpdatedAt-descending ordering to the stable creation order the
// Tracker contract requires. The order ignores dependencies; dependency
// filtering happens in the Iteration Controller.
package filetracker

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dohr-michael/ralph-tui/internal/storage/dirstore"
	"github.com/dohr-michael/ralph-tui/internal/task"
)

// meta is the on-disk shape of one task's meta.json: the task itself plus
// an Order field recording creation sequence, since the Tracker contract
// requires a stable deterministic order over a fixed dataset and a plain
// directory listing is not guaranteed to preserve one.
type meta struct {
	task.Task
	Order int `json:"order"`
}

// seedTask is one entry of a hand-authored tasks.yaml backlog file.
type seedTask struct {
	ID    string   `yaml:"id"`
	Title string   `yaml:"title"`
	Deps  []string `yaml:"deps,omitempty"`
}

// Tracker is a directory-backed Tracker plugin: baseDir/<task-id>/meta.json
// per task.
type Tracker struct {
	ds *dirstore.Store[meta]
}

// New creates a Tracker rooted at baseDir. If baseDir is empty (no task
// directories yet) and seedPath names a readable tasks.yaml file, the
// backlog is seeded from it on construction.
func New(baseDir, seedPath string) (*Tracker, error) {
	t := &Tracker{ds: dirstore.New[meta](baseDir)}

	if seedPath == "" {
		return t, nil
	}

	dirs, err := t.ds.ListDirs()
	if err != nil {
		return nil, fmt.Errorf("filetracker: list existing tasks: %w", err)
	}
	if len(dirs) > 0 {
		return t, nil
	}

	if err := t.seed(seedPath); err != nil {
		return nil, err
	}
	return t, nil
}

// seed reads a YAML backlog file and creates one task directory per entry,
// in file order.
func (t *Tracker) seed(seedPath string) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filetracker: read seed file: %w", err)
	}

	var seeds []seedTask
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("filetracker: parse seed file: %w", err)
	}

	for i, s := range seeds {
		if s.ID == "" {
			return fmt.Errorf("filetracker: seed entry %d missing id", i)
		}
		m := meta{
			Task: task.Task{
				ID:     s.ID,
				Title:  s.Title,
				Status: task.StatusOpen,
				Deps:   s.Deps,
			},
			Order: i,
		}
		if err := t.ds.EnsureDir(m.ID); err != nil {
			return fmt.Errorf("filetracker: seed task %s: %w", m.ID, err)
		}
		if err := t.ds.WriteMeta(m.ID, &m); err != nil {
			return fmt.Errorf("filetracker: seed task %s: %w", m.ID, err)
		}
	}
	return nil
}

// GetTasks returns all tasks ordered by creation order, optionally filtered
// to the given statuses.
func (t *Tracker) GetTasks(_ context.Context, statuses []task.Status) ([]task.Task, error) {
	t.ds.RLock()
	defer t.ds.RUnlock()

	ids, err := t.ds.ListDirs()
	if err != nil {
		return nil, fmt.Errorf("filetracker: list tasks: %w", err)
	}

	allowed := make(map[task.Status]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}

	metas := make([]meta, 0, len(ids))
	for _, id := range ids {
		m, err := t.ds.ReadMeta(id)
		if err != nil {
			continue // skip corrupted task directories
		}
		if len(allowed) > 0 && !allowed[m.Status] {
			continue
		}
		metas = append(metas, *m)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].Order < metas[j].Order
	})

	out := make([]task.Task, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.Task)
	}
	return out, nil
}

// MarkInProgress transitions a task to in_progress. Reports false if the
// task does not exist.
func (t *Tracker) MarkInProgress(_ context.Context, taskID string) (bool, error) {
	t.ds.Lock()
	defer t.ds.Unlock()

	m, err := t.ds.ReadMeta(taskID)
	if err != nil {
		return false, nil
	}
	m.Status = task.StatusInProgress
	if err := t.ds.WriteMeta(taskID, m); err != nil {
		return false, fmt.Errorf("filetracker: mark in progress %s: %w", taskID, err)
	}
	return true, nil
}

// Get returns one task by ID.
func (t *Tracker) Get(_ context.Context, taskID string) (task.Task, error) {
	t.ds.RLock()
	defer t.ds.RUnlock()

	m, err := t.ds.ReadMeta(taskID)
	if err != nil {
		return task.Task{}, fmt.Errorf("filetracker: get %s: %w", taskID, err)
	}
	return m.Task, nil
}

// Complete marks a task completed. Most iteration loops rely on the agent
// itself to edit files and advance state; this exists for trackers (and
// tests) that want the core to close out a task directly on success.
func (t *Tracker) Complete(_ context.Context, taskID string) error {
	t.ds.Lock()
	defer t.ds.Unlock()

	m, err := t.ds.ReadMeta(taskID)
	if err != nil {
		return fmt.Errorf("filetracker: complete %s: %w", taskID, err)
	}
	m.Status = task.StatusCompleted
	if err := t.ds.WriteMeta(taskID, m); err != nil {
		return fmt.Errorf("filetracker: complete %s: %w", taskID, err)
	}
	return nil
}

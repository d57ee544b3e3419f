// Package store holds the in-memory task list and serializes every
// mutation through the Controller: apply the plan to memory first so
// reads reflect it immediately, then persist the whole document.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sandeepkv93/ghostd/internal/logging"
	"github.com/sandeepkv93/ghostd/internal/model"
	"github.com/sandeepkv93/ghostd/internal/plan"
	"github.com/sandeepkv93/ghostd/internal/storage"
)

var (
	ErrPersist      = errors.New("store: persistence failed")
	ErrUnknownTask  = errors.New("store: unknown task")
	ErrDuplicateID  = errors.New("store: duplicate task id")
	ErrEmptyPlan    = errors.New("store: plan has no payload")
	ErrUnknownPlan  = errors.New("store: unknown plan kind")
	defaultSaveWait = 5 * time.Second
)

type Controller struct {
	mu      sync.Mutex
	tasks   []model.Task
	repo    storage.Repository
	timeout time.Duration
	dirty   bool
}

func NewController(repo storage.Repository, saveTimeout time.Duration) *Controller {
	if saveTimeout <= 0 {
		saveTimeout = defaultSaveWait
	}
	return &Controller{repo: repo, timeout: saveTimeout}
}

func (c *Controller) Load(ctx context.Context) error {
	tasks, err := c.repo.LoadTasks(ctx)
	if err != nil {
		return fmt.Errorf("store: load: %w", err)
	}
	c.mu.Lock()
	c.tasks = tasks
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// Tasks returns a copy of the current list; callers never see later
// mutations through it.
func (c *Controller) Tasks() []model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Task, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (c *Controller) Task(id string) (model.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return model.Task{}, false
}

// Dirty reports whether the in-memory state has diverged from disk
// because a save failed.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Add appends a brand-new task and persists.
func (c *Controller) Add(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	for _, existing := range c.tasks {
		if existing.ID == t.ID {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
	}
	c.tasks = append(c.tasks, t.Clone())
	c.mu.Unlock()
	return c.persist(ctx)
}

// Apply lands the whole plan in memory before the persistence call; on
// persistence failure the mutation is retained and the dataset marked
// dirty so the next mutation or an explicit Flush retries it.
func (c *Controller) Apply(ctx context.Context, p plan.Plan) error {
	if err := c.applyMemory(p); err != nil {
		return err
	}
	return c.persist(ctx)
}

// Flush retries a failed save. No-op when clean.
func (c *Controller) Flush(ctx context.Context) error {
	if !c.Dirty() {
		return nil
	}
	return c.persist(ctx)
}

func (c *Controller) applyMemory(p plan.Plan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch p.Kind {
	case plan.KindUpdateMaster:
		if p.Update == nil {
			return ErrEmptyPlan
		}
		if err := p.Update.Validate(); err != nil {
			return err
		}
		return c.replaceLocked(*p.Update)
	case plan.KindReplaceMaster, plan.KindCreateDetached:
		if p.Update == nil || p.Create == nil {
			return ErrEmptyPlan
		}
		if err := p.Update.Validate(); err != nil {
			return err
		}
		if err := p.Create.Validate(); err != nil {
			return err
		}
		if err := c.replaceLocked(*p.Update); err != nil {
			return err
		}
		c.tasks = append(c.tasks, p.Create.Clone())
		return nil
	case plan.KindRemoveTask:
		if p.RemoveID == "" {
			return ErrEmptyPlan
		}
		kept := c.tasks[:0]
		for _, t := range c.tasks {
			if t.ID != p.RemoveID {
				kept = append(kept, t)
			}
		}
		c.tasks = kept
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPlan, p.Kind)
	}
}

func (c *Controller) replaceLocked(updated model.Task) error {
	for i, t := range c.tasks {
		if t.ID == updated.ID {
			c.tasks[i] = updated.Clone()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownTask, updated.ID)
}

// persist writes the full document with a bounded timeout and one
// retry before surfacing the failure.
func (c *Controller) persist(ctx context.Context) error {
	snapshot := c.Tasks()

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		saveCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err = c.repo.SaveTasks(saveCtx, snapshot)
		cancel()
		if err == nil {
			c.mu.Lock()
			c.dirty = false
			c.mu.Unlock()
			return nil
		}
		logging.L().Warn().Int("attempt", attempt+1).Err(err).Msg("task save failed")
	}

	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
	return fmt.Errorf("%w: %v", ErrPersist, err)
}

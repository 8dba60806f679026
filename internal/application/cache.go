package application

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"ecselfservice/internal/adapters/metrics"
	"ecselfservice/internal/domain"
	"ecselfservice/internal/ports"
)

type cacheState int

const (
	unpopulated cacheState = iota
	populated
)

// Cache mirrors the event collector's applications and events in memory.
// One mutex serializes every read and write, including the one-time load.
// Write paths call the backend before Insert, never while holding the lock.
type Cache struct {
	backend ports.EventCollector
	logger  ports.Logger

	mu    sync.Mutex
	state cacheState
	apps  []domain.Application
}

func NewCache(backend ports.EventCollector, logger ports.Logger) *Cache {
	return &Cache{backend: backend, logger: logger}
}

// ReadAll returns a snapshot ordered newest first, loading it from the
// backend on first use.
func (c *Cache) ReadAll(ctx context.Context) ([]domain.Application, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensurePopulated(ctx); err != nil {
		return nil, err
	}
	return c.snapshot(), nil
}

// Warm populates the cache if it is not populated yet.
func (c *Cache) Warm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensurePopulated(ctx)
}

func (c *Cache) ReadByName(ctx context.Context, name string) (domain.Application, bool, error) {
	apps, err := c.ReadAll(ctx)
	if err != nil {
		return domain.Application{}, false, err
	}
	for _, app := range apps {
		if app.Name == name {
			return app, true, nil
		}
	}
	return domain.Application{}, false, nil
}

// Insert admits a backend-confirmed Application or Event. All invariant
// checks run before any mutation, so a failed insert changes nothing.
func (c *Cache) Insert(ctx context.Context, item domain.Item) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensurePopulated(ctx); err != nil {
		return err
	}

	switch v := item.(type) {
	case domain.Application:
		defer func() { metrics.CacheInsert("application", err) }()
		return c.insertApplication(v)
	case domain.Event:
		defer func() { metrics.CacheInsert("event", err) }()
		return c.insertEvent(v)
	default:
		err := &domain.InvalidDataInstanceTypeError{Got: fmt.Sprintf("%T", item)}
		c.logger.Error(ctx, "unexpected cache item", "error", err)
		metrics.CacheInsert("unknown", err)
		return err
	}
}

func (c *Cache) insertApplication(app domain.Application) error {
	if c.indexByName(app.Name) >= 0 {
		return &domain.AppAlreadyExistsError{AppName: app.Name}
	}
	app = app.Clone()
	for i := range app.Events {
		app.Events[i].ParentAppID = app.ID
	}
	sortEvents(app.Events)
	c.apps = append(c.apps, app)
	sortApplications(c.apps)
	return nil
}

func (c *Cache) insertEvent(event domain.Event) error {
	idx := c.indexByID(event.ParentAppID)
	if idx < 0 {
		return &domain.EventParentNotFoundError{AppName: event.ParentAppID, EventName: event.Name}
	}
	parent := &c.apps[idx]
	if _, exists := parent.EventByName(event.Name); exists {
		return &domain.EventAlreadyExistsError{AppName: parent.Name, EventName: event.Name}
	}
	parent.Events = append(parent.Events, event)
	sortEvents(parent.Events)
	return nil
}

// ensurePopulated must be called with c.mu held. A failed load leaves the
// cache unpopulated so the next caller tries again.
func (c *Cache) ensurePopulated(ctx context.Context) (err error) {
	if c.state == populated {
		return nil
	}
	defer func() { metrics.CachePopulated(err) }()

	apps, err := c.backend.ListApplications(ctx)
	if err != nil {
		return fmt.Errorf("load applications: %w", err)
	}

	byID := make(map[string]int, len(apps))
	loaded := make([]domain.Application, 0, len(apps))
	for _, app := range apps {
		app = app.Clone()
		app.Events = app.Events[:0]
		byID[app.ID] = len(loaded)
		loaded = append(loaded, app)
	}

	for _, app := range apps {
		events, err := c.backend.ListEvents(ctx, app)
		if err != nil {
			return fmt.Errorf("load events for %s: %w", app.Name, err)
		}
		for _, event := range events {
			idx, ok := byID[event.ParentAppID]
			if !ok {
				c.logger.Warn(ctx, "dropping event with unknown parent", "event_name", event.Name, "parent_id", event.ParentAppID)
				continue
			}
			loaded[idx].Events = append(loaded[idx].Events, event)
		}
	}

	for i := range loaded {
		sortEvents(loaded[i].Events)
	}
	sortApplications(loaded)

	c.apps = loaded
	c.state = populated
	c.logger.Info(ctx, "cache populated", "applications", len(loaded))
	return nil
}

func (c *Cache) snapshot() []domain.Application {
	out := make([]domain.Application, len(c.apps))
	for i, app := range c.apps {
		out[i] = app.Clone()
	}
	return out
}

func (c *Cache) indexByName(name string) int {
	return slices.IndexFunc(c.apps, func(a domain.Application) bool { return a.Name == name })
}

func (c *Cache) indexByID(id string) int {
	return slices.IndexFunc(c.apps, func(a domain.Application) bool { return a.ID == id })
}

// Identifiers are ULIDs, so descending order is newest first.
func sortApplications(apps []domain.Application) {
	slices.SortStableFunc(apps, func(a, b domain.Application) int { return strings.Compare(b.ID, a.ID) })
}

func sortEvents(events []domain.Event) {
	slices.SortStableFunc(events, func(a, b domain.Event) int { return strings.Compare(b.ID, a.ID) })
}

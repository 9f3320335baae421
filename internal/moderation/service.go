// Package moderation implements the event registry, moderated item
// collections, vote/flag toggle ledgers and list projections.
package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/slidont/internal/models"
)

// ChangeType names a committed state change.
type ChangeType string

const (
	ChangeItemCreated ChangeType = "item_created"
	ChangeVoteToggled ChangeType = "vote_toggled"
	ChangeFlagToggled ChangeType = "flag_toggled"
	ChangeItemDone    ChangeType = "item_done"
)

// Change describes a committed write. Session ids are never included.
type Change struct {
	Type    ChangeType `json:"type"`
	Kind    string     `json:"kind"`
	EventID string     `json:"eventId"`
	ItemID  string     `json:"itemId"`
	Data    any        `json:"data,omitempty"`
	At      int64      `json:"at"`
}

// Notifier receives changes after their transaction commits.
type Notifier interface {
	Notify(ctx context.Context, c Change)
}

// Notifiers fans a change out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, c Change) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, c)
		}
	}
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change)

func (f NotifierFunc) Notify(ctx context.Context, c Change) { f(ctx, c) }

// Options configures a Service.
type Options struct {
	Seed     SeedConfig
	Notifier Notifier
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Service bundles the registry and both moderated collections over one store.
type Service struct {
	Events    *Registry
	Questions *Collection[models.Question, *models.Question]
	Buzz      *Collection[models.Buzz, *models.Buzz]

	core *core
}

// NewService wires the moderation components over db.
func NewService(db *gorm.DB, opts Options) *Service {
	c := &core{db: db, now: opts.Now, notifier: opts.Notifier}
	if c.now == nil {
		c.now = time.Now
	}
	c.entropy = newEntropy()

	events := &Registry{core: c, seed: opts.Seed}
	return &Service{
		Events:    events,
		Questions: newCollection[models.Question](c, QuestionKind, events),
		Buzz:      newCollection[models.Buzz](c, BuzzKind, events),
		core:      c,
	}
}

// DB returns the underlying gorm handle.
func (s *Service) DB() *gorm.DB { return s.core.db }

// MarkDone marks a question as answered. It requires the event's presenter secret.
func (s *Service) MarkDone(ctx context.Context, questionID, eventSlug, secret string) (*DoneResult, error) {
	return s.Questions.MarkDone(ctx, questionID, eventSlug, secret)
}

// core holds the dependencies shared by every component.
type core struct {
	db       *gorm.DB
	now      func() time.Time
	notifier Notifier

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func (c *core) millis() int64 {
	return c.now().UnixMilli()
}

func (c *core) notify(ctx context.Context, ch Change) {
	if c.notifier == nil {
		return
	}
	if ch.At == 0 {
		ch.At = c.millis()
	}
	c.notifier.Notify(ctx, ch)
}

// forUpdate adds a row lock on databases that support one.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

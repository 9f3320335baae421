package moderation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperr "github.com/sujalbistaa/slidont/internal/errors"
	"github.com/sujalbistaa/slidont/internal/models"
)

// Record is satisfied by pointers to the moderated item models.
type Record[T any] interface {
	*T
	Base() *models.Item
	Done() bool
}

// Collection is one moderated item kind: its store, ledgers and projections.
type Collection[T any, PT Record[T]] struct {
	core   *core
	kind   Kind
	events *Registry
}

func newCollection[T any, PT Record[T]](c *core, kind Kind, events *Registry) *Collection[T, PT] {
	return &Collection[T, PT]{core: c, kind: kind, events: events}
}

// Kind returns the collection's configuration.
func (c *Collection[T, PT]) Kind() Kind { return c.kind }

// CreateInput carries a new submission. Content and AuthorName are expected
// to be trimmed and non-empty already.
type CreateInput struct {
	EventSlug   string
	Content     string
	AuthorName  string
	IsAnonymous bool
	AuthorColor string
	SessionID   string
}

// Create stores a new item with zeroed counters under the event for EventSlug.
func (c *Collection[T, PT]) Create(ctx context.Context, in CreateInput) (*T, error) {
	var rec T
	err := c.core.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, in.EventSlug)
		if err != nil {
			return err
		}
		if event == nil {
			return apperr.NewNotFound("event", in.EventSlug)
		}

		id, err := c.core.newID()
		if err != nil {
			return err
		}
		*PT(&rec).Base() = models.Item{
			ID:          id,
			EventID:     event.ID,
			Content:     in.Content,
			AuthorName:  in.AuthorName,
			IsAnonymous: in.IsAnonymous,
			AuthorColor: in.AuthorColor,
			SessionID:   in.SessionID,
			CreatedAt:   c.core.millis(),
		}
		if err := tx.Create(PT(&rec)).Error; err != nil {
			return fmt.Errorf("insert %s: %w", c.kind.Name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	base := PT(&rec).Base()
	c.core.notify(ctx, Change{
		Type:    ChangeItemCreated,
		Kind:    c.kind.Name,
		EventID: base.EventID,
		ItemID:  base.ID,
		Data:    &rec,
	})
	return &rec, nil
}

// Get loads a single item by id.
func (c *Collection[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	var rec T
	err := c.core.db.WithContext(ctx).Where("id = ?", id).Take(PT(&rec)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NewNotFound(c.kind.Name, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", c.kind.Name, id, err)
	}
	return &rec, nil
}

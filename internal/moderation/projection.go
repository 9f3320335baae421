package moderation

import (
	"context"
	"fmt"
)

// List returns the public feed for an event: items hidden by flags (and, for
// kinds with presenter state, done items) are excluded. An unknown slug
// yields an empty list.
func (c *Collection[T, PT]) List(ctx context.Context, eventSlug string, sortBy SortBy) ([]T, error) {
	tx := c.core.db.WithContext(ctx)
	event, err := findEvent(tx, eventSlug)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if event == nil {
		return items, nil
	}

	q := tx.Where("event_id = ? AND hidden_by_flags = ?", event.ID, false)
	if c.kind.PresenterDone {
		q = q.Where("hidden_by_presenter = ?", false)
	}
	if err := q.Order(sortBy.orderClause()).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", c.kind.Name, err)
	}
	if items == nil {
		items = make([]T, 0)
	}
	return items, nil
}

// ListAll returns every item of the event, flagged and done ones included,
// newest first. It backs the presenter view.
func (c *Collection[T, PT]) ListAll(ctx context.Context, eventSlug string) ([]T, error) {
	tx := c.core.db.WithContext(ctx)
	event, err := findEvent(tx, eventSlug)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if event == nil {
		return items, nil
	}

	if err := tx.Where("event_id = ?", event.ID).Order(SortNew.orderClause()).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list all %s: %w", c.kind.Name, err)
	}
	if items == nil {
		items = make([]T, 0)
	}
	return items, nil
}

// Pending counts items the presenter has not marked done.
func (c *Collection[T, PT]) Pending(items []T) int {
	n := 0
	for i := range items {
		if !PT(&items[i]).Done() {
			n++
		}
	}
	return n
}

package moderation

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperr "github.com/sujalbistaa/slidont/internal/errors"
)

// DoneResult is returned by a successful MarkDone.
type DoneResult struct {
	Success bool  `json:"success"`
	DoneAt  int64 `json:"doneAt"`
}

type doneRow struct {
	DoneAt *int64
}

// MarkDone hides an item from the presenter's pending queue. The secret must
// exactly match the event's presenter secret. Marking an already-done item
// succeeds and keeps the original done time.
func (c *Collection[T, PT]) MarkDone(ctx context.Context, itemID, eventSlug, secret string) (*DoneResult, error) {
	if !c.kind.PresenterDone {
		return nil, apperr.NewInvalidRequest(fmt.Sprintf("%s items cannot be marked done", c.kind.Name))
	}

	var (
		eventID string
		doneAt  int64
		changed bool
	)
	err := c.core.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		event, err := findEvent(tx, eventSlug)
		if err != nil {
			return err
		}
		if event == nil || secret == "" ||
			subtle.ConstantTimeCompare([]byte(event.PresenterSecret), []byte(secret)) != 1 {
			return apperr.NewUnauthorized()
		}
		eventID = event.ID

		now := c.core.millis()
		res := tx.Table(c.kind.Items).
			Where("id = ? AND event_id = ? AND hidden_by_presenter = ?", itemID, event.ID, false).
			Updates(map[string]any{"hidden_by_presenter": true, "done_at": now})
		if res.Error != nil {
			return fmt.Errorf("mark %s done: %w", c.kind.Name, res.Error)
		}
		if res.RowsAffected > 0 {
			doneAt, changed = now, true
			return nil
		}

		var existing doneRow
		err = tx.Table(c.kind.Items).Select("done_at").
			Where("id = ? AND event_id = ?", itemID, event.ID).
			Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NewNotFound(c.kind.Name, itemID)
		}
		if err != nil {
			return fmt.Errorf("load %s %s: %w", c.kind.Name, itemID, err)
		}
		if existing.DoneAt != nil {
			doneAt = *existing.DoneAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		c.core.notify(ctx, Change{
			Type:    ChangeItemDone,
			Kind:    c.kind.Name,
			EventID: eventID,
			ItemID:  itemID,
			Data:    map[string]any{"doneAt": doneAt},
		})
	}
	return &DoneResult{Success: true, DoneAt: doneAt}, nil
}

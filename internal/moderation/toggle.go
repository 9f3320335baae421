package moderation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperr "github.com/sujalbistaa/slidont/internal/errors"
	"github.com/sujalbistaa/slidont/internal/models"
	applog "github.com/sujalbistaa/slidont/pkg/logger"
)

// VoteResult is the authoritative vote state after a toggle.
type VoteResult struct {
	Voted     bool `json:"voted"`
	VoteCount int  `json:"voteCount"`
}

// FlagResult is the authoritative flag state after a toggle.
type FlagResult struct {
	Flagged       bool `json:"flagged"`
	FlagCount     int  `json:"flagCount"`
	HiddenByFlags bool `json:"hiddenByFlags"`
}

// itemCounters is the slice of an item row the toggle engine reads and writes.
type itemCounters struct {
	ID        string
	EventID   string
	VoteCount int
	FlagCount int
}

type toggleOutcome struct {
	eventID string
	active  bool
	count   int
}

// ToggleVote adds the session's vote if absent, removes it if present.
func (c *Collection[T, PT]) ToggleVote(ctx context.Context, itemID, sessionID string) (*VoteResult, error) {
	out, err := c.toggle(ctx, c.kind.Votes, "vote_count", itemID, sessionID, nil)
	if err != nil {
		return nil, err
	}

	res := &VoteResult{Voted: out.active, VoteCount: out.count}
	c.core.notify(ctx, Change{
		Type:    ChangeVoteToggled,
		Kind:    c.kind.Name,
		EventID: out.eventID,
		ItemID:  itemID,
		Data:    map[string]any{"voteCount": out.count},
	})
	return res, nil
}

// ToggleFlag adds or removes the session's flag and recomputes hidden_by_flags
// in the same transaction.
func (c *Collection[T, PT]) ToggleFlag(ctx context.Context, itemID, sessionID string) (*FlagResult, error) {
	out, err := c.toggle(ctx, c.kind.Flags, "flag_count", itemID, sessionID, func(count int) map[string]any {
		return map[string]any{"hidden_by_flags": count >= FlagThreshold}
	})
	if err != nil {
		return nil, err
	}

	res := &FlagResult{
		Flagged:       out.active,
		FlagCount:     out.count,
		HiddenByFlags: out.count >= FlagThreshold,
	}
	c.core.notify(ctx, Change{
		Type:    ChangeFlagToggled,
		Kind:    c.kind.Name,
		EventID: out.eventID,
		ItemID:  itemID,
		Data:    map[string]any{"flagCount": res.FlagCount, "hiddenByFlags": res.HiddenByFlags},
	})
	return res, nil
}

// toggle flips the (itemID, sessionID) row in ledger and moves column by ±1.
// The item row is locked first so toggles on one item serialise.
func (c *Collection[T, PT]) toggle(
	ctx context.Context,
	ledger, column, itemID, sessionID string,
	extra func(count int) map[string]any,
) (toggleOutcome, error) {
	var out toggleOutcome
	if sessionID == "" {
		return out, apperr.NewInvalidRequest("sessionId is required")
	}

	err := c.core.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur itemCounters
		err := forUpdate(tx.Table(c.kind.Items)).
			Select("id", "event_id", "vote_count", "flag_count").
			Where("id = ?", itemID).
			Take(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NewNotFound(c.kind.Name, itemID)
		}
		if err != nil {
			return fmt.Errorf("load %s %s: %w", c.kind.Name, itemID, err)
		}

		count := cur.VoteCount
		if column == "flag_count" {
			count = cur.FlagCount
		}

		var entry models.LedgerEntry
		err = tx.Table(ledger).
			Where("item_id = ? AND session_id = ?", itemID, sessionID).
			Take(&entry).Error
		switch {
		case err == nil:
			if err := tx.Table(ledger).Where("id = ?", entry.ID).Delete(&models.LedgerEntry{}).Error; err != nil {
				return fmt.Errorf("delete %s entry: %w", ledger, err)
			}
			out.active = false
			count--
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry = models.LedgerEntry{ItemID: itemID, SessionID: sessionID, CreatedAt: c.core.millis()}
			if err := tx.Table(ledger).Create(&entry).Error; err != nil {
				return fmt.Errorf("insert %s entry: %w", ledger, err)
			}
			out.active = true
			count++
		default:
			return fmt.Errorf("lookup %s entry: %w", ledger, err)
		}

		if count < 0 {
			// Only reachable if the counter drifted from the ledger.
			applog.Warn(ctx, "Counter below zero, clamping", "table", c.kind.Items, "column", column, "item_id", itemID)
			count = 0
		}

		updates := map[string]any{column: count}
		if extra != nil {
			for k, v := range extra(count) {
				updates[k] = v
			}
		}
		if err := tx.Table(c.kind.Items).Where("id = ?", itemID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update %s counters: %w", c.kind.Name, err)
		}

		out.eventID = cur.EventID
		out.count = count
		return nil
	})
	return out, err
}

// HasVoted reports whether sessionID currently has a vote on itemID.
func (c *Collection[T, PT]) HasVoted(ctx context.Context, itemID, sessionID string) (bool, error) {
	return c.hasEntry(ctx, c.kind.Votes, itemID, sessionID)
}

// HasFlagged reports whether sessionID currently has a flag on itemID.
func (c *Collection[T, PT]) HasFlagged(ctx context.Context, itemID, sessionID string) (bool, error) {
	return c.hasEntry(ctx, c.kind.Flags, itemID, sessionID)
}

func (c *Collection[T, PT]) hasEntry(ctx context.Context, ledger, itemID, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, apperr.NewInvalidRequest("sessionId is required")
	}
	var n int64
	err := c.core.db.WithContext(ctx).Table(ledger).
		Where("item_id = ? AND session_id = ?", itemID, sessionID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("count %s: %w", ledger, err)
	}
	return n > 0, nil
}

package moderation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	applog "github.com/sujalbistaa/slidont/pkg/logger"
)

// Drift is one item whose stored counters disagreed with its ledgers.
type Drift struct {
	ItemID         string `json:"itemId"`
	StoredVotes    int    `json:"storedVotes"`
	ActualVotes    int    `json:"actualVotes"`
	StoredFlags    int    `json:"storedFlags"`
	ActualFlags    int    `json:"actualFlags"`
	StoredHidden   bool   `json:"storedHidden"`
	ExpectedHidden bool   `json:"expectedHidden"`
}

// ReconcileReport summarises a reconciliation pass over one kind.
type ReconcileReport struct {
	Kind    string  `json:"kind"`
	Scanned int     `json:"scanned"`
	DryRun  bool    `json:"dryRun"`
	Drifted []Drift `json:"drifted"`
}

type counterRow struct {
	ID            string
	VoteCount     int
	FlagCount     int
	HiddenByFlags bool
}

type ledgerCount struct {
	ItemID string
	N      int
}

// Reconcile recounts the vote and flag ledgers and, unless dryRun is set,
// rewrites any counter or hidden_by_flags value that disagrees. It is an
// offline consistency check; normal reads never scan the ledgers.
func (c *Collection[T, PT]) Reconcile(ctx context.Context, dryRun bool) (*ReconcileReport, error) {
	db := c.core.db.WithContext(ctx)
	report := &ReconcileReport{Kind: c.kind.Name, DryRun: dryRun, Drifted: []Drift{}}

	var rows []counterRow
	if err := db.Table(c.kind.Items).Select("id", "vote_count", "flag_count", "hidden_by_flags").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.kind.Items, err)
	}
	votes, err := c.ledgerCounts(db, c.kind.Votes)
	if err != nil {
		return nil, err
	}
	flags, err := c.ledgerCounts(db, c.kind.Flags)
	if err != nil {
		return nil, err
	}

	report.Scanned = len(rows)
	for _, row := range rows {
		d := Drift{
			ItemID:         row.ID,
			StoredVotes:    row.VoteCount,
			ActualVotes:    votes[row.ID],
			StoredFlags:    row.FlagCount,
			ActualFlags:    flags[row.ID],
			StoredHidden:   row.HiddenByFlags,
			ExpectedHidden: flags[row.ID] >= FlagThreshold,
		}
		if d.StoredVotes == d.ActualVotes && d.StoredFlags == d.ActualFlags && d.StoredHidden == d.ExpectedHidden {
			continue
		}
		if !dryRun {
			fixed, err := c.repair(ctx, row.ID)
			if err != nil {
				return nil, err
			}
			if fixed == nil {
				// Concurrent toggles brought the item back in line.
				continue
			}
			d = *fixed
		}
		report.Drifted = append(report.Drifted, d)
	}

	applog.Info(ctx, "Reconciled counters", "kind", c.kind.Name, "scanned", report.Scanned,
		"drifted", len(report.Drifted), "dry_run", dryRun)
	return report, nil
}

// repair recounts one item under its row lock and rewrites its counters.
// It returns nil when nothing needed fixing.
func (c *Collection[T, PT]) repair(ctx context.Context, itemID string) (*Drift, error) {
	var fixed *Drift
	err := c.core.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row counterRow
		err := forUpdate(tx.Table(c.kind.Items)).
			Select("id", "vote_count", "flag_count", "hidden_by_flags").
			Where("id = ?", itemID).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock %s %s: %w", c.kind.Name, itemID, err)
		}

		var votes, flags int64
		if err := tx.Table(c.kind.Votes).Where("item_id = ?", itemID).Count(&votes).Error; err != nil {
			return fmt.Errorf("count %s: %w", c.kind.Votes, err)
		}
		if err := tx.Table(c.kind.Flags).Where("item_id = ?", itemID).Count(&flags).Error; err != nil {
			return fmt.Errorf("count %s: %w", c.kind.Flags, err)
		}

		d := Drift{
			ItemID:         itemID,
			StoredVotes:    row.VoteCount,
			ActualVotes:    int(votes),
			StoredFlags:    row.FlagCount,
			ActualFlags:    int(flags),
			StoredHidden:   row.HiddenByFlags,
			ExpectedHidden: int(flags) >= FlagThreshold,
		}
		if d.StoredVotes == d.ActualVotes && d.StoredFlags == d.ActualFlags && d.StoredHidden == d.ExpectedHidden {
			return nil
		}
		err = tx.Table(c.kind.Items).Where("id = ?", itemID).Updates(map[string]any{
			"vote_count":      d.ActualVotes,
			"flag_count":      d.ActualFlags,
			"hidden_by_flags": d.ExpectedHidden,
		}).Error
		if err != nil {
			return fmt.Errorf("repair %s %s: %w", c.kind.Name, itemID, err)
		}
		fixed = &d
		return nil
	})
	return fixed, err
}

func (c *Collection[T, PT]) ledgerCounts(db *gorm.DB, ledger string) (map[string]int, error) {
	var counts []ledgerCount
	err := db.Table(ledger).Select("item_id, COUNT(*) AS n").Group("item_id").Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", ledger, err)
	}
	out := make(map[string]int, len(counts))
	for _, lc := range counts {
		out[lc.ItemID] = lc.N
	}
	return out, nil
}

package moderation

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sujalbistaa/slidont/internal/models"
	applog "github.com/sujalbistaa/slidont/pkg/logger"
)

// SeedConfig describes the default event created by EnsureSeed.
type SeedConfig struct {
	Slug   string
	Title  string
	Secret string // empty means generate a random secret on first insert
}

// Registry resolves event slugs and seeds the default event.
type Registry struct {
	core *core
	seed SeedConfig
}

// GetBySlug returns the event for slug, or nil when there is none.
func (r *Registry) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	return findEvent(r.core.db.WithContext(ctx), slug)
}

// EnsureSeed creates the default event if it does not exist and returns it.
// An existing event is returned unchanged; its secret is never rewritten.
func (r *Registry) EnsureSeed(ctx context.Context) (*models.Event, error) {
	if r.seed.Slug == "" {
		return nil, fmt.Errorf("ensure seed: no seed slug configured")
	}

	secret := r.seed.Secret
	if secret == "" {
		var err error
		if secret, err = generateSecret(); err != nil {
			return nil, fmt.Errorf("ensure seed: %w", err)
		}
	}
	id, err := r.core.newID()
	if err != nil {
		return nil, fmt.Errorf("ensure seed: %w", err)
	}
	title := r.seed.Title
	if title == "" {
		title = r.seed.Slug
	}

	candidate := models.Event{
		ID:              id,
		Slug:            r.seed.Slug,
		Title:           title,
		PresenterSecret: secret,
		CreatedAt:       r.core.millis(),
	}

	var event *models.Event
	err = r.core.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&candidate)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			applog.Info(ctx, "Seeded event", "slug", candidate.Slug, "event_id", candidate.ID)
		}
		event, err = findEvent(tx, r.seed.Slug)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ensure seed: %w", err)
	}
	if event == nil {
		return nil, fmt.Errorf("ensure seed: event %q vanished after insert", r.seed.Slug)
	}
	return event, nil
}

func findEvent(tx *gorm.DB, slug string) (*models.Event, error) {
	var event models.Event
	err := tx.Where("slug = ?", slug).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find event %q: %w", slug, err)
	}
	return &event, nil
}

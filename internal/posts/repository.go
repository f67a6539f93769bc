// Package posts is a typed accessor over the store for posts.
package posts

import (
	"context"
	"fmt"
	"time"

	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
	"github.com/google/uuid"
)

type Repository struct {
	store store.StoreInterface
	now   func() time.Time
}

func NewRepository(st store.StoreInterface) *Repository {
	return &Repository{store: st, now: time.Now}
}

// New builds a validated post. Ids are UUIDv7 so they sort by creation time.
// The time is kept at millisecond precision, the resolution of the stored
// timestamp, so a returned post matches what later reads yield.
func New(authorID, text string, at time.Time) (models.Post, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Post{}, fmt.Errorf("generate post id: %w", err)
	}
	p := models.Post{
		ID:       id.String(),
		AuthorID: authorID,
		Time:     at.UTC().Truncate(time.Millisecond),
		Text:     text,
	}
	if err := p.Validate(); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// Create appends a post by authorID. A zero at means now. The author must
// exist; checking that is the caller's job.
func (r *Repository) Create(ctx context.Context, authorID, text string, at time.Time) (models.Post, error) {
	if at.IsZero() {
		at = r.now()
	}
	p, err := New(authorID, text, at)
	if err != nil {
		return models.Post{}, err
	}
	if err := r.store.InsertPost(ctx, p); err != nil {
		return models.Post{}, err
	}
	return p, nil
}

// Ingest persists a post built elsewhere, e.g. one consumed from Kafka.
// Ingesting the same post twice leaves a single copy.
func (r *Repository) Ingest(ctx context.Context, p models.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return r.store.InsertPost(ctx, p)
}

// ListByAuthor returns every post by authorID in no particular order.
func (r *Repository) ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	return r.store.ScanPostsByAuthor(ctx, authorID)
}

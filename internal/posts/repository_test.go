package posts

import (
	"context"
	"errors"
	"testing"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
)

func TestCreateAndListByAuthor(t *testing.T) {
	st := store.NewMock()
	r := NewRepository(st)
	ctx := context.Background()
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	p, err := r.Create(ctx, "bob", "hi", t1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID == "" || p.AuthorID != "bob" || !p.Time.Equal(t1) {
		t.Fatalf("unexpected post: %+v", p)
	}
	_, _ = r.Create(ctx, "alice", "yo", t1)

	got, err := r.ListByAuthor(ctx, "bob")
	if err != nil {
		t.Fatalf("ListByAuthor: %v", err)
	}
	if len(got) != 1 || got[0].Text != "hi" {
		t.Fatalf("expected only bob's post, got %+v", got)
	}
}

func TestCreateDefaultsTimeToNow(t *testing.T) {
	r := NewRepository(store.NewMock())
	fixed := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	p, err := r.Create(context.Background(), "bob", "hi", time.Time{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !p.Time.Equal(fixed) {
		t.Fatalf("expected time %s, got %s", fixed, p.Time)
	}
}

func TestCreateRejectsEmptyText(t *testing.T) {
	r := NewRepository(store.NewMock())
	if _, err := r.Create(context.Background(), "bob", "", time.Now()); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateStoreFailure(t *testing.T) {
	r := NewRepository(&store.MockStoreFail{})
	if _, err := r.Create(context.Background(), "bob", "hi", time.Now()); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestIngestValidates(t *testing.T) {
	st := store.NewMock()
	r := NewRepository(st)
	ctx := context.Background()

	if err := r.Ingest(ctx, models.Post{AuthorID: "bob", Text: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	p, _ := New("bob", "hello", time.Now())
	if err := r.Ingest(ctx, p); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := r.Ingest(ctx, p); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	got, _ := r.ListByAuthor(ctx, "bob")
	if len(got) != 1 {
		t.Fatalf("expected single copy, got %d", len(got))
	}
}

func TestNewIDsSortByCreation(t *testing.T) {
	a, _ := New("bob", "first", time.Now())
	b, _ := New("bob", "second", time.Now())
	if !(a.ID < b.ID) {
		t.Fatalf("expected %s < %s", a.ID, b.ID)
	}
}

func TestNewTruncatesToStoredPrecision(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 30, 0, 123456789, time.FixedZone("CET", 3600))

	p, err := New("bob", "hi", at)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := time.Date(2024, 6, 1, 8, 30, 0, 123000000, time.UTC)
	if !p.Time.Equal(want) || p.Time.Location() != time.UTC {
		t.Fatalf("expected %s, got %s", want, p.Time)
	}

	// what Create returns is exactly what a later scan yields
	r := NewRepository(store.NewMock())
	created, err := r.Create(context.Background(), "bob", "hi", at)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, _ := r.ListByAuthor(context.Background(), "bob")
	if len(got) != 1 || got[0].Time != created.Time {
		t.Fatalf("stored time %v differs from returned %v", got, created.Time)
	}
}

// Package feed builds a user's feed on read: the viewer's own posts plus the
// posts of everyone they directly follow, newest first.
package feed

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"golang.org/x/sync/errgroup"
)

var logg = logger.New()

const defaultFetchLimit = 16

// UserSource resolves user records.
type UserSource interface {
	Get(ctx context.Context, id string) (models.User, error)
}

// PostSource lists the posts of a single author.
type PostSource interface {
	ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error)
}

type Aggregator struct {
	users UserSource
	posts PostSource
	limit int
}

// NewAggregator returns an Aggregator that runs at most limit fetches at
// once per stage.
func NewAggregator(users UserSource, posts PostSource, limit int) *Aggregator {
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	return &Aggregator{users: users, posts: posts, limit: limit}
}

// BuildFeed returns every post by viewerID and by each user viewerID follows,
// annotated with the author's current name and avatar, ordered by time
// descending and then by post id descending. Any failed fetch fails the whole
// build.
func (a *Aggregator) BuildFeed(ctx context.Context, viewerID string) ([]models.FeedEntry, error) {
	viewer, err := a.users.Get(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	authors, err := a.resolveFollowees(ctx, viewer)
	if err != nil {
		return nil, err
	}
	authors[viewer.ID] = viewer.Snapshot()

	sources := make([]string, 0, len(authors))
	for id := range authors {
		sources = append(sources, id)
	}

	posts, err := a.fetchPosts(ctx, sources)
	if err != nil {
		return nil, err
	}

	entries := make([]models.FeedEntry, 0, len(posts))
	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok {
			// A source returned a post it did not author.
			logg.Warn("feed", "Dropping post from unexpected author", "post_id", p.ID)
			continue
		}
		entries = append(entries, models.FeedEntry{
			PostID: p.ID,
			Author: author,
			Time:   p.Time,
			Text:   p.Text,
		})
	}
	sortEntries(entries)

	logg.Debug("feed", "Feed built", "sources", len(sources), "entries", len(entries))
	return entries, nil
}

// resolveFollowees fetches the current record of every followee. Edges to
// users that no longer resolve are skipped rather than failing the feed.
func (a *Aggregator) resolveFollowees(ctx context.Context, viewer models.User) (map[string]models.Author, error) {
	var mu sync.Mutex
	authors := make(map[string]models.Author, len(viewer.Following)+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for _, id := range viewer.Following {
		if id == viewer.ID {
			continue
		}
		g.Go(func() error {
			u, err := a.users.Get(gctx, id)
			if errors.Is(err, apperr.ErrNotFound) {
				logg.Warn("feed", "Skipping dangling follow edge", "followee", id)
				return nil
			}
			if err != nil {
				return fmt.Errorf("resolve followee %q: %w", id, err)
			}
			mu.Lock()
			authors[id] = u.Snapshot()
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logg.Error("feed", "Identity resolution failed", err)
		return nil, err
	}
	return authors, nil
}

// fetchPosts lists the posts of every source concurrently and concatenates
// them in completion order.
func (a *Aggregator) fetchPosts(ctx context.Context, sources []string) ([]models.Post, error) {
	var mu sync.Mutex
	var all []models.Post

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for _, id := range sources {
		g.Go(func() error {
			ps, err := a.posts.ListByAuthor(gctx, id)
			if err != nil {
				return fmt.Errorf("fetch posts of %q: %w", id, err)
			}
			mu.Lock()
			all = append(all, ps...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logg.Error("feed", "Post fetch failed", err)
		return nil, err
	}
	return all, nil
}

// sortEntries orders newest first. Equal times fall back to the post id so the
// result does not depend on fetch completion order.
func sortEntries(entries []models.FeedEntry) {
	slices.SortFunc(entries, func(x, y models.FeedEntry) int {
		if c := y.Time.Compare(x.Time); c != 0 {
			return c
		}
		return cmp.Compare(y.PostID, x.PostID)
	})
}

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/models"
)

// MockStore simulates Cassandra operations for testing.
// It is safe for concurrent use and honours the same version check as the
// real store.
type MockStore struct {
	mu    sync.Mutex
	Users map[string]models.User
	Posts map[string][]models.Post // keyed by author id

	ShouldFail    bool            // flag to simulate failures
	FailPostsFor  map[string]bool // author ids whose post scan fails
	PostScanCalls int
	UserGetCalls  int
	ReplaceHook   func(u models.User) // called before a replace is applied
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{
		Users:        make(map[string]models.User),
		Posts:        make(map[string][]models.Post),
		FailPostsFor: make(map[string]bool),
	}
}

func (m *MockStore) Close() {}

func (m *MockStore) GetUser(ctx context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UserGetCalls++
	if m.ShouldFail {
		return models.User{}, errors.New("mock: get user failed")
	}
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %q: %w", id, apperr.ErrNotFound)
	}
	return u.Clone(), nil
}

func (m *MockStore) InsertUser(ctx context.Context, u models.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: insert user failed")
	}
	if _, ok := m.Users[u.ID]; ok {
		return fmt.Errorf("user %q already exists: %w", u.ID, apperr.ErrConflict)
	}
	m.Users[u.ID] = u.Clone()
	return nil
}

func (m *MockStore) ReplaceUser(ctx context.Context, u models.User) (models.User, error) {
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}
	if m.ReplaceHook != nil {
		m.ReplaceHook(u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return models.User{}, errors.New("mock: replace user failed")
	}
	cur, ok := m.Users[u.ID]
	if !ok {
		return models.User{}, fmt.Errorf("user %q: %w", u.ID, apperr.ErrNotFound)
	}
	if cur.Version != u.Version {
		return models.User{}, fmt.Errorf("user %q at version %d: %w", u.ID, u.Version, apperr.ErrConflict)
	}
	next := u.Clone()
	next.Version++
	m.Users[u.ID] = next
	return next.Clone(), nil
}

func (m *MockStore) ScanUserIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: scan users failed")
	}
	ids := make([]string, 0, len(m.Users))
	for id := range m.Users {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *MockStore) InsertPost(ctx context.Context, p models.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: insert post failed")
	}
	// Same primary key overwrites, like a Cassandra upsert.
	posts := m.Posts[p.AuthorID]
	for i := range posts {
		if posts[i].ID == p.ID {
			posts[i] = p
			return nil
		}
	}
	m.Posts[p.AuthorID] = append(posts, p)
	return nil
}

func (m *MockStore) ScanPostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PostScanCalls++
	if m.ShouldFail || m.FailPostsFor[authorID] {
		return nil, errors.New("mock: scan posts failed")
	}
	return slices.Clone(m.Posts[authorID]), nil
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) GetUser(ctx context.Context, id string) (models.User, error) {
	return models.User{}, errors.New("mock store get user failed")
}

func (m *MockStoreFail) InsertUser(ctx context.Context, u models.User) error {
	return errors.New("mock store insert user failed")
}

func (m *MockStoreFail) ReplaceUser(ctx context.Context, u models.User) (models.User, error) {
	return models.User{}, errors.New("mock store replace user failed")
}

func (m *MockStoreFail) ScanUserIDs(ctx context.Context) ([]string, error) {
	return nil, errors.New("mock store scan users failed")
}

func (m *MockStoreFail) InsertPost(ctx context.Context, p models.Post) error {
	return errors.New("mock store insert post failed")
}

func (m *MockStoreFail) ScanPostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	return nil, errors.New("mock store scan posts failed")
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/models"
	"github.com/gocql/gocql"
)

// --- User operations ---

// GetUser returns the user stored under id, or apperr.ErrNotFound.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u := models.User{ID: id}
	err := s.Session.Query(
		`SELECT name, avatar_url, following, version FROM users WHERE user_id = ?`,
		id,
	).WithContext(ctx).Scan(&u.Name, &u.AvatarURL, &u.Following, &u.Version)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return models.User{}, fmt.Errorf("user %q: %w", id, apperr.ErrNotFound)
		}
		logg.Error("store", "Failed to query user", err)
		return models.User{}, err
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	return u, nil
}

// InsertUser creates the user record if no record with the same id exists.
// An existing record yields apperr.ErrConflict.
func (s *Store) InsertUser(ctx context.Context, u models.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		INSERT INTO users (user_id, name, avatar_url, following, version)
		VALUES (?, ?, ?, ?, ?) IF NOT EXISTS`,
		u.ID, u.Name, u.AvatarURL, u.Following, u.Version,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to insert user", err)
		return err
	}
	if !applied {
		return fmt.Errorf("user %q already exists: %w", u.ID, apperr.ErrConflict)
	}

	logg.Info("store", "User inserted (user ID anonymized)")
	return nil
}

// ReplaceUser overwrites the whole record with a lightweight transaction
// conditioned on the version the caller read.
func (s *Store) ReplaceUser(ctx context.Context, u models.User) (models.User, error) {
	if err := u.Validate(); err != nil {
		return models.User{}, err
	}

	next := u.Clone()
	next.Version = u.Version + 1

	result := make(map[string]interface{})
	applied, err := s.Session.Query(`
		UPDATE users SET name = ?, avatar_url = ?, following = ?, version = ?
		WHERE user_id = ? IF version = ?`,
		next.Name, next.AvatarURL, next.Following, next.Version, u.ID, u.Version,
	).WithContext(ctx).MapScanCAS(result)
	if err != nil {
		logg.Error("store", "Failed to replace user", err)
		return models.User{}, err
	}
	if !applied {
		// The previous row is echoed back only when it exists.
		if _, exists := result["version"]; !exists {
			return models.User{}, fmt.Errorf("user %q: %w", u.ID, apperr.ErrNotFound)
		}
		logg.Warn("store", "Stale user version rejected", "expected", u.Version)
		return models.User{}, fmt.Errorf("user %q at version %d: %w", u.ID, u.Version, apperr.ErrConflict)
	}
	return next, nil
}

// ScanUserIDs returns every user id. This is a full table scan.
func (s *Store) ScanUserIDs(ctx context.Context) ([]string, error) {
	iter := s.Session.Query(`SELECT user_id FROM users`).WithContext(ctx).Iter()

	var id string
	res := []string{}
	for iter.Scan(&id) {
		res = append(res, id)
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to scan user ids", err)
		return nil, err
	}
	return res, nil
}

// --- Post operations ---

func (s *Store) InsertPost(ctx context.Context, p models.Post) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.Session.Query(`
		INSERT INTO posts_by_author (author_id, created_at, post_id, body)
		VALUES (?, ?, ?, ?)`,
		p.AuthorID, p.Time, p.ID, p.Text,
	).WithContext(ctx).Exec(); err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}

	logg.Info("store", "Post added (post content anonymized)")
	return nil
}

func (s *Store) ScanPostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	iter := s.Session.Query(`
		SELECT post_id, created_at, body
		FROM posts_by_author WHERE author_id = ?`,
		authorID,
	).WithContext(ctx).Iter()

	res := []models.Post{}
	var pid, body string
	var created time.Time

	for iter.Scan(&pid, &created, &body) {
		res = append(res, models.Post{
			ID:       pid,
			AuthorID: authorID,
			Time:     created,
			Text:     body,
		})
	}

	if err := iter.Close(); err != nil {
		logg.Error("store", "Failed to scan posts by author", err)
		return nil, err
	}
	return res, nil
}

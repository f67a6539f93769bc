package models

import (
	"slices"
	"time"
	"unicode/utf8"

	"example.com/socialfeed/internal/apperr"
)

const (
	DefaultUserName = "New User"
	MaxPostLength   = 1000
	MaxNameLength   = 50
)

// User is a member of the follow graph. Following holds followee ids.
// Version increases by one on every replace and guards against lost updates.
type User struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	AvatarURL string   `json:"avatarURL"`
	Following []string `json:"following"`
	Version   int64    `json:"-"`
}

type Post struct {
	ID       string    `json:"id"`
	AuthorID string    `json:"authorId"`
	Time     time.Time `json:"time"`
	Text     string    `json:"text"`
}

// Author is the display identity attached to a feed entry at read time.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarURL"`
}

type FeedEntry struct {
	PostID string    `json:"id"`
	Author Author    `json:"user"`
	Time   time.Time `json:"time"`
	Text   string    `json:"text"`
}

// Follow is a directed edge of the follow graph.
type Follow struct {
	FollowerID string `json:"followerId"`
	FolloweeID string `json:"followeeId"`
}

func NewUser(id, avatarURL string) User {
	return User{
		ID:        id,
		Name:      DefaultUserName,
		AvatarURL: avatarURL,
		Following: []string{},
	}
}

func (u User) Snapshot() Author {
	return Author{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

func (u User) Follows(id string) bool {
	return slices.Contains(u.Following, id)
}

// Clone returns a copy that shares no memory with u.
func (u User) Clone() User {
	c := u
	c.Following = slices.Clone(u.Following)
	if c.Following == nil {
		c.Following = []string{}
	}
	return c
}

// Validate checks the shape invariants of a user record.
func (u User) Validate() error {
	if u.ID == "" {
		return apperr.Invalid("user", "id", "must not be empty")
	}
	if utf8.RuneCountInString(u.Name) > MaxNameLength {
		return apperr.Invalid("user", "name", "too long")
	}
	seen := make(map[string]struct{}, len(u.Following))
	for _, id := range u.Following {
		if id == "" {
			return apperr.Invalid("user", "following", "empty user id")
		}
		if id == u.ID {
			return apperr.Invalid("user", "following", "self-follow")
		}
		if _, dup := seen[id]; dup {
			return apperr.Invalid("user", "following", "duplicate edge "+id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Validate checks the shape invariants of a post record.
func (p Post) Validate() error {
	switch {
	case p.ID == "":
		return apperr.Invalid("post", "id", "must not be empty")
	case p.AuthorID == "":
		return apperr.Invalid("post", "authorId", "must not be empty")
	case p.Time.IsZero():
		return apperr.Invalid("post", "time", "must be set")
	case p.Text == "":
		return apperr.Invalid("post", "text", "must not be empty")
	case utf8.RuneCountInString(p.Text) > MaxPostLength:
		return apperr.Invalid("post", "text", "too long")
	}
	return nil
}

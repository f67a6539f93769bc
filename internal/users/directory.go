// Package users resolves user records and their display identities.
package users

import (
	"context"
	"errors"
	"fmt"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/lock"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/store"
)

var logg = logger.New()

type Directory struct {
	store         store.StoreInterface
	locker        lock.Locker
	defaultAvatar string
}

func NewDirectory(st store.StoreInterface, locker lock.Locker, defaultAvatar string) *Directory {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Directory{store: st, locker: locker, defaultAvatar: defaultAvatar}
}

// Get returns the user, or an error matching apperr.ErrNotFound.
func (d *Directory) Get(ctx context.Context, id string) (models.User, error) {
	if id == "" {
		return models.User{}, apperr.Invalid("user", "id", "must not be empty")
	}
	return d.store.GetUser(ctx, id)
}

func (d *Directory) ListAllIDs(ctx context.Context) ([]string, error) {
	return d.store.ScanUserIDs(ctx)
}

// LoadOrCreate returns the existing user or persists one with default
// name, avatar and an empty following set.
func (d *Directory) LoadOrCreate(ctx context.Context, id string) (models.User, error) {
	u, err := d.Get(ctx, id)
	if err == nil || !errors.Is(err, apperr.ErrNotFound) {
		return u, err
	}

	nu := models.NewUser(id, d.defaultAvatar)
	if err := d.store.InsertUser(ctx, nu); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			// Created concurrently by someone else
			return d.Get(ctx, id)
		}
		logg.Error("users", "Failed to create user", err)
		return models.User{}, err
	}

	logg.Info("users", "User created with defaults", "user_id", id)
	return nu, nil
}

// Save updates the display name and avatar. Empty values keep the current one.
func (d *Directory) Save(ctx context.Context, id, name, avatarURL string) (models.User, error) {
	return d.Update(ctx, id, func(u *models.User) error {
		if name != "" {
			u.Name = name
		}
		if avatarURL != "" {
			u.AvatarURL = avatarURL
		}
		return nil
	})
}

// Update applies fn to the stored user under the per-user lock and replaces
// the record. The replace is conditioned on the version that was read, so an
// edit that slipped past the lock surfaces as apperr.ErrConflict rather than
// a lost update. fn must not retain u.
func (d *Directory) Update(ctx context.Context, id string, fn func(u *models.User) error) (models.User, error) {
	unlock, err := d.locker.Lock(ctx, "user:"+id)
	if err != nil {
		return models.User{}, fmt.Errorf("lock user %q: %w", id, err)
	}
	defer unlock()

	u, err := d.Get(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if err := fn(&u); err != nil {
		return models.User{}, err
	}
	return d.store.ReplaceUser(ctx, u)
}

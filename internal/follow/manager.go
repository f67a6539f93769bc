// Package follow edits the directed follow graph.
package follow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/logger"
	"example.com/socialfeed/internal/models"
	"example.com/socialfeed/internal/users"
)

var logg = logger.New()

// Manager owns the following set of every user. Each edit is a
// read-modify-write of the follower's record, serialized per follower by the
// directory.
type Manager struct {
	dir *users.Directory
}

func NewManager(dir *users.Directory) *Manager {
	return &Manager{dir: dir}
}

// AddFollow makes followerID follow followeeID and returns the updated
// follower. Following someone already followed is a no-op.
func (m *Manager) AddFollow(ctx context.Context, followerID, followeeID string) (models.User, error) {
	if followerID == followeeID {
		return models.User{}, fmt.Errorf("user %q cannot follow themselves: %w", followerID, apperr.ErrInvalidEdge)
	}
	if _, err := m.dir.Get(ctx, followeeID); err != nil {
		return models.User{}, fmt.Errorf("followee: %w", err)
	}

	u, err := m.dir.Update(ctx, followerID, func(u *models.User) error {
		if u.Follows(followeeID) {
			return errNoChange
		}
		u.Following = append(u.Following, followeeID)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return m.dir.Get(ctx, followerID)
	}
	if err != nil {
		logg.Error("follow", "Failed to add follow", err)
		return models.User{}, err
	}
	logg.Info("follow", "Follow added", "follower", followerID, "followee", followeeID)
	return u, nil
}

// RemoveFollow drops followeeID from followerID's following set. It fails
// with apperr.ErrNotFound when the edge is not present.
func (m *Manager) RemoveFollow(ctx context.Context, followerID, followeeID string) (models.User, error) {
	u, err := m.dir.Update(ctx, followerID, func(u *models.User) error {
		i := slices.Index(u.Following, followeeID)
		if i < 0 {
			return fmt.Errorf("%q does not follow %q: %w", followerID, followeeID, apperr.ErrNotFound)
		}
		u.Following = slices.Delete(u.Following, i, i+1)
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	logg.Info("follow", "Follow removed", "follower", followerID, "followee", followeeID)
	return u, nil
}

// errNoChange short-circuits an idempotent edit without writing.
var errNoChange = errors.New("no change")

// Package access answers the one authorization question the realtime
// layer asks: may this user act within this project?
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/devboard/devboard/internal/cache"
	"github.com/devboard/devboard/internal/repository"
	"github.com/devboard/devboard/pkg/log"
)

// Checker decides project access: owners and members are allowed, everyone
// else — including users of projects that do not exist — is not. Decisions
// can be fronted by a short-TTL cache; concurrent checks for the same
// (user, project) pair are collapsed with singleflight.
type Checker struct {
	projects repository.ProjectRepository
	cache    cache.DecisionCache // nil disables caching
	ttl      time.Duration
	sf       singleflight.Group
}

// NewChecker creates a Checker. cache may be nil.
func NewChecker(projects repository.ProjectRepository, decisions cache.DecisionCache, ttl time.Duration) *Checker {
	return &Checker{
		projects: projects,
		cache:    decisions,
		ttl:      ttl,
	}
}

// CanAccess reports whether the user owns or is a member of the project.
// A missing project yields false, not an error: callers treat not-found
// identically to no-access.
func (c *Checker) CanAccess(ctx context.Context, userID, projectID uint) (bool, error) {
	key := fmt.Sprintf("%d:%d", userID, projectID)

	if c.cache != nil {
		allowed, err := c.cache.Get(ctx, key)
		if err == nil {
			return allowed, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Ctx(ctx).Warn().Err(err).Msg("access cache get error")
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		allowed, err := c.lookup(ctx, userID, projectID)
		if err != nil {
			return false, err
		}

		if c.cache != nil {
			if err := c.cache.Set(ctx, key, allowed, c.ttl); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("access cache set error")
			}
		}
		return allowed, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// Invalidate drops the cached decision for (user, project). Called when
// membership changes.
func (c *Checker) Invalidate(ctx context.Context, userID, projectID uint) {
	if c.cache == nil {
		return
	}
	key := fmt.Sprintf("%d:%d", userID, projectID)
	if err := c.cache.Delete(ctx, key); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("access cache delete error")
	}
}

func (c *Checker) lookup(ctx context.Context, userID, projectID uint) (bool, error) {
	project, err := c.projects.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return false, nil
		}
		return false, err
	}
	if project.OwnerID == userID {
		return true, nil
	}

	if _, err := c.projects.FindMembership(ctx, userID, projectID); err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

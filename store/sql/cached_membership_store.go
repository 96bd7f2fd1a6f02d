package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/voundbrand/go-authority/core"
)

const membershipCacheKeyPrefix = "go-authority::membership::v1"

// CachedMembershipStore caches the (org, user) point read that credential
// verification hits on every request. List reads always go to the base store;
// every write invalidates the keys it touched.
type CachedMembershipStore struct {
	base  core.MembershipStore
	cache repositorycache.CacheService
}

func NewCachedMembershipStore(
	base core.MembershipStore,
	cacheService repositorycache.CacheService,
) (*CachedMembershipStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base membership store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: membership cache service is required")
	}
	return &CachedMembershipStore{base: base, cache: cacheService}, nil
}

// MembershipCacheKey returns the deterministic cache key contract for
// membership point reads: go-authority::membership::v1::<org_id>::<user_id>
// with each segment URL-path escaped.
func MembershipCacheKey(orgID string, userID string) (string, error) {
	orgID = strings.TrimSpace(orgID)
	userID = strings.TrimSpace(userID)
	if orgID == "" || userID == "" {
		return "", fmt.Errorf("sqlstore: membership cache key requires org id and user id")
	}
	segments := []string{url.PathEscape(orgID), url.PathEscape(userID)}
	return strings.Join(append([]string{membershipCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedMembershipStore) Upsert(ctx context.Context, in core.UpsertMembershipInput) (core.Membership, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	membership, err := s.base.Upsert(ctx, in)
	if err != nil {
		return core.Membership{}, err
	}
	if err := s.invalidate(ctx, membership.OrgID, membership.UserID); err != nil {
		return core.Membership{}, err
	}
	return membership, nil
}

func (s *CachedMembershipStore) Get(ctx context.Context, orgID string, userID string) (core.Membership, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Membership{}, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	cacheKey, err := MembershipCacheKey(orgID, userID)
	if err != nil {
		return core.Membership{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Membership, error) {
		return s.base.Get(ctx, orgID, userID)
	})
}

func (s *CachedMembershipStore) ListByUser(ctx context.Context, userID string) ([]core.Membership, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	return s.base.ListByUser(ctx, userID)
}

func (s *CachedMembershipStore) ListByOrg(ctx context.Context, orgID string) ([]core.Membership, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	return s.base.ListByOrg(ctx, orgID)
}

// ClearDefault touches every membership row for the user, so every cached
// point read for that user has to go.
func (s *CachedMembershipStore) ClearDefault(ctx context.Context, userID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	memberships, err := s.base.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.base.ClearDefault(ctx, userID); err != nil {
		return err
	}
	for _, membership := range memberships {
		if err := s.invalidate(ctx, membership.OrgID, membership.UserID); err != nil {
			return err
		}
	}
	return nil
}

func (s *CachedMembershipStore) SetDefault(ctx context.Context, orgID string, userID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached membership store is not configured")
	}
	if err := s.base.SetDefault(ctx, orgID, userID); err != nil {
		return err
	}
	return s.invalidate(ctx, orgID, userID)
}

func (s *CachedMembershipStore) invalidate(ctx context.Context, orgID string, userID string) error {
	cacheKey, err := MembershipCacheKey(orgID, userID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.MembershipStore = (*CachedMembershipStore)(nil)

package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ProvisionOrganization creates an organization with its owner membership.
// Re-provisioning an explicit slug owned by the same user is a no-op that
// returns the existing records, so callers can retry safely.
func (s *Service) ProvisionOrganization(ctx context.Context, in ProvisionOrganizationInput) (result ProvisionOrganizationResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "provision_organization", err, fields)
	}()

	if s == nil || s.organizationStore == nil || s.membershipStore == nil {
		err = s.mapError(fmt.Errorf("core: organization stores are not configured"))
		return ProvisionOrganizationResult{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		err = s.mapError(fmt.Errorf("core: organization name is required"))
		return ProvisionOrganizationResult{}, err
	}
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		err = s.mapError(fmt.Errorf("core: organization owner is required"))
		return ProvisionOrganizationResult{}, err
	}

	explicitSlug := strings.TrimSpace(in.Slug) != ""
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		slug = "org"
	}

	if existing, getErr := s.organizationStore.GetBySlug(ctx, slug); getErr == nil {
		if !explicitSlug {
			suffix, sufErr := randomSlugSuffix()
			if sufErr != nil {
				err = s.mapError(sufErr)
				return ProvisionOrganizationResult{}, err
			}
			slug = slug + "-" + suffix
		} else {
			membership, ensureErr := s.ensureOwnerMembership(ctx, existing.ID, ownerID)
			if ensureErr != nil {
				err = s.mapError(ensureErr)
				return ProvisionOrganizationResult{}, err
			}
			fields["org_id"] = existing.ID
			return ProvisionOrganizationResult{Organization: existing, Owner: membership}, nil
		}
	} else if !isNotFound(getErr) {
		err = s.mapError(getErr)
		return ProvisionOrganizationResult{}, err
	}

	org, err := s.organizationStore.Create(ctx, CreateOrganizationInput{
		Name: name,
		Slug: slug,
	})
	if err != nil {
		err = s.mapError(err)
		return ProvisionOrganizationResult{}, err
	}
	fields["org_id"] = org.ID

	membership, err := s.ensureOwnerMembership(ctx, org.ID, ownerID)
	if err != nil {
		err = s.mapError(err)
		return ProvisionOrganizationResult{}, err
	}

	result = ProvisionOrganizationResult{Organization: org, Owner: membership}
	return result, nil
}

// SetDefaultOrganization marks one membership as the login default. The
// clear-then-set pair is two writes, so a crash in between can leave the user
// with no default; the login flow repairs that by provisioning lazily.
func (s *Service) SetDefaultOrganization(ctx context.Context, orgID, userID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"org_id": orgID}
	defer func() {
		s.observeOperation(ctx, startedAt, "set_default_organization", err, fields)
	}()

	if s == nil || s.membershipStore == nil {
		err = s.mapError(fmt.Errorf("core: membership store is not configured"))
		return err
	}
	membership, err := s.membershipStore.Get(ctx, orgID, userID)
	if err != nil {
		if isNotFound(err) {
			err = s.mapError(ErrMembershipNotFound)
			return err
		}
		err = s.mapError(err)
		return err
	}
	if membership.IsDefault {
		return nil
	}
	if err = s.membershipStore.ClearDefault(ctx, userID); err != nil {
		err = s.mapError(err)
		return err
	}
	if err = s.membershipStore.SetDefault(ctx, orgID, userID); err != nil {
		err = s.mapError(err)
		return err
	}
	return nil
}

// GetOrganization returns one organization by id.
func (s *Service) GetOrganization(ctx context.Context, orgID string) (org Organization, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"org_id": orgID}
	defer func() {
		s.observeOperation(ctx, startedAt, "get_organization", err, fields)
	}()

	if s == nil || s.organizationStore == nil {
		err = s.mapError(fmt.Errorf("core: organization store is not configured"))
		return Organization{}, err
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		err = s.mapError(fmt.Errorf("core: org id is required"))
		return Organization{}, err
	}
	org, err = s.organizationStore.Get(ctx, orgID)
	if err != nil {
		if isNotFound(err) {
			err = s.mapError(ErrOrganizationNotFound)
			return Organization{}, err
		}
		err = s.mapError(err)
		return Organization{}, err
	}
	return org, nil
}

// UpdateOrganization renames an organization. The slug is the stable
// external handle and never changes here.
func (s *Service) UpdateOrganization(ctx context.Context, orgID string, name string) (org Organization, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"org_id": orgID}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_organization", err, fields)
	}()

	if s == nil || s.organizationStore == nil {
		err = s.mapError(fmt.Errorf("core: organization store is not configured"))
		return Organization{}, err
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		err = s.mapError(fmt.Errorf("core: org id is required"))
		return Organization{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		err = s.mapError(fmt.Errorf("core: organization name is required"))
		return Organization{}, err
	}

	org, err = s.organizationStore.Get(ctx, orgID)
	if err != nil {
		if isNotFound(err) {
			err = s.mapError(ErrOrganizationNotFound)
			return Organization{}, err
		}
		err = s.mapError(err)
		return Organization{}, err
	}
	if org.Name == name {
		return org, nil
	}
	org.Name = name
	org, err = s.organizationStore.Update(ctx, org)
	if err != nil {
		err = s.mapError(err)
		return Organization{}, err
	}
	return org, nil
}

// ListMemberships returns every membership of an organization.
func (s *Service) ListMemberships(ctx context.Context, orgID string) (memberships []Membership, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"org_id": orgID}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_memberships", err, fields)
	}()

	if s == nil || s.membershipStore == nil {
		err = s.mapError(fmt.Errorf("core: membership store is not configured"))
		return nil, err
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		err = s.mapError(fmt.Errorf("core: org id is required"))
		return nil, err
	}
	memberships, err = s.membershipStore.ListByOrg(ctx, orgID)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	return memberships, nil
}

func (s *Service) ensureOwnerMembership(ctx context.Context, orgID, userID string) (Membership, error) {
	if existing, err := s.membershipStore.Get(ctx, orgID, userID); err == nil {
		return existing, nil
	} else if !isNotFound(err) {
		return Membership{}, err
	}
	return s.membershipStore.Upsert(ctx, UpsertMembershipInput{
		OrgID:  orgID,
		UserID: userID,
		Role:   RoleOwner,
	})
}

// Slugify lowercases and collapses anything outside [a-z0-9] into single
// hyphens.
func Slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	b.Grow(len(value))
	lastHyphen := true
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func randomSlugSuffix() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("core: generate slug suffix: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

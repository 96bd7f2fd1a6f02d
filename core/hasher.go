package core

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost keeps single-credential verification in the tens of
// milliseconds on current hardware. Raising it slows every login and every
// bearer check by the same factor.
const DefaultBcryptCost = 12

// CredentialHasher hashes and verifies secrets. Verify separates "does not
// match" (false, nil) from "could not check" (error): backend failures must
// surface as infrastructure errors, never as an invalid-credential response.
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, digest string) (bool, error)
}

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return BcryptHasher{Cost: cost}
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("core: secret is required")
	}
	cost := h.Cost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", newAuthorityError(
			fmt.Sprintf("credential hashing unavailable: %v", err),
			goerrors.CategoryInternal,
			AuthorityErrorCredentialBackend,
		)
	}
	return string(digest), nil
}

func (h BcryptHasher) Verify(secret string, digest string) (bool, error) {
	if secret == "" || strings.TrimSpace(digest) == "" {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if errors.Is(err, bcrypt.ErrHashTooShort) || isBcryptFormatError(err) {
		// Malformed stored digest: the row is unusable, not the caller.
		return false, newAuthorityError(
			fmt.Sprintf("stored credential digest unreadable: %v", err),
			goerrors.CategoryInternal,
			AuthorityErrorCredentialBackend,
		)
	}
	return false, newAuthorityError(
		fmt.Sprintf("credential verification unavailable: %v", err),
		goerrors.CategoryInternal,
		AuthorityErrorCredentialBackend,
	)
}

func isBcryptFormatError(err error) bool {
	if err == nil {
		return false
	}
	var versionErr bcrypt.HashVersionTooNewError
	if errors.As(err, &versionErr) {
		return true
	}
	var prefixErr bcrypt.InvalidHashPrefixError
	if errors.As(err, &prefixErr) {
		return true
	}
	var costErr bcrypt.InvalidCostError
	return errors.As(err, &costErr)
}

var _ CredentialHasher = BcryptHasher{}

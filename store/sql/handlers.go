package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// handlersFor builds the repository plumbing shared by every uuid-keyed
// record type.
func handlersFor[T any](
	newRecord func() T,
	getID func(T) string,
	setID func(T, string),
) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			return parseUUID(getID(record))
		},
		SetID: func(record T, id uuid.UUID) {
			setID(record, id.String())
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record T) string {
			return strings.TrimSpace(getID(record))
		},
	}
}

func sessionHandlers() repository.ModelHandlers[*sessionRecord] {
	return handlersFor(
		func() *sessionRecord { return &sessionRecord{} },
		func(r *sessionRecord) string {
			if r == nil {
				return ""
			}
			return r.ID
		},
		func(r *sessionRecord, id string) {
			if r != nil {
				r.ID = id
			}
		},
	)
}

func apiKeyHandlers() repository.ModelHandlers[*apiKeyRecord] {
	return handlersFor(
		func() *apiKeyRecord { return &apiKeyRecord{} },
		func(r *apiKeyRecord) string {
			if r == nil {
				return ""
			}
			return r.ID
		},
		func(r *apiKeyRecord, id string) {
			if r != nil {
				r.ID = id
			}
		},
	)
}

func membershipHandlers() repository.ModelHandlers[*membershipRecord] {
	return handlersFor(
		func() *membershipRecord { return &membershipRecord{} },
		func(r *membershipRecord) string {
			if r == nil {
				return ""
			}
			return r.ID
		},
		func(r *membershipRecord, id string) {
			if r != nil {
				r.ID = id
			}
		},
	)
}

func providerLinkHandlers() repository.ModelHandlers[*providerLinkRecord] {
	return handlersFor(
		func() *providerLinkRecord { return &providerLinkRecord{} },
		func(r *providerLinkRecord) string {
			if r == nil {
				return ""
			}
			return r.ID
		},
		func(r *providerLinkRecord, id string) {
			if r != nil {
				r.ID = id
			}
		},
	)
}

func syncJobHandlers() repository.ModelHandlers[*syncJobRecord] {
	return handlersFor(
		func() *syncJobRecord { return &syncJobRecord{} },
		func(r *syncJobRecord) string {
			if r == nil {
				return ""
			}
			return r.ID
		},
		func(r *syncJobRecord, id string) {
			if r != nil {
				r.ID = id
			}
		},
	)
}

func transactionHandlers() repository.ModelHandlers[*transactionRecord] {
	return handlersFor(
		func() *transactionRecord { return &transactionRecord{} },
		func(r *transactionRecord) string {
			if r == nil {
				return ""
			}
			return r.ID
		},
		func(r *transactionRecord, id string) {
			if r != nil {
				r.ID = id
			}
		},
	)
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// SessionTouchHandler applies the deferred last-used updates the credential
// path enqueues instead of writing inline. A touch for a session that has
// been revoked in the meantime is a no-op, not a failure.
type SessionTouchHandler struct {
	sessions SessionStore
}

func NewSessionTouchHandler(sessions SessionStore) (*SessionTouchHandler, error) {
	if sessions == nil {
		return nil, fmt.Errorf("core: session store is required")
	}
	return &SessionTouchHandler{sessions: sessions}, nil
}

func (h *SessionTouchHandler) Kind() TaskKind { return TaskKindSessionTouch }

func (h *SessionTouchHandler) Handle(ctx context.Context, task Task) error {
	if h == nil || h.sessions == nil {
		return fmt.Errorf("core: session touch handler is not configured")
	}
	sessionID, _ := task.Payload["session_id"].(string)
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("core: session touch task %s carries no session id", task.ID)
	}
	touchedAt := time.Now().UTC()
	if raw, ok := task.Payload["touched_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			touchedAt = parsed
		}
	}
	return h.sessions.TouchLastUsed(ctx, sessionID, touchedAt)
}

// CRMProvisionHandler fans a new user's provision task out into sync jobs,
// one per CRM the user has linked. A user with no links provisions nothing;
// the task still acks so signup never retries on it.
type CRMProvisionHandler struct {
	links    ProviderLinkStore
	syncJobs SyncJobStore
	logger   Logger
}

func NewCRMProvisionHandler(links ProviderLinkStore, syncJobs SyncJobStore, logger Logger) (*CRMProvisionHandler, error) {
	if links == nil {
		return nil, fmt.Errorf("core: provider link store is required")
	}
	if syncJobs == nil {
		return nil, fmt.Errorf("core: sync job store is required")
	}
	return &CRMProvisionHandler{
		links:    links,
		syncJobs: syncJobs,
		logger:   glog.Ensure(logger),
	}, nil
}

func (h *CRMProvisionHandler) Kind() TaskKind { return TaskKindCRMProvision }

func (h *CRMProvisionHandler) Handle(ctx context.Context, task Task) error {
	if h == nil || h.links == nil || h.syncJobs == nil {
		return fmt.Errorf("core: crm provision handler is not configured")
	}
	userID, _ := task.Payload["user_id"].(string)
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("core: crm provision task %s carries no user id", task.ID)
	}
	orgID, _ := task.Payload["org_id"].(string)

	links, err := h.links.FindByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("core: crm provision link lookup: %w", err)
	}
	if len(links) == 0 {
		return nil
	}

	queued := 0
	for _, link := range links {
		scope := orgID
		if strings.TrimSpace(scope) == "" {
			scope = link.OrgID
		}
		if _, err := h.syncJobs.Enqueue(ctx, EnqueueSyncJobInput{
			OrgID:      scope,
			ProviderID: link.ProviderID,
			ObjectType: "contact",
			ObjectID:   userID,
		}); err != nil {
			return fmt.Errorf("core: crm provision queued %d of %d jobs: %w", queued, len(links), err)
		}
		queued++
	}
	h.logger.Info("crm provision jobs queued",
		"user_id", userID,
		"jobs", queued,
	)
	return nil
}

// LogTaskHandler acks a task kind by recording it. It stands in for kinds
// whose delivery target lives outside this process, so the outbox drains
// instead of parking those rows as failed.
type LogTaskHandler struct {
	kind   TaskKind
	logger Logger
}

func NewLogTaskHandler(kind TaskKind, logger Logger) (*LogTaskHandler, error) {
	if strings.TrimSpace(string(kind)) == "" {
		return nil, fmt.Errorf("core: task kind is required")
	}
	return &LogTaskHandler{kind: kind, logger: glog.Ensure(logger)}, nil
}

func (h *LogTaskHandler) Kind() TaskKind { return h.kind }

func (h *LogTaskHandler) Handle(_ context.Context, task Task) error {
	if h == nil {
		return fmt.Errorf("core: log task handler is not configured")
	}
	h.logger.Info("outbox task delivered",
		"kind", string(h.kind),
		"task_id", task.ID,
		"idempotency_key", task.IdempotencyKey,
	)
	return nil
}

var (
	_ TaskHandler = (*SessionTouchHandler)(nil)
	_ TaskHandler = (*CRMProvisionHandler)(nil)
	_ TaskHandler = (*LogTaskHandler)(nil)
)

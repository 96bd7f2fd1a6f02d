package behavior

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/voundbrand/go-authority/core"
)

// TypeCRMSync is the descriptor type of the CRM synchronization behavior.
const TypeCRMSync = "crm_sync"

// CRMSyncBehavior queues one sync job per configured object type against the
// CRM provider the acting user has linked. It never talks to the CRM itself;
// the sync worker drains the queue with the vaulted provider credential.
type CRMSyncBehavior struct {
	links  core.ProviderLinkStore
	jobs   core.SyncJobStore
	logger core.Logger
}

func NewCRMSyncBehavior(links core.ProviderLinkStore, jobs core.SyncJobStore, logger core.Logger) *CRMSyncBehavior {
	return &CRMSyncBehavior{
		links:  links,
		jobs:   jobs,
		logger: glog.Ensure(logger),
	}
}

func (b *CRMSyncBehavior) Type() string { return TypeCRMSync }

func (b *CRMSyncBehavior) Execute(ctx context.Context, run RunContext, config map[string]any) Result {
	provider := configString(config, "provider")
	if provider == "" {
		return Result{Type: TypeCRMSync, Error: "crm provider is required"}
	}
	objects := configStrings(config, "objects")
	if len(objects) == 0 {
		return Result{Type: TypeCRMSync, Error: "sync objects are required"}
	}
	if strings.TrimSpace(run.UserID) == "" {
		return Result{Type: TypeCRMSync, Error: "acting user is required"}
	}
	if b.links == nil || b.jobs == nil {
		return Result{Type: TypeCRMSync, Error: "crm sync stores are not configured"}
	}

	link, err := b.linkFor(ctx, run, provider)
	if err != nil {
		return Result{Type: TypeCRMSync, Error: err.Error()}
	}

	if run.DryRun {
		return Result{
			Type:    TypeCRMSync,
			Success: true,
			Message: fmt.Sprintf("would queue %d %s sync jobs (dry run)", len(objects), provider),
			Data: map[string]any{
				"provider":     provider,
				"account_id":   link.ProviderAccountID,
				"objects":      objects,
				"jobs_planned": len(objects),
			},
		}
	}

	jobIDs := make([]string, 0, len(objects))
	for _, object := range objects {
		job, err := b.jobs.Enqueue(ctx, core.EnqueueSyncJobInput{
			OrgID:      run.OrgID,
			ProviderID: provider,
			ObjectType: object,
			ObjectID:   run.OrgID,
		})
		if err != nil {
			return Result{
				Type:  TypeCRMSync,
				Error: fmt.Sprintf("queued %d of %d sync jobs: %v", len(jobIDs), len(objects), err),
			}
		}
		jobIDs = append(jobIDs, job.ID)
	}

	b.logger.Info("crm sync jobs queued",
		"provider", provider,
		"org_id", run.OrgID,
		"jobs", len(jobIDs),
	)
	return Result{
		Type:    TypeCRMSync,
		Success: true,
		Message: fmt.Sprintf("queued %d %s sync jobs", len(jobIDs), provider),
		Data: map[string]any{
			"provider":   provider,
			"account_id": link.ProviderAccountID,
			"objects":    objects,
			"job_ids":    jobIDs,
		},
	}
}

// linkFor finds the acting user's link for the configured provider within
// the run's organization. Sync jobs act with that link's vaulted credential,
// so a missing link is a behavior failure, not an infrastructure error.
func (b *CRMSyncBehavior) linkFor(ctx context.Context, run RunContext, provider string) (core.ProviderLink, error) {
	links, err := b.links.FindByUser(ctx, run.UserID)
	if err != nil {
		return core.ProviderLink{}, fmt.Errorf("load provider links: %v", err)
	}
	for _, link := range links {
		if link.ProviderID != provider {
			continue
		}
		if link.OrgID != "" && run.OrgID != "" && link.OrgID != run.OrgID {
			continue
		}
		return link, nil
	}
	return core.ProviderLink{}, fmt.Errorf("no %s account is linked for this user", provider)
}

var _ Behavior = (*CRMSyncBehavior)(nil)

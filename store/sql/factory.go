package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	"github.com/voundbrand/go-authority/behavior"
	"github.com/voundbrand/go-authority/core"
)

// RepositoryFactory builds every SQL-backed store off one bun handle and
// serves them through the core.StoreProvider surface. BuildStores is
// idempotent; repeated calls return the already-built stores.
type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	sessionStore      *SessionStore
	apiKeyStore       *APIKeyStore
	loginStateStore   *LoginStateStore
	organizationStore *OrganizationStore
	membershipStore   core.MembershipStore
	userStore         *UserStore
	providerLinkStore *ProviderLinkStore
	taskStore         *TaskStore
	syncJobStore      *SyncJobStore
	chainStore        *ChainStore
	transactionStore  *TransactionStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// WithMembershipCache wraps membership point reads in the given cache.
// Set it before BuildStores; it has no effect afterwards.
func (f *RepositoryFactory) WithMembershipCache(cacheService repositorycache.CacheService) *RepositoryFactory {
	if f != nil {
		f.cache = cacheService
	}
	return f
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.sessionStore != nil && f.taskStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) SessionStore() core.SessionStore {
	if f == nil {
		return nil
	}
	return f.sessionStore
}

func (f *RepositoryFactory) APIKeyStore() core.APIKeyStore {
	if f == nil {
		return nil
	}
	return f.apiKeyStore
}

func (f *RepositoryFactory) LoginStateStore() core.LoginStateStore {
	if f == nil {
		return nil
	}
	return f.loginStateStore
}

func (f *RepositoryFactory) OrganizationStore() core.OrganizationStore {
	if f == nil {
		return nil
	}
	return f.organizationStore
}

func (f *RepositoryFactory) MembershipStore() core.MembershipStore {
	if f == nil {
		return nil
	}
	return f.membershipStore
}

func (f *RepositoryFactory) UserStore() core.UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) ProviderLinkStore() core.ProviderLinkStore {
	if f == nil {
		return nil
	}
	return f.providerLinkStore
}

func (f *RepositoryFactory) TaskStore() core.TaskStore {
	if f == nil {
		return nil
	}
	return f.taskStore
}

func (f *RepositoryFactory) SyncJobStore() core.SyncJobStore {
	if f == nil {
		return nil
	}
	return f.syncJobStore
}

func (f *RepositoryFactory) ChainStore() behavior.ChainStore {
	if f == nil {
		return nil
	}
	return f.chainStore
}

func (f *RepositoryFactory) TransactionStore() behavior.TransactionStore {
	if f == nil {
		return nil
	}
	return f.transactionStore
}

func (f *RepositoryFactory) initStores() error {
	sessionStore, err := NewSessionStore(f.db)
	if err != nil {
		return err
	}
	f.sessionStore = sessionStore

	apiKeyStore, err := NewAPIKeyStore(f.db)
	if err != nil {
		return err
	}
	f.apiKeyStore = apiKeyStore

	loginStateStore, err := NewLoginStateStore(f.db, 0)
	if err != nil {
		return err
	}
	f.loginStateStore = loginStateStore

	organizationStore, err := NewOrganizationStore(f.db)
	if err != nil {
		return err
	}
	f.organizationStore = organizationStore

	membershipStore, err := NewMembershipStore(f.db)
	if err != nil {
		return err
	}
	f.membershipStore = membershipStore
	if f.cache != nil {
		cached, cacheErr := NewCachedMembershipStore(membershipStore, f.cache)
		if cacheErr != nil {
			return cacheErr
		}
		f.membershipStore = cached
	}

	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	f.userStore = userStore

	providerLinkStore, err := NewProviderLinkStore(f.db)
	if err != nil {
		return err
	}
	f.providerLinkStore = providerLinkStore

	taskStore, err := NewTaskStore(f.db)
	if err != nil {
		return err
	}
	f.taskStore = taskStore

	syncJobStore, err := NewSyncJobStore(f.db)
	if err != nil {
		return err
	}
	f.syncJobStore = syncJobStore

	chainStore, err := NewChainStore(f.db)
	if err != nil {
		return err
	}
	f.chainStore = chainStore

	transactionStore, err := NewTransactionStore(f.db)
	if err != nil {
		return err
	}
	f.transactionStore = transactionStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

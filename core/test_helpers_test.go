package core

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/voundbrand/go-authority/identity"
)

type memorySessionStore struct {
	mu   sync.Mutex
	next int
	byID map[string]Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{byID: map[string]Session{}}
}

func (s *memorySessionStore) Create(_ context.Context, in CreateSessionInput) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	now := time.Now().UTC()
	session := Session{
		ID:          fmt.Sprintf("sess_%d", s.next),
		UserID:      in.UserID,
		OrgID:       in.OrgID,
		Kind:        in.Kind,
		TokenPrefix: in.TokenPrefix,
		TokenDigest: in.TokenDigest,
		IssuedAt:    now,
		ExpiresAt:   in.ExpiresAt,
	}
	s.byID[session.ID] = session
	return session, nil
}

func (s *memorySessionStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return Session{}, fmt.Errorf("core: session not found")
	}
	return session, nil
}

func (s *memorySessionStore) FindByPrefix(_ context.Context, prefix string) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Session{}
	for _, session := range s.byID {
		if prefix != "" && session.TokenPrefix == prefix {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *memorySessionStore) FindLegacyByToken(_ context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.byID {
		if session.LegacyToken != "" && session.LegacyToken == token {
			return session, nil
		}
	}
	return Session{}, fmt.Errorf("core: session not found")
}

func (s *memorySessionStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("core: session not found")
	}
	session.LastUsedAt = at
	s.byID[id] = session
	return nil
}

func (s *memorySessionStore) SaveRotation(_ context.Context, in RotateSessionInput) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[in.SessionID]
	if !ok {
		return Session{}, fmt.Errorf("core: session not found")
	}
	session.TokenPrefix = in.TokenPrefix
	session.TokenDigest = in.TokenDigest
	session.LegacyToken = ""
	session.IssuedAt = in.RotatedAt
	s.byID[in.SessionID] = session
	return session, nil
}

func (s *memorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("core: session not found")
	}
	delete(s.byID, id)
	return nil
}

func (s *memorySessionStore) put(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == "" {
		s.next++
		session.ID = fmt.Sprintf("sess_%d", s.next)
	}
	s.byID[session.ID] = session
}

type memoryAPIKeyStore struct {
	mu   sync.Mutex
	next int
	byID map[string]APIKey
}

func newMemoryAPIKeyStore() *memoryAPIKeyStore {
	return &memoryAPIKeyStore{byID: map[string]APIKey{}}
}

func (s *memoryAPIKeyStore) Create(_ context.Context, in CreateAPIKeyInput) (APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	now := time.Now().UTC()
	key := APIKey{
		ID:           fmt.Sprintf("key_%d", s.next),
		OrgID:        in.OrgID,
		CreatedBy:    in.CreatedBy,
		Name:         in.Name,
		KeyPrefix:    in.KeyPrefix,
		SecretDigest: in.SecretDigest,
		Scopes:       append([]string(nil), in.Scopes...),
		Status:       APIKeyStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[key.ID] = key
	return key, nil
}

func (s *memoryAPIKeyStore) Get(_ context.Context, id string) (APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return APIKey{}, fmt.Errorf("core: api key not found")
	}
	return key, nil
}

func (s *memoryAPIKeyStore) FindByPrefix(_ context.Context, prefix string) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []APIKey{}
	for _, key := range s.byID {
		if prefix != "" && key.KeyPrefix == prefix {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *memoryAPIKeyStore) ListByOrg(_ context.Context, orgID string) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []APIKey{}
	for _, key := range s.byID {
		if key.OrgID == orgID {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryAPIKeyStore) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("core: api key not found")
	}
	key.LastUsedAt = at
	s.byID[id] = key
	return nil
}

func (s *memoryAPIKeyStore) UpdateStatus(_ context.Context, id string, status APIKeyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("core: api key not found")
	}
	if err := key.TransitionTo(status, time.Now().UTC()); err != nil {
		return err
	}
	s.byID[id] = key
	return nil
}

type memoryOrganizationStore struct {
	mu     sync.Mutex
	next   int
	byID   map[string]Organization
	bySlug map[string]string
}

func newMemoryOrganizationStore() *memoryOrganizationStore {
	return &memoryOrganizationStore{byID: map[string]Organization{}, bySlug: map[string]string{}}
}

func (s *memoryOrganizationStore) Create(_ context.Context, in CreateOrganizationInput) (Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bySlug[in.Slug]; exists {
		return Organization{}, fmt.Errorf("core: organization slug already in use")
	}
	s.next++
	now := time.Now().UTC()
	org := Organization{
		ID:        fmt.Sprintf("org_%d", s.next),
		Name:      in.Name,
		Slug:      in.Slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[org.ID] = org
	s.bySlug[org.Slug] = org.ID
	return org, nil
}

func (s *memoryOrganizationStore) Get(_ context.Context, id string) (Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.byID[id]
	if !ok {
		return Organization{}, ErrOrganizationNotFound
	}
	return org, nil
}

func (s *memoryOrganizationStore) GetBySlug(_ context.Context, slug string) (Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySlug[slug]
	if !ok {
		return Organization{}, ErrOrganizationNotFound
	}
	return s.byID[id], nil
}

func (s *memoryOrganizationStore) Update(_ context.Context, org Organization) (Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[org.ID]; !ok {
		return Organization{}, ErrOrganizationNotFound
	}
	org.UpdatedAt = time.Now().UTC()
	s.byID[org.ID] = org
	return org, nil
}

type memoryMembershipStore struct {
	mu    sync.Mutex
	next  int
	byKey map[string]Membership
}

func newMemoryMembershipStore() *memoryMembershipStore {
	return &memoryMembershipStore{byKey: map[string]Membership{}}
}

func membershipKey(orgID, userID string) string {
	return orgID + ":" + userID
}

func (s *memoryMembershipStore) Upsert(_ context.Context, in UpsertMembershipInput) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(in.OrgID, in.UserID)
	now := time.Now().UTC()
	membership, ok := s.byKey[key]
	if !ok {
		s.next++
		membership = Membership{
			ID:        fmt.Sprintf("mem_%d", s.next),
			OrgID:     in.OrgID,
			UserID:    in.UserID,
			CreatedAt: now,
		}
	}
	membership.Role = in.Role
	if in.IsDefault {
		membership.IsDefault = true
	}
	membership.UpdatedAt = now
	s.byKey[key] = membership
	return membership, nil
}

func (s *memoryMembershipStore) Get(_ context.Context, orgID string, userID string) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	membership, ok := s.byKey[membershipKey(orgID, userID)]
	if !ok {
		return Membership{}, ErrMembershipNotFound
	}
	return membership, nil
}

func (s *memoryMembershipStore) ListByUser(_ context.Context, userID string) ([]Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Membership{}
	for _, membership := range s.byKey {
		if membership.UserID == userID {
			out = append(out, membership)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryMembershipStore) ListByOrg(_ context.Context, orgID string) ([]Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Membership{}
	for _, membership := range s.byKey {
		if membership.OrgID == orgID {
			out = append(out, membership)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryMembershipStore) ClearDefault(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, membership := range s.byKey {
		if membership.UserID == userID && membership.IsDefault {
			membership.IsDefault = false
			s.byKey[key] = membership
		}
	}
	return nil
}

func (s *memoryMembershipStore) SetDefault(_ context.Context, orgID string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(orgID, userID)
	membership, ok := s.byKey[key]
	if !ok {
		return ErrMembershipNotFound
	}
	membership.IsDefault = true
	s.byKey[key] = membership
	return nil
}

type memoryUserStore struct {
	mu      sync.Mutex
	next    int
	byID    map[string]User
	byEmail map[string]string
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{byID: map[string]User{}, byEmail: map[string]string{}}
}

func (s *memoryUserStore) Upsert(_ context.Context, in UpsertUserInput) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(in.Email))
	now := time.Now().UTC()
	if id, ok := s.byEmail[email]; ok {
		user := s.byID[id]
		if in.FirstName != "" {
			user.FirstName = in.FirstName
		}
		if in.LastName != "" {
			user.LastName = in.LastName
		}
		user.UpdatedAt = now
		s.byID[id] = user
		return user, nil
	}
	s.next++
	user := User{
		ID:        fmt.Sprintf("user_%d", s.next),
		Email:     email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID
	return user, nil
}

func (s *memoryUserStore) Get(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return User{}, fmt.Errorf("core: user not found")
	}
	return user, nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return User{}, fmt.Errorf("core: user not found")
	}
	return s.byID[id], nil
}

type memoryProviderLinkStore struct {
	mu    sync.Mutex
	next  int
	byKey map[string]ProviderLink
}

func newMemoryProviderLinkStore() *memoryProviderLinkStore {
	return &memoryProviderLinkStore{byKey: map[string]ProviderLink{}}
}

func (s *memoryProviderLinkStore) Upsert(_ context.Context, in UpsertProviderLinkInput) (ProviderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := in.ProviderID + ":" + in.ProviderAccountID
	now := time.Now().UTC()
	link, ok := s.byKey[key]
	if !ok {
		s.next++
		link = ProviderLink{
			ID:        fmt.Sprintf("link_%d", s.next),
			CreatedAt: now,
		}
	}
	link.UserID = in.UserID
	link.OrgID = in.OrgID
	link.ProviderID = in.ProviderID
	link.ProviderAccountID = in.ProviderAccountID
	link.Email = in.Email
	link.EncryptedCredential = append([]byte(nil), in.EncryptedCredential...)
	link.Scopes = append([]string(nil), in.Scopes...)
	link.ExpiresAt = in.ExpiresAt
	link.UpdatedAt = now
	s.byKey[key] = link
	return link, nil
}

func (s *memoryProviderLinkStore) GetByAccount(_ context.Context, providerID string, providerAccountID string) (ProviderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.byKey[providerID+":"+providerAccountID]
	if !ok {
		return ProviderLink{}, fmt.Errorf("core: provider link not found")
	}
	return link, nil
}

func (s *memoryProviderLinkStore) FindByUser(_ context.Context, userID string) ([]ProviderLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ProviderLink{}
	for _, link := range s.byKey {
		if link.UserID == userID {
			out = append(out, link)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryTaskStore struct {
	mu    sync.Mutex
	next  int
	byID  map[string]Task
	byKey map[string]string
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{byID: map[string]Task{}, byKey: map[string]string{}}
}

func (s *memoryTaskStore) Enqueue(_ context.Context, in EnqueueTaskInput) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in.IdempotencyKey != "" {
		if id, ok := s.byKey[in.IdempotencyKey]; ok {
			return s.byID[id], nil
		}
	}
	s.next++
	now := time.Now().UTC()
	task := Task{
		ID:             fmt.Sprintf("task_%d", s.next),
		Kind:           in.Kind,
		IdempotencyKey: in.IdempotencyKey,
		Payload:        cloneFields(in.Payload),
		Status:         TaskStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.byID[task.ID] = task
	if task.IdempotencyKey != "" {
		s.byKey[task.IdempotencyKey] = task.ID
	}
	return task, nil
}

func (s *memoryTaskStore) ClaimBatch(_ context.Context, limit int) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	out := []Task{}
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		task := s.byID[id]
		if task.Status != TaskStatusPending {
			continue
		}
		if task.NextAttemptAt != nil && task.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (s *memoryTaskStore) Ack(_ context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.byID[taskID]
	if !ok {
		return fmt.Errorf("core: task not found")
	}
	if err := task.TransitionTo(TaskStatusDelivered, time.Now().UTC()); err != nil {
		return err
	}
	s.byID[taskID] = task
	return nil
}

func (s *memoryTaskStore) Retry(_ context.Context, taskID string, cause error, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.byID[taskID]
	if !ok {
		return fmt.Errorf("core: task not found")
	}
	task.Attempts++
	if cause != nil {
		task.LastError = cause.Error()
	}
	now := time.Now().UTC()
	if nextAttemptAt.IsZero() {
		task.NextAttemptAt = nil
		if err := task.TransitionTo(TaskStatusFailed, now); err != nil {
			return err
		}
	} else {
		at := nextAttemptAt
		task.NextAttemptAt = &at
		task.UpdatedAt = now
	}
	s.byID[taskID] = task
	return nil
}

func (s *memoryTaskStore) Get(_ context.Context, taskID string) (Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.byID[taskID]
	if !ok {
		return Task{}, fmt.Errorf("core: task not found")
	}
	return task, nil
}

func (s *memoryTaskStore) byKind(kind TaskKind) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Task{}
	for _, task := range s.byID {
		if task.Kind == kind {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memorySyncJobStore struct {
	mu   sync.Mutex
	next int
	byID map[string]SyncJob
}

func newMemorySyncJobStore() *memorySyncJobStore {
	return &memorySyncJobStore{byID: map[string]SyncJob{}}
}

func (s *memorySyncJobStore) Enqueue(_ context.Context, in EnqueueSyncJobInput) (SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	now := time.Now().UTC()
	job := SyncJob{
		ID:         fmt.Sprintf("sync_%d", s.next),
		OrgID:      in.OrgID,
		ProviderID: in.ProviderID,
		ObjectType: in.ObjectType,
		ObjectID:   in.ObjectID,
		Status:     SyncJobStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.byID[job.ID] = job
	return job, nil
}

func (s *memorySyncJobStore) Get(_ context.Context, id string) (SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return SyncJob{}, fmt.Errorf("core: sync job not found")
	}
	return job, nil
}

func (s *memorySyncJobStore) ListByOrg(_ context.Context, orgID string, status SyncJobStatus) ([]SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []SyncJob{}
	for _, job := range s.byID {
		if job.OrgID != orgID {
			continue
		}
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memorySyncJobStore) UpdateStatus(_ context.Context, id string, status SyncJobStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("core: sync job not found")
	}
	if err := job.TransitionTo(status, time.Now().UTC()); err != nil {
		return err
	}
	job.LastError = reason
	s.byID[id] = job
	return nil
}

type stubExchanger struct {
	id           string
	authorizeURL func(state, redirectURI string) (string, error)
	exchangeCode func(ctx context.Context, code, redirectURI string) (identity.Profile, error)
}

func (e stubExchanger) ID() string { return e.id }

func (e stubExchanger) AuthorizeURL(state, redirectURI string) (string, error) {
	if e.authorizeURL != nil {
		return e.authorizeURL(state, redirectURI)
	}
	return "https://example.com/authorize?state=" + state, nil
}

func (e stubExchanger) ExchangeCode(ctx context.Context, code, redirectURI string) (identity.Profile, error) {
	if e.exchangeCode != nil {
		return e.exchangeCode(ctx, code, redirectURI)
	}
	return identity.Profile{
		ProviderID:        e.id,
		ProviderAccountID: "acct_1",
		Email:             "dev@example.com",
		DisplayName:       "Dev Example",
		AccessToken:       "upstream-access",
	}, nil
}

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	return []byte("enc:" + base64.StdEncoding.EncodeToString(plaintext)), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

type captureMetricsRecorder struct {
	mu       sync.Mutex
	counters map[string]int64
	tags     map[string]map[string]string
}

func newCaptureMetricsRecorder() *captureMetricsRecorder {
	return &captureMetricsRecorder{
		counters: map[string]int64{},
		tags:     map[string]map[string]string{},
	}
}

func (r *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += value
	r.tags[name] = cloneTags(tags)
}

func (r *captureMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {
}

func (r *captureMetricsRecorder) counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

func (r *captureMetricsRecorder) counterTags(name string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneTags(r.tags[name])
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type testStores struct {
	sessions    *memorySessionStore
	apiKeys     *memoryAPIKeyStore
	loginStates *MemoryLoginStateStore
	orgs        *memoryOrganizationStore
	memberships *memoryMembershipStore
	users       *memoryUserStore
	links       *memoryProviderLinkStore
	tasks       *memoryTaskStore
	syncJobs    *memorySyncJobStore
	metrics     *captureMetricsRecorder
}

// newTestService wires a Service against in-memory stores with the cheapest
// bcrypt cost so verification tests stay fast.
func newTestService(t *testing.T, options ...Option) (*Service, *testStores) {
	t.Helper()
	stores := &testStores{
		sessions:    newMemorySessionStore(),
		apiKeys:     newMemoryAPIKeyStore(),
		loginStates: NewMemoryLoginStateStore(10 * time.Minute),
		orgs:        newMemoryOrganizationStore(),
		memberships: newMemoryMembershipStore(),
		users:       newMemoryUserStore(),
		links:       newMemoryProviderLinkStore(),
		tasks:       newMemoryTaskStore(),
		syncJobs:    newMemorySyncJobStore(),
		metrics:     newCaptureMetricsRecorder(),
	}
	base := []Option{
		WithLogger(stubLogger{}),
		WithLoggerProvider(stubLoggerProvider{logger: stubLogger{}}),
		WithMetricsRecorder(stores.metrics),
		WithCredentialHasher(NewBcryptHasher(bcrypt.MinCost)),
		WithSessionStore(stores.sessions),
		WithAPIKeyStore(stores.apiKeys),
		WithLoginStateStore(stores.loginStates),
		WithOrganizationStore(stores.orgs),
		WithMembershipStore(stores.memberships),
		WithUserStore(stores.users),
		WithProviderLinkStore(stores.links),
		WithTaskStore(stores.tasks),
		WithSyncJobStore(stores.syncJobs),
	}
	service, err := NewService(DefaultConfig(), append(base, options...)...)
	if err != nil {
		t.Fatalf("build test service: %v", err)
	}
	return service, stores
}

func futureTime() time.Time {
	return time.Now().UTC().Add(time.Hour)
}

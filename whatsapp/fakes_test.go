package whatsapp

import (
	"context"
	"sync"
	"time"

	"wabaconnect/config"
	"wabaconnect/models"
)

type memoryStore struct {
	mu      sync.Mutex
	tenants map[int64]models.TenantAccount
	writes  []models.WhatsAppPatch
	now     time.Time
}

func newMemoryStore(tenants ...models.TenantAccount) *memoryStore {
	s := &memoryStore{tenants: map[int64]models.TenantAccount{}, now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	for _, t := range tenants {
		s.tenants[t.ID] = t
	}
	return s
}

func (s *memoryStore) Get(ctx context.Context, tenantID int64) (models.TenantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return models.TenantAccount{}, ErrTenantNotFound
	}
	return t, nil
}

func (s *memoryStore) UpdateWhatsApp(ctx context.Context, tenantID int64, patch models.WhatsAppPatch) (models.TenantAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return models.TenantAccount{}, ErrTenantNotFound
	}
	patch.ApplyTo(&t)
	t.WhatsAppVersion++
	at := s.now
	t.WhatsAppUpdatedAt = &at
	s.tenants[tenantID] = t
	s.writes = append(s.writes, patch)
	return t, nil
}

func (s *memoryStore) ApplyRemoteWhatsApp(ctx context.Context, tenantID int64, patch models.WhatsAppPatch, observedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return false, ErrTenantNotFound
	}
	if t.WhatsAppUpdatedAt != nil && !observedAt.After(*t.WhatsAppUpdatedAt) {
		return false, nil
	}
	patch.ApplyTo(&t)
	t.WhatsAppVersion++
	t.WhatsAppUpdatedAt = &observedAt
	s.tenants[tenantID] = t
	s.writes = append(s.writes, patch)
	return true, nil
}

func (s *memoryStore) tenant(id int64) models.TenantAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenants[id]
}

func (s *memoryStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

type fakeLinks struct {
	mu        sync.Mutex
	requests  []LinkRequest
	respond   func(req LinkRequest) (LinkResponse, error)
	shared    []SharedAccount
	sharedErr error
}

func (f *fakeLinks) Link(ctx context.Context, req LinkRequest) (LinkResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return LinkResponse{Success: true}, nil
	}
	return respond(req)
}

func (f *fakeLinks) SharedAccounts(ctx context.Context) ([]SharedAccount, error) {
	return f.shared, f.sharedErr
}

func (f *fakeLinks) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLinks) last() LinkRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeStatus struct {
	calls   int
	resp    StatusResponse
	err     error
	lastReq StatusRequest
}

func (f *fakeStatus) Status(ctx context.Context, req StatusRequest) (StatusResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

type scheduled struct {
	tenantID int64
	reason   string
	delays   []time.Duration
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduled
}

func (f *fakeScheduler) Schedule(ctx context.Context, tenantID int64, reason string, delays ...time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, scheduled{tenantID: tenantID, reason: reason, delays: delays})
	return nil
}

type fakeSessions struct {
	saved []models.PendingSignupSession
	err   error
}

func (f *fakeSessions) Save(ctx context.Context, session models.PendingSignupSession) error {
	f.saved = append(f.saved, session)
	return f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.WorkflowEvent
}

func (f *fakePublisher) Publish(ctx context.Context, ev models.WorkflowEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	svc       *Service
	store     *memoryStore
	links     *fakeLinks
	status    *fakeStatus
	scheduler *fakeScheduler
	sessions  *fakeSessions
	events    *fakePublisher
}

const testTenantID = int64(7)

var testOrigins = OriginPolicy{
	Own:     "https://app.example.com",
	Trusted: []string{"facebook.com", "web.facebook.com", "business.facebook.com"},
}

func validTestMode() config.TestModeConfig {
	return config.TestModeConfig{
		Enabled:       true,
		WabaID:        "TESTWABA001",
		PhoneNumberID: "1098765432101",
		PhoneNumber:   "+15550100000",
		AccessToken:   "EAAG0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOP",
	}
}

func newHarness(tenants ...models.TenantAccount) *harness {
	if len(tenants) == 0 {
		tenants = []models.TenantAccount{{ID: testTenantID, Name: "Acme", Status: models.TENANT_STATUS_ACTIVE}}
	}
	h := &harness{
		store:     newMemoryStore(tenants...),
		links:     &fakeLinks{},
		status:    &fakeStatus{},
		scheduler: &fakeScheduler{},
		sessions:  &fakeSessions{},
		events:    &fakePublisher{},
	}
	h.svc = NewService(Deps{
		Store:     h.store,
		Links:     h.links,
		Status:    h.status,
		Refreshes: h.scheduler,
		Sessions:  h.sessions,
		Events:    h.events,
	}, Settings{
		Provider: models.WHATSAPP_PROVIDER_TECH_PROVIDER,
		Signup: SignupSettings{
			BaseURL:     "https://business.facebook.com/messaging/whatsapp/onboard/",
			RedirectURI: "https://app.example.com/api/whatsapp/signup/callback",
			AppID:       "123456",
			ConfigID:    "cfg-1",
			PopupWidth:  600,
			PopupHeight: 700,
		},
		Origins:  testOrigins,
		TestMode: validTestMode(),
	})
	h.svc.now = func() time.Time { return h.store.now }
	return h
}

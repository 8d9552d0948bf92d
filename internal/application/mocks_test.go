package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/troia/campaignsync/internal/domain/model"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockCredentialStore struct {
	mu    sync.Mutex
	cred  *model.Credential
	saves int
	err   error
}

func (m *mockCredentialStore) Get(_ context.Context) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cred == nil {
		return nil, nil
	}
	c := *m.cred
	return &c, nil
}

func (m *mockCredentialStore) Save(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.cred = &cred
	return nil
}

type mockExchanger struct {
	mu        sync.Mutex
	grant     model.TokenGrant
	err       error
	refreshes []string
	codes     []string
	release   chan struct{} // when non-nil, Refresh blocks until closed
}

func (m *mockExchanger) ExchangeCode(_ context.Context, code string) (model.TokenGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, code)
	return m.grant, m.err
}

func (m *mockExchanger) Refresh(_ context.Context, refreshToken string) (model.TokenGrant, error) {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes = append(m.refreshes, refreshToken)
	return m.grant, m.err
}

func (m *mockExchanger) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refreshes)
}

type mockProvider struct {
	listing      []model.UpstreamEmail
	analytics    []model.UpstreamEmail
	listErr      error
	analyticsErr error
	// fetching, when set, receives a value once the listing fetch is in
	// flight; the fetch then blocks until ctx is canceled.
	fetching chan struct{}
	mu       sync.Mutex
	calls    int
}

func (m *mockProvider) FetchCampaignList(ctx context.Context, _, _ int) ([]model.UpstreamEmail, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetching != nil {
		m.fetching <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.listing, m.listErr
}

func (m *mockProvider) FetchAnalytics(_ context.Context, _, _ string) ([]model.UpstreamEmail, error) {
	return m.analytics, m.analyticsErr
}

type mockCampaignStore struct {
	mu        sync.Mutex
	rows      map[string]model.Campaign
	upserts   int
	failAfter int // fail the upsert after this many successes; 0 disables
	err       error
	panicWith any
}

func newMockCampaignStore() *mockCampaignStore {
	return &mockCampaignStore{rows: make(map[string]model.Campaign)}
}

func (m *mockCampaignStore) Upsert(_ context.Context, c model.Campaign) error {
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && m.upserts >= m.failAfter {
		return m.err
	}
	m.upserts++
	m.rows[c.ID] = c
	return nil
}

func (m *mockCampaignStore) ListAll(_ context.Context) ([]model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil && m.failAfter == 0 {
		return nil, m.err
	}
	out := make([]model.Campaign, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCampaignStore) Freshness(_ context.Context) (model.CacheFreshness, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := model.CacheFreshness{Campaigns: len(m.rows)}
	for _, c := range m.rows {
		if f.LastCachedAt == nil || c.CachedAt.After(*f.LastCachedAt) {
			t := c.CachedAt
			f.LastCachedAt = &t
		}
	}
	return f, nil
}

type mockSyncRunStore struct {
	mu        sync.Mutex
	runs      []model.SyncRun
	startErr  error
	abandoned time.Time
}

func (m *mockSyncRunStore) Start(_ context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockSyncRunStore) Finish(_ context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == run.ID && m.runs[i].Status == model.SyncStatusRunning {
			m.runs[i] = run
			return nil
		}
	}
	return driven.ErrRunNotRunning
}

func (m *mockSyncRunStore) ListRecent(_ context.Context, limit int) ([]model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SyncRun, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *mockSyncRunStore) MarkAbandoned(_ context.Context, cutoff time.Time, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = cutoff
	var n int64
	for i := range m.runs {
		if m.runs[i].Status == model.SyncStatusRunning && m.runs[i].StartedAt.Before(cutoff) {
			m.runs[i].Status = model.SyncStatusError
			m.runs[i].Error = message
			n++
		}
	}
	return n, nil
}

func (m *mockSyncRunStore) snapshot() []model.SyncRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SyncRun(nil), m.runs...)
}

type mockFunnelStore struct {
	recorded  []model.FunnelEvent
	summaries []model.FunnelSummary
	err       error
}

func (m *mockFunnelStore) Record(_ context.Context, ev model.FunnelEvent) error {
	m.recorded = append(m.recorded, ev)
	return m.err
}

func (m *mockFunnelStore) Summaries(_ context.Context) ([]model.FunnelSummary, error) {
	return m.summaries, m.err
}

func (m *mockFunnelStore) ListLeads(_ context.Context, limit int) ([]model.FunnelEvent, error) {
	var out []model.FunnelEvent
	for _, ev := range m.recorded {
		if ev.Kind == model.FunnelKindLead && len(out) < limit {
			out = append(out, ev)
		}
	}
	return out, m.err
}

// --- helpers ---

func i64(v int64) *int64 { return &v }
func f64(v float64) *float64 { return &v }
func tp(t time.Time) *time.Time { return &t }

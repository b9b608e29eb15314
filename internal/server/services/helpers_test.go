package services

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/notify"
	"github.com/dmitrijs2005/gophauth/internal/server/password"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/roles"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingHasher wraps the real hasher, counts Verify calls and remembers
// which encoded hashes were checked.
type countingHasher struct {
	*password.Hasher
	verifies atomic.Int64

	mu      sync.Mutex
	checked []string
}

func (h *countingHasher) Verify(encoded, pw string) bool {
	h.verifies.Add(1)
	h.mu.Lock()
	h.checked = append(h.checked, encoded)
	h.mu.Unlock()
	return h.Hasher.Verify(encoded, pw)
}

func (h *countingHasher) verified(encoded string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Contains(h.checked, encoded)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) last() notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

type opRecord struct {
	op, outcome, reason string
}

type recordingMetrics struct {
	mu     sync.Mutex
	ops    []opRecord
	tokens map[string]int
}

func (m *recordingMetrics) Operation(op, outcome, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, opRecord{op, outcome, reason})
}

func (m *recordingMetrics) TokenIssued(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]int{}
	}
	m.tokens[kind]++
}

type fakeLockout struct {
	mu       sync.Mutex
	locked   map[string]bool
	failures map[string]int
	resets   map[string]int
}

func newFakeLockout() *fakeLockout {
	return &fakeLockout{locked: map[string]bool{}, failures: map[string]int{}, resets: map[string]int{}}
}

func (l *fakeLockout) IsLocked(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[id], nil
}

func (l *fakeLockout) RecordFailure(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[id]++
	return nil
}

func (l *fakeLockout) Reset(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resets[id]++
	l.failures[id] = 0
	return nil
}

type harness struct {
	svc     *AuthService
	repos   repomanager.RepositoryManager
	clock   *testClock
	signer  *auth.Signer
	hasher  *countingHasher
	events  *recordingNotifier
	metrics *recordingMetrics
	lockout *fakeLockout
}

func newHarnessWith(t *testing.T, repos repomanager.RepositoryManager, opts ...Option) *harness {
	t.Helper()

	clock := newTestClock()
	signer, err := auth.NewSigner(auth.Config{
		Secret:    testSecret,
		Issuer:    "gophauth",
		Audience:  "gophauth-clients",
		AccessTTL: testAccessTTL,
	}, auth.WithClock(clock.Now))
	require.NoError(t, err)

	ph, err := password.NewHasherWithParams(password.Params{Iterations: 1000, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	h := &harness{
		repos:   repos,
		clock:   clock,
		signer:  signer,
		hasher:  &countingHasher{Hasher: ph},
		events:  &recordingNotifier{},
		metrics: &recordingMetrics{},
		lockout: newFakeLockout(),
	}

	all := append([]Option{
		WithClock(clock.Now),
		WithNotifier(h.events),
		WithMetrics(h.metrics),
		WithLockout(h.lockout),
	}, opts...)
	h.svc, err = NewAuthService(repos, h.hasher, signer, testRefreshTTL, logging.Nop{}, all...)
	require.NoError(t, err)
	return h
}

func newHarness(t *testing.T, opts ...Option) *harness {
	return newHarnessWith(t, repomanager.NewInMemoryRepositoryManager(), opts...)
}

func (h *harness) register(t *testing.T, name string) string {
	t.Helper()
	id, err := h.svc.Register(context.Background(), RegisterRequest{
		UserName:  name,
		Email:     name + "@example.com",
		Password:  "P@ssw0rd!",
		FirstName: "First",
		LastName:  "Last",
	})
	require.NoError(t, err)
	return id
}

// failingRolesManager makes AddMember fail so Register has to roll back.
type failingRolesManager struct {
	*repomanager.InMemoryRepositoryManager
	err error
}

func (m *failingRolesManager) Roles(db dbx.DBTX) roles.Repository {
	return &failingRoles{Repository: m.InMemoryRepositoryManager.Roles(db), err: m.err}
}

type failingRoles struct {
	roles.Repository
	err error
}

func (r *failingRoles) AddMember(context.Context, string, string) error {
	return r.err
}

// flakyAccountsManager fails the next failUpdates account writes with err.
type flakyAccountsManager struct {
	*repomanager.InMemoryRepositoryManager
	err         error
	failUpdates atomic.Int32
}

func (m *flakyAccountsManager) Accounts(db dbx.DBTX) accounts.Repository {
	return &flakyAccounts{Repository: m.InMemoryRepositoryManager.Accounts(db), m: m}
}

type flakyAccounts struct {
	accounts.Repository
	m *flakyAccountsManager
}

func (r *flakyAccounts) Update(ctx context.Context, a *models.Account) error {
	if r.m.failUpdates.Add(-1) >= 0 {
		return r.m.err
	}
	return r.Repository.Update(ctx, a)
}

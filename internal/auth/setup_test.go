package auth

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cayman031/study-with-me/internal/member"
	"github.com/cayman031/study-with-me/internal/observability"
	"github.com/cayman031/study-with-me/internal/password"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	codec, err := NewCodecWithClock(testSecret, 15*time.Minute, 14*24*time.Hour, clock.Now)
	require.NoError(t, err)
	return codec
}

func quietLogger() *observability.Logger {
	return observability.NewLoggerWithWriter(&bytes.Buffer{}, "error")
}

type testEnv struct {
	clock         *fakeClock
	members       *member.MemoryRepository
	store         *MemoryStore
	codec         *Codec
	throttle      *LoginThrottle
	revocations   *RevocationList
	rotation      *RefreshRotation
	service       *Service
	authenticator *Authenticator
	logs          *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := newFakeClock(testStart)
	store := NewMemoryStore()
	members := member.NewMemoryRepository()
	codec := newTestCodec(t, clock)

	throttle := NewLoginThrottle(store, DefaultThrottlePolicy())
	throttle.now = clock.Now
	rotation := NewRefreshRotation(store)
	rotation.now = clock.Now
	revocations := NewRevocationList(store, codec)

	logs := &bytes.Buffer{}
	metrics := observability.NewMetrics()
	service := NewService(members, password.NewBcrypt(bcrypt.MinCost), codec, throttle, revocations, rotation).
		WithObservability(observability.NewLoggerWithWriter(logs, "debug"), metrics)

	return &testEnv{
		clock:         clock,
		members:       members,
		store:         store,
		codec:         codec,
		throttle:      throttle,
		revocations:   revocations,
		rotation:      rotation,
		service:       service,
		authenticator: NewAuthenticator(codec, revocations, members, metrics),
		logs:          logs,
	}
}

func (e *testEnv) signup(t *testing.T, email, plaintext string) member.Member {
	t.Helper()
	m, err := e.service.Signup(context.Background(), SignupInput{Email: email, Password: plaintext, Name: "Tester"})
	require.NoError(t, err)
	return m
}

var errStoreDown = errors.New("store unavailable")

// failingStore fails every revocation and attempt call.
type failingStore struct{}

func (failingStore) AddRevoked(context.Context, string, time.Time) error { return errStoreDown }

func (failingStore) IsRevoked(context.Context, string, time.Time) (bool, error) {
	return false, errStoreDown
}

func (failingStore) LoginAttempt(context.Context, string) (LoginAttempt, error) {
	return LoginAttempt{}, errStoreDown
}

func (failingStore) RegisterFailure(context.Context, string, ThrottlePolicy, time.Time) (LoginAttempt, error) {
	return LoginAttempt{}, errStoreDown
}

func (failingStore) ResetAttempts(context.Context, string, time.Time) error { return errStoreDown }

// Package session keeps the live browser sessions opened for logged-in users,
// addressed by opaque tokens.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"aurionplan/internal/browser"
	appLog "aurionplan/internal/log"
)

var ErrSessionNotFound = errors.New("session not found")

const (
	DefaultIdleTimeout = 30 * time.Minute
	DefaultSweepSpec   = "@every 5m"
)

// Session is one logged-in portal page.
type Session struct {
	Token     string
	Owner     string
	Page      browser.Page
	CreatedAt time.Time

	lastUsed atomic.Int64
	// guard serializes page operations; a token is never driven by two
	// requests at once.
	guard chan struct{}
}

// LastUsed reports when the session was last touched.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch(t time.Time) {
	s.lastUsed.Store(t.UnixNano())
}

func (s *Session) tryLock() bool {
	select {
	case s.guard <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) unlock() { <-s.guard }

type Options struct {
	IdleTimeout time.Duration
	// SweepSpec is a robfig/cron schedule for the idle sweep.
	SweepSpec string
	Now       func() time.Time
}

// Manager owns every session and closes idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idle time.Duration
	spec string
	now  func() time.Time

	cron *cron.Cron
}

func NewManager(opts Options) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.SweepSpec == "" {
		opts.SweepSpec = DefaultSweepSpec
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		idle:     opts.IdleTimeout,
		spec:     opts.SweepSpec,
		now:      opts.Now,
	}
}

// NewToken returns 32 lowercase hex characters of crypto randomness.
func NewToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Create registers page for owner and returns its token.
func (m *Manager) Create(owner string, page browser.Page) (string, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var token string
	for {
		t, err := NewToken()
		if err != nil {
			return "", err
		}
		if _, taken := m.sessions[t]; !taken {
			token = t
			break
		}
	}

	s := &Session{
		Token:     token,
		Owner:     owner,
		Page:      page,
		CreatedAt: now,
		guard:     make(chan struct{}, 1),
	}
	s.touch(now)
	m.sessions[token] = s

	appLog.Info("session created", "token", appLog.Redact(token), "owner", owner, "active", len(m.sessions))
	return token, nil
}

func (m *Manager) Get(token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Touch marks the session as used now.
func (m *Manager) Touch(token string) error {
	s, err := m.Get(token)
	if err != nil {
		return err
	}
	s.touch(m.now())
	return nil
}

// Acquire waits for exclusive use of the session. The returned release
// function must be called exactly once. The session is touched on acquire
// and on release, so the idle sweep never closes it while in use.
func (m *Manager) Acquire(ctx context.Context, token string) (*Session, func(), error) {
	s, err := m.Get(token)
	if err != nil {
		return nil, nil, err
	}

	select {
	case s.guard <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	// Closed while we were waiting.
	if _, err := m.Get(token); err != nil {
		s.unlock()
		return nil, nil, err
	}
	s.touch(m.now())

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.touch(m.now())
			s.unlock()
		})
	}
	return s, release, nil
}

// Close removes the session and releases its browser once no request holds
// it. Closing an unknown token is a no-op; browser release failures are
// logged, not returned. The only error is ctx ending while a request still
// holds the session, which is then left in place.
func (m *Manager) Close(ctx context.Context, token string) error {
	s, err := m.Get(token)
	if err != nil {
		return nil
	}

	select {
	case s.guard <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer s.unlock()

	m.mu.Lock()
	cur, ok := m.sessions[token]
	ok = ok && cur == s
	if ok {
		delete(m.sessions, token)
	}
	m.mu.Unlock()

	if ok {
		closePage(s, "logout")
	}
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout. Sessions
// currently held through Acquire are left alone. It returns how many
// sessions were closed.
func (m *Manager) Sweep() int {
	now := m.now()

	var expired []*Session
	m.mu.Lock()
	for token, s := range m.sessions {
		if now.Sub(s.LastUsed()) <= m.idle {
			continue
		}
		if !s.tryLock() {
			continue
		}
		delete(m.sessions, token)
		expired = append(expired, s)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		closePage(s, "idle")
		s.unlock()
	}
	if len(expired) > 0 {
		appLog.Info("idle sessions closed", "closed", len(expired), "active", remaining)
	}
	return len(expired)
}

// Start schedules the idle sweep.
func (m *Manager) Start() error {
	c := cron.New(cron.WithLogger(cronLogger{}))
	if _, err := c.AddFunc(m.spec, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", m.spec, err)
	}
	c.Start()

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	appLog.Info("session sweep scheduled", "spec", m.spec, "idle", m.idle)
	return nil
}

// Shutdown stops the sweep and closes every session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, s := range sessions {
		closePage(s, "shutdown")
	}
	return nil
}

func closePage(s *Session, reason string) {
	if s.Page == nil {
		return
	}
	if err := s.Page.Close(); err != nil {
		appLog.Error("failed to close session browser", err, "token", appLog.Redact(s.Token), "reason", reason)
		return
	}
	appLog.Debug("session browser closed", "token", appLog.Redact(s.Token), "owner", s.Owner, "reason", reason)
}

// cronLogger routes cron's own diagnostics to the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

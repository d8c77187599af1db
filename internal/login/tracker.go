// Package login hosts the social adapter behind an HTTP API. Logins run in
// the background and are polled by their login id.
package login

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Status is the lifecycle state of a tracked login.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ErrNotFound is returned for unknown or expired login ids.
var ErrNotFound = errors.New("login not found")

// Attempt is a snapshot of a tracked login.
type Attempt struct {
	ID           string              `json:"login_id"`
	Provider     social.Provider     `json:"provider"`
	Status       Status              `json:"status"`
	AuthorizeURL string              `json:"authorize_url,omitempty"`
	Result       *social.LoginResult `json:"result,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

type entry struct {
	mu      sync.Mutex
	attempt Attempt
	// changed is closed on the first authorize URL or result.
	changed chan struct{}
	closed  bool
}

func (e *entry) snapshot() Attempt {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.attempt
	if a.Result != nil {
		r := *a.Result
		a.Result = &r
	}
	return a
}

func (e *entry) signal() {
	if !e.closed {
		e.closed = true
		close(e.changed)
	}
}

// Tracker keeps login attempts in a TTL cache.
type Tracker struct {
	cache *gocache.Cache
	now   func() time.Time
}

// NewTracker creates a tracker that forgets attempts after ttl.
func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{
		cache: gocache.New(ttl, 2*ttl),
		now:   time.Now,
	}
}

// Begin starts tracking a new login for provider.
func (t *Tracker) Begin(provider social.Provider) Attempt {
	e := &entry{
		attempt: Attempt{
			ID:        uuid.NewString(),
			Provider:  provider,
			Status:    StatusPending,
			CreatedAt: t.now().UTC(),
		},
		changed: make(chan struct{}),
	}
	t.cache.Set(e.attempt.ID, e, gocache.DefaultExpiration)
	return e.snapshot()
}

func (t *Tracker) entry(id string) (*entry, bool) {
	v, ok := t.cache.Get(id)
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	return e, ok
}

// SetAuthorizeURL records the page the user has to visit.
func (t *Tracker) SetAuthorizeURL(id, url string) error {
	e, ok := t.entry(id)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempt.AuthorizeURL = url
	e.signal()
	return nil
}

// Complete stores the final result and restarts the expiry clock so the
// poller has a full TTL to read it.
func (t *Tracker) Complete(id string, result social.LoginResult) error {
	e, ok := t.entry(id)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	now := t.now().UTC()
	e.attempt.Status = StatusCompleted
	e.attempt.Result = &result
	e.attempt.CompletedAt = &now
	e.signal()
	e.mu.Unlock()

	t.cache.Set(id, e, gocache.DefaultExpiration)
	return nil
}

// Get returns the attempt. A completed attempt is handed out once and then
// forgotten.
func (t *Tracker) Get(id string) (Attempt, error) {
	e, ok := t.entry(id)
	if !ok {
		return Attempt{}, ErrNotFound
	}
	a := e.snapshot()
	if a.Status == StatusCompleted {
		t.cache.Delete(id)
	}
	return a, nil
}

// Await blocks until the attempt has an authorize URL or a result, or ctx is
// done, and returns its current state.
func (t *Tracker) Await(ctx context.Context, id string) (Attempt, error) {
	e, ok := t.entry(id)
	if !ok {
		return Attempt{}, ErrNotFound
	}
	select {
	case <-e.changed:
	case <-ctx.Done():
	}
	return e.snapshot(), nil
}

// Pending is the number of tracked attempts.
func (t *Tracker) Pending() int {
	return t.cache.ItemCount()
}

package shell

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/form"
	"github.com/tbourn/go-donation-tracker/internal/live"
)

// Session owns one user's State and applies transitions one at a time.
type Session struct {
	mu       sync.Mutex
	state    State
	form     *form.Controller
	lastSeen time.Time

	cancel    context.CancelFunc
	done      chan struct{}
	listening bool
	stopped   bool

	subMu sync.Mutex // serializes (re)subscription
}

// NewSession returns a session holding initial.
func NewSession(initial State) *Session {
	return &Session{state: initial, lastSeen: time.Now(), done: make(chan struct{})}
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply runs fn on the current state, stores the result and returns it.
func (s *Session) Apply(fn func(State) State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	s.lastSeen = time.Now()
	return s.state
}

// OpenForm attaches c as the active add/edit form, replacing any other.
func (s *Session) OpenForm(c *form.Controller) {
	s.mu.Lock()
	s.form = c
	s.mu.Unlock()
}

// Form returns the active form.
func (s *Session) Form() (*form.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form, s.form != nil
}

// CloseForm drops the active form.
func (s *Session) CloseForm() {
	s.mu.Lock()
	s.form = nil
	s.mu.Unlock()
}

// Visible returns the sorted, filtered rows for display.
func (s *Session) Visible() []domain.Donation {
	return s.State().Visible()
}

// Done is closed when the current snapshot loop has stopped.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Consume replaces the mirror with every snapshot received on snaps until
// the channel closes or ctx ends.
func (s *Session) Consume(ctx context.Context, snaps <-chan live.Snapshot) {
	s.mu.Lock()
	done := s.done
	s.listening = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.listening = false
		s.mu.Unlock()
		close(done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			s.mu.Lock()
			s.state = s.state.ReplaceCollection(snap.Version, snap.Donations)
			s.mu.Unlock()
		}
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// listen subscribes s to hub unless a snapshot loop is already running or
// the session was stopped. A failed subscription is logged; the mirror keeps
// its last snapshot and the next listen tries again.
func (s *Session) listen(hub Subscriber, key string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.mu.Lock()
	skip := s.listening || s.stopped
	s.mu.Unlock()
	if skip {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	snaps, err := hub.Subscribe(ctx)
	if err != nil {
		cancel()
		log.Warn().Err(err).Str("session", key).Msg("live subscription failed")
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	s.listening = true
	s.mu.Unlock()
	go s.Consume(ctx, snaps)
}

// stop ends the snapshot loop for good.
func (s *Session) stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Subscriber is the part of live.Hub a Registry needs.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan live.Snapshot, error)
}

// Registry keeps one Session per user and evicts idle ones.
type Registry struct {
	hub     Subscriber
	initial State
	ttl     time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry returns a registry whose sessions start from initial and are
// evicted after ttl without use.
func NewRegistry(hub Subscriber, initial State, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Registry{
		hub:      hub,
		initial:  initial,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for key, creating it on first use. A session
// without a running snapshot loop (first use, or an earlier subscription
// failure) is subscribed again, outside the registry lock.
func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = NewSession(r.initial)
		r.sessions[key] = s
	}
	r.mu.Unlock()

	s.touch()
	s.listen(r.hub, key)
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for at least ttl as of now and returns how many
// were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, s := range r.sessions {
		if now.Sub(s.idleSince()) >= r.ttl {
			s.stop()
			delete(r.sessions, k)
			n++
		}
	}
	return n
}

// Run sweeps periodically until ctx ends, then closes every session.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case now := <-t.C:
			if n := r.Sweep(now); n > 0 {
				log.Debug().Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}

// Close cancels every session subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.sessions {
		s.stop()
		delete(r.sessions, k)
	}
}

package server

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/docscan-mcp/internal/editor"
)

var (
	// ErrSessionNotFound is returned for an unknown, finished or expired
	// session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when the open session limit is reached.
	ErrTooManySessions = errors.New("too many open sessions")
)

// session is one editing session over a decoded photo.
type session struct {
	id      string
	path    string
	image   *image.NRGBA
	editor  *editor.Editor
	created time.Time

	// lastUsed is guarded by sessionStore.mu.
	lastUsed time.Time
}

// sessionStore tracks open sessions by UUID. Sessions idle for longer than
// timeout are dropped on the next create or get.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	max      int
	timeout  time.Duration
	now      func() time.Time

	// released is called, without the lock held, for every session that
	// leaves the store.
	released func(s *session, reason string)
}

func newSessionStore(limit int, timeout time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		max:      limit,
		timeout:  timeout,
		now:      time.Now,
	}
}

func (st *sessionStore) create(path string, img *image.NRGBA, opts editor.Options) (*session, error) {
	st.mu.Lock()
	expired := st.expireLocked()
	if st.max > 0 && len(st.sessions) >= st.max {
		st.mu.Unlock()
		st.release(expired, "expired")
		return nil, fmt.Errorf("%w (limit %d)", ErrTooManySessions, st.max)
	}
	now := st.now()
	b := img.Bounds()
	s := &session{
		id:       uuid.NewString(),
		path:     path,
		image:    img,
		editor:   editor.New(b.Dx(), b.Dy(), opts),
		created:  now,
		lastUsed: now,
	}
	st.sessions[s.id] = s
	st.mu.Unlock()

	st.release(expired, "expired")
	return s, nil
}

func (st *sessionStore) get(id string) (*session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session_id %q: must be a valid UUID", id)
	}
	st.mu.Lock()
	expired := st.expireLocked()
	s, ok := st.sessions[id]
	if ok {
		s.lastUsed = st.now()
	}
	st.mu.Unlock()

	st.release(expired, "expired")
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// remove drops a finished session.
func (st *sessionStore) remove(id string, reason string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		st.release([]*session{s}, reason)
	}
}

// closeAll cancels and drops every open session.
func (st *sessionStore) closeAll() int {
	st.mu.Lock()
	all := make([]*session, 0, len(st.sessions))
	for id, s := range st.sessions {
		all = append(all, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	st.release(all, "shutdown")
	return len(all)
}

// inUse reports whether an open session was started on path.
func (st *sessionStore) inUse(path string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, s := range st.sessions {
		if s.path == path {
			return true
		}
	}
	return false
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *sessionStore) expireLocked() []*session {
	if st.timeout <= 0 {
		return nil
	}
	now := st.now()
	var expired []*session
	for id, s := range st.sessions {
		if now.Sub(s.lastUsed) > st.timeout {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	return expired
}

func (st *sessionStore) release(sessions []*session, reason string) {
	for _, s := range sessions {
		if !s.editor.Closed() {
			_ = s.editor.Cancel()
		}
		if st.released != nil {
			st.released(s, reason)
		}
	}
}

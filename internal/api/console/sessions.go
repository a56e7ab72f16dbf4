package console

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/johnwards/dealerhub/internal/view"
)

// CookieName names the console session cookie.
const CookieName = "dealerhub_session"

// session holds the live screens of one console user.
type session struct {
	mu      sync.Mutex
	closed  bool
	screens map[string]*view.Screen
}

// screen returns the session's screen for cfg, creating it with newScreen
// on first use. The flag reports whether it was just created. A closed
// session returns nil.
func (s *session) screen(cfg *view.Config, newScreen func(*view.Config) *view.Screen) (*view.Screen, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	if scr, ok := s.screens[cfg.Name]; ok {
		return scr, false
	}
	scr := newScreen(cfg)
	s.screens[cfg.Name] = scr
	return scr, true
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, scr := range s.screens {
		scr.Close()
	}
	clear(s.screens)
}

// Sessions keeps console sessions in a bounded LRU. A session expires ttl
// after its last use; evicted sessions close their screens, cancelling any
// request still in flight.
type Sessions struct {
	cache *expirable.LRU[string, *session]
	ttl   time.Duration
}

// NewSessions creates a session cache holding at most size sessions.
func NewSessions(size int, ttl time.Duration) *Sessions {
	return &Sessions{
		cache: expirable.NewLRU(size, func(_ string, s *session) { s.close() }, ttl),
		ttl:   ttl,
	}
}

// Len returns the number of live sessions.
func (ss *Sessions) Len() int {
	return ss.cache.Len()
}

// Close closes every session.
func (ss *Sessions) Close() {
	ss.cache.Purge()
}

// acquire returns the session named by the request cookie, starting a new
// one (and setting the cookie) when there is none.
func (ss *Sessions) acquire(w http.ResponseWriter, r *http.Request) *session {
	if c, err := r.Cookie(CookieName); err == nil {
		if s, ok := ss.cache.Get(c.Value); ok {
			// Re-adding refreshes the expiry.
			ss.cache.Add(c.Value, s)
			return s
		}
	}

	id := uuid.NewString()
	s := &session{screens: make(map[string]*view.Screen)}
	ss.cache.Add(id, s)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ss.ttl / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

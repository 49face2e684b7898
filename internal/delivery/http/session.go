package http

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/cartcompass/backend/internal/domain"
)

const sessionTTL = 2 * time.Hour

// Session is one shopping conversation's working state: the confirmed spec,
// the ranked pools discovery produced, and the cart once one is built.
// Pool slices and liked snapshots are never mutated in place after ranking;
// handlers replace them wholesale through SessionStore.Update.
type Session struct {
	ID        string
	UserID    string
	Spec      domain.ShoppingSpec
	Liked     []domain.LikedSnapshot // nil means no preference profile
	Pools     map[domain.Category][]domain.RankedProduct
	Cart      *domain.Cart
	createdAt time.Time
}

// snapshot returns an independent copy safe to read and mutate outside the
// store lock. The pools map and cart are copied; the slices they reference
// are treated as immutable.
func (s *Session) snapshot() Session {
	out := *s
	pools := make(map[domain.Category][]domain.RankedProduct, len(s.Pools))
	for category, pool := range s.Pools {
		pools[category] = pool
	}
	out.Pools = pools
	if s.Cart != nil {
		cart := *s.Cart
		out.Cart = &cart
	}
	return out
}

// SessionStore keeps sessions in memory behind one mutex. Session state is
// conversation-scoped and cheap to rebuild, so losing it on restart is fine.
// Reads hand out snapshot copies; all writes go through Update, so concurrent
// requests on one session never share mutable state.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns a snapshot of it.
func (s *SessionStore) Create(
	userID string,
	spec domain.ShoppingSpec,
	liked []domain.LikedSnapshot,
	pools map[domain.Category][]domain.RankedProduct,
) Session {
	session := &Session{
		ID:        newSessionID(),
		UserID:    userID,
		Spec:      spec,
		Liked:     liked,
		Pools:     pools,
		createdAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	s.sessions[session.ID] = session
	return session.snapshot()
}

// Get returns a snapshot copy of a session by id.
func (s *SessionStore) Get(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || time.Since(session.createdAt) > sessionTTL {
		return Session{}, false
	}
	return session.snapshot(), true
}

// Update applies fn to the live session under the store lock, so concurrent
// mutations on the same session serialize. fn must only assign fresh values,
// never mutate the structures it finds.
func (s *SessionStore) Update(id string, fn func(*Session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || time.Since(session.createdAt) > sessionTTL {
		return false
	}
	fn(session)
	return true
}

// evictExpired runs under the store lock.
func (s *SessionStore) evictExpired() {
	for id, session := range s.sessions {
		if time.Since(session.createdAt) > sessionTTL {
			delete(s.sessions, id)
		}
	}
}

func newSessionID() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

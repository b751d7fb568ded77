package signup

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

const (
	defaultClientTTL  = 24 * time.Hour
	defaultMaxClients = 10000
)

// RemoteAddrLocal is the router local that holds the peer address the
// submission limiter keys on
const RemoteAddrLocal = "signup_remote_addr"

// ClientState is what the server keeps per browser: its session store
// and the pending flags the busy status is read from.
type ClientState struct {
	ID             string
	Store          *SessionStore
	AccountPending PendingFlag
	SessionPending PendingFlag

	mu       sync.Mutex
	lastSeen time.Time
}

// BusyState reads the client's pending sources now
func (s *ClientState) BusyState() BusyState {
	return readBusyState(&s.AccountPending, &s.SessionPending, s.Store)
}

func (s *ClientState) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *ClientState) seenAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *ClientState) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen.Before(cutoff)
}

// ClientRegistry maps client cookies to ClientState and evicts idle
// clients. It holds at most max clients.
type ClientRegistry struct {
	resolver SessionResolver
	ttl      time.Duration
	max      int
	logger   Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*ClientState
}

// ClientRegistryOption configures a ClientRegistry
type ClientRegistryOption func(*ClientRegistry)

// WithMaxClients caps the number of tracked clients
func WithMaxClients(n int) ClientRegistryOption {
	return func(r *ClientRegistry) {
		if n > 0 {
			r.max = n
		}
	}
}

func NewClientRegistry(resolver SessionResolver, ttl time.Duration, logger Logger, opts ...ClientRegistryOption) *ClientRegistry {
	if ttl <= 0 {
		ttl = defaultClientTTL
	}
	r := &ClientRegistry{
		resolver: resolver,
		ttl:      ttl,
		max:      defaultMaxClients,
		logger:   normalizeLogger(logger),
		now:      time.Now,
		clients:  map[string]*ClientState{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the tracked state for id. Unknown clients get a state
// that is not tracked, so reads never grow the registry.
func (r *ClientRegistry) Lookup(id, token string) *ClientState {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if state := r.known(strings.TrimSpace(id), token, now); state != nil {
		return state
	}
	return r.newState(id, token, now)
}

// Get returns the state for id, tracking a new client when id is
// unknown. A new client store is seeded with token. At capacity the
// least recently seen idle client is evicted first.
func (r *ClientRegistry) Get(id, token string) *ClientState {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if state := r.known(strings.TrimSpace(id), token, now); state != nil {
		return state
	}

	if len(r.clients) >= r.max {
		r.evictOldest()
	}

	state := r.newState(id, token, now)
	r.clients[state.ID] = state
	return state
}

func (r *ClientRegistry) known(id, token string, now time.Time) *ClientState {
	state, ok := r.clients[id]
	if !ok || id == "" {
		return nil
	}
	state.touch(now)
	if state.Store.Token() == "" && token != "" {
		state.Store.SetToken(token)
	}
	return state
}

func (r *ClientRegistry) newState(id, token string, now time.Time) *ClientState {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	state := &ClientState{
		ID:    id,
		Store: NewSessionStore(r.resolver, WithSessionToken(token), WithStoreLogger(r.logger)),
	}
	state.touch(now)
	return state
}

// evictOldest drops the least recently seen client with nothing in
// flight. Busy clients are never dropped.
func (r *ClientRegistry) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, state := range r.clients {
		if state.BusyState().Busy() {
			continue
		}
		seen := state.seenAt()
		if oldestID == "" || seen.Before(oldest) {
			oldestID, oldest = id, seen
		}
	}

	if oldestID == "" {
		r.logger.Warn("client registry full with %d busy clients", len(r.clients))
		return
	}
	delete(r.clients, oldestID)
}

// Sweep drops clients idle longer than the TTL that have nothing in
// flight. It returns how many were dropped.
func (r *ClientRegistry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	dropped := 0
	for id, state := range r.clients {
		if state.idleSince(cutoff) && !state.BusyState().Busy() {
			delete(r.clients, id)
			dropped++
		}
	}
	return dropped
}

func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (r *ClientRegistry) TTL() time.Duration {
	return r.ttl
}

func setCookie(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// RemoteAddr stores c.IP() under RemoteAddrLocal. Forwarding headers
// only count when the fiber app sets ProxyHeader with TrustedProxies.
func RemoteAddr() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(RemoteAddrLocal, c.IP())
		return c.Next()
	}
}

package sandbox

import (
	"context"
	"sync"
	"time"
)

// DefaultReplayTTL is how long a response stays replayable.
const DefaultReplayTTL = 10 * time.Minute

// Response is a recorded HTTP response.
type Response struct {
	Status int
	Body   []byte
}

// ReplayStatus is the outcome of Begin.
type ReplayStatus int

const (
	// ReplayNotFound means the caller now holds a Reservation and must serve the request.
	ReplayNotFound ReplayStatus = iota
	// ReplayCached means a recorded response exists.
	ReplayCached
	// ReplayInFlight means another request with the same key is being served.
	ReplayInFlight
)

// entry is one request id. done closes once the serving request records or releases it.
type entry struct {
	done     chan struct{}
	resp     Response
	recorded bool
	expires  time.Time
}

// ReplayCache records responses by request id so a retried POST gets the first
// response instead of acting twice.
type ReplayCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
}

func NewReplayCache(ttl time.Duration) *ReplayCache {
	if ttl <= 0 {
		ttl = DefaultReplayTTL
	}
	return &ReplayCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// Lookup is the result of Begin. Exactly one of Response (cached), the in-flight entry
// (use Await) or Reservation (not found) is meaningful, as selected by Status.
type Lookup struct {
	Status      ReplayStatus
	Response    Response
	Reservation *Reservation
	pending     *entry
}

// Reservation is held by the request serving a key. Release must always be called;
// after Record it does nothing.
type Reservation struct {
	cache *ReplayCache
	key   string
	e     *entry
	once  sync.Once
}

// Begin looks key up and reserves it when nobody has served it yet.
func (c *ReplayCache) Begin(key string) Lookup {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		switch {
		case !e.recorded:
			return Lookup{Status: ReplayInFlight, pending: e}
		case time.Now().Before(e.expires):
			return Lookup{Status: ReplayCached, Response: e.resp}
		default:
			delete(c.entries, key)
		}
	}

	e := &entry{done: make(chan struct{})}
	c.entries[key] = e
	return Lookup{
		Status:      ReplayNotFound,
		Reservation: &Reservation{cache: c, key: key, e: e},
	}
}

// Await blocks until the in-flight request of l settles. ok is false when it released
// its reservation without recording a response.
func (c *ReplayCache) Await(ctx context.Context, l Lookup) (resp Response, ok bool, err error) {
	if l.pending == nil {
		return l.Response, l.Status == ReplayCached, nil
	}
	select {
	case <-l.pending.done:
		return l.pending.resp, l.pending.recorded, nil
	case <-ctx.Done():
		return Response{}, false, ctx.Err()
	}
}

// Get returns the recorded, unexpired response for key.
func (c *ReplayCache) Get(key string) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || !e.recorded || time.Now().After(e.expires) {
		return Response{}, false
	}
	return e.resp, true
}

// Record stores resp for replay and wakes the waiters.
func (r *Reservation) Record(resp Response) {
	r.once.Do(func() {
		c := r.cache
		c.mu.Lock()
		defer c.mu.Unlock()

		now := time.Now()
		r.e.resp = resp
		r.e.recorded = true
		r.e.expires = now.Add(c.ttl)
		close(r.e.done)

		for k, e := range c.entries {
			if e.recorded && now.After(e.expires) {
				delete(c.entries, k)
			}
		}
	})
}

// Release frees an unrecorded key so the request may be retried, and wakes the waiters.
func (r *Reservation) Release() {
	r.once.Do(func() {
		c := r.cache
		c.mu.Lock()
		defer c.mu.Unlock()

		if c.entries[r.key] == r.e {
			delete(c.entries, r.key)
		}
		close(r.e.done)
	})
}

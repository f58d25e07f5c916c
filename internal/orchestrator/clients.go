package orchestrator

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/inferna-ai/inferna/internal/transport"
)

// Dial lazily creates a transport.Caller bound to a worker's address. The
// orchestrator supplies a concrete implementation (in-process for
// co-located workers, HTTP otherwise) at construction time.
type Dial func(address string) (transport.Caller, error)

// clientCache keeps one transport.Caller per worker id, created lazily and
// closed on unregister or on unrecoverable transport failure so the next
// call re-creates it (spec.md §4.4.4's "RPC-client cache" contract). A flat
// id->Caller map with no cross-entry invariant to protect, so it uses
// xsync.MapOf the way controller.go uses it for activeModelInstances,
// instead of a mutex-guarded map.
type clientCache struct {
	dial    Dial
	callers *xsync.MapOf[string, transport.Caller]
}

func newClientCache(dial Dial) *clientCache {
	return &clientCache{dial: dial, callers: xsync.NewMapOf[string, transport.Caller]()}
}

func (c *clientCache) getOrCreate(id, address string) (transport.Caller, error) {
	if caller, ok := c.callers.Load(id); ok {
		return caller, nil
	}
	caller, err := c.dial(address)
	if err != nil {
		return nil, fmt.Errorf("dialing worker %q: %w", id, err)
	}
	// Another goroutine may have dialed concurrently; keep whichever won and
	// close the loser so only one live Caller per worker id survives.
	winner, loaded := c.callers.LoadOrStore(id, caller)
	if loaded {
		_ = caller.Close()
	}
	return winner, nil
}

// evict closes and drops the cached caller for id, forcing the next
// getOrCreate to dial fresh. Called on unregister and on transport errors.
func (c *clientCache) evict(id string) {
	if caller, ok := c.callers.LoadAndDelete(id); ok {
		_ = caller.Close()
	}
}

func (c *clientCache) closeAll() {
	c.callers.Range(func(id string, caller transport.Caller) bool {
		_ = caller.Close()
		c.callers.Delete(id)
		return true
	})
}

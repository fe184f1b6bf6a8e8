// Package snapshot holds the current, immutable configuration Snapshot and
// its derived Matcher Index behind a single-writer, many-reader cell (§4.1).
package snapshot

import (
	"sync"
	"sync/atomic"

	"github.com/agentgateway/agentgateway/matcher"
	"github.com/agentgateway/agentgateway/model"
)

// Handle is the shared, immutable value returned by Store.Current: a
// Snapshot paired with its pre-built Matcher Index. A request uses exactly
// one Handle from acceptance to completion (§4.1's invariant); holding a
// Handle keeps both the raw Snapshot and its Index alive regardless of how
// many times Store.Publish is called afterward.
type Handle struct {
	Snapshot *model.Snapshot
	Index    *matcher.Index
}

// Subscriber is sent every Handle published after it subscribes, in
// publish order. Store.Publish fans out to subscribers without waiting for
// slow ones to drain, mirroring dispatch.Dispatcher's non-blocking
// broadcast: a Handle whose send would block is dropped for that
// subscriber.
type Subscriber chan<- *Handle

// Store is the Config Snapshot Store of §4.1. The zero Store is ready to
// use.
type Store struct {
	current atomic.Pointer[Handle]

	mu          sync.Mutex
	subscribers []Subscriber
}

// New constructs an empty Store. Callers must call Publish at least once
// before Current returns a usable Handle (Current returns nil, false until
// then).
func New() *Store {
	return &Store{}
}

// Publish atomically replaces the current Snapshot. snap is deep-copied
// before anything else touches it, and the Index is built from that copy
// rather than from the caller's snap -- so a publisher that goes on
// mutating its *model.Snapshot after Publish returns cannot corrupt the
// Index an in-flight request is matching against (Index stores pointers
// into its input Snapshot's backing arrays). The previous Handle remains
// valid and usable by any request that had already observed it (§4.1);
// publication is linearizable: any request beginning after Publish
// returns sees at least this Snapshot (§5).
func (s *Store) Publish(snap *model.Snapshot) {
	cp := model.CopySnapshot(snap)
	h := &Handle{Snapshot: cp, Index: matcher.Build(cp)}
	s.current.Store(h)

	s.mu.Lock()
	subs := s.subscribers
	s.mu.Unlock()
	for _, sub := range subs {
		select {
		case sub <- h:
		default:
		}
	}
}

// Current returns the shared Handle in effect at the moment of the call.
// Its lifetime is at least the caller's use (Go's garbage collector keeps
// the referenced Snapshot and Index alive as long as the Handle is
// reachable).
func (s *Store) Current() (*Handle, bool) {
	h := s.current.Load()
	if h == nil {
		return nil, false
	}
	return h, true
}

// Subscribe registers sub to be sent every Handle published after this
// call (sends that would block are dropped). Request handling never subscribes -- it always reads Current()
// once at acceptance per §4.1 -- this exists for collaborators that react
// to configuration changes out of band (e.g. a future metrics sidecar).
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

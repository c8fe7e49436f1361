// Package poller keeps derived views fresh without a push transport.
// Each query key owns a recurring fetch; the latest successful result
// fully replaces the cached snapshot (last-fetch-wins), and writes that
// touch a key's data invalidate it for an immediate refetch instead of
// waiting out the interval.
package poller

import (
	"context"
	"log"
	"sync"
	"time"
)

const fetchTimeout = 10 * time.Second

type FetchFunc func(ctx context.Context) (any, error)

type Coordinator struct {
	mu        sync.RWMutex
	subs      map[string]*Subscription
	snapshots map[string]any
}

type Subscription struct {
	key         string
	interval    time.Duration
	fetch       FetchFunc
	coordinator *Coordinator

	kick   chan struct{}
	done   chan struct{}
	cancel sync.Once
}

func NewCoordinator() *Coordinator {
	return &Coordinator{
		subs:      make(map[string]*Subscription),
		snapshots: make(map[string]any),
	}
}

// Subscribe registers a recurring fetch for key. An existing subscription
// for the same key is replaced. The first fetch runs immediately so Get
// has data before the first interval elapses.
func (c *Coordinator) Subscribe(key string, interval time.Duration, fetch FetchFunc) *Subscription {
	sub := &Subscription{
		key:         key,
		interval:    interval,
		fetch:       fetch,
		coordinator: c,
		kick:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	// Swap the map entry first and cancel the old subscription outside the
	// lock: Cancel re-acquires mu to compare-and-delete its own entry.
	c.mu.Lock()
	prev := c.subs[key]
	c.subs[key] = sub
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}

	go sub.run()
	return sub
}

func (c *Coordinator) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[key]
	return ok
}

// Get returns the last stored snapshot for key, if any.
func (c *Coordinator) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot, ok := c.snapshots[key]
	return snapshot, ok
}

// Invalidate wakes the given keys for an immediate refetch. Mutating
// operations call this so user-initiated writes do not wait out the
// polling interval. Unknown keys are ignored.
func (c *Coordinator) Invalidate(keys ...string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range keys {
		if sub, ok := c.subs[key]; ok {
			select {
			case sub.kick <- struct{}{}:
			default:
			}
		}
	}
}

// Stop cancels every subscription. Snapshots stay readable.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

// Cancel stops future fetches. An in-flight fetch is allowed to finish;
// its result is discarded.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		close(s.done)
		s.coordinator.mu.Lock()
		if s.coordinator.subs[s.key] == s {
			delete(s.coordinator.subs, s.key)
		}
		s.coordinator.mu.Unlock()
	})
}

func (s *Subscription) run() {
	s.refresh()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-s.kick:
			s.refresh()
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Subscription) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	result, err := s.fetch(ctx)
	if err != nil {
		// Degrade to the stale snapshot; the next tick retries.
		log.Printf("poll fetch for %q failed: %v", s.key, err)
		return
	}

	select {
	case <-s.done:
		// Torn down while the fetch was in flight.
		return
	default:
	}

	s.coordinator.mu.Lock()
	if s.coordinator.subs[s.key] == s {
		s.coordinator.snapshots[s.key] = result
	}
	s.coordinator.mu.Unlock()
}

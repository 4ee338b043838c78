package report

import (
	"fmt"
	"sync"
)

// LRUStore keeps the most recently saved or inspected runs in memory in
// front of a backing Store, typically a DiskStore. An MCP session usually
// inspects the run it has just started, so those lookups never reach disk.
// A nil backing store keeps runs in memory only; runs pushed out of the
// cache are then gone.
type LRUStore struct {
	mu       sync.Mutex
	capacity int
	back     Store

	runs map[string]*cachedRun
	// recent is a sentinel: recent.next is the newest run, recent.prev
	// the next to be dropped.
	recent cachedRun
}

type cachedRun struct {
	run        *RunResult
	prev, next *cachedRun
}

// NewLRUStore returns a store caching up to capacity runs, at least one.
func NewLRUStore(capacity int, back Store) *LRUStore {
	s := &LRUStore{
		capacity: max(capacity, 1),
		back:     back,
		runs:     make(map[string]*cachedRun),
	}
	s.recent.prev, s.recent.next = &s.recent, &s.recent
	return s
}

// Save caches the run, then writes it through to the backing store.
func (s *LRUStore) Save(result *RunResult) error {
	s.remember(result)
	if s.back == nil {
		return nil
	}
	return s.back.Save(result)
}

// Load returns a cached run, or reads it from the backing store and
// caches it.
func (s *LRUStore) Load(runID string) (*RunResult, error) {
	if rr, ok := s.lookup(runID); ok {
		return rr, nil
	}
	if s.back == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	rr, err := s.back.Load(runID)
	if err != nil {
		return nil, err
	}
	s.remember(rr)
	return rr, nil
}

// Len returns the number of cached runs.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func (s *LRUStore) lookup(runID string) (*RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	s.touch(c)
	return c.run, true
}

func (s *LRUStore) remember(rr *RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.runs[rr.ID]; ok {
		c.run = rr
		s.touch(c)
		return
	}
	c := &cachedRun{run: rr}
	s.runs[rr.ID] = c
	s.link(c)
	if len(s.runs) > s.capacity {
		oldest := s.recent.prev
		s.unlink(oldest)
		delete(s.runs, oldest.run.ID)
	}
}

// touch marks c as the newest run.
func (s *LRUStore) touch(c *cachedRun) {
	s.unlink(c)
	s.link(c)
}

func (s *LRUStore) link(c *cachedRun) {
	c.prev, c.next = &s.recent, s.recent.next
	s.recent.next.prev = c
	s.recent.next = c
}

func (s *LRUStore) unlink(c *cachedRun) {
	c.prev.next = c.next
	c.next.prev = c.prev
	c.prev, c.next = nil, nil
}

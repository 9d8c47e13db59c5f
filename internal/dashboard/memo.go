package dashboard

import (
	"sync"

	"shalyse/internal/domain"
	"shalyse/internal/engine"
)

// MemoKey identifies a computed report. Scenario is comparable, so a changed
// parameter is a different key.
type MemoKey struct {
	Ticker   string
	Scenario domain.Scenario
}

// Memo is a bounded, caller-owned cache of reports. When full, the oldest
// entry is evicted. It is safe for concurrent use.
type Memo struct {
	mu       sync.Mutex
	capacity int
	entries  map[MemoKey]*engine.Report
	order    []MemoKey
	hits     int
	misses   int
}

// NewMemo creates a Memo holding at most capacity reports (minimum 1).
func NewMemo(capacity int) *Memo {
	return &Memo{
		capacity: max(capacity, 1),
		entries:  make(map[MemoKey]*engine.Report),
	}
}

// Get returns the cached report for key.
func (m *Memo) Get(key MemoKey) (*engine.Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return r, ok
}

// Put stores a report, evicting the oldest entry when full.
func (m *Memo) Put(key MemoKey, r *engine.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		m.entries[key] = r
		return
	}
	if len(m.order) >= m.capacity {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	m.entries[key] = r
	m.order = append(m.order, key)
}

// GetOrCompute returns the cached report for key or computes and caches it.
// Errors are not cached.
func (m *Memo) GetOrCompute(key MemoKey, compute func() (*engine.Report, error)) (*engine.Report, error) {
	if r, ok := m.Get(key); ok {
		return r, nil
	}
	r, err := compute()
	if err != nil {
		return nil, err
	}
	m.Put(key, r)
	return r, nil
}

// Forget drops every report computed for ticker.
func (m *Memo) Forget(ticker string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.order[:0]
	for _, key := range m.order {
		if key.Ticker == ticker {
			delete(m.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	m.order = kept
}

// Len returns the number of cached reports.
func (m *Memo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns the hit and miss counts.
func (m *Memo) Stats() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

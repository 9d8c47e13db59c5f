// Package presets provides an in-memory store of named scenarios with JSON
// persistence and pub/sub for pushing changes to connected clients.
package presets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"shalyse/internal/domain"
)

// ErrInvalidName is returned for blank preset names.
var ErrInvalidName = errors.New("invalid preset name")

// Event is the wire format for pushed preset changes.
type Event struct {
	Type     string                     `json:"type"`               // "snapshot", "set", "delete"
	Name     string                     `json:"name,omitempty"`     // set/delete only
	Scenario *domain.Scenario           `json:"scenario,omitempty"` // set only
	Data     map[string]domain.Scenario `json:"data,omitempty"`     // snapshot only
}

// Store holds named scenarios in memory with JSON persistence and pub/sub.
// An empty filePath keeps presets in memory only.
type Store struct {
	mu       sync.RWMutex
	presets  map[string]domain.Scenario
	filePath string
	log      *slog.Logger

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewStore creates a Store, loading persisted state from filePath.
func NewStore(filePath string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		presets:  make(map[string]domain.Scenario),
		filePath: filePath,
		log:      log.With("component", "presets"),
		subs:     make(map[int]chan Event),
	}
	s.load()
	return s
}

// Seed stores scenario under name only when no preset of that name exists.
func (s *Store) Seed(name string, scenario domain.Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.presets[name]; !ok {
		s.presets[name] = scenario
	}
}

// Snapshot returns a copy of all presets.
func (s *Store) Snapshot() map[string]domain.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Scenario, len(s.presets))
	for k, v := range s.presets {
		out[k] = v
	}
	return out
}

// Names returns the preset names in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.presets))
	for k := range s.presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get returns the preset called name.
func (s *Store) Get(name string) (domain.Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.presets[name]
	return sc, ok
}

// Set validates and stores a preset, persists to disk, and broadcasts to
// subscribers.
func (s *Store) Set(name string, scenario domain.Scenario) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if err := scenario.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	prev, existed := s.presets[name]
	s.presets[name] = scenario
	err := s.flush()
	if err != nil {
		if existed {
			s.presets[name] = prev
		} else {
			delete(s.presets, name)
		}
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.broadcast(Event{Type: "set", Name: name, Scenario: &scenario})
	return nil
}

// Delete removes a preset, persists to disk, and broadcasts to subscribers.
// It reports whether the preset existed.
func (s *Store) Delete(name string) (bool, error) {
	s.mu.Lock()
	prev, ok := s.presets[name]
	var err error
	if ok {
		delete(s.presets, name)
		if err = s.flush(); err != nil {
			s.presets[name] = prev
		}
	}
	s.mu.Unlock()
	if !ok || err != nil {
		return ok, err
	}

	s.broadcast(Event{Type: "delete", Name: name})
	return true, nil
}

// Subscribe returns a channel that receives events, starting with a snapshot.
// bufSize controls the channel buffer; slow consumers will have events
// dropped.
func (s *Store) Subscribe(bufSize int) (int, <-chan Event) {
	ch := make(chan Event, max(bufSize, 1))
	ch <- Event{Type: "snapshot", Data: s.Snapshot()}

	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subsMu.Lock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
	s.subsMu.Unlock()
}

// broadcast sends an event to all subscribers non-blocking (drop on full).
func (s *Store) broadcast(e Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- e:
		default:
			s.log.Warn("dropping preset event for slow subscriber", "sub", id, "type", e.Type)
		}
	}
}

// load reads the JSON file into memory.
func (s *Store) load() {
	if s.filePath == "" {
		return
	}
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return // File doesn't exist yet, start empty.
	}
	var loaded map[string]domain.Scenario
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.log.Warn("loading presets file", "error", err)
		return
	}
	for name, sc := range loaded {
		if err := sc.Validate(); err != nil {
			s.log.Warn("skipping invalid preset", "name", name, "error", err)
			delete(loaded, name)
		}
	}
	s.presets = loaded
	s.log.Info("loaded presets", "count", len(loaded))
}

// flush writes the in-memory state to disk. Must be called with mu held.
func (s *Store) flush() error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.presets, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling presets: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing presets file: %w", err)
	}
	return nil
}

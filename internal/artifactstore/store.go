package artifactstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
)

// Store is the artifact exchange used by the executor and the scheduler.
type Store interface {
	Put(key, producer string, payload []byte) error
	Get(key string) ([]byte, error)
	Handle(key string) (Handle, error)
	Commit(producer string) int
	Keys() []string
}

// Handle describes a stored artifact.
type Handle struct {
	Name     string `json:"name"`
	Producer string `json:"producer"`
	Size     int    `json:"size"`
	// Digest is the hex encoded sha256 of the payload.
	Digest    string `json:"digest"`
	Committed bool   `json:"committed"`
}

type entry struct {
	handle  Handle
	payload []byte
}

// Memory is an in-memory Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty in-memory store.
func New() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

// Put stages payload under key for producer. The payload is copied.
func (m *Memory) Put(key, producer string, payload []byte) error {
	if key == "" {
		return fmt.Errorf("artifact key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[key]; ok {
		if existing.handle.Producer != producer {
			return &ConflictError{Key: key, Producer: existing.handle.Producer, Attempted: producer}
		}
		if existing.handle.Committed {
			return &ConflictError{Key: key, Producer: producer, Attempted: producer}
		}
	}

	sum := sha256.Sum256(payload)
	m.entries[key] = &entry{
		handle: Handle{
			Name:     key,
			Producer: producer,
			Size:     len(payload),
			Digest:   hex.EncodeToString(sum[:]),
		},
		payload: append([]byte(nil), payload...),
	}
	return nil
}

// Get returns a copy of a committed payload.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), e.payload...), nil
}

// Handle returns the metadata of a committed artifact.
func (m *Memory) Handle(key string) (Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, err := m.lookup(key)
	if err != nil {
		return Handle{}, err
	}
	return e.handle, nil
}

func (m *Memory) lookup(key string) (*entry, error) {
	e, ok := m.entries[key]
	if !ok {
		return nil, &NotFoundError{Key: key}
	}
	if !e.handle.Committed {
		return nil, &NotReadyError{Key: key, Producer: e.handle.Producer}
	}
	return e, nil
}

// Commit makes every artifact staged by producer readable and returns how
// many were committed.
func (m *Memory) Commit(producer string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if e.handle.Producer == producer && !e.handle.Committed {
			e.handle.Committed = true
			n++
		}
	}
	return n
}

// Keys returns every stored key, committed or not, sorted.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Committed returns the handles of every committed artifact, sorted by name.
func (m *Memory) Committed() []Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Handle
	for _, e := range m.entries {
		if e.handle.Committed {
			out = append(out, e.handle)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

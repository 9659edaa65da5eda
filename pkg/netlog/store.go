package netlog

import "sync"

// Store keeps network log entries, oldest first.
type Store interface {
	Append(e Entry) error
	List() ([]Entry, error)
	Clear() error
	Close() error
}

// DefaultMaxEntries bounds the in-memory log.
const DefaultMaxEntries = 1000

// memoryStore is a fixed-capacity ring buffer.
type memoryStore struct {
	mu    sync.Mutex
	buf   []Entry
	start int
	size  int
}

// NewMemoryStore returns a ring-buffer store holding at most capacity entries.
func NewMemoryStore(capacity int) Store {
	if capacity <= 0 {
		capacity = DefaultMaxEntries
	}
	return &memoryStore{buf: make([]Entry, capacity)}
}

func (m *memoryStore) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.size < len(m.buf) {
		m.buf[(m.start+m.size)%len(m.buf)] = e
		m.size++
		return nil
	}
	m.buf[m.start] = e
	m.start = (m.start + 1) % len(m.buf)
	return nil
}

func (m *memoryStore) List() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, m.size)
	for i := 0; i < m.size; i++ {
		out = append(out, m.buf[(m.start+i)%len(m.buf)])
	}
	return out, nil
}

func (m *memoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.buf)
	m.start, m.size = 0, 0
	return nil
}

func (m *memoryStore) Close() error { return nil }

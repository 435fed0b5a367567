package graph

import "sync"

// Checkpoint is the state recorded after one node ran.
type Checkpoint struct {
	Step  int
	Node  string
	State State
}

// Checkpointer records the state history of each run, keyed by thread id.
type Checkpointer interface {
	Put(threadID string, cp Checkpoint)
	History(threadID string) []Checkpoint
}

// MemoryCheckpointer keeps the history of the most recent maxThreads runs.
type MemoryCheckpointer struct {
	mu         sync.Mutex
	maxThreads int
	order      []string
	threads    map[string][]Checkpoint
}

func NewMemoryCheckpointer(maxThreads int) *MemoryCheckpointer {
	if maxThreads <= 0 {
		maxThreads = 100
	}
	return &MemoryCheckpointer{maxThreads: maxThreads, threads: map[string][]Checkpoint{}}
}

func (m *MemoryCheckpointer) Put(threadID string, cp Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.threads[threadID]; !ok {
		m.order = append(m.order, threadID)
		for len(m.order) > m.maxThreads {
			delete(m.threads, m.order[0])
			m.order = m.order[1:]
		}
	}
	m.threads[threadID] = append(m.threads[threadID], cp)
}

func (m *MemoryCheckpointer) History(threadID string) []Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Checkpoint(nil), m.threads[threadID]...)
}

// Latest returns the last checkpoint of a thread.
func (m *MemoryCheckpointer) Latest(threadID string) (Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.threads[threadID]
	if len(h) == 0 {
		return Checkpoint{}, false
	}
	return h[len(h)-1], true
}

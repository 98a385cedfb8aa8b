package retrieverstatus

import (
	"sort"
	"sync"
	"time"
)

const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// Status captures what the dispatcher last did with a retriever kind.
type Status struct {
	Retriever     string    `json:"retriever"`
	State         string    `json:"state"`
	Running       int       `json:"running"`
	Hires         int       `json:"hires"`
	Collections   int       `json:"collections"`
	LastHired     time.Time `json:"last_hired,omitempty"`
	LastCollected time.Time `json:"last_collected,omitempty"`
	LastPriority  int       `json:"last_priority"`
}

// Filter restricts List results.
type Filter struct {
	State string
}

type Store interface {
	RecordHire(name string, priority int, at time.Time)
	RecordCollect(name string, at time.Time)
	List(Filter) []Status
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Status
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]Status{}}
}

func (s *MemoryStore) RecordHire(name string, priority int, at time.Time) {
	s.mu.Lock()
	st := s.get(name)
	st.Hires++
	st.Running++
	st.LastHired = at
	st.LastPriority = priority
	st.State = StateRunning
	s.data[name] = st
	s.mu.Unlock()
}

// RecordCollect marks one instance as collected. Instances hired before the
// process started are counted without driving Running below zero.
func (s *MemoryStore) RecordCollect(name string, at time.Time) {
	s.mu.Lock()
	st := s.get(name)
	st.Collections++
	if st.Running > 0 {
		st.Running--
	}
	if st.Running == 0 {
		st.State = StateIdle
	}
	st.LastCollected = at
	s.data[name] = st
	s.mu.Unlock()
}

func (s *MemoryStore) get(name string) Status {
	st, ok := s.data[name]
	if !ok {
		st = Status{Retriever: name, State: StateIdle}
	}
	return st
}

func (s *MemoryStore) List(f Filter) []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Status, 0, len(s.data))
	for _, st := range s.data {
		if f.State != "" && st.State != f.State {
			continue
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Retriever < res[j].Retriever })
	return res
}

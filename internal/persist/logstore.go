package persist

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var ErrLogNotFound = errors.New("message log not found")

// LogEntry is one recorded message. SimTime is relative to the start of the
// recording.
type LogEntry struct {
	SimTime float64
	Data    string
}

// Tag marks a point of interest in a recording.
type Tag struct {
	Name    string
	SimTime float64
}

type memLog struct {
	entries []LogEntry
	tags    []Tag
}

// MemoryLogStore keeps message logs in process memory.
type MemoryLogStore struct {
	mu   sync.Mutex
	logs map[string]*memLog
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{logs: make(map[string]*memLog)}
}

func (s *MemoryLogStore) Logs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.logs))
	for name := range s.logs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Create starts an empty log, replacing any log of the same name.
func (s *MemoryLogStore) Create(_ context.Context, name string) error {
	s.mu.Lock()
	s.logs[name] = &memLog{}
	s.mu.Unlock()
	return nil
}

func (s *MemoryLogStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[name]; !ok {
		return ErrLogNotFound
	}
	delete(s.logs, name)
	return nil
}

func (s *MemoryLogStore) Append(_ context.Context, name string, e LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[name]
	if !ok {
		return ErrLogNotFound
	}
	l.entries = append(l.entries, e)
	return nil
}

func (s *MemoryLogStore) InsertTag(_ context.Context, name string, t Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[name]
	if !ok {
		return ErrLogNotFound
	}
	l.tags = append(l.tags, t)
	return nil
}

func (s *MemoryLogStore) Tags(_ context.Context, name string) ([]Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[name]
	if !ok {
		return nil, ErrLogNotFound
	}
	return append([]Tag(nil), l.tags...), nil
}

func (s *MemoryLogStore) Entries(_ context.Context, name string) ([]LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.logs[name]
	if !ok {
		return nil, ErrLogNotFound
	}
	return append([]LogEntry(nil), l.entries...), nil
}

func (s *MemoryLogStore) Flush(_ context.Context) error { return nil }

// Package session tracks the client sessions currently attached to the
// relay.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrTooManyConnections is returned by Add when the store is full.
var ErrTooManyConnections = errors.New("too many connections")

// Info describes one connected client.
type Info struct {
	ID          string    `json:"id"`
	Number      int       `json:"number"`
	RemoteAddr  string    `json:"remoteAddr"`
	UserAgent   string    `json:"userAgent,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
	Delivered   uint64    `json:"delivered"`
	Missed      uint64    `json:"missed"`
	Commands    uint64    `json:"commands"`
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Info
	maxConns int
	next     int
}

// NewStore creates a store admitting at most maxConns sessions. Zero or a
// negative value means no limit.
func NewStore(maxConns int) *Store {
	return &Store{
		sessions: make(map[string]*Info),
		maxConns: maxConns,
	}
}

// Add registers info and assigns its Number. The stored value is a copy.
func (s *Store) Add(info Info) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxConns > 0 && len(s.sessions) >= s.maxConns {
		return Info{}, ErrTooManyConnections
	}
	s.next++
	info.Number = s.next
	s.sessions[info.ID] = &info
	return info, nil
}

func (s *Store) Get(id string) (Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.sessions[id]
	if !ok {
		return Info{}, false
	}
	return *info, true
}

// GetAll returns copies ordered by connection time.
func (s *Store) GetAll() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Info, 0, len(s.sessions))
	for _, info := range s.sessions {
		result = append(result, *info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result
}

// RecordDelivery counts one relayed envelope and any envelopes skipped
// before it.
func (s *Store) RecordDelivery(id string, missed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.sessions[id]; ok {
		info.Delivered++
		info.Missed += missed
	}
}

func (s *Store) RecordCommand(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.sessions[id]; ok {
		info.Commands++
	}
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

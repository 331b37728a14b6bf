package net

import "sort"

// SessionStore tracks live sessions. Frame loop only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session, 16)}
}

func (s *SessionStore) Add(sess *Session)        { s.sessions[sess.ID] = sess }
func (s *SessionStore) Remove(id uint64)         { delete(s.sessions, id) }
func (s *SessionStore) Get(id uint64) *Session   { return s.sessions[id] }
func (s *SessionStore) Count() int               { return len(s.sessions) }
func (s *SessionStore) Raw() map[uint64]*Session { return s.sessions }

// ForEach visits sessions in id order.
func (s *SessionStore) ForEach(fn func(*Session)) {
	ids := make([]uint64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(s.sessions[id])
	}
}

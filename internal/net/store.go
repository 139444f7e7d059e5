package net

import "sort"

// SessionStore tracks live console sessions. Game loop only.
type SessionStore struct {
	sessions map[uint64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uint64]*Session)}
}

func (s *SessionStore) Add(sess *Session) { s.sessions[sess.ID] = sess }
func (s *SessionStore) Remove(id uint64)  { delete(s.sessions, id) }
func (s *SessionStore) Len() int          { return len(s.sessions) }

// Each visits sessions in ID order.
func (s *SessionStore) Each(fn func(*Session)) {
	ids := make([]uint64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(s.sessions[id])
	}
}

// CloseAll closes every session and empties the store.
func (s *SessionStore) CloseAll() {
	for id, sess := range s.sessions {
		sess.Close()
		delete(s.sessions, id)
	}
}

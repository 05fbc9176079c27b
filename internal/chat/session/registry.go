package session

import (
	"sync"

	"go.uber.org/zap"
)

// Registry tracks the joined sessions of the process, indexed both by
// connection id and by competition number. Both indices are kept consistent
// under one lock; enumeration returns a snapshot so fan-out never holds the
// lock while writing to connections.
type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	byConn  map[string]*Session
	byCompe map[int][]string
}

// NewRegistry creates an empty session registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:  logger.Named("chat.session"),
		byConn:  make(map[string]*Session),
		byCompe: make(map[int][]string),
	}
}

// Add registers a session under its connection id. A session already
// registered for the same connection is replaced, so repeating the join step
// on one connection never duplicates entries.
func (r *Registry) Add(sess *Session) {
	connID := sess.Conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byConn[connID]; ok {
		r.removeFromCompe(old.CompeNo, connID)
	}
	r.byConn[connID] = sess
	r.byCompe[sess.CompeNo] = append(r.byCompe[sess.CompeNo], connID)

	r.logger.Debug("session added",
		zap.String("connId", connID),
		zap.Int("compeNo", sess.CompeNo),
		zap.String("memberId", sess.MemberID))
}

// Remove drops the session of a connection from both indices. Removing an
// unknown connection is a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	r.removeFromCompe(sess.CompeNo, connID)

	r.logger.Debug("session removed", zap.String("connId", connID))
}

// removeFromCompe must be called with the lock held.
func (r *Registry) removeFromCompe(compeNo int, connID string) {
	ids, ok := r.byCompe[compeNo]
	if !ok {
		return
	}
	for i, id := range ids {
		if id == connID {
			r.byCompe[compeNo] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

// Get returns the session of a connection, or nil when the connection has
// not joined.
func (r *Registry) Get(connID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// GetByCompe returns a snapshot of all sessions joined to a competition.
// Registry mutation after the call does not affect the returned slice.
func (r *Registry) GetByCompe(compeNo int) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byCompe[compeNo]
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if sess, ok := r.byConn[id]; ok {
			sessions = append(sessions, sess)
		}
	}
	return sessions
}

// GetParticipant returns the first session of a competition whose member id
// matches, or nil. When two live sessions share a member id only the earlier
// join is reachable here; both remain reachable by connection id.
func (r *Registry) GetParticipant(compeNo int, memberID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.byCompe[compeNo] {
		if sess, ok := r.byConn[id]; ok && sess.MemberID == memberID {
			return sess
		}
	}
	return nil
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

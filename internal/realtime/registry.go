package realtime

import (
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is an outbound channel to one live client.
type Conn interface {
	Send(v any) error
}

type registration struct {
	conn Conn
}

// Registry maps session_id -> at most one live connection. A newer registration for the same
// session replaces the older one.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]*registration
	logger *zap.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{conns: make(map[uuid.UUID]*registration), logger: logger}
}

// Register binds conn to sessionID, replacing (and closing, if it is an io.Closer) any prior
// connection. The returned func removes this registration only; it is a no-op once a newer
// connection has taken over.
func (r *Registry) Register(sessionID uuid.UUID, conn Conn) (unregister func()) {
	entry := &registration{conn: conn}

	r.mu.Lock()
	old := r.conns[sessionID]
	r.conns[sessionID] = entry
	r.mu.Unlock()

	if old != nil {
		r.logger.Info("connection replaced", zap.String("session_id", sessionID.String()))
		if c, ok := old.conn.(io.Closer); ok {
			_ = c.Close()
		}
	}

	return func() {
		r.mu.Lock()
		if r.conns[sessionID] == entry {
			delete(r.conns, sessionID)
		}
		r.mu.Unlock()
	}
}

// Unregister removes whatever connection is bound to sessionID.
func (r *Registry) Unregister(sessionID uuid.UUID) {
	r.mu.Lock()
	delete(r.conns, sessionID)
	r.mu.Unlock()
}

// Send delivers event to the session's connection. Missing connections and send failures are
// logged and dropped.
func (r *Registry) Send(sessionID uuid.UUID, event any) {
	r.mu.RLock()
	entry := r.conns[sessionID]
	r.mu.RUnlock()

	if entry == nil {
		r.logger.Debug("no live connection, event dropped", zap.String("session_id", sessionID.String()))
		return
	}
	if err := entry.conn.Send(event); err != nil {
		r.logger.Warn("send to live connection failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err),
		)
	}
}

// Connected reports whether sessionID has a live connection.
func (r *Registry) Connected(sessionID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[sessionID] != nil
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

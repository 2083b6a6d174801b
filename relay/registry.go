package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/observability"
)

// DeliveryReport records per-recipient outcomes of one broadcast call.
// Callers other than internal cleanup may ignore it.
type DeliveryReport struct {
	Delivered int
	Failed    int
}

// ConnectionRegistry tracks the set of live sessions and fans accepted
// messages out to all of them. The mutex guards only the membership map;
// per-recipient sends run outside it so unrelated sessions never serialize
// on each other.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	log      *slog.Logger
	monitor  *observability.Monitor
}

func NewConnectionRegistry(log *slog.Logger, monitor *observability.Monitor) *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions: make(map[uuid.UUID]*Session),
		log:      log,
		monitor:  monitor,
	}
}

// Register adds a session. A duplicate registration is a programming error
// and fails without touching the existing entry.
func (r *ConnectionRegistry) Register(session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID()]; ok {
		return errors.ErrDuplicateConnection
	}
	r.sessions[session.ID()] = session
	return nil
}

// Unregister removes a session if present; calling it again is a no-op.
// Disconnection can be observed from both the read path and a broadcast-time
// write failure, so idempotence here is load-bearing.
func (r *ConnectionRegistry) Unregister(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, session.ID())
}

// Len returns the number of currently registered sessions.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// snapshot returns the membership at one instant so a broadcast neither
// skips nor double-delivers when registrations race with it.
func (r *ConnectionRegistry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}

// Broadcast delivers the message to every session registered at call time.
// Each recipient is attempted independently in its own goroutine: a slow or
// broken connection cannot stall delivery to the others. A failed recipient
// is treated as disconnected and torn down, never surfaced as an error to
// the caller.
func (r *ConnectionRegistry) Broadcast(message domain.StoredMessage) DeliveryReport {
	payload, err := json.Marshal(message.Wire())
	if err != nil {
		r.log.Error("broadcast payload marshal failed", "id", message.ID, "error", err)
		return DeliveryReport{}
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
		failed    atomic.Int64
	)
	for _, recipient := range r.snapshot() {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.deliver(payload); err != nil {
				failed.Add(1)
				r.log.Warn("delivery failed, dropping connection",
					"session", s.ID(),
					"user", s.Identity().Email,
					"error", err)
				s.teardown(CloseInternalError)
				return
			}
			delivered.Add(1)
		}(recipient)
	}
	wg.Wait()

	report := DeliveryReport{Delivered: int(delivered.Load()), Failed: int(failed.Load())}
	r.monitor.AddDeliveries(report.Delivered, report.Failed)
	return report
}

// CloseAll tears down every registered session, used on server shutdown.
func (r *ConnectionRegistry) CloseAll() {
	for _, s := range r.snapshot() {
		s.teardown(CloseNormal)
	}
}

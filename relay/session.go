package relay

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/moderation"
	"campus-connect/observability"
	"campus-connect/repositories"
)

// State is the lifecycle phase of one session.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

const (
	rejectFeedback   = "Message flagged as inappropriate."
	internalFeedback = "internal error"
)

// inboundPayload is the only JSON shape accepted from clients. Anything that
// fails to parse is a protocol violation; a missing content field is not (an
// empty message passes through moderation unchanged).
type inboundPayload struct {
	Content string `json:"content"`
}

// Session owns one connection's receive loop. It is constructed only after
// the identity has been resolved, so no message is ever processed for an
// unauthenticated connection.
type Session struct {
	id       uuid.UUID
	identity domain.Identity
	conn     Conn
	registry *ConnectionRegistry
	gate     *moderation.Gate
	messages repositories.IMessageRepository
	monitor  *observability.Monitor
	log      *slog.Logger

	state     atomic.Int32
	closeOnce sync.Once
}

func NewSession(log *slog.Logger, identity domain.Identity, conn Conn,
	registry *ConnectionRegistry, gate *moderation.Gate,
	messages repositories.IMessageRepository, monitor *observability.Monitor) *Session {
	s := &Session{
		id:       uuid.New(),
		identity: identity,
		conn:     conn,
		registry: registry,
		gate:     gate,
		messages: messages,
		monitor:  monitor,
		log:      log,
	}
	s.state.Store(int32(StateAuthenticated))
	return s
}

func (s *Session) ID() uuid.UUID             { return s.id }
func (s *Session) Identity() domain.Identity { return s.identity }
func (s *Session) State() State              { return State(s.state.Load()) }

// Run drives the receive loop until the channel closes or a protocol
// violation occurs. The caller must have registered the session first.
// Teardown runs exactly once on every exit path, including a concurrent
// broadcast-time failure on the same connection.
func (s *Session) Run(ctx context.Context) error {
	s.state.Store(int32(StateActive))
	defer s.teardown(CloseNormal)

	for {
		if ctx.Err() != nil {
			return nil
		}

		payload, err := s.conn.Receive()
		if err != nil {
			if goerrors.Is(err, errors.ErrChannelClosed) {
				s.log.Info("client disconnected", "user", s.identity.Email)
				return nil
			}
			s.log.Warn("receive failed", "user", s.identity.Email, "error", err)
			return nil
		}

		if err := s.handleInbound(ctx, payload); err != nil {
			s.log.Warn("protocol violation, closing connection",
				"user", s.identity.Email, "error", err)
			s.teardown(CloseProtocolError)
			return err
		}
	}
}

// handleInbound processes one message through the moderation gate, the
// persistence step, and the broadcast. Only a protocol violation is returned
// as an error; every other failure is scoped to this one message.
func (s *Session) handleInbound(ctx context.Context, payload []byte) error {
	var in inboundPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrProtocolViolation, err)
	}

	verdict, err := s.gate.Classify(ctx, in.Content)
	if err != nil {
		// Classifier fault: fail closed, tell the sender, keep the loop alive.
		s.monitor.IncrInternalErrors()
		s.log.Error("classifier failure", "user", s.identity.Email, "error", err)
		s.sendFeedback(internalFeedback)
		return nil
	}
	if verdict == moderation.Reject {
		s.monitor.IncrRejected()
		s.sendFeedback(rejectFeedback)
		return nil
	}

	message := domain.ChatMessage{
		Sender:    s.identity.DisplayName,
		Content:   in.Content,
		Timestamp: time.Now().UTC(),
	}
	stored, err := s.messages.Append(message)
	if err != nil {
		// Never broadcast what could not be durably recorded.
		s.monitor.IncrPersistenceFailures()
		s.log.Error("append failed", "user", s.identity.Email, "error", err)
		s.sendFeedback(internalFeedback)
		return nil
	}
	s.monitor.IncrAccepted()

	report := s.registry.Broadcast(stored)
	s.log.Debug("message broadcast",
		"id", stored.ID,
		"delivered", report.Delivered,
		"failed", report.Failed)
	return nil
}

// sendFeedback reports an outcome to the sending connection only.
func (s *Session) sendFeedback(message string) {
	payload, err := json.Marshal(domain.WireError{Error: message})
	if err != nil {
		s.log.Error("feedback marshal failed", "error", err)
		return
	}
	if err := s.deliver(payload); err != nil {
		s.log.Warn("feedback delivery failed", "user", s.identity.Email, "error", err)
	}
}

func (s *Session) deliver(payload []byte) error {
	return s.conn.Send(payload)
}

// teardown unregisters the session and releases the channel. It is safe to
// trigger from the read path and a broadcast-time write failure at once;
// only the first invocation acts.
func (s *Session) teardown(code int) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		s.registry.Unregister(s)
		_ = s.conn.Close(code)
		s.state.Store(int32(StateClosed))
	})
}

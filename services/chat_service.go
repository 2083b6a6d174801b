package services

import (
	"context"
	"log/slog"

	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/moderation"
	"campus-connect/observability"
	"campus-connect/relay"
	"campus-connect/repositories"
)

// IdentityResolver is the external identity collaborator: it turns a
// credential into a resolved identity or fails with ErrUnauthenticated.
type IdentityResolver interface {
	Resolve(token string) (domain.Identity, error)
}

type IChatService interface {
	Connect(ctx context.Context, conn relay.Conn, token string) error
	Search(ctx context.Context, keyword string) ([]domain.StoredMessage, error)
}

// ChatService is the top-level orchestrator: it authenticates incoming
// connections, builds one Session per connection, and supervises teardown.
type ChatService struct {
	log      *slog.Logger
	resolver IdentityResolver
	registry *relay.ConnectionRegistry
	gate     *moderation.Gate
	messages repositories.IMessageRepository
	monitor  *observability.Monitor
}

func NewChatService(log *slog.Logger, resolver IdentityResolver,
	registry *relay.ConnectionRegistry, gate *moderation.Gate,
	messages repositories.IMessageRepository, monitor *observability.Monitor) *ChatService {
	return &ChatService{
		log:      log,
		resolver: resolver,
		registry: registry,
		gate:     gate,
		messages: messages,
		monitor:  monitor,
	}
}

// Connect performs the connect-time authentication check, registers a new
// session, and blocks in its receive loop until the connection ends.
// An unresolved identity closes the channel with a policy-violation code and
// the connection never enters the active state.
func (s *ChatService) Connect(ctx context.Context, conn relay.Conn, token string) error {
	identity, err := s.resolver.Resolve(token)
	if err != nil {
		_ = conn.Close(relay.ClosePolicyViolation)
		return errors.ErrUnauthenticated
	}

	session := relay.NewSession(s.log, identity, conn, s.registry, s.gate, s.messages, s.monitor)
	if err := s.registry.Register(session); err != nil {
		_ = conn.Close(relay.CloseInternalError)
		return err
	}

	s.monitor.ConnectionOpened()
	defer s.monitor.ConnectionClosed()

	s.log.Info("session started", "user", identity.Email, "session", session.ID())
	return session.Run(ctx)
}

// Search queries persisted messages. Any authenticated identity may search;
// the authorization precondition is enforced at the API boundary.
func (s *ChatService) Search(ctx context.Context, keyword string) ([]domain.StoredMessage, error) {
	return s.messages.Search(ctx, keyword)
}

// Shutdown tears down every live session.
func (s *ChatService) Shutdown() {
	s.registry.CloseAll()
}

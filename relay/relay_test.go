package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/moderation"
)

// fakeConn scripts inbound payloads and records everything sent to it.
// Once the scripted payloads run out, Receive reports a normal closure.
type fakeConn struct {
	mu        sync.Mutex
	inbound   chan []byte
	sent      [][]byte
	failSend  bool
	closed    bool
	closeCode int
}

func newFakeConn(payloads ...string) *fakeConn {
	c := &fakeConn{inbound: make(chan []byte, len(payloads))}
	for _, p := range payloads {
		c.inbound <- []byte(p)
	}
	close(c.inbound)
	return c
}

func (c *fakeConn) Receive() ([]byte, error) {
	payload, ok := <-c.inbound
	if !ok {
		return nil, errors.ErrChannelClosed
	}
	return payload, nil
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return fmt.Errorf("broken pipe")
	}
	c.sent = append(c.sent, append([]byte(nil), payload...))
	return nil
}

func (c *fakeConn) Close(code int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	return nil
}

func (c *fakeConn) sentPayloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, p := range c.sent {
		out = append(out, string(p))
	}
	return out
}

// fakeRepo is an in-memory message store assigning sequential identifiers.
type fakeRepo struct {
	mu         sync.Mutex
	stored     []domain.StoredMessage
	failAppend bool
}

func (r *fakeRepo) Append(message domain.ChatMessage) (domain.StoredMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAppend {
		return domain.StoredMessage{}, errors.ErrPersistence
	}
	stored := domain.StoredMessage{ID: uint64(len(r.stored) + 1), ChatMessage: message}
	r.stored = append(r.stored, stored)
	return stored, nil
}

func (r *fakeRepo) Search(_ context.Context, substring string) ([]domain.StoredMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.StoredMessage
	for _, s := range r.stored {
		if strings.Contains(strings.ToLower(s.Content), strings.ToLower(substring)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) records() []domain.StoredMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.StoredMessage(nil), r.stored...)
}

// allowAllClassifier keeps the gate out of the way in pipeline tests.
type allowAllClassifier struct{}

func (allowAllClassifier) Classify(context.Context, string) (moderation.Sentiment, error) {
	return moderation.Sentiment{Label: moderation.LabelPositive, Score: 0.1}, nil
}

// faultyClassifier simulates an unavailable moderation model.
type faultyClassifier struct{}

func (faultyClassifier) Classify(context.Context, string) (moderation.Sentiment, error) {
	return moderation.Sentiment{}, fmt.Errorf("model unavailable")
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func newTestGate(t *testing.T, classifier moderation.Classifier) *moderation.Gate {
	t.Helper()
	gate, err := moderation.NewGate([]string{"spam", "scam", "advertisement"}, classifier, 0.95, testLogger())
	require.NoError(t, err)
	return gate
}

func identity(email, name string) domain.Identity {
	return domain.Identity{Email: email, DisplayName: name}
}

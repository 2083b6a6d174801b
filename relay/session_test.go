package relay

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"campus-connect/domain"
	"campus-connect/errors"
	"campus-connect/moderation"
	"campus-connect/observability"
)

// pipeline wires one sending session and a set of passive receivers against
// shared registry, repository and monitor instances.
type pipeline struct {
	registry  *ConnectionRegistry
	repo      *fakeRepo
	monitor   *observability.Monitor
	sender    *Session
	senderCh  *fakeConn
	receivers []*fakeConn
}

func newPipeline(t *testing.T, classifier moderation.Classifier, repo *fakeRepo,
	receiverCount int, payloads ...string) *pipeline {
	t.Helper()

	monitor := observability.NewMonitor()
	registry := NewConnectionRegistry(testLogger(), monitor)
	gate := newTestGate(t, classifier)

	senderCh := newFakeConn(payloads...)
	sender := NewSession(testLogger(), identity("alice@srm.edu.in", "Alice"),
		senderCh, registry, gate, repo, monitor)
	require.NoError(t, registry.Register(sender))

	receivers := make([]*fakeConn, receiverCount)
	for i := range receivers {
		receivers[i] = newFakeConn()
		receiver := NewSession(testLogger(), identity("peer@srm.edu.in", "Peer"),
			receivers[i], registry, gate, repo, monitor)
		require.NoError(t, registry.Register(receiver))
	}
	return &pipeline{
		registry:  registry,
		repo:      repo,
		monitor:   monitor,
		sender:    sender,
		senderCh:  senderCh,
		receivers: receivers,
	}
}

func TestSession_AcceptedMessageReachesEveryone(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, allowAllClassifier{}, &fakeRepo{}, 2,
		`{"content": "Hello everyone"}`)

	req.NoError(p.sender.Run(context.Background()))

	stored := p.repo.records()
	req.Len(stored, 1)
	req.Equal(uint64(1), stored[0].ID)
	req.Equal("Alice", stored[0].Sender)
	req.Equal("Hello everyone", stored[0].Content)

	// Every participant hears the message, the sender included.
	conns := append([]*fakeConn{p.senderCh}, p.receivers...)
	for _, conn := range conns {
		payloads := conn.sentPayloads()
		req.Len(payloads, 1)

		var wire domain.WireMessage
		req.NoError(json.Unmarshal([]byte(payloads[0]), &wire))
		req.Equal("Alice", wire.Sender)
		req.Equal("Hello everyone", wire.Content)
		req.True(strings.HasSuffix(wire.Timestamp, "Z"))
	}

	req.Equal(uint64(1), p.monitor.MessagesAccepted.Load())
	req.Equal(StateClosed, p.sender.State())
	req.Equal(CloseNormal, p.senderCh.closeCode)
}

func TestSession_DenylistedMessageFeedbackScopedToSender(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, allowAllClassifier{}, &fakeRepo{}, 2,
		`{"content": "Buy our scam product"}`)

	req.NoError(p.sender.Run(context.Background()))

	// Nothing was persisted and no receiver heard anything.
	req.Empty(p.repo.records())
	for _, conn := range p.receivers {
		req.Empty(conn.sentPayloads())
	}

	payloads := p.senderCh.sentPayloads()
	req.Len(payloads, 1)
	var feedback domain.WireError
	req.NoError(json.Unmarshal([]byte(payloads[0]), &feedback))
	req.Equal("Message flagged as inappropriate.", feedback.Error)

	req.Equal(uint64(1), p.monitor.MessagesRejected.Load())
	req.Equal(uint64(0), p.monitor.MessagesAccepted.Load())
}

func TestSession_NegativeSentimentRejected(t *testing.T) {
	req := require.New(t)
	classifier := fixedClassifier{sentiment: moderation.Sentiment{
		Label: moderation.LabelNegative,
		Score: 0.99,
	}}
	p := newPipeline(t, classifier, &fakeRepo{}, 1,
		`{"content": "I absolutely despise all of you"}`)

	req.NoError(p.sender.Run(context.Background()))

	req.Empty(p.repo.records())
	req.Empty(p.receivers[0].sentPayloads())

	payloads := p.senderCh.sentPayloads()
	req.Len(payloads, 1)
	req.Contains(payloads[0], "Message flagged as inappropriate.")
}

func TestSession_AppendFailureSuppressesBroadcast(t *testing.T) {
	req := require.New(t)
	repo := &fakeRepo{failAppend: true}
	p := newPipeline(t, allowAllClassifier{}, repo, 2,
		`{"content": "Hello everyone"}`)

	req.NoError(p.sender.Run(context.Background()))

	req.Empty(repo.records())
	for _, conn := range p.receivers {
		req.Empty(conn.sentPayloads())
	}

	payloads := p.senderCh.sentPayloads()
	req.Len(payloads, 1)
	var feedback domain.WireError
	req.NoError(json.Unmarshal([]byte(payloads[0]), &feedback))
	req.Equal("internal error", feedback.Error)

	req.Equal(uint64(1), p.monitor.PersistenceFailures.Load())
	req.Equal(uint64(0), p.monitor.MessagesAccepted.Load())
}

func TestSession_ClassifierFaultKeepsLoopAlive(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, faultyClassifier{}, &fakeRepo{}, 1,
		`{"content": "first"}`,
		`{"content": "second"}`)

	req.NoError(p.sender.Run(context.Background()))

	// Both messages fail closed, each answered individually, none delivered.
	req.Empty(p.repo.records())
	req.Empty(p.receivers[0].sentPayloads())
	req.Len(p.senderCh.sentPayloads(), 2)
	for _, payload := range p.senderCh.sentPayloads() {
		req.Contains(payload, "internal error")
	}
	req.Equal(uint64(2), p.monitor.InternalErrors.Load())
}

func TestSession_MalformedPayloadClosesConnection(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, allowAllClassifier{}, &fakeRepo{}, 1,
		`{"content": "fine"}`,
		`this is not json`,
		`{"content": "never processed"}`)

	err := p.sender.Run(context.Background())
	req.ErrorIs(err, errors.ErrProtocolViolation)

	req.True(p.senderCh.closed)
	req.Equal(CloseProtocolError, p.senderCh.closeCode)
	req.Equal(StateClosed, p.sender.State())

	// The valid first message was processed, the one after the violation not.
	req.Len(p.repo.records(), 1)
	req.Equal("fine", p.repo.records()[0].Content)

	// The sender is gone from the registry, the receiver remains.
	req.Equal(1, p.registry.Len())
}

func TestSession_PerSenderOrderingPreserved(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, allowAllClassifier{}, &fakeRepo{}, 1,
		`{"content": "M1"}`,
		`{"content": "M2"}`,
		`{"content": "M3"}`)

	req.NoError(p.sender.Run(context.Background()))

	stored := p.repo.records()
	req.Len(stored, 3)
	for i, want := range []string{"M1", "M2", "M3"} {
		req.Equal(uint64(i+1), stored[i].ID)
		req.Equal(want, stored[i].Content)
	}

	payloads := p.receivers[0].sentPayloads()
	req.Len(payloads, 3)
	for i, want := range []string{"M1", "M2", "M3"} {
		var wire domain.WireMessage
		req.NoError(json.Unmarshal([]byte(payloads[i]), &wire))
		req.Equal(want, wire.Content)
	}
}

func TestSession_CancelledContextStopsLoop(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, allowAllClassifier{}, &fakeRepo{}, 0,
		`{"content": "never read"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req.NoError(p.sender.Run(ctx))
	req.Empty(p.repo.records())
	req.Equal(StateClosed, p.sender.State())
	req.Equal(0, p.registry.Len())
}

// fixedClassifier always answers with the configured sentiment.
type fixedClassifier struct {
	sentiment moderation.Sentiment
}

func (c fixedClassifier) Classify(context.Context, string) (moderation.Sentiment, error) {
	return c.sentiment, nil
}

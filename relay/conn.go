// Package relay implements the real-time message pipeline: connection
// registry, fan-out broadcast, and the per-connection session loop.
// It orchestrates delivery without containing transport or storage details.
package relay

// Close codes passed to Conn.Close. They mirror WebSocket close codes but
// the relay itself is transport-agnostic.
const (
	CloseNormal          = 1000
	CloseProtocolError   = 1002
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

// Conn is the bidirectional message channel bound to one client.
// Receive blocks until the next inbound payload; it returns
// errors.ErrChannelClosed on normal closure and any other error on failure.
// Send must be safe to call concurrently with Receive and with other Sends
// on the same connection.
type Conn interface {
	Receive() ([]byte, error)
	Send(payload []byte) error
	Close(code int) error
}

// Package domain contains core concepts of the relay.
// This file defines chat message records and their wire representation.
// Messages are immutable once constructed.
package domain

import (
	"time"
)

// ChatMessage represents one accepted inbound message before persistence.
// Sender always comes from the authenticated identity, never from the payload.
type ChatMessage struct {
	Sender    string
	Content   string
	Timestamp time.Time
}

// StoredMessage is a ChatMessage plus its server-assigned identifier.
// Identifiers are unique and monotonically increasing; records are never
// mutated or deleted.
type StoredMessage struct {
	ID uint64
	ChatMessage
}

// WireMessage is the outbound JSON schema shared by broadcast delivery and
// search results.
type WireMessage struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// WireError is the feedback schema sent to a single sender on rejection or
// internal failure.
type WireError struct {
	Error string `json:"error"`
}

// Wire converts a message to its outbound representation. Timestamps are
// UTC with a trailing "Z".
func (m ChatMessage) Wire() WireMessage {
	return WireMessage{
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// Package domain contains core concepts of the relay.
// This file defines the authenticated identity bound to a connection.
package domain

// Identity is the resolved identity of an authenticated participant.
// It is bound to a connection at connect time and never changes afterwards.
type Identity struct {
	Email       string
	DisplayName string
}

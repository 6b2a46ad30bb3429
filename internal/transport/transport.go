// Package transport defines the boundary to the message-transport layer.
// The core only needs to receive inbound events tagged with a principal id
// and send messages (optionally with selectable options) back; any
// chat-style integration can satisfy these interfaces.
package transport

import "context"

// Event is one inbound interaction from a principal: either free text or
// a selected option id (button press). Exactly one of Text and Option is
// set.
type Event struct {
	Principal int64
	Text      string
	Option    string
}

// Option is a selectable choice attached to an outbound message.
type Option struct {
	ID    string
	Label string
}

// Sender delivers a message to a single principal.
type Sender interface {
	Send(ctx context.Context, principal int64, text string, options []Option) error
}

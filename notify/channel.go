// Package notify delivers confirmed change notifications. Channels are
// polymorphic over a single capability (Send); the dispatcher fans a
// rendered message out to every configured channel and records each
// delivery outcome independently.
package notify

import "context"

// Message is a fully rendered notification.
type Message struct {
	TargetID string
	Subject  string
	Body     string
}

// Channel delivers rendered messages. Implementations must be safe for
// concurrent use; a Send error means this channel failed, nothing more.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

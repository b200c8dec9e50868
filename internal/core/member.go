package core

// Conn is the outbound half of a member's connection as seen by the core.
// The registry is the only component that writes to it.
type Conn interface {
	// Send queues one outbound event for delivery. It must not block:
	// implementations report a full queue or closed connection as an error.
	Send(event any) error

	// OnClose registers fn to run when the connection closes. If the
	// connection is already closed, fn runs immediately.
	OnClose(fn func())
}

// Member is one connected participant in one room. Immutable once created.
type Member struct {
	UserID string
	Name   string
	Conn   Conn
}

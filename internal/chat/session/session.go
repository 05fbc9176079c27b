package session

import "github.com/TerutomiBaba/golferweb-chatsrv/pkg/compechat"

// Conn is the transport-side handle a session delivers frames through. The
// implementation must be safe for concurrent writes, since fan-out pushes
// race with pipeline responses on the same connection.
type Conn interface {
	// ID returns the connection identity, unique per live connection.
	ID() string

	// WriteText sends one text frame on the connection.
	WriteText(data []byte) error
}

// Session is the joined state bound to one open connection. An unjoined
// connection has no Session; the registry owns the object once added and
// services receive the pointer, never a copy.
type Session struct {
	Conn        Conn
	CompeNo     int
	MemberID    string
	ReceptLevel compechat.ReceptLevel
}

// New creates an unregistered session placeholder for a connection. Only the
// join service fills and registers it.
func New(conn Conn) *Session {
	return &Session{Conn: conn}
}

// Package backend provides the daemon's concrete pool operations over
// TCP backends: dialing, health checking and teardown of connections.
package backend

import (
	"net"
	"time"
)

// Conn is one pooled backend connection.
type Conn struct {
	ID       string
	Raw      net.Conn
	Addr     string
	OpenedAt time.Time
}

// RemoteAddr returns the peer address, empty once the connection is gone.
func (c *Conn) RemoteAddr() string {
	if c == nil || c.Raw == nil {
		return ""
	}
	return c.Raw.RemoteAddr().String()
}

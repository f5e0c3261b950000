package voice

import (
	"io"
	"sync"
)

// Call wraps a Conn with an exclusive lock. Only one mutator touches
// the underlying connection at a time; the handle itself is shared
// between the session and its playback engines.
type Call struct {
	mu   sync.Mutex
	conn Conn
}

func NewCall(conn Conn) *Call {
	return &Call{conn: conn}
}

func (c *Call) PlayOnly(src io.Reader) (Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.PlayOnly(src)
}

func (c *Call) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Leave()
}

func (c *Call) AddHandler(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.AddHandler(fn)
}

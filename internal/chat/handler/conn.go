package handler

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla connection to session.Conn. gorilla permits only
// one concurrent writer, and fan-out pushes from other connections race with
// pipeline responses on the same socket, so writes are serialized here.
type wsConn struct {
	id string
	mu sync.Mutex
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		id: uuid.NewString(),
		ws: ws,
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

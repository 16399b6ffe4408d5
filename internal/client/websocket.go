package client

import (
	"context"

	"github.com/gorilla/websocket"
)

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadEvent() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WebSocketDialer returns a Dialer connecting to a quizlive event stream
// URL (ws:// or wss://).
func WebSocketDialer(url string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{conn: conn}, nil
	}
}

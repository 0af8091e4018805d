package runtime

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

var probeDialer = &websocket.Dialer{
	HandshakeTimeout: 500 * time.Millisecond,
}

// Probe reports whether a websocket server answers on the loopback port.
func Probe(ctx context.Context, port int) bool {
	ws, _, err := probeDialer.DialContext(ctx, fmt.Sprintf("ws://127.0.0.1:%d/", port), nil)
	if err != nil {
		return false
	}
	ws.Close()
	return true
}

// Listening reports whether anything accepts TCP connections on the
// loopback port.
func Listening(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 200*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Dispatcher routes received events to handlers registered per type. Type
// names match case-insensitively.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]func(Event)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]func(Event))}
}

// On registers fn for events of type eventType.
func (d *Dispatcher) On(eventType string, fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := strings.ToUpper(eventType)
	d.handlers[key] = append(d.handlers[key], fn)
}

func (d *Dispatcher) Dispatch(evt Event) {
	d.mu.RLock()
	fns := d.handlers[strings.ToUpper(evt.Type)]
	d.mu.RUnlock()
	for _, fn := range fns {
		fn(evt)
	}
}

// URL returns the address listeners dial for a server on port.
func URL(port int) string {
	return fmt.Sprintf("ws://localhost:%d/", port)
}

// Subscribe connects to a build-event server and dispatches every event it
// receives until ctx is cancelled or the server goes away.
func Subscribe(ctx context.Context, url string, d *Dispatcher) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connect to build events: %w", err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read build event: %w", err)
		}
		evt, err := decodeEvent(msg)
		if err != nil {
			slog.Debug("ignoring malformed build event", "error", err)
			continue
		}
		d.Dispatch(evt)
	}
}

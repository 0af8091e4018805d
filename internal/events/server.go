package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Options struct {
	Port int
	// UseExisting returns the process-wide server when one is already running.
	UseExisting bool
}

// Server is the build-event websocket server.
type Server struct {
	Hub  *Hub
	Addr string

	httpSrv *http.Server
	ln      net.Listener
	done    chan struct{}
}

var (
	existingMu sync.Mutex
	existing   *Server
)

// Listen starts a build-event server on opts.Port. Listeners connect to the
// server root with a plain websocket handshake.
func Listen(opts Options) (*Server, error) {
	existingMu.Lock()
	defer existingMu.Unlock()

	if opts.UseExisting && existing != nil {
		slog.Debug("reusing build event server", "addr", existing.Addr)
		return existing, nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("listen for build events: %w", err)
	}

	s := &Server{
		Hub:  NewHub(),
		Addr: ln.Addr().String(),
		ln:   ln,
		done: make(chan struct{}),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/", s.ginWebSocket)
	s.httpSrv = &http.Server{Handler: engine}

	go func() {
		defer close(s.done)
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("build event server stopped", "error", err)
		}
	}()

	slog.Debug("build event server listening", "addr", s.Addr)
	existing = s
	return s, nil
}

// Port returns the port the server is bound to.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Publish broadcasts evt. It satisfies Sink.
func (s *Server) Publish(evt Event) {
	if s == nil {
		return
	}
	s.Hub.Broadcast(evt)
}

// Close disconnects all listeners and stops the server.
func (s *Server) Close() error {
	existingMu.Lock()
	if existing == s {
		existing = nil
	}
	existingMu.Unlock()

	s.Hub.closeAll()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)
	<-s.done
	return err
}

func (s *Server) ginWebSocket(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("build event upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	cn := &conn{
		id:          uuid.NewString(),
		ws:          ws,
		connectedAt: time.Now(),
	}
	s.Hub.add(cn)
	defer s.Hub.remove(cn.id)
	slog.Debug("build event listener connected", "id", cn.id, "remote", c.Request.RemoteAddr)

	// Listeners never send anything meaningful; reading keeps control frames flowing.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			slog.Debug("build event listener closed", "id", cn.id, "error", err)
			return
		}
	}
}

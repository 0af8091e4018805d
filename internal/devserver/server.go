// Package devserver serves a project's resources, build output and rewritten
// manifests on the project port.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lhdbsbz/svctool/internal/config"
	"github.com/lhdbsbz/svctool/internal/manifest"
)

// Options configures the middleware chain.
type Options struct {
	Paths    config.Paths
	Rewriter *manifest.Rewriter

	// BuildRoot returns the directory the code is served from: dist/ for
	// static serving, otherwise the live bundle's output directory.
	BuildRoot func() string

	// Middleware registers project routes ahead of the built-in ones.
	Middleware func(r *gin.Engine)
}

// NewEngine composes, in order: project middleware, manifest rewriting,
// ad-hoc manifests, res/, the build root and a 404.
func NewEngine(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger)

	if opts.Middleware != nil {
		opts.Middleware(engine)
	}

	buildRoot := opts.BuildRoot
	if buildRoot == nil {
		buildRoot = func() string { return opts.Paths.Dist() }
	}
	engine.NoRoute(
		manifestHandler(opts.Paths.Res(), opts.Rewriter),
		adHocHandler(opts.Paths.Res("demo", "app.json"), opts.Rewriter),
		staticHandler(func() string { return opts.Paths.Res() }),
		staticHandler(buildRoot),
		notFound,
	)
	return engine
}

// Server is a running dev server.
type Server struct {
	Addr string

	httpSrv *http.Server
	ln      net.Listener
	done    chan struct{}
	err     error
}

// Listen binds port and serves handler until ctx is cancelled or Close is
// called.
func Listen(ctx context.Context, handler http.Handler, port int) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}
	s := &Server{
		Addr:    ln.Addr().String(),
		httpSrv: &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second},
		ln:      ln,
		done:    make(chan struct{}),
	}

	go func() {
		err := s.httpSrv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.err = err
		close(s.done)
	}()
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown()
		case <-s.done:
		}
	}()

	slog.Info("application server listening", "addr", s.Addr)
	return s, nil
}

// Port returns the bound port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Wait blocks until the server stops and returns the serve error, if any.
func (s *Server) Wait() error {
	<-s.done
	return s.err
}

func (s *Server) Close() error {
	err := s.shutdown()
	<-s.done
	return err
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// Package runtime launches the desktop runtime against a manifest and finds
// the port it listens on.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/lhdbsbz/svctool/internal/proc"
)

// Ports the runtime picks its websocket port from.
const (
	FirstPort = 9696
	LastPort  = 9795
)

const manifestPlaceholder = "{manifest}"

// Executable names of runtime processes, used to clean up runtimes this
// tool did not start directly.
var ProcessNames = []string{"openfin", "OpenFin", "OpenFinRVM"}

var ErrLaunchTimeout = errors.New("runtime did not open a port in time")

// DefaultTemplate is the launcher command for the current platform.
func DefaultTemplate() string {
	if goruntime.GOOS == "windows" {
		return `${LOCALAPPDATA}\OpenFin\OpenFinRVM.exe --config=` + manifestPlaceholder
	}
	return "openfin --launch --config " + manifestPlaceholder
}

// Launcher starts runtimes from a command template. Each field of the
// template has environment variables expanded and {manifest} replaced; when
// no field holds the placeholder the manifest URL is appended.
type Launcher struct {
	Template string
	Procs    *proc.Manager

	FirstPort, LastPort int
	PollInterval        time.Duration
	Timeout             time.Duration
}

func NewLauncher(template string, procs *proc.Manager) *Launcher {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate()
	}
	if procs == nil {
		procs = proc.NewManager()
	}
	return &Launcher{
		Template:     template,
		Procs:        procs,
		FirstPort:    FirstPort,
		LastPort:     LastPort,
		PollInterval: 500 * time.Millisecond,
		Timeout:      2 * time.Minute,
	}
}

// Command returns the process spec launching manifestURL.
func (l *Launcher) Command(manifestURL string) (proc.Spec, error) {
	fields := strings.Fields(l.Template)
	if len(fields) == 0 {
		return proc.Spec{}, errors.New("empty runtime launcher command")
	}
	replaced := false
	for i, f := range fields {
		f = os.ExpandEnv(f)
		if strings.Contains(f, manifestPlaceholder) {
			f = strings.ReplaceAll(f, manifestPlaceholder, manifestURL)
			replaced = true
		}
		fields[i] = f
	}
	if !replaced {
		fields = append(fields, manifestURL)
	}
	return proc.Spec{Name: "runtime", Command: fields[0], Args: fields[1:]}, nil
}

// Instance is a launched runtime.
type Instance struct {
	Port     int
	Manifest string

	launcher *Launcher
}

// Launch starts a runtime for manifestURL and waits until it accepts
// websocket connections on a port that was free before the launch.
func (l *Launcher) Launch(ctx context.Context, manifestURL string) (*Instance, error) {
	spec, err := l.Command(manifestURL)
	if err != nil {
		return nil, err
	}
	busy := l.openPorts()

	slog.Info("launching runtime", "manifest", manifestURL, "command", spec.Command)
	p, err := l.Procs.Start(context.WithoutCancel(ctx), spec)
	if err != nil {
		return nil, fmt.Errorf("launch runtime: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()
	port, err := l.FindPort(ctx, busy)
	if err != nil {
		l.Procs.Stop(p.Name)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (%s)", ErrLaunchTimeout, l.Timeout)
		}
		return nil, err
	}
	slog.Info("runtime running", "port", port)
	return &Instance{Port: port, Manifest: manifestURL, launcher: l}, nil
}

// FindPort polls the port range until a port not in exclude accepts a
// websocket handshake.
func (l *Launcher) FindPort(ctx context.Context, exclude map[int]bool) (int, error) {
	ticker := time.NewTicker(l.PollInterval)
	defer ticker.Stop()
	for {
		for port := l.FirstPort; port <= l.LastPort; port++ {
			if exclude[port] {
				continue
			}
			if Probe(ctx, port) {
				return port, nil
			}
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *Launcher) openPorts() map[int]bool {
	open := make(map[int]bool)
	for port := l.FirstPort; port <= l.LastPort; port++ {
		if Listening(port) {
			open[port] = true
		}
	}
	if len(open) > 0 {
		slog.Debug("runtime ports already in use", "count", len(open))
	}
	return open
}

// WaitClosed blocks until the runtime stops listening on its port.
func (i *Instance) WaitClosed(ctx context.Context) error {
	ticker := time.NewTicker(i.launcher.PollInterval)
	defer ticker.Stop()
	for Listening(i.Port) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stop stops the launcher process and kills runtime processes by name,
// since launchers commonly hand the runtime off to a detached process.
func (i *Instance) Stop() {
	i.launcher.Procs.Stop("runtime")
	if _, err := proc.KillByName(ProcessNames...); err != nil {
		slog.Warn("runtime cleanup failed", "error", err)
	}
}

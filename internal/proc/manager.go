package proc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"
)

// DefaultStopTimeout is how long a child gets between the terminate signal and
// the forced kill.
const DefaultStopTimeout = 5 * time.Second

const reapInterval = 50 * time.Millisecond

// Spec describes a child process.
type Spec struct {
	Name    string // key in the Manager; defaults to Command
	Command string
	Args    []string
	Dir     string
	Env     map[string]string // added to the current environment

	Stdin  io.Reader
	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr

	StopTimeout time.Duration
}

// Process is a child owned by a Manager.
type Process struct {
	Name      string
	StartedAt time.Time

	cmd    *exec.Cmd
	stop   *stopper
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until the process exits and returns its exit code.
func (p *Process) Wait() (int, error) {
	<-p.done
	return ExitCode(p.err), p.err
}

// Manager owns every long-running child the tool starts.
type Manager struct {
	mu    sync.Mutex
	procs map[string]*Process
}

func NewManager() *Manager {
	return &Manager{procs: make(map[string]*Process)}
}

// Running returns the names of the processes still alive.
func (m *Manager) Running() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.procs))
	for name := range m.procs {
		names = append(names, name)
	}
	return names
}

// Start launches spec in the background in its own process group. A running
// process with the same name is stopped first. Cancelling ctx stops the
// process and everything it started.
func (m *Manager) Start(ctx context.Context, spec Spec) (*Process, error) {
	name := spec.Name
	if name == "" {
		name = spec.Command
	}
	m.Stop(name)

	procCtx, cancel := context.WithCancel(ctx)
	cmd := command(procCtx, spec)
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}
	setGroup(cmd)
	stop := &stopper{cmd: cmd, timeout: cmd.WaitDelay}
	cmd.Cancel = stop.cancel

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	p := &Process{
		Name:      name,
		StartedAt: time.Now(),
		cmd:       cmd,
		stop:      stop,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.mu.Lock()
	m.procs[name] = p
	m.mu.Unlock()
	slog.Debug("process started", "name", name, "pid", p.Pid(), "args", spec.Args)

	go func() {
		p.err = cmd.Wait()
		p.stop.reap()
		cancel()
		m.mu.Lock()
		if cur, ok := m.procs[name]; ok && cur == p {
			delete(m.procs, name)
		}
		m.mu.Unlock()
		close(p.done)
		slog.Debug("process exited", "name", name, "code", ExitCode(p.err))
	}()
	return p, nil
}

// Stop terminates the named process and waits for it to exit. Its process
// group gets a terminate signal first and is killed once the stop timeout
// elapses.
func (m *Manager) Stop(name string) {
	m.mu.Lock()
	p, ok := m.procs[name]
	m.mu.Unlock()
	if !ok {
		return
	}
	p.cancel()
	<-p.done
}

func (m *Manager) StopAll() {
	for _, name := range m.Running() {
		m.Stop(name)
	}
}

// Run executes spec to completion, relaying its output, and returns the exit
// code. The error is only set when the process could not be run at all.
func Run(ctx context.Context, spec Spec) (int, error) {
	cmd := command(ctx, spec)
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	} else {
		cmd.Stdin = os.Stdin
	}

	err := cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return -1, fmt.Errorf("run %s: %w", spec.Command, err)
	}
	return ExitCode(err), nil
}

// ExitCode extracts a process exit code from the error returned by Wait.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func command(ctx context.Context, spec Spec) *exec.Cmd {
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = buildEnv(spec.Env)
	cmd.Stdout = spec.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = spec.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	timeout := spec.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	cmd.Cancel = func() error { return terminate(cmd.Process) }
	cmd.WaitDelay = timeout
	return cmd
}

// stopper signals a child's whole process group on cancellation and reaps
// what is left of the group after the child has exited.
type stopper struct {
	cmd     *exec.Cmd
	timeout time.Duration

	mu       sync.Mutex
	deadline time.Time
}

func (s *stopper) cancel() error {
	s.mu.Lock()
	s.deadline = time.Now().Add(s.timeout)
	s.mu.Unlock()
	return terminateGroup(s.cmd.Process)
}

// reap waits for the rest of a cancelled child's group to exit and kills it
// once the stop timeout has passed. Children that exited on their own are
// left alone.
func (s *stopper) reap() {
	s.mu.Lock()
	deadline := s.deadline
	s.mu.Unlock()
	if deadline.IsZero() || s.cmd.Process == nil {
		return
	}
	pgid := s.cmd.Process.Pid
	for groupAlive(pgid) {
		if time.Now().After(deadline) {
			if err := killGroup(pgid); err == nil {
				slog.Debug("process group killed", "pgid", pgid)
			}
			return
		}
		time.Sleep(reapInterval)
	}
}

func terminate(p *os.Process) error {
	if runtime.GOOS == "windows" {
		return p.Kill()
	}
	return p.Signal(syscall.SIGTERM)
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = AppendEnv(env, k, v)
	}
	return env
}

// AppendEnv sets key in env, replacing an existing entry.
func AppendEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

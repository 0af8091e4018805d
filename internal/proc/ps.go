package proc

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	ps "github.com/mitchellh/go-ps"
)

// FindByName returns the pids of running processes whose executable matches
// one of names. Matching ignores case and a trailing ".exe".
func FindByName(names ...string) ([]int, error) {
	procs, err := ps.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	self := os.Getpid()

	var pids []int
	for _, p := range procs {
		if p.Pid() == self {
			continue
		}
		if matchesExecutable(p.Executable(), names) {
			pids = append(pids, p.Pid())
		}
	}
	return pids, nil
}

// KillByName force-kills every process found by FindByName and returns how
// many were killed. It is the fallback for processes this tool does not own,
// such as a runtime started through a launcher.
func KillByName(names ...string) (int, error) {
	pids, err := FindByName(names...)
	if err != nil {
		return 0, err
	}
	killed := 0
	for _, pid := range pids {
		p, err := os.FindProcess(pid)
		if err != nil {
			continue
		}
		if err := p.Kill(); err != nil {
			slog.Debug("kill failed", "pid", pid, "error", err)
			continue
		}
		killed++
	}
	if killed > 0 {
		slog.Info("killed processes", "names", names, "count", killed)
	}
	return killed, nil
}

func matchesExecutable(exe string, names []string) bool {
	exe = strings.TrimSuffix(strings.ToLower(exe), ".exe")
	for _, n := range names {
		if exe == strings.TrimSuffix(strings.ToLower(n), ".exe") {
			return true
		}
	}
	return false
}

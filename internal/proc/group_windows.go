//go:build windows

package proc

import (
	"os"
	"os/exec"
	"strconv"
)

func setGroup(*exec.Cmd) {}

// terminateGroup ends the child and its descendants. Windows has no graceful
// signal for console-less children, so the tree is killed right away.
func terminateGroup(p *os.Process) error {
	if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid)).Run(); err != nil {
		return p.Kill()
	}
	return nil
}

func killGroup(int) error { return nil }

func groupAlive(int) bool { return false }

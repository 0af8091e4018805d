package tool

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lhdbsbz/svctool/internal/proc"
)

// Command returns a process spec running the node tool name from the
// project's node_modules/.bin, or through npx when it is not installed locally.
func Command(root, name string, args ...string) proc.Spec {
	bin := filepath.Join(root, "node_modules", ".bin", name)
	if runtime.GOOS == "windows" {
		bin += ".cmd"
	}
	if info, err := os.Stat(bin); err == nil && !info.IsDir() {
		return proc.Spec{Name: name, Command: bin, Args: args, Dir: root}
	}

	npx := "npx"
	if runtime.GOOS == "windows" {
		npx = "npx.cmd"
	}
	return proc.Spec{Name: name, Command: npx, Args: append([]string{name}, args...), Dir: root}
}

// Run executes a node tool to completion and returns its exit code.
func Run(ctx context.Context, root, name string, args ...string) (int, error) {
	spec := Command(root, name, args...)
	slog.Debug("running tool", "tool", name, "command", spec.Command, "args", strings.Join(spec.Args, " "))
	return proc.Run(ctx, spec)
}

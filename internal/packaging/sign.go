package packaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lhdbsbz/svctool/internal/proc"
)

// Signer signs files by running an external command with the file path
// appended to its arguments. An empty command signs nothing.
type Signer struct {
	Command string // e.g. "openfin-sign" or "node sign.js --key k"
	Dir     string
	run     func(ctx context.Context, spec proc.Spec) (int, error)
}

func NewSigner(command, dir string) *Signer {
	return &Signer{Command: strings.TrimSpace(command), Dir: dir, run: proc.Run}
}

func (s *Signer) Enabled() bool { return s != nil && s.Command != "" }

func (s *Signer) Sign(ctx context.Context, path string) error {
	if !s.Enabled() {
		return nil
	}
	fields := strings.Fields(s.Command)
	spec := proc.Spec{
		Name:    "sign",
		Command: fields[0],
		Args:    append(fields[1:], path),
		Dir:     s.Dir,
	}
	run := s.run
	if run == nil {
		run = proc.Run
	}
	code, err := run(ctx, spec)
	if err != nil {
		return fmt.Errorf("sign %s: %w", path, err)
	}
	if code != 0 {
		return fmt.Errorf("sign %s: %s exited with code %d", path, fields[0], code)
	}
	slog.Debug("signed", "path", path)
	return nil
}

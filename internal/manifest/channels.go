package manifest

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tidwall/sjson"
)

// RuntimeChannels are the runtime release tracks a provider manifest is copied for.
var RuntimeChannels = []string{"stable", "alpha", "beta", "canary"}

// WriteRuntimeChannels writes one copy of the provider manifest per runtime
// channel into distProvider, as app.runtime-<channel>.json. The built manifest
// in distProvider is preferred over the one in resProvider.
func WriteRuntimeChannels(fs afero.Fs, distProvider, resProvider string) ([]string, error) {
	src := filepath.Join(distProvider, "app.json")
	if ok, _ := afero.Exists(fs, src); !ok {
		src = filepath.Join(resProvider, "app.json")
	}
	raw, err := afero.ReadFile(fs, src)
	if err != nil {
		return nil, fmt.Errorf("read provider manifest: %w", err)
	}
	if err := fs.MkdirAll(distProvider, 0o755); err != nil {
		return nil, err
	}

	written := make([]string, 0, len(RuntimeChannels))
	for _, channel := range RuntimeChannels {
		patched, err := sjson.SetBytes(raw, "runtime.version", channel)
		if err != nil {
			return nil, fmt.Errorf("set runtime version: %w", err)
		}
		out, err := Format(patched)
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", src, err)
		}
		dst := filepath.Join(distProvider, fmt.Sprintf("app.runtime-%s.json", channel))
		if err := afero.WriteFile(fs, dst, out, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", dst, err)
		}
		slog.Debug("wrote runtime channel manifest", "channel", channel, "path", dst)
		written = append(written, dst)
	}
	return written, nil
}

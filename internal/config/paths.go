package config

import "path/filepath"

// Paths resolves the well-known directories of a consuming project. All of
// them hang off the project root; none are configurable.
type Paths struct {
	Root string
}

// Res returns the static resources directory (manifests, html, icons).
func (p Paths) Res(elem ...string) string {
	return filepath.Join(append([]string{p.Root, "res"}, elem...)...)
}

// Dist returns the build output directory.
func (p Paths) Dist(elem ...string) string {
	return filepath.Join(append([]string{p.Root, "dist"}, elem...)...)
}

// Src returns the source directory watched for rebuilds.
func (p Paths) Src(elem ...string) string {
	return filepath.Join(append([]string{p.Root, "src"}, elem...)...)
}

// Test returns the test sources directory.
func (p Paths) Test(elem ...string) string {
	return filepath.Join(append([]string{p.Root, "test"}, elem...)...)
}

// Join resolves elem relative to the project root unless already absolute.
func (p Paths) Join(elem ...string) string {
	joined := filepath.Join(elem...)
	if filepath.IsAbs(joined) {
		return joined
	}
	return filepath.Join(p.Root, joined)
}

// BuildConfig returns the bundler target configuration path.
func (p Paths) BuildConfig() string {
	return filepath.Join(p.Root, "build.config.yaml")
}

package packaging

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
	"github.com/spf13/afero"
)

// Matcher tests slash-separated relative paths against globs. A glob without
// a "/" is matched against the base name only.
type Matcher struct {
	globs []matchGlob
}

type matchGlob struct {
	m        interface{ Match(string) bool }
	baseOnly bool
}

func NewMatcher(globs ...string) (*Matcher, error) {
	m := &Matcher{}
	for _, g := range globs {
		x, err := zglob.New(g)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", g, err)
		}
		m.globs = append(m.globs, matchGlob{m: x, baseOnly: !strings.Contains(g, "/")})
	}
	return m, nil
}

func (m *Matcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	for _, g := range m.globs {
		name := rel
		if g.baseOnly {
			name = path.Base(rel)
		}
		if g.m.Match(name) {
			return true
		}
	}
	return false
}

// entry is a regular file to package, keyed by its slash-separated path
// inside the archive.
type entry struct {
	Rel  string
	Path string
	Info os.FileInfo
}

// collect lists the regular files below root, skipping excluded ones. A
// missing root yields no entries.
func collect(fs afero.Fs, root string, exclude *Matcher) ([]entry, error) {
	if ok, _ := afero.DirExists(fs, root); !ok {
		return nil, nil
	}
	var out []entry
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if exclude.Match(rel) {
			return nil
		}
		out = append(out, entry{Rel: rel, Path: p, Info: info})
		return nil
	})
	return out, err
}

// merge combines entry lists; on a path clash the earlier list wins. The
// result is sorted by path.
func merge(lists ...[]entry) []entry {
	seen := make(map[string]bool)
	var out []entry
	for _, l := range lists {
		for _, e := range l {
			if seen[e.Rel] {
				continue
			}
			seen[e.Rel] = true
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out
}

// EmptyDir removes everything inside dir, creating it when missing.
func EmptyDir(fs afero.Fs, dir string) error {
	if err := fs.RemoveAll(dir); err != nil {
		return err
	}
	return fs.MkdirAll(dir, 0o755)
}

// CopyTree copies the contents of src into dst, overwriting existing files.
func CopyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, 0o755)
		}
		return CopyFile(fs, p, target)
	})
}

func CopyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

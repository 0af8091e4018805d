package packaging

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lhdbsbz/svctool/internal/config"
	"github.com/spf13/afero"
)

// asarNode is one node of the archive's JSON header. Directories carry
// Files; regular files carry Size and Offset.
type asarNode struct {
	Files      map[string]*asarNode `json:"files,omitempty"`
	Size       *int64               `json:"size,omitempty"`
	Offset     string               `json:"offset,omitempty"`
	Executable bool                 `json:"executable,omitempty"`
}

func (n *asarNode) dir(parts []string) *asarNode {
	cur := n
	for _, p := range parts {
		next, ok := cur.Files[p]
		if !ok {
			next = &asarNode{Files: make(map[string]*asarNode)}
			cur.Files[p] = next
		}
		cur = next
	}
	return cur
}

// WriteAsar packs the regular files below src into an asar archive at dst.
// The archive itself is skipped when dst lies inside src.
func WriteAsar(fs afero.Fs, src, dst string) (int64, error) {
	entries, err := collect(fs, src, nil)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", src, err)
	}
	entries = merge(entries)

	root := &asarNode{Files: make(map[string]*asarNode)}
	var offset int64
	var packed []entry
	for _, e := range entries {
		if filepath.Clean(e.Path) == filepath.Clean(dst) {
			continue
		}
		parts := strings.Split(e.Rel, "/")
		parent := root.dir(parts[:len(parts)-1])
		size := e.Info.Size()
		parent.Files[parts[len(parts)-1]] = &asarNode{
			Size:       &size,
			Offset:     strconv.FormatInt(offset, 10),
			Executable: e.Info.Mode().Perm()&0o100 != 0,
		}
		offset += size
		packed = append(packed, e)
	}

	header, err := json.Marshal(root)
	if err != nil {
		return 0, err
	}

	f, err := fs.Create(dst)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Write(asarPrelude(header)); err != nil {
		return 0, err
	}
	for _, e := range packed {
		if err := appendFile(fs, f, e.Path); err != nil {
			return 0, err
		}
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// asarPrelude encodes the header as two Chromium pickles: one holding the
// size of the second, which holds the JSON string. All integers are
// little-endian uint32 and the string is padded to a 4-byte boundary.
func asarPrelude(header []byte) []byte {
	padded := (len(header) + 3) &^ 3
	headerPickle := 8 + padded

	buf := make([]byte, 8+headerPickle)
	binary.LittleEndian.PutUint32(buf[0:], 4)
	binary.LittleEndian.PutUint32(buf[4:], uint32(headerPickle))
	binary.LittleEndian.PutUint32(buf[8:], uint32(headerPickle-4))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(header)))
	copy(buf[16:], header)
	return buf
}

func appendFile(fs afero.Fs, w io.Writer, path string) error {
	in, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(w, in)
	return err
}

// AsarDir is the staging directory of the asar build.
func AsarDir(paths config.Paths) string { return paths.Dist("asar") }

// Asar stages the provider output, provider resources and the client bundle
// in dist/asar, signs every staged file, packs dist/asar/<name>.asar and signs
// the archive.
func Asar(ctx context.Context, fs afero.Fs, paths config.Paths, name string, signer *Signer) (Result, error) {
	out := AsarDir(paths)
	if err := EmptyDir(fs, out); err != nil {
		return Result{}, fmt.Errorf("empty %s: %w", out, err)
	}
	for _, dir := range []string{paths.Dist("provider"), paths.Res("provider")} {
		if err := CopyTree(fs, dir, out); err != nil {
			return Result{}, fmt.Errorf("copy %s: %w", dir, err)
		}
	}
	client := paths.Dist("client", "openfin-"+name+".js")
	if err := CopyFile(fs, client, filepath.Join(out, filepath.Base(client))); err != nil {
		return Result{}, fmt.Errorf("copy client bundle: %w", err)
	}

	if !signer.Enabled() {
		slog.Warn("SIGN_COMMAND not set, asar contents will not be signed")
	}
	staged, err := collect(fs, out, nil)
	if err != nil {
		return Result{}, err
	}
	for _, e := range staged {
		if strings.HasSuffix(e.Rel, ".ofds") {
			continue
		}
		if err := signer.Sign(ctx, e.Path); err != nil {
			return Result{}, err
		}
	}

	dst := filepath.Join(out, name+".asar")
	n, err := WriteAsar(fs, out, dst)
	if err != nil {
		return Result{}, fmt.Errorf("write %s: %w", dst, err)
	}
	if err := signer.Sign(ctx, dst); err != nil {
		return Result{}, err
	}
	slog.Info("asar file created", "path", dst, "size", humanize.Bytes(uint64(n)))
	return Result{Path: dst, Bytes: n}, nil
}

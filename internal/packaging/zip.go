package packaging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/lhdbsbz/svctool/internal/config"
	"github.com/spf13/afero"
)

// Result describes a written archive.
type Result struct {
	Path  string
	Bytes int64
}

// ZipPath is where Zip writes the provider archive.
func ZipPath(paths config.Paths, name string) string {
	return paths.Dist("provider", name+"-service.zip")
}

// Zip archives the provider build output and resources into
// dist/provider/<name>-service.zip. Existing zip files in the output and the
// resource app.json are left out; on a path clash the build output wins.
func Zip(fs afero.Fs, paths config.Paths, name string) (Result, error) {
	noZips, err := NewMatcher("*.zip")
	if err != nil {
		return Result{}, err
	}
	noManifest, err := NewMatcher("app.json")
	if err != nil {
		return Result{}, err
	}

	dist, err := collect(fs, paths.Dist("provider"), noZips)
	if err != nil {
		return Result{}, fmt.Errorf("list build output: %w", err)
	}
	res, err := collect(fs, paths.Res("provider"), noManifest)
	if err != nil {
		return Result{}, fmt.Errorf("list resources: %w", err)
	}

	dst := ZipPath(paths, name)
	if err := fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Result{}, err
	}
	n, err := writeZip(fs, dst, merge(dist, res))
	if err != nil {
		return Result{}, fmt.Errorf("write %s: %w", dst, err)
	}
	slog.Info("zip file created", "path", dst, "size", humanize.Bytes(uint64(n)), "bytes", n)
	return Result{Path: dst, Bytes: n}, nil
}

func writeZip(fs afero.Fs, dst string, entries []entry) (int64, error) {
	f, err := fs.Create(dst)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	for _, e := range entries {
		if err := addZipEntry(fs, zw, e); err != nil {
			zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func addZipEntry(fs afero.Fs, zw *zip.Writer, e entry) error {
	hdr, err := zip.FileInfoHeader(e.Info)
	if err != nil {
		return err
	}
	hdr.Name = e.Rel
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	src, err := fs.Open(e.Path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(w, src)
	return err
}

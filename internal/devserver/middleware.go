package devserver

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lhdbsbz/svctool/internal/manifest"
)

const jsonContentType = "application/json; charset=utf-8"

var manifestPath = regexp.MustCompile(`^/((?:.*/)?[^/]*app[^/]*\.json)$`)

func readable(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// within joins the slash-separated rel onto dir, refusing paths that would
// escape dir.
func within(dir, rel string) (string, bool) {
	dir = filepath.Clean(dir)
	clean := strings.TrimPrefix(path.Clean("/"+rel), "/")
	p := filepath.Join(dir, filepath.FromSlash(clean))
	if p != dir && !strings.HasPrefix(p, dir+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

// manifestHandler serves manifests below resDir with the rewriter's
// overrides applied. Unreadable or unrecognised documents fall through.
func manifestHandler(resDir string, rw *manifest.Rewriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !readable(c.Request.Method) {
			c.Next()
			return
		}
		m := manifestPath.FindStringSubmatch(c.Request.URL.Path)
		if m == nil {
			c.Next()
			return
		}
		file, ok := within(resDir, m[1])
		if !ok {
			c.Next()
			return
		}
		raw, err := os.ReadFile(file)
		if err != nil {
			c.Next()
			return
		}

		out, err := rw.Rewrite(raw, manifest.Component(m[1]))
		if err != nil {
			if errors.Is(err, manifest.ErrPassThrough) {
				c.Next()
				return
			}
			abortManifestError(c, err)
			return
		}
		c.Data(http.StatusOK, jsonContentType, out)
		c.Abort()
	}
}

// adHocHandler builds manifests for arbitrary test windows at /manifest,
// using the demo manifest for defaults.
func adHocHandler(defaultsPath string, rw *manifest.Rewriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !readable(c.Request.Method) || strings.TrimSuffix(c.Request.URL.Path, "/") != "/manifest" {
			c.Next()
			return
		}
		defaults, err := os.ReadFile(defaultsPath)
		if err != nil {
			c.Next()
			return
		}
		out, err := rw.Synthesize(defaults, c.Request.URL.Query())
		if err != nil {
			if errors.Is(err, manifest.ErrPassThrough) {
				c.Next()
				return
			}
			abortManifestError(c, err)
			return
		}
		c.Data(http.StatusOK, jsonContentType, out)
		c.Abort()
	}
}

func abortManifestError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, manifest.ErrInvalidVersion) || errors.Is(err, manifest.ErrInvalidQuery) {
		status = http.StatusBadRequest
	}
	slog.Warn("manifest request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// staticHandler serves files below dir, falling through when there is none.
// A directory is served through its index.html.
func staticHandler(dir func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		root := dir()
		if root == "" || !readable(c.Request.Method) {
			c.Next()
			return
		}
		file, ok := within(root, c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}
		info, err := os.Stat(file)
		if err == nil && info.IsDir() {
			file = filepath.Join(file, "index.html")
			info, err = os.Stat(file)
		}
		if err != nil || info.IsDir() {
			c.Next()
			return
		}
		c.File(file)
		c.Abort()
	}
}

func notFound(c *gin.Context) {
	c.String(http.StatusNotFound, "Cannot %s %s", c.Request.Method, c.Request.URL.Path)
}

func requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	slog.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
		"status", c.Writer.Status(), "duration", time.Since(start))
}

package manifest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

var semverPattern = regexp.MustCompile(`\d+\.\d+\.\d+`)

const (
	providerManifest     = "provider/app.json"
	demoProviderManifest = "demo/provider.json"
	testProviderManifest = "test/provider.json"
)

// Resolver maps a provider version token to the URL of the provider manifest.
// Results are cached per version and querystring.
type Resolver struct {
	Port   int
	CDN    string
	ResDir string
	Fs     afero.Fs

	mu    sync.Mutex
	cache map[string]string
}

func NewResolver(port int, cdn, resDir string) *Resolver {
	return &Resolver{
		Port:   port,
		CDN:    strings.TrimSuffix(cdn, "/"),
		ResDir: resDir,
		Fs:     afero.NewOsFs(),
		cache:  make(map[string]string),
	}
}

// Resolve returns the provider manifest URL for version. Any querystring on
// existing (the URL currently declared in a manifest) is carried over.
//
// Recognised tokens: local, stable, staging, testing, x.y.z, or an absolute URL.
func (r *Resolver) Resolve(version, existing string) (string, error) {
	query := ""
	if i := strings.IndexByte(existing, '?'); i >= 0 {
		query = existing[i:]
	}

	key := version + "\x00" + query
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		r.cache = make(map[string]string)
	}
	if u, ok := r.cache[key]; ok {
		return u, nil
	}

	u, err := r.resolve(version, query)
	if err != nil {
		return "", err
	}
	r.cache[key] = u
	return u, nil
}

func (r *Resolver) resolve(version, query string) (string, error) {
	switch {
	case version == "local":
		if r.exists(demoProviderManifest) {
			return r.local(demoProviderManifest) + query, nil
		}
		return r.local(providerManifest) + query, nil
	case version == "stable":
		return r.CDN + "/app.json" + query, nil
	case version == "staging":
		return r.CDN + "/app.staging.json" + query, nil
	case version == "testing":
		if r.exists(testProviderManifest) {
			return r.local(testProviderManifest) + query, nil
		}
		return r.local(providerManifest) + query, nil
	case strings.Index(version, "://") > 0:
		return version, nil
	case semverPattern.MatchString(version):
		return fmt.Sprintf("%s/%s/app.json%s", r.CDN, version, query), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidVersion, version)
}

func (r *Resolver) local(path string) string {
	return fmt.Sprintf("http://localhost:%d/%s", r.Port, path)
}

func (r *Resolver) exists(rel string) bool {
	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	ok, err := afero.Exists(fs, filepath.Join(r.ResDir, filepath.FromSlash(rel)))
	return err == nil && ok
}

package manifest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	defaultLeft   = 860
	defaultTop    = 605
	defaultWidth  = 860
	defaultHeight = 605
)

var leadingInt = regexp.MustCompile(`^\s*[+-]?\d+`)

type adHocManifest struct {
	LicenseKey string          `json:"licenseKey,omitempty"`
	StartupApp adHocStartupApp `json:"startup_app"`
	Runtime    Runtime         `json:"runtime"`
	Services   any             `json:"services"`
	Shortcut   *Shortcut       `json:"shortcut,omitempty"`
}

type adHocStartupApp struct {
	UUID            string `json:"uuid"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	Frame           bool   `json:"frame"`
	AutoShow        bool   `json:"autoShow"`
	SaveWindowState bool   `json:"saveWindowState"`
	DefaultCentered bool   `json:"defaultCentered"`
	DefaultLeft     int    `json:"defaultLeft"`
	DefaultTop      int    `json:"defaultTop"`
	DefaultWidth    int    `json:"defaultWidth"`
	DefaultHeight   int    `json:"defaultHeight"`
}

// Synthesize builds a manifest for an arbitrary test window from query
// parameters, falling back to values from defaults (the demo manifest).
//
// An unparsable defaults document yields ErrPassThrough; a malformed config
// parameter or provider token yields an error wrapping ErrInvalidQuery.
func (rw *Rewriter) Synthesize(defaults []byte, q url.Values) ([]byte, error) {
	if !gjson.ValidBytes(defaults) {
		return nil, ErrPassThrough
	}
	def := gjson.ParseBytes(defaults)

	id := uuid.NewString()[:4]
	str := func(key, fallback string) string {
		if v, ok := q[key]; ok && len(v) > 0 {
			return v[0]
		}
		return fallback
	}

	enableMesh := q.Get("enableMesh") != "false"
	runtimeArgs := "--v=1"
	if realm := q.Get("realmName"); realm != "" {
		runtimeArgs += " --security-realm=" + realm
		if enableMesh {
			runtimeArgs += " --enable-mesh"
		}
	}

	m := adHocManifest{
		LicenseKey: def.Get("licenseKey").String(),
		StartupApp: adHocStartupApp{
			UUID:            str("uuid", "test-app-"+id),
			Name:            str("name", "Openfin Test App "+id),
			URL:             str("url", fmt.Sprintf("http://localhost:%d/demo/testbed/index.html", rw.Port)),
			Frame:           q.Get("frame") != "false",
			AutoShow:        true,
			SaveWindowState: false,
			DefaultCentered: q.Get("defaultCentered") == "true",
			DefaultLeft:     intOr(q.Get("defaultLeft"), defaultLeft),
			DefaultTop:      intOr(q.Get("defaultTop"), defaultTop),
			DefaultWidth:    intOr(q.Get("defaultWidth"), defaultWidth),
			DefaultHeight:   intOr(q.Get("defaultHeight"), defaultHeight),
		},
		Runtime: Runtime{
			Arguments: runtimeArgs,
			Version:   str("runtime", def.Get("runtime.version").String()),
		},
		Services: struct{}{},
	}
	if name := q.Get("shortcutName"); name != "" {
		m.Shortcut = &Shortcut{Company: "OpenFin", Icon: "openfin-test-icon.ico", Name: name}
	}

	if q.Get("useService") != "false" {
		svc := ServiceDeclaration{Name: rw.ServiceName}
		if provider := str("provider", "local"); provider != "default" {
			u, err := rw.Resolver.Resolve(provider, "")
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
			}
			svc.ManifestURL = u
		}
		if cfg := q.Get("config"); cfg != "" {
			if !json.Valid([]byte(cfg)) {
				return nil, fmt.Errorf("%w: config is not valid JSON", ErrInvalidQuery)
			}
			svc.Config = json.RawMessage(cfg)
		}
		m.Services = []ServiceDeclaration{svc}
	}

	return Marshal(m)
}

// intOr parses the leading integer of s, returning fallback when there is
// none or it is zero.
func intOr(s string, fallback int) int {
	match := leadingInt.FindString(s)
	if match == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(match))
	if err != nil || n == 0 {
		return fallback
	}
	return n
}

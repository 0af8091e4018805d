// Package hooks lets a project customise the tool without forking it. A
// project builds its own binary around svctool.Main and passes its hooks in.
package hooks

import "github.com/gin-gonic/gin"

// StartArgs are the options of the start command.
type StartArgs struct {
	ProviderVersion string // local, stable, staging, testing, x.y.z or a manifest URL
	RuntimeVersion  string // empty keeps the manifest's runtime version
	Mode            string // webpack mode
	NoDemo          bool   // serve without launching the demo app
	Static          bool   // serve pre-built files from dist/
	WriteToDisk     bool   // write the live build to dist/
}

// DefaultStartArgs are the start options before any hook or flag applies.
func DefaultStartArgs() StartArgs {
	return StartArgs{
		ProviderVersion: "local",
		Mode:            "development",
	}
}

// Hooks are the project's extension points. Every field is optional.
type Hooks struct {
	// DefaultArgs adjusts the start defaults. Flags given on the command
	// line still win.
	DefaultArgs func(args *StartArgs)

	// AppMiddleware registers routes on the start server ahead of the
	// built-in ones.
	AppMiddleware func(r *gin.Engine)

	// TestMiddleware registers routes on the integration test server ahead
	// of the built-in ones.
	TestMiddleware func(r *gin.Engine)
}

// StartDefaults returns DefaultStartArgs with the DefaultArgs hook applied.
func (h Hooks) StartDefaults() StartArgs {
	args := DefaultStartArgs()
	if h.DefaultArgs != nil {
		h.DefaultArgs(&args)
	}
	return args
}

func (h Hooks) App(r *gin.Engine) {
	if h.AppMiddleware != nil {
		h.AppMiddleware(r)
	}
}

func (h Hooks) Test(r *gin.Engine) {
	if h.TestMiddleware != nil {
		h.TestMiddleware(r)
	}
}

// Package svctool is the entry point for projects that build their own
// tooling binary with custom hooks:
//
//	func main() {
//		svctool.Main(hooks.Hooks{
//			AppMiddleware: func(r *gin.Engine) { r.GET("/api/ping", ping) },
//		})
//	}
package svctool

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lhdbsbz/svctool/hooks"
	"github.com/lhdbsbz/svctool/internal/cli"
)

// Main runs the command line in os.Args and exits the process.
func Main(h hooks.Hooks) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], h)
	stop()
	os.Exit(code)
}

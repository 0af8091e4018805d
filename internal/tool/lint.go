package tool

import (
	"context"
	"os"
	"path/filepath"
)

// LintArgs returns the eslint arguments for check (fix=false) and fix.
func LintArgs(fix, cache bool) []string {
	args := []string{"src", "test", "--ext", ".ts,.tsx"}
	if fix {
		args = append(args, "--fix")
	}
	if cache {
		args = append(args, "--cache")
	}
	return args
}

// Lint runs eslint over the project's sources.
func Lint(ctx context.Context, root string, fix, cache bool) (int, error) {
	return Run(ctx, root, "eslint", LintArgs(fix, cache)...)
}

// DocsArgs returns the typedoc arguments: the project's typedoc.json when
// present, else client API docs written to dist/docs.
func DocsArgs(root string) []string {
	if _, err := os.Stat(filepath.Join(root, "typedoc.json")); err == nil {
		return []string{"--options", "typedoc.json"}
	}
	return []string{"--out", filepath.Join("dist", "docs"), filepath.Join("src", "client")}
}

// Docs generates API documentation with typedoc.
func Docs(ctx context.Context, root string) (int, error) {
	return Run(ctx, root, "typedoc", DocsArgs(root)...)
}

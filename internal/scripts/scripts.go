// Package scripts bundles the JavaScript entry point with esbuild.
package scripts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
	"git.home.luguber.info/inful/assetpipe/internal/compile"
)

// Bundler bundles one entry and its imports into a single minified file
// written to the same relative path under the destination root.
type Bundler struct {
	SourceRoot string
	DestRoot   string
	Entry      string // relative to SourceRoot, e.g. js/main.js
	Engines    []api.Engine
	// Dev writes a linked source map next to the bundle.
	Dev bool
}

// Result lists what the bundle wrote and any bundler diagnostics.
type Result struct {
	Written  []string
	Failures []compile.Error
}

// Build runs esbuild. A missing entry produces nothing.
func (b *Bundler) Build(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry := filepath.Join(b.SourceRoot, filepath.FromSlash(b.Entry))
	if _, err := os.Stat(entry); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Result{}, nil
		}
		return nil, err
	}
	absRoot, err := filepath.Abs(b.SourceRoot)
	if err != nil {
		return nil, err
	}
	outfile := filepath.Join(b.DestRoot, filepath.FromSlash(b.Entry))
	absOut, err := filepath.Abs(outfile)
	if err != nil {
		return nil, err
	}

	sourcemap := api.SourceMapNone
	if b.Dev {
		sourcemap = api.SourceMapLinked
	}
	res := api.Build(api.BuildOptions{
		AbsWorkingDir:     absRoot,
		EntryPoints:       []string{filepath.FromSlash(b.Entry)},
		Bundle:            true,
		Write:             false,
		Outfile:           absOut,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		Engines:           b.Engines,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		Sourcemap:         sourcemap,
		LogLevel:          api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return &Result{Failures: toFailures(res.Errors, b.Entry)}, nil
	}

	out := &Result{}
	absDest, err := filepath.Abs(b.DestRoot)
	if err != nil {
		return nil, err
	}
	for _, f := range res.OutputFiles {
		rel, err := filepath.Rel(absDest, f.Path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("bundle output %s escapes destination", f.Path)
		}
		if err := assetfs.WriteFile(f.Path, f.Contents); err != nil {
			return nil, err
		}
		out.Written = append(out.Written, filepath.ToSlash(rel))
	}
	return out, nil
}

func toFailures(msgs []api.Message, entry string) []compile.Error {
	out := make([]compile.Error, 0, len(msgs))
	for _, m := range msgs {
		p := entry
		text := m.Text
		if m.Location != nil {
			p = path.Clean(filepath.ToSlash(m.Location.File))
			text = fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text)
		}
		out = append(out, compile.Error{Path: p, Message: text})
	}
	return out
}

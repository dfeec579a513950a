// Package styles compiles Sass stylesheets, then prefixes and minifies the
// result for the configured browser targets.
package styles

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
	"git.home.luguber.info/inful/assetpipe/internal/compile"
	"git.home.luguber.info/inful/assetpipe/internal/minify"
)

const (
	// Pattern selects stylesheets under the source root.
	Pattern = "scss/**/*.scss"
	srcDir  = "scss"
	outDir  = "css"
)

// Builder turns every non-partial stylesheet into css/<name>.min.css.
type Builder struct {
	SourceRoot   string
	DestRoot     string
	Compiler     SassCompiler
	IncludePaths []string
	Engines      []api.Engine
	// Dev writes linked source maps and skips the second minification pass.
	Dev      bool
	Minifier *minify.Minifier
}

// Result lists what a build wrote and which files failed to compile.
type Result struct {
	Written  []string
	Failures []compile.Error
}

// Build compiles all stylesheets. Compile failures are collected in the
// result; other failures abort the build.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	files, err := assetfs.Glob(b.SourceRoot, Pattern)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(path.Base(rel), "_") {
			continue
		}
		written, err := b.buildOne(rel)
		var ce compile.Error
		if stderrors.As(err, &ce) {
			res.Failures = append(res.Failures, ce)
			continue
		}
		if err != nil {
			return nil, err
		}
		res.Written = append(res.Written, written...)
	}
	return res, nil
}

// OutputPath maps scss/<dir>/<name>.scss to css/<dir>/<name>.min.css.
func OutputPath(rel string) string {
	inner := strings.TrimPrefix(rel, srcDir+"/")
	return path.Join(outDir, strings.TrimSuffix(inner, ".scss")+".min.css")
}

func (b *Builder) buildOne(rel string) ([]string, error) {
	srcPath := filepath.Join(b.SourceRoot, filepath.FromSlash(rel))
	source, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	abs, err := filepath.Abs(srcPath)
	if err != nil {
		return nil, err
	}
	includes := append([]string{filepath.Dir(abs)}, b.IncludePaths...)
	out, err := b.Compiler.Compile(SassInput{
		Source:       string(source),
		URL:          (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		IncludePaths: includes,
		SourceMap:    b.Dev,
	})
	if err != nil {
		var se *SyntaxError
		if stderrors.As(err, &se) {
			return nil, compile.Error{Path: rel, Message: se.Error()}
		}
		return nil, fmt.Errorf("compile %s: %w", rel, err)
	}

	outRel := OutputPath(rel)
	css := out.CSS
	if b.Dev && out.SourceMap != "" {
		// esbuild composes inline input maps with its own.
		css += "\n/*# sourceMappingURL=data:application/json;base64," +
			base64.StdEncoding.EncodeToString([]byte(out.SourceMap)) + " */\n"
	}
	tr := api.Transform(css, api.TransformOptions{
		Loader:           api.LoaderCSS,
		Sourcefile:       rel,
		Engines:          b.Engines,
		MinifySyntax:     true,
		MinifyWhitespace: true,
		Sourcemap:        b.sourcemapMode(),
		LogLevel:         api.LogLevelSilent,
	})
	if len(tr.Errors) > 0 {
		return nil, compile.Error{Path: rel, Message: formatMessages(tr.Errors)}
	}

	code := tr.Code
	if !b.Dev && b.Minifier != nil {
		if code, err = b.Minifier.CSS(code); err != nil {
			return nil, compile.Error{Path: rel, Message: err.Error()}
		}
	}

	dest := filepath.Join(b.DestRoot, filepath.FromSlash(outRel))
	written := []string{outRel}
	if b.Dev && len(tr.Map) > 0 {
		mapName := path.Base(outRel) + ".map"
		code = append(code, []byte("/*# sourceMappingURL="+mapName+" */\n")...)
		if err := assetfs.WriteFile(dest+".map", tr.Map); err != nil {
			return nil, err
		}
		written = append(written, outRel+".map")
	}
	if err := assetfs.WriteFile(dest, code); err != nil {
		return nil, err
	}
	return written, nil
}

func (b *Builder) sourcemapMode() api.SourceMap {
	if b.Dev {
		return api.SourceMapExternal
	}
	return api.SourceMapNone
}

func formatMessages(msgs []api.Message) string {
	return strings.TrimSpace(strings.Join(api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: api.ErrorMessage}), "\n"))
}

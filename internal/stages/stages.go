// Package stages builds the named pipeline stages from configuration.
package stages

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
	"git.home.luguber.info/inful/assetpipe/internal/browsers"
	"git.home.luguber.info/inful/assetpipe/internal/compile"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/fonts"
	"git.home.luguber.info/inful/assetpipe/internal/fontstyle"
	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/htmlinclude"
	"git.home.luguber.info/inful/assetpipe/internal/images"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
	"git.home.luguber.info/inful/assetpipe/internal/minify"
	"git.home.luguber.info/inful/assetpipe/internal/notify"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/rev"
	"git.home.luguber.info/inful/assetpipe/internal/scripts"
	"git.home.luguber.info/inful/assetpipe/internal/sprite"
	"git.home.luguber.info/inful/assetpipe/internal/styles"
)

// Stage names.
const (
	Clean          = "clean"
	HTML           = "html"
	Scripts        = "scripts"
	Fonts          = "fonts"
	FontsStyle     = "fonts-style"
	Images         = "images"
	Sprites        = "sprites"
	Resources      = "resources"
	Styles         = "styles"
	CompressImages = "compress-images"
	HTMLMinify     = "html-minify"
	Rev            = "rev"
	RevRewrite     = "rev-rewrite"
)

const resourcesDir = "resources"

// Env carries the collaborators shared by all stages.
type Env struct {
	Config *config.Config
	// Dev selects the development variants: source maps, no second CSS pass.
	Dev bool
	// Policy decides what compile errors do.
	Policy   config.CompileErrorPolicy
	Notifier *notify.Notifier
	Recorder metrics.Recorder
	Logger   *slog.Logger

	Sass      styles.SassCompiler
	Converter fonts.Converter
	// Shrinker is nil when no compression API key is configured.
	Shrinker images.Shrinker
	Minifier *minify.Minifier
}

// Set holds every stage built from one Env.
type Set struct {
	env       Env
	src, dest string
	styleEng  []api.Engine
	scriptEng []api.Engine
	stages    map[string]pipeline.Stage
}

// New builds the stage set. Invalid browser targets are configuration errors.
func New(env Env) (*Set, error) {
	if env.Config == nil {
		env.Config = config.Default()
	}
	if env.Recorder == nil {
		env.Recorder = metrics.NoopRecorder{}
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Notifier == nil {
		env.Notifier = notify.New(notify.LogSink{Logger: env.Logger})
	}
	if env.Minifier == nil {
		env.Minifier = minify.New()
	}
	if env.Policy == "" {
		env.Policy = config.CompileErrorFail
	}

	styleEng, err := browsers.Engines(env.Config.Styles.Targets)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid styles.targets").Build()
	}
	scriptEng, err := browsers.Engines(env.Config.Scripts.Targets)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid scripts.targets").Build()
	}

	s := &Set{
		env:       env,
		src:       env.Config.Paths.Source,
		dest:      env.Config.Paths.Dest,
		styleEng:  styleEng,
		scriptEng: scriptEng,
	}
	s.stages = map[string]pipeline.Stage{
		Clean:          pipeline.Func(Clean, "Empty the destination root", s.clean),
		HTML:           pipeline.Func(HTML, "Expand @@include directives in top-level pages", s.html),
		Scripts:        pipeline.Func(Scripts, "Bundle and minify the script entry", s.scripts),
		Fonts:          pipeline.Func(Fonts, "Convert TrueType fonts to WOFF2", s.fonts),
		FontsStyle:     pipeline.Func(FontsStyle, "Generate the font-face include fragment", s.fontsStyle),
		Images:         pipeline.Func(Images, "Copy raster images", s.images),
		Sprites:        pipeline.Func(Sprites, "Combine SVG icons into a stack sprite", s.sprites),
		Resources:      pipeline.Func(Resources, "Copy static resources", s.resources),
		Styles:         pipeline.Func(Styles, "Compile, prefix and minify stylesheets", s.styles),
		CompressImages: pipeline.Func(CompressImages, "Compress raster images through Tinify", s.compressImages),
		HTMLMinify:     pipeline.Func(HTMLMinify, "Collapse whitespace in built pages", s.htmlMinify),
		Rev:            pipeline.Func(Rev, "Rename assets after their content hash", s.rev),
		RevRewrite:     pipeline.Func(RevRewrite, "Rewrite page references from the rev manifest", s.revRewrite),
	}
	return s, nil
}

// Stage returns the named stage.
func (s *Set) Stage(name string) (pipeline.Stage, bool) {
	st, ok := s.stages[name]
	return st, ok
}

// MustStage returns the named stage and panics on unknown names. It is
// meant for the fixed task declarations.
func (s *Set) MustStage(name string) pipeline.Stage {
	st, ok := s.stages[name]
	if !ok {
		panic(fmt.Sprintf("unknown stage %q", name))
	}
	return st
}

// Names lists all stage names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.stages))
	for n := range s.stages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Set) srcPath(rel string) string  { return filepath.Join(s.src, filepath.FromSlash(rel)) }
func (s *Set) destPath(rel string) string { return filepath.Join(s.dest, filepath.FromSlash(rel)) }

func (s *Set) written(stage string, n int) {
	s.env.Recorder.AddFilesWritten(stage, n)
	s.env.Logger.Debug("Stage output written", logfields.Stage(stage), logfields.Files(n))
}

// classify turns unclassified failures into filesystem or build errors
// tagged with the stage. Cancellation passes through untouched.
func classify(stage string, err error) error {
	if err == nil || errors.IsClassified(err) ||
		stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	category := errors.CategoryBuild
	var pathErr *fs.PathError
	if stderrors.As(err, &pathErr) {
		category = errors.CategoryFileSystem
	}
	return errors.WrapError(err, category, stage+" failed").WithContext("stage", stage).Build()
}

func (s *Set) clean(context.Context) error {
	return classify(Clean, assetfs.Clean(s.dest))
}

func (s *Set) html(ctx context.Context) error {
	res, err := (&htmlinclude.Builder{SourceRoot: s.src, DestRoot: s.dest}).Build(ctx)
	if err != nil {
		return classify(HTML, err)
	}
	s.written(HTML, len(res.Written))
	return compile.Apply(s.env.Policy, s.env.Notifier, HTML, res.Failures)
}

func (s *Set) scripts(ctx context.Context) error {
	b := &scripts.Bundler{
		SourceRoot: s.src,
		DestRoot:   s.dest,
		Entry:      s.env.Config.Scripts.Entry,
		Engines:    s.scriptEng,
		Dev:        s.env.Dev,
	}
	res, err := b.Build(ctx)
	if err != nil {
		return classify(Scripts, err)
	}
	s.written(Scripts, len(res.Written))
	return compile.Apply(s.env.Policy, s.env.Notifier, Scripts, res.Failures)
}

func (s *Set) fonts(ctx context.Context) error {
	conv := s.env.Converter
	if conv == nil {
		conv = fonts.ExecConverter{Binary: s.env.Config.Fonts.Converter}
	}
	written, err := (&fonts.Builder{SourceRoot: s.src, DestRoot: s.dest, Converter: conv}).Build(ctx)
	if err != nil {
		return classify(Fonts, err)
	}
	s.written(Fonts, len(written))
	return nil
}

func (s *Set) fontsStyle(ctx context.Context) error {
	g := &fontstyle.Generator{
		FontsDir:       s.destPath("fonts"),
		SourceFontsDir: s.srcPath("fonts"),
		Output:         s.srcPath(s.env.Config.Fonts.Stylesheet),
		Policy:         s.env.Config.Fonts.WeightPolicy,
		DefaultWeight:  s.env.Config.Fonts.DefaultWeight,
		Logger:         s.env.Logger,
	}
	faces, err := g.Generate(ctx)
	if err != nil {
		return classify(FontsStyle, err)
	}
	s.written(FontsStyle, len(faces))
	return nil
}

func (s *Set) images(ctx context.Context) error {
	written, err := images.Copy(ctx, s.src, s.dest)
	if err != nil {
		return classify(Images, err)
	}
	s.written(Images, len(written))
	return nil
}

func (s *Set) sprites(ctx context.Context) error {
	written, err := (&sprite.Builder{SourceRoot: s.src, DestRoot: s.dest, Minifier: s.env.Minifier}).Build(ctx)
	if err != nil {
		return classify(Sprites, err)
	}
	s.written(Sprites, len(written))
	return nil
}

func (s *Set) resources(ctx context.Context) error {
	written, err := assetfs.CopyGlob(ctx, s.srcPath(resourcesDir), "**", s.dest)
	if err != nil {
		return classify(Resources, err)
	}
	s.written(Resources, len(written))
	return nil
}

func (s *Set) styles(ctx context.Context) error {
	sass := s.env.Sass
	if sass == nil {
		return errors.ConfigError("no Sass compiler configured").WithContext("stage", Styles).Build()
	}
	b := &styles.Builder{
		SourceRoot:   s.src,
		DestRoot:     s.dest,
		Compiler:     sass,
		IncludePaths: s.env.Config.Styles.IncludePaths,
		Engines:      s.styleEng,
		Dev:          s.env.Dev,
		Minifier:     s.env.Minifier,
	}
	res, err := b.Build(ctx)
	if err != nil {
		return classify(Styles, err)
	}
	s.written(Styles, len(res.Written))
	return compile.Apply(s.env.Policy, s.env.Notifier, Styles, res.Failures)
}

func (s *Set) compressImages(ctx context.Context) error {
	c := &images.Compressor{
		SourceRoot:  s.src,
		DestRoot:    s.dest,
		Shrinker:    s.env.Shrinker,
		ParallelMax: s.env.Config.Images.ParallelMax,
		MaxWidth:    s.env.Config.Images.MaxWidth,
		Logger:      s.env.Logger,
	}
	written, err := c.Compress(ctx)
	if err != nil {
		return classify(CompressImages, err)
	}
	s.written(CompressImages, len(written))
	return nil
}

func (s *Set) htmlMinify(ctx context.Context) error {
	n, err := s.env.Minifier.HTMLTree(ctx, s.dest, rev.HTMLPattern)
	if err != nil {
		return classify(HTMLMinify, err)
	}
	s.written(HTMLMinify, n)
	return nil
}

func (s *Set) rev(ctx context.Context) error {
	r := &rev.Reviser{Root: s.dest, Extensions: s.env.Config.Rev.Extensions, ManifestName: s.env.Config.Rev.Manifest}
	m, err := r.Rev(ctx)
	if err != nil {
		return classify(Rev, err)
	}
	s.written(Rev, len(m))
	return nil
}

func (s *Set) revRewrite(ctx context.Context) error {
	m, err := rev.ReadManifest(s.destPath(s.env.Config.Rev.Manifest))
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "read rev manifest").
			WithContext("stage", RevRewrite).
			WithContext("path", s.env.Config.Rev.Manifest).Build()
	}
	n, err := rev.Rewrite(ctx, s.dest, m)
	if err != nil {
		return classify(RevRewrite, err)
	}
	s.written(RevRewrite, n)
	return nil
}

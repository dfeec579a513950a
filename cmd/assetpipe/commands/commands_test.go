package commands

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
	"git.home.luguber.info/inful/assetpipe/internal/styles"
	"git.home.luguber.info/inful/assetpipe/internal/watch"
)

type passthroughSass struct{}

func (passthroughSass) Compile(in styles.SassInput) (styles.SassOutput, error) {
	return styles.SassOutput{CSS: in.Source}, nil
}

func (passthroughSass) Close() error { return nil }

func write(t *testing.T, root, rel, data string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
}

// project lays out a small source tree and a config pointing into it.
func project(t *testing.T) (configPath, src, dist string) {
	t.Helper()
	t.Setenv(config.TinifyKeyEnv, "")
	base := t.TempDir()
	src = filepath.Join(base, "src")
	dist = filepath.Join(base, "dist")
	write(t, src, "index.html", `<html><body>@@include('html/nav.html', {"title": "Home"})</body></html>`)
	write(t, src, "html/nav.html", "<nav>  @@title  </nav>")
	write(t, src, "img/photo.png", "png")
	write(t, src, "resources/robots.txt", "User-agent: *")

	configPath = filepath.Join(base, "assetpipe.yaml")
	write(t, base, "assetpipe.yaml", strings.Join([]string{
		"paths:",
		"  source: " + src,
		"  dest: " + dist,
		"history:",
		"  path: " + filepath.Join(base, "history.db"),
		"",
	}, "\n"))
	return configPath, src, dist
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	var out bytes.Buffer
	parser, err := kong.New(&cli,
		kong.Name("assetpipe"),
		kong.Vars{"version": "test"},
		kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
	)
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run(&Global{Out: &out}, &cli)
	return out.String(), err
}

func TestDevIsDefaultCommand(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	kctx, err := parser.Parse(nil)
	require.NoError(t, err)
	require.Equal(t, "dev", kctx.Command())
}

func TestBuildCommandRecordsHistory(t *testing.T) {
	cfgPath, _, dist := project(t)

	out, err := execute(t, "-c", cfgPath, "build")
	require.NoError(t, err)
	require.Contains(t, out, "build success")
	require.Contains(t, out, "html-minify")

	page, err := os.ReadFile(filepath.Join(dist, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(page), "Home")
	require.FileExists(t, filepath.Join(dist, "robots.txt"))

	out, err = execute(t, "-c", cfgPath, "history", "-n", "5")
	require.NoError(t, err)
	require.Contains(t, out, "build")
	require.Contains(t, out, "success")
	require.Contains(t, out, "compress-images")
}

func TestReleaseRevisionsAssets(t *testing.T) {
	cfgPath, _, dist := project(t)

	_, err := execute(t, "-c", cfgPath, "release")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dist, "rev.json"))
	require.NoFileExists(t, filepath.Join(dist, "img", "photo.png"))
}

func TestCacheOnEmptyDestinationWritesEmptyManifest(t *testing.T) {
	cfgPath, _, dist := project(t)

	out, err := execute(t, "-c", cfgPath, "cache")
	require.NoError(t, err)
	require.Contains(t, out, "rev-rewrite")
	data, err := os.ReadFile(filepath.Join(dist, "rev.json"))
	require.NoError(t, err)
	require.Equal(t, "{}\n", string(data))
}

func TestRunSelectsStages(t *testing.T) {
	cfgPath, src, dist := project(t)

	out, err := execute(t, "-c", cfgPath, "run", "html")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dist, "index.html"))
	require.NoFileExists(t, filepath.Join(dist, "robots.txt"))
	require.NotContains(t, out, "clean")

	out, err = execute(t, "-c", cfgPath, "run", "fonts-style", "--with-deps")
	require.NoError(t, err)
	require.Contains(t, out, "clean")
	require.Contains(t, out, "resources")
	require.FileExists(t, filepath.Join(src, "scss", "_fonts.scss"))
	require.FileExists(t, filepath.Join(dist, "robots.txt"))

	_, err = execute(t, "-c", cfgPath, "run", "minify-everything")
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestCleanCommand(t *testing.T) {
	cfgPath, _, dist := project(t)
	write(t, dist, "stale.css", "old")

	_, err := execute(t, "-c", cfgPath, "clean")
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(dist, "stale.css"))
}

func TestGraphCommand(t *testing.T) {
	cfgPath, _, _ := project(t)

	out, err := execute(t, "-c", cfgPath, "graph", "dev", "-f", "mermaid")
	require.NoError(t, err)
	require.Contains(t, out, "fonts_style --> styles")
	require.NotContains(t, out, "rev")

	out, err = execute(t, "-c", cfgPath, "graph")
	require.NoError(t, err)
	require.Contains(t, out, "Task release")
	require.Contains(t, out, "Total: 13 stages")

	file := filepath.Join(t.TempDir(), "build.dot")
	_, err = execute(t, "-c", cfgPath, "graph", "build", "-f", "dot", "-o", file)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), `"compress-images" -> "html-minify";`)

	_, err = execute(t, "-c", cfgPath, "graph", "deploy")
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assetpipe.yaml")

	out, err := execute(t, "-c", path, "init")
	require.NoError(t, err)
	require.Contains(t, out, "initialized successfully")
	_, err = config.Load(path)
	require.NoError(t, err)

	_, err = execute(t, "-c", path, "init")
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))

	_, err = execute(t, "-c", path, "init", "--force")
	require.NoError(t, err)
}

func TestInvalidCompileErrorFlag(t *testing.T) {
	cfgPath, _, _ := project(t)

	_, err := execute(t, "-c", cfgPath, "--on-compile-error", "ignore", "build")
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestBuildContinuesPastScriptSyntaxError(t *testing.T) {
	cfgPath, src, dist := project(t)
	write(t, src, "js/main.js", "const = ;\n")

	out, err := execute(t, "-c", cfgPath, "build")
	require.NoError(t, err)
	require.Contains(t, out, "build success")
	require.FileExists(t, filepath.Join(dist, "index.html"))

	_, err = execute(t, "-c", cfgPath, "--on-compile-error", "fail", "build")
	require.Error(t, err)
}

func TestHistoryDisabled(t *testing.T) {
	cfgPath, _, _ := project(t)
	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("  disabled: true\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = execute(t, "-c", cfgPath, "history")
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func testRuntime(t *testing.T, dev bool) (*Runtime, string, string) {
	t.Helper()
	cfgPath, src, dist := project(t)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	rt := NewRuntime(cfg, nil, dev)
	rt.Sass = passthroughSass{}
	t.Cleanup(rt.Close)
	return rt, src, dist
}

func TestRebuilderRunsOnlyBindingStages(t *testing.T) {
	rt, src, dist := testRuntime(t, true)
	write(t, src, "scss/main.scss", "body { color: red; }\n")

	full, err := rt.FullGraph(true)
	require.NoError(t, err)
	rebuild := rebuilder(rt, full)

	require.NoError(t, rebuild(context.Background(), watch.Binding{Name: "styles", Stages: []string{"styles"}}))
	require.FileExists(t, filepath.Join(dist, "css", "main.min.css"))
	require.FileExists(t, filepath.Join(dist, "css", "main.min.css.map"))
	require.NoFileExists(t, filepath.Join(dist, "index.html"))

	err = rebuild(context.Background(), watch.Binding{Name: "bogus", Stages: []string{"bogus"}})
	require.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestDevServeBuildsThenStopsOnCancel(t *testing.T) {
	rt, _, dist := testRuntime(t, true)
	require.NotNil(t, rt.Hub)

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := (&DevCmd{}).serve(ctx, &Global{Out: &out}, rt)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dist, "index.html"))
	require.Contains(t, out.String(), "dev success")
	require.Contains(t, out.String(), "Serving")
}

func TestDevServeReportsMissingSourceRoot(t *testing.T) {
	rt, src, _ := testRuntime(t, true)
	require.NoError(t, os.RemoveAll(src))
	require.NoError(t, os.WriteFile(src, []byte("not a directory"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := (&DevCmd{NoServe: true}).serve(ctx, &Global{Out: &bytes.Buffer{}}, rt)
	require.True(t, errors.HasCategory(err, errors.CategoryFileSystem))
}

func TestRenderReport(t *testing.T) {
	r := &pipeline.Report{
		Task:     "build",
		Duration: 1500 * time.Millisecond,
		Stages: []pipeline.StageResult{
			{Name: "clean", Status: pipeline.StatusSucceeded, Duration: 3 * time.Millisecond},
			{Name: "styles", Status: pipeline.StatusFailed, Err: stderrors.New("undefined variable $brand")},
			{Name: "html-minify", Status: pipeline.StatusSkipped},
		},
	}
	r.Err = r.Stages[1].Err

	out := RenderReport(r)
	require.Contains(t, out, "build failed in 1.5s")
	require.Contains(t, out, "3ms")
	require.Contains(t, out, "undefined variable $brand")
	require.Contains(t, out, "skipped")
}

func TestRenderRunsEmpty(t *testing.T) {
	require.Equal(t, "No runs recorded.\n", RenderRuns(nil))
}

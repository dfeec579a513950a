package sprite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/minify"
)

const arrow = `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="24" height="24" viewBox="0 0 24 24" fill="none">
  <defs><linearGradient id="g"><stop offset="0"/></linearGradient></defs>
  <path d="M0 12h24" stroke="url(#g)"/>
  <use xlink:href="#g"/>
</svg>`

const dot = `<svg xmlns="http://www.w3.org/2000/svg" width="10px" height="10px"><circle cx="5" cy="5" r="5"/></svg>`

func TestParseIcon(t *testing.T) {
	icon, err := ParseIcon("arrow", []byte(arrow))
	require.NoError(t, err)
	require.Equal(t, "0 0 24 24", icon.ViewBox)
	require.Len(t, icon.Attrs, 1)
	require.Equal(t, "fill", icon.Attrs[0].Key)

	icon, err = ParseIcon("dot", []byte(dot))
	require.NoError(t, err)
	require.Equal(t, "0 0 10 10", icon.ViewBox)

	_, err = ParseIcon("none", []byte("<p>not svg</p>"))
	require.Error(t, err)
}

func TestRenderStackSprite(t *testing.T) {
	a, err := ParseIcon("arrow", []byte(arrow))
	require.NoError(t, err)
	d, err := ParseIcon("dot", []byte(dot))
	require.NoError(t, err)

	out, err := Render([]Icon{a, d})
	require.NoError(t, err)
	s := string(out)
	require.True(t, strings.HasPrefix(s, `<svg xmlns="http://www.w3.org/2000/svg"`))
	require.Contains(t, s, stackStyle)
	require.Contains(t, s, `<svg id="arrow" viewBox="0 0 24 24" fill="none">`)
	require.Contains(t, s, `<svg id="dot" viewBox="0 0 10 10">`)
	require.Contains(t, s, "linearGradient")
	require.Contains(t, s, `xlink:href="#g"`)
	require.Equal(t, 3, strings.Count(s, "</svg>"))
}

func TestBuildWritesMinifiedSprite(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	dir := filepath.Join(src, "img", "svg")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arrow.svg"), []byte(arrow), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dot.svg"), []byte(dot), 0o644))

	written, err := (&Builder{SourceRoot: src, DestRoot: dst, Minifier: minify.New()}).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{Output}, written)

	b, err := os.ReadFile(filepath.Join(dst, "img", "sprite.svg"))
	require.NoError(t, err)
	require.Contains(t, string(b), `id="arrow"`)
	require.Contains(t, string(b), `id="dot"`)
	require.Contains(t, string(b), ":target")
}

func TestBuildWithoutIcons(t *testing.T) {
	written, err := (&Builder{SourceRoot: t.TempDir(), DestRoot: t.TempDir()}).Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, written)
}

package minify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSS(t *testing.T) {
	out, err := New().CSS([]byte("a {\n  color : #ff0000 ;\n}\n"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "a{color:"))
	require.NotContains(t, string(out), " ")
}

func TestHTMLCollapsesWhitespaceOnly(t *testing.T) {
	in := "<!doctype html>\n<html>\n  <head><title>x</title></head>\n  <body>\n    <!-- keep -->\n    <p class=\"a\">  hello   world  </p>\n  </body>\n</html>\n"
	out, err := New().HTML([]byte(in))
	require.NoError(t, err)
	s := string(out)
	require.Contains(t, s, "<!-- keep -->")
	require.Contains(t, s, `class="a"`)
	require.Contains(t, s, "</body>")
	require.NotContains(t, s, "\n    ")
	require.Contains(t, s, "hello world")
}

func TestSVG(t *testing.T) {
	out, err := New().SVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10">  <rect width="10" height="10"/>  </svg>`))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(out), "<svg"))
	require.NotContains(t, string(out), "  ")
}

func TestHTMLTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<p>\n  a\n</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "page.html"), []byte("<p>\n  b\n</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "style.css"), []byte("a {  }"), 0o644))

	n, err := New().HTMLTree(context.Background(), root, "**/*.html")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	b, err := os.ReadFile(filepath.Join(root, "sub", "page.html"))
	require.NoError(t, err)
	require.NotContains(t, string(b), "\n")
	css, err := os.ReadFile(filepath.Join(root, "style.css"))
	require.NoError(t, err)
	require.Equal(t, "a {  }", string(css))
}

package htmlinclude

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestExpandNestedIncludesWithVariables(t *testing.T) {
	src := t.TempDir()
	write(t, src, "index.html", `<html>@@include('html/header.html', {"title": "Home", "count": 3})<main/></html>`)
	write(t, src, "html/header.html", `<h1>@@title</h1>@@include("parts/nav.html", {"active": "home"})`)
	write(t, src, "html/parts/nav.html", `<nav class="@@active">@@title @@count</nav>`)

	out, err := (&Builder{SourceRoot: src}).ExpandFile(filepath.Join(src, "index.html"))
	require.NoError(t, err)
	require.Equal(t, `<html><h1>Home</h1><nav class="home">Home 3</nav><main/></html>`, string(out))
}

func TestExpandRendersMarkdown(t *testing.T) {
	src := t.TempDir()
	write(t, src, "page.html", `<article>@@include('content/intro.md', {"name": "World"})</article>`)
	write(t, src, "content/intro.md", "# Hello @@name\n\nSome *text*.\n")

	out, err := (&Builder{SourceRoot: src}).ExpandFile(filepath.Join(src, "page.html"))
	require.NoError(t, err)
	require.Contains(t, string(out), "<h1>Hello World</h1>")
	require.Contains(t, string(out), "<em>text</em>")
}

func TestLongerVariableNamesWin(t *testing.T) {
	got := substitute([]byte("@@title/@@titleSuffix"), map[string]string{"title": "A", "titleSuffix": "B"})
	require.Equal(t, "A/B", string(got))

	got = substitute([]byte("@@include('x.html') @@inc"), map[string]string{"inc": "v"})
	require.Equal(t, "@@include('x.html') v", string(got))
}

func TestIncludeCycleIsReported(t *testing.T) {
	src := t.TempDir()
	write(t, src, "a.html", `@@include('html/b.html')`)
	write(t, src, "html/b.html", `@@include('../a.html')`)

	_, err := (&Builder{SourceRoot: src}).ExpandFile(filepath.Join(src, "a.html"))
	var ie *IncludeError
	require.ErrorAs(t, err, &ie)
	require.Equal(t, []string{"a.html", "html/b.html", "a.html"}, ie.Chain)
	require.Contains(t, err.Error(), "include cycle")
}

func TestMalformedDirectives(t *testing.T) {
	cases := map[string]string{
		"unquoted":     `@@include(header.html)`,
		"unterminated": `@@include('header.html'`,
		"bad json":     `@@include('header.html', {title: 1})`,
		"missing file": `@@include('nope.html')`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			src := t.TempDir()
			write(t, src, "header.html", "h")
			write(t, src, "index.html", doc)
			_, err := (&Builder{SourceRoot: src}).ExpandFile(filepath.Join(src, "index.html"))
			var ie *IncludeError
			require.ErrorAs(t, err, &ie)
		})
	}
}

func TestJSONWithBracesInStrings(t *testing.T) {
	inc, ok, err := nextInclude([]byte(`x @@include('a.html', {"s": "})", "n": {"k": [1]}}) y`), 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a.html", inc.path)
	require.Equal(t, "})", inc.vars["s"])
	require.Equal(t, 2, inc.start)
}

func TestBuildWritesTopLevelPages(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	write(t, src, "index.html", `@@include('html/footer.html')`)
	write(t, src, "broken.html", `@@include('html/missing.html')`)
	write(t, src, "html/footer.html", `<footer/>`)

	res, err := (&Builder{SourceRoot: src, DestRoot: dst}).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"index.html"}, res.Written)
	require.Len(t, res.Failures, 1)
	require.Equal(t, "broken.html", res.Failures[0].Path)
	require.True(t, strings.Contains(res.Failures[0].Message, "missing.html"))

	b, err := os.ReadFile(filepath.Join(dst, "index.html"))
	require.NoError(t, err)
	require.Equal(t, "<footer/>", string(b))
	_, err = os.Stat(filepath.Join(dst, "html"))
	require.True(t, os.IsNotExist(err))
}

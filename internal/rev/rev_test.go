package rev

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestHashAndName(t *testing.T) {
	h := Hash([]byte("body{}"))
	require.Len(t, h, 10)
	require.Equal(t, h, Hash([]byte("body{}")))
	require.NotEqual(t, h, Hash([]byte("body{ }")))

	require.Equal(t, "css/main.min-0123456789.css", RevName("css/main.min.css", "0123456789"))
	require.Equal(t, "fonts/a-0123456789.woff2", RevName("fonts/a.woff2", "0123456789"))
}

func TestPattern(t *testing.T) {
	require.Equal(t, "**/*.css", Pattern([]string{"css"}))
	require.Equal(t, "**/*.{css,js}", Pattern([]string{"css", "js"}))
}

func TestRevRenamesAndWritesManifest(t *testing.T) {
	root := t.TempDir()
	write(t, root, "css/main.min.css", "body{}")
	write(t, root, "js/main.js", "console.log(1)")
	write(t, root, "js/main.js.map", "{}")
	write(t, root, "index.html", "<html></html>")

	m, err := (&Reviser{Root: root}).Rev(context.Background())
	require.NoError(t, err)
	require.Len(t, m, 2)
	require.Equal(t, RevName("css/main.min.css", Hash([]byte("body{}"))), m["css/main.min.css"])

	_, err = os.Stat(filepath.Join(root, "css", "main.min.css"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(m["js/main.js"])))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "js", "main.js.map"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, DefaultManifest))
	require.NoError(t, err)
	expected := "{\n  \"css/main.min.css\": \"" + m["css/main.min.css"] + "\",\n  \"js/main.js\": \"" + m["js/main.js"] + "\"\n}\n"
	require.Equal(t, expected, string(data))

	again, err := (&Reviser{Root: root}).Rev(context.Background())
	require.NoError(t, err)
	require.Equal(t, m, again)

	require.NoError(t, os.Remove(filepath.Join(root, filepath.FromSlash(m["js/main.js"]))))
	again, err = (&Reviser{Root: root}).Rev(context.Background())
	require.NoError(t, err)
	require.Equal(t, Manifest{"css/main.min.css": m["css/main.min.css"]}, again)
}

func TestRewriteIsIdempotent(t *testing.T) {
	root := t.TempDir()
	write(t, root, "css/main.min.css", "body{}")
	write(t, root, "img/sprite.svg", "<svg/>")
	page := `<link href="css/main.min.css"><use href="img/sprite.svg#arrow">`
	write(t, root, "index.html", page)
	write(t, root, "sub/page.html", page)

	r := &Reviser{Root: root}
	_, err := r.Rev(context.Background())
	require.NoError(t, err)
	m, err := ReadManifest(filepath.Join(root, DefaultManifest))
	require.NoError(t, err)

	n, err := Rewrite(context.Background(), root, m)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	first, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	require.Contains(t, string(first), m["css/main.min.css"])
	require.Contains(t, string(first), m["img/sprite.svg"]+"#arrow")

	n, err = Rewrite(context.Background(), root, m)
	require.NoError(t, err)
	require.Zero(t, n)
	second, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestKeysLongestFirst(t *testing.T) {
	m := Manifest{"a.js": "a-1.js", "lib/a.js": "lib/a-2.js", "b.js": "b-3.js"}
	require.Equal(t, []string{"lib/a.js", "a.js", "b.js"}, m.Keys())
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), DefaultManifest))
	require.True(t, os.IsNotExist(err))
}

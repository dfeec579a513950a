package fonts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

type fakeConverter struct {
	calls int
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, ttf []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("wOF2"), ttf[:4]...), nil
}

func fontTree(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for rel, data := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, data, 0o644))
	}
	return root
}

func TestBuildConvertsFonts(t *testing.T) {
	src := fontTree(t, map[string][]byte{
		"fonts/Go-Regular.ttf": goregular.TTF,
		"fonts/Go-Bold.ttf":    gobold.TTF,
		"fonts/readme.txt":     []byte("ignored"),
	})
	dst := t.TempDir()
	conv := &fakeConverter{}

	written, err := (&Builder{SourceRoot: src, DestRoot: dst, Converter: conv}).Build(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"fonts/Go-Bold.woff2", "fonts/Go-Regular.woff2"}, written)
	require.Equal(t, 2, conv.calls)

	b, err := os.ReadFile(filepath.Join(dst, "fonts", "Go-Bold.woff2"))
	require.NoError(t, err)
	require.Equal(t, "wOF2", string(b[:4]))
}

func TestBuildRejectsInvalidFont(t *testing.T) {
	src := fontTree(t, map[string][]byte{"fonts/Broken-Bold.ttf": []byte("garbage")})
	conv := &fakeConverter{}
	_, err := (&Builder{SourceRoot: src, DestRoot: t.TempDir(), Converter: conv}).Build(context.Background())
	require.ErrorContains(t, err, "fonts/Broken-Bold.ttf")
	require.Zero(t, conv.calls)
}

func TestBuildPropagatesConverterErrors(t *testing.T) {
	src := fontTree(t, map[string][]byte{"fonts/Go-Regular.ttf": goregular.TTF})
	_, err := (&Builder{SourceRoot: src, DestRoot: t.TempDir(), Converter: &fakeConverter{err: errors.New("exit status 1")}}).Build(context.Background())
	require.ErrorContains(t, err, "exit status 1")
}

func TestBuildWithoutFonts(t *testing.T) {
	written, err := (&Builder{SourceRoot: t.TempDir(), DestRoot: t.TempDir(), Converter: &fakeConverter{}}).Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, written)
}

func TestExecConverterMissingBinary(t *testing.T) {
	_, err := ExecConverter{Binary: "assetpipe-no-such-woff2-tool"}.Convert(context.Background(), goregular.TTF)
	require.Error(t, err)
}

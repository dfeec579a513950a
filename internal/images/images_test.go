package images

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/retry"
)

func fastPolicy(retries int) retry.Policy {
	return retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, retries)
}

// tinifyServer mimics the shrink endpoint: POST returns a location, GET
// on that location returns the "compressed" bytes.
func tinifyServer(t *testing.T, failures int, failStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var posts atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/shrink", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "api" || pass != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized","message":"Credentials are invalid"}`))
			return
		}
		if int(posts.Add(1)) <= failures {
			w.WriteHeader(failStatus)
			return
		}
		w.Header().Set("Location", srv.URL+"/output/1")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{"size": 5, "type": "image/png"}})
	})
	mux.HandleFunc("/output/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("small"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &posts
}

func TestShrinkFollowsLocation(t *testing.T) {
	srv, posts := tinifyServer(t, 0, 0)
	c := NewTinifyClient(srv.URL+"/shrink", "key", 5*time.Second, fastPolicy(2))

	out, err := c.Shrink(context.Background(), []byte("large image"))
	require.NoError(t, err)
	require.Equal(t, "small", string(out))
	require.EqualValues(t, 1, posts.Load())
}

func TestShrinkRetriesTransientStatus(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		srv, posts := tinifyServer(t, 2, status)
		c := NewTinifyClient(srv.URL+"/shrink", "key", 5*time.Second, fastPolicy(2))

		out, err := c.Shrink(context.Background(), []byte("img"))
		require.NoError(t, err)
		require.Equal(t, "small", string(out))
		require.EqualValues(t, 3, posts.Load())
	}
}

func TestShrinkGivesUpAfterRetries(t *testing.T) {
	srv, posts := tinifyServer(t, 10, http.StatusBadGateway)
	c := NewTinifyClient(srv.URL+"/shrink", "key", 5*time.Second, fastPolicy(1))

	_, err := c.Shrink(context.Background(), []byte("img"))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryNetwork))
	require.EqualValues(t, 2, posts.Load())
}

func TestShrinkDoesNotRetryBadKey(t *testing.T) {
	srv, posts := tinifyServer(t, 0, 0)
	c := NewTinifyClient(srv.URL+"/shrink", "wrong", 5*time.Second, fastPolicy(3))

	_, err := c.Shrink(context.Background(), []byte("img"))
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryConfig))
	require.Zero(t, posts.Load())
}

func TestShrinkReadsOutputURLFromBody(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"output": map[string]any{"url": srv.URL + "/result"}})
			return
		}
		require.Equal(t, "/result", r.URL.Path)
		_, _ = w.Write([]byte("tiny"))
	}))
	t.Cleanup(srv.Close)

	out, err := NewTinifyClient(srv.URL, "key", time.Second, fastPolicy(0)).Shrink(context.Background(), []byte("img"))
	require.NoError(t, err)
	require.Equal(t, "tiny", string(out))
}

type countingShrinker struct {
	mu      sync.Mutex
	active  int
	maxSeen int
}

func (s *countingShrinker) Shrink(_ context.Context, data []byte) ([]byte, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return append([]byte("z:"), data[:1]...), nil
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func TestCompressBoundsParallelism(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	for _, name := range []string{"a.png", "b.jpg", "c.jpeg", "d.png", "e.png", "nested/f.jpg"} {
		writeFile(t, src, "img/"+name, []byte("x"))
	}
	writeFile(t, src, "img/icon.gif", []byte("x"))

	shrinker := &countingShrinker{}
	c := &Compressor{SourceRoot: src, DestRoot: dst, Shrinker: shrinker, ParallelMax: 2}
	written, err := c.Compress(context.Background())
	require.NoError(t, err)
	require.Len(t, written, 6)
	require.LessOrEqual(t, shrinker.maxSeen, 2)

	b, err := os.ReadFile(filepath.Join(dst, "img", "nested", "f.jpg"))
	require.NoError(t, err)
	require.Equal(t, "z:x", string(b))
	_, err = os.Stat(filepath.Join(dst, "img", "icon.gif"))
	require.True(t, os.IsNotExist(err))
}

func TestCompressWithoutKeySkips(t *testing.T) {
	src := t.TempDir()
	writeFile(t, src, "img/a.png", []byte("x"))
	written, err := (&Compressor{SourceRoot: src, DestRoot: t.TempDir()}).Compress(context.Background())
	require.NoError(t, err)
	require.Empty(t, written)
}

func TestCopyOnlyTopLevelImages(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "img/a.png", []byte("a"))
	writeFile(t, src, "img/b.JPG", []byte("b"))
	writeFile(t, src, "img/svg/icon.svg", []byte("<svg/>"))
	writeFile(t, src, "img/sub/c.jpg", []byte("c"))

	written, err := Copy(context.Background(), src, dst)
	require.NoError(t, err)
	require.Equal(t, []string{"img/a.png"}, written)
}

func TestDownscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for x := 0; x < 200; x++ {
		img.Set(x, 50, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := Downscale(buf.Bytes(), ".png", 50)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 50, cfg.Width)
	require.Equal(t, 25, cfg.Height)

	same, err := Downscale(buf.Bytes(), ".png", 400)
	require.NoError(t, err)
	require.Equal(t, buf.Bytes(), same)
}

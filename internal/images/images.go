// Package images copies raster images in development builds and compresses
// them through the Tinify API in production builds.
package images

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

const (
	// CopyPattern selects the images copied unmodified in development.
	CopyPattern = "img/*.{jpg,jpeg,png}"
	// CompressPattern selects the images sent to the compression API.
	CompressPattern = "img/**/*.{jpg,jpeg,png}"

	// MaxParallel caps concurrent compression requests.
	MaxParallel = 50
)

// Copy copies the top-level images unmodified.
func Copy(ctx context.Context, sourceRoot, destRoot string) ([]string, error) {
	return assetfs.CopyGlob(ctx, sourceRoot, CopyPattern, destRoot)
}

// Shrinker compresses one encoded image.
type Shrinker interface {
	Shrink(ctx context.Context, data []byte) ([]byte, error)
}

// Compressor writes compressed copies of the source images.
type Compressor struct {
	SourceRoot  string
	DestRoot    string
	Shrinker    Shrinker
	ParallelMax int
	// MaxWidth downscales wider images before upload; zero disables.
	MaxWidth int
	Logger   *slog.Logger
}

// Compress sends every matching image through the Shrinker with at most
// ParallelMax requests outstanding. A nil Shrinker means no API key was
// configured: the stage warns and leaves the copied originals.
func (c *Compressor) Compress(ctx context.Context) ([]string, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if c.Shrinker == nil {
		logger.Warn("Image compression skipped: no Tinify API key configured")
		return nil, nil
	}
	files, err := assetfs.Glob(c.SourceRoot, CompressPattern)
	if err != nil || len(files) == 0 {
		return nil, err
	}

	limit := c.ParallelMax
	if limit < 1 || limit > MaxParallel {
		limit = MaxParallel
	}
	if limit > len(files) {
		limit = len(files)
	}

	sem := make(chan struct{}, limit)
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	for i, rel := range files {
		wg.Add(1)
		go func(i int, rel string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			errs[i] = c.compressOne(ctx, rel)
			if errs[i] == nil {
				logger.Debug("Image compressed", logfields.Path(rel))
			}
		}(i, rel)
	}
	wg.Wait()

	if err := stderrors.Join(errs...); err != nil {
		return nil, err
	}
	return files, nil
}

func (c *Compressor) compressOne(ctx context.Context, rel string) error {
	data, err := os.ReadFile(filepath.Join(c.SourceRoot, filepath.FromSlash(rel)))
	if err != nil {
		return fmt.Errorf("read %s: %w", rel, err)
	}
	if c.MaxWidth > 0 {
		if data, err = Downscale(data, path.Ext(rel), c.MaxWidth); err != nil {
			return fmt.Errorf("resize %s: %w", rel, err)
		}
	}
	out, err := c.Shrinker.Shrink(ctx, data)
	if err != nil {
		return fmt.Errorf("compress %s: %w", rel, err)
	}
	return assetfs.WriteFile(filepath.Join(c.DestRoot, filepath.FromSlash(rel)), out)
}

// Downscale resizes images wider than maxWidth, keeping the aspect ratio,
// and re-encodes them in their original format. Narrower images are
// returned unchanged.
func Downscale(data []byte, ext string, maxWidth int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width <= maxWidth {
		return data, nil
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	height := cfg.Height * maxWidth / cfg.Width
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case ".png":
		err = png.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package fonts converts TrueType sources to WOFF2.
package fonts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/image/font/sfnt"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
)

// Pattern selects font sources under the source root.
const Pattern = "fonts/*.ttf"

// Converter turns TrueType bytes into WOFF2 bytes.
type Converter interface {
	Convert(ctx context.Context, ttf []byte) ([]byte, error)
}

// ExecConverter runs woff2_compress, which reads <name>.ttf and writes
// <name>.woff2 next to it, inside a scratch directory.
type ExecConverter struct {
	Binary string
}

// Convert implements Converter.
func (c ExecConverter) Convert(ctx context.Context, ttf []byte) ([]byte, error) {
	bin := c.Binary
	if bin == "" {
		bin = "woff2_compress"
	}
	dir, err := os.MkdirTemp("", "assetpipe-woff2-")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "font.ttf")
	if err := os.WriteFile(in, ttf, 0o600); err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, in)
	cmd.Dir = dir
	cmd.Stdout = &stderr
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return os.ReadFile(filepath.Join(dir, "font.woff2"))
}

// Builder validates and converts every font source to fonts/<stem>.woff2.
type Builder struct {
	SourceRoot string
	DestRoot   string
	Converter  Converter
}

// Validate reports whether data parses as an SFNT font.
func Validate(data []byte) error {
	if _, err := sfnt.Parse(data); err != nil {
		return fmt.Errorf("not a valid TrueType font: %w", err)
	}
	return nil
}

// Build converts all fonts and returns the written paths.
func (b *Builder) Build(ctx context.Context) ([]string, error) {
	files, err := assetfs.Glob(b.SourceRoot, Pattern)
	if err != nil {
		return nil, err
	}
	var written []string
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(b.SourceRoot, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		if err := Validate(data); err != nil {
			return nil, fmt.Errorf("%s: %w", rel, err)
		}
		woff2, err := b.Converter.Convert(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("convert %s: %w", rel, err)
		}
		out := path.Join("fonts", strings.TrimSuffix(path.Base(rel), path.Ext(rel))+".woff2")
		if err := assetfs.WriteFile(filepath.Join(b.DestRoot, filepath.FromSlash(out)), woff2); err != nil {
			return nil, err
		}
		written = append(written, out)
	}
	return written, nil
}

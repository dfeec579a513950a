// Package minify wraps tdewolff/minify for the CSS, HTML and SVG passes.
package minify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/svg"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
)

const (
	mediaCSS  = "text/css"
	mediaHTML = "text/html"
	mediaSVG  = "image/svg+xml"
)

// Minifier minifies documents by media type. It is safe for concurrent use.
type Minifier struct {
	m *tdminify.M
}

// New returns a Minifier. HTML minification only collapses whitespace:
// comments, quotes, end tags and default attribute values are preserved.
func New() *Minifier {
	m := tdminify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaSVG, svg.Minify)
	m.Add(mediaHTML, &html.Minifier{
		KeepComments:            true,
		KeepConditionalComments: true,
		KeepDefaultAttrVals:     true,
		KeepDocumentTags:        true,
		KeepEndTags:             true,
		KeepQuotes:              true,
	})
	return &Minifier{m: m}
}

func (m *Minifier) CSS(b []byte) ([]byte, error)  { return m.m.Bytes(mediaCSS, b) }
func (m *Minifier) HTML(b []byte) ([]byte, error) { return m.m.Bytes(mediaHTML, b) }
func (m *Minifier) SVG(b []byte) ([]byte, error)  { return m.m.Bytes(mediaSVG, b) }

// HTMLTree minifies every file under root matching pattern in place and
// returns the number of files rewritten.
func (m *Minifier) HTMLTree(ctx context.Context, root, pattern string) (int, error) {
	files, err := assetfs.Glob(root, pattern)
	if err != nil {
		return 0, err
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		path := filepath.Join(root, filepath.FromSlash(rel))
		in, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", rel, err)
		}
		out, err := m.HTML(in)
		if err != nil {
			return 0, fmt.Errorf("minify %s: %w", rel, err)
		}
		if err := assetfs.WriteFile(path, out); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

// Package sprite combines individual SVG icons into one "stack" sprite in
// which each icon is addressable as sprite.svg#<name>.
package sprite

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
)

const (
	// Pattern selects the icons under the source root.
	Pattern = "img/svg/*.svg"
	// Output is the sprite path under the destination root.
	Output = "img/sprite.svg"

	stackStyle = ":root>svg{display:none}:root>svg:target{display:block}"
)

// Icon is one parsed source icon.
type Icon struct {
	ID      string
	ViewBox string
	Attrs   []html.Attribute
	Nodes   []*html.Node
}

// Minifier minifies SVG documents.
type Minifier interface {
	SVG(b []byte) ([]byte, error)
}

// Builder writes the sprite.
type Builder struct {
	SourceRoot string
	DestRoot   string
	Minifier   Minifier
}

// Build combines all icons. No icons means no sprite.
func (b *Builder) Build(ctx context.Context) ([]string, error) {
	files, err := assetfs.Glob(b.SourceRoot, Pattern)
	if err != nil || len(files) == 0 {
		return nil, err
	}
	icons := make([]Icon, 0, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(b.SourceRoot, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		id := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
		icon, err := ParseIcon(id, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rel, err)
		}
		icons = append(icons, icon)
	}
	doc, err := Render(icons)
	if err != nil {
		return nil, err
	}
	if b.Minifier != nil {
		if doc, err = b.Minifier.SVG(doc); err != nil {
			return nil, fmt.Errorf("minify sprite: %w", err)
		}
	}
	if err := assetfs.WriteFile(filepath.Join(b.DestRoot, filepath.FromSlash(Output)), doc); err != nil {
		return nil, err
	}
	return []string{Output}, nil
}

// ParseIcon extracts the root <svg> of an icon document.
func ParseIcon(id string, data []byte) (Icon, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return Icon{}, err
	}
	root := findSVG(doc)
	if root == nil {
		return Icon{}, fmt.Errorf("no <svg> element")
	}
	icon := Icon{ID: id}
	var width, height string
	for _, a := range root.Attr {
		switch {
		case a.Namespace == "" && a.Key == "viewBox":
			icon.ViewBox = a.Val
		case a.Namespace == "" && a.Key == "width":
			width = strings.TrimSuffix(a.Val, "px")
		case a.Namespace == "" && a.Key == "height":
			height = strings.TrimSuffix(a.Val, "px")
		case a.Key == "id" || a.Key == "xmlns" || a.Namespace == "xmlns" || strings.HasPrefix(a.Key, "xmlns:"):
		default:
			icon.Attrs = append(icon.Attrs, a)
		}
	}
	if icon.ViewBox == "" && width != "" && height != "" {
		icon.ViewBox = "0 0 " + width + " " + height
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		icon.Nodes = append(icon.Nodes, c)
	}
	return icon, nil
}

func findSVG(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Svg {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findSVG(c); found != nil {
			return found
		}
	}
	return nil
}

// Render writes the stack sprite document.
func Render(icons []Icon) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`)
	buf.WriteString("<style>" + stackStyle + "</style>")
	for _, icon := range icons {
		buf.WriteString(`<svg id="` + html.EscapeString(icon.ID) + `"`)
		if icon.ViewBox != "" {
			buf.WriteString(` viewBox="` + html.EscapeString(icon.ViewBox) + `"`)
		}
		for _, a := range icon.Attrs {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			buf.WriteString(" " + key + `="` + html.EscapeString(a.Val) + `"`)
		}
		buf.WriteString(">")
		for _, n := range icon.Nodes {
			if err := html.Render(&buf, n); err != nil {
				return nil, fmt.Errorf("render icon %s: %w", icon.ID, err)
			}
		}
		buf.WriteString("</svg>")
	}
	buf.WriteString("</svg>")
	return buf.Bytes(), nil
}

// Package fontstyle generates the Sass fragment that declares one font face
// per converted font file.
package fontstyle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/font/sfnt"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
)

// Face is a font file name broken into its declaration parts.
type Face struct {
	File      string
	Family    string
	Suffix    string // text after the first hyphen, extension removed
	Weight    int
	HasWeight bool
	Italic    bool
}

// ParseName splits a font file name on its first hyphen. A name without a
// hyphen is all family.
func ParseName(file string) Face {
	f := Face{File: file}
	family, suffix, found := strings.Cut(file, "-")
	if !found {
		family, _, _ = strings.Cut(file, ".")
		f.Family = family
		return f
	}
	f.Family = family
	f.Suffix, _, _ = strings.Cut(suffix, ".")
	f.Weight, f.HasWeight = WeightOf(f.Suffix)
	f.Italic = IsItalic(f.Suffix)
	return f
}

// Name is the face name passed to the font-face mixin.
func (f Face) Name() string {
	if f.Suffix == "" {
		return f.Family
	}
	return f.Family + "-" + f.Suffix
}

// Style returns the CSS font-style.
func (f Face) Style() string {
	if f.Italic {
		return "italic"
	}
	return "normal"
}

// Line renders the include statement with the given weight token.
func Line(f Face, weight string) string {
	return fmt.Sprintf("@include font-face(%q, %q, %s, %s);\r\n", f.Family, f.Name(), weight, f.Style())
}

// Generator writes the font include fragment.
type Generator struct {
	// FontsDir holds the converted fonts (dist/fonts).
	FontsDir string
	// SourceFontsDir holds the TrueType sources consulted by the metadata policy.
	SourceFontsDir string
	// Output is the fragment path, truncated on every run.
	Output        string
	Policy        config.WeightPolicy
	DefaultWeight int
	Logger        *slog.Logger
}

// Generate lists FontsDir and rewrites Output. It returns the faces written.
// A missing or empty FontsDir produces an empty fragment.
func (g *Generator) Generate(ctx context.Context) ([]Face, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(g.FontsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list fonts in %s: %w", g.FontsDir, err)
	}

	var (
		b     strings.Builder
		faces []Face
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		face := ParseName(e.Name())
		weight := g.resolveWeight(&face)
		if !face.HasWeight {
			logger.Warn("Font weight not found in file name",
				logfields.Path(e.Name()),
				slog.String("policy", string(g.Policy)),
				slog.String("weight", weight))
		}
		b.WriteString(Line(face, weight))
		faces = append(faces, face)
	}

	if err := assetfs.WriteFile(g.Output, []byte(b.String())); err != nil {
		return nil, err
	}
	logger.Debug("Font stylesheet generated", logfields.Dest(g.Output), logfields.Files(len(faces)))
	return faces, nil
}

func (g *Generator) resolveWeight(face *Face) string {
	if face.HasWeight {
		return strconv.Itoa(face.Weight)
	}
	switch g.Policy {
	case config.WeightPolicyUndefined:
		return "undefined"
	case config.WeightPolicyMetadata:
		if w, ok := g.metadataWeight(face.File); ok {
			face.Weight = w
			return strconv.Itoa(w)
		}
	}
	face.Weight = g.DefaultWeight
	return strconv.Itoa(g.DefaultWeight)
}

// metadataWeight reads the subfamily names of the matching TrueType source.
func (g *Generator) metadataWeight(file string) (int, bool) {
	if g.SourceFontsDir == "" {
		return 0, false
	}
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	data, err := os.ReadFile(filepath.Join(g.SourceFontsDir, stem+".ttf"))
	if err != nil {
		return 0, false
	}
	names, err := SubfamilyNames(data)
	if err != nil {
		return 0, false
	}
	for _, n := range names {
		if w, ok := WeightOf(n); ok {
			return w, true
		}
	}
	return 0, false
}

// SubfamilyNames returns the typographic subfamily, subfamily and full names
// recorded in an SFNT font's name table, most specific first.
func SubfamilyNames(data []byte) ([]string, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	var (
		buf   sfnt.Buffer
		names []string
	)
	for _, id := range []sfnt.NameID{sfnt.NameIDTypographicSubfamily, sfnt.NameIDSubfamily, sfnt.NameIDFull} {
		if n, err := f.Name(&buf, id); err == nil && n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// Package rev renames built assets after their content hash and rewrites
// HTML references to the renamed files.
package rev

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
)

const (
	// DefaultManifest is the manifest file name under the destination root.
	DefaultManifest = "rev.json"
	// HTMLPattern selects the pages rewritten by Rewrite.
	HTMLPattern = "**/*.html"

	hashLen = 10
)

// DefaultExtensions are the revisioned asset types.
var DefaultExtensions = []string{"css", "js", "svg", "png", "jpg", "jpeg", "woff2"}

// Manifest maps original relative paths to revisioned relative paths.
type Manifest map[string]string

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Write stores m as indented JSON with sorted keys.
func (m Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return assetfs.WriteFile(path, append(data, '\n'))
}

// Keys returns the original paths, longest first.
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Hash returns the first ten hex characters of the MD5 of data.
func Hash(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])[:hashLen]
}

// RevName inserts hash before the extension: css/a.min.css -> css/a.min-<hash>.css.
func RevName(rel, hash string) string {
	ext := path.Ext(rel)
	return strings.TrimSuffix(rel, ext) + "-" + hash + ext
}

// Pattern builds the glob matching every file with one of exts.
func Pattern(exts []string) string {
	if len(exts) == 1 {
		return "**/*." + exts[0]
	}
	return "**/*.{" + strings.Join(exts, ",") + "}"
}

// Reviser renames assets under Root.
type Reviser struct {
	Root         string
	Extensions   []string
	ManifestName string
}

func (r *Reviser) manifestPath() string {
	name := r.ManifestName
	if name == "" {
		name = DefaultManifest
	}
	return filepath.Join(r.Root, filepath.FromSlash(name))
}

// Rev renames every matching asset to its hashed name, deletes the
// original and writes the manifest before returning. Files recorded as
// values of a previous manifest are already revisioned: they are left alone
// and their entries carried over while the file still exists.
func (r *Reviser) Rev(ctx context.Context) (Manifest, error) {
	exts := r.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	previous, err := ReadManifest(r.manifestPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	done := make(map[string]bool, len(previous))
	for _, v := range previous {
		done[v] = true
	}

	files, err := assetfs.Glob(r.Root, Pattern(exts))
	if err != nil {
		return nil, err
	}
	m := Manifest{}
	for k, v := range previous {
		if _, err := os.Stat(filepath.Join(r.Root, filepath.FromSlash(v))); err == nil {
			m[k] = v
		}
	}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if done[rel] {
			continue
		}
		src := filepath.Join(r.Root, filepath.FromSlash(rel))
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		revved := RevName(rel, Hash(data))
		if err := os.Rename(src, filepath.Join(r.Root, filepath.FromSlash(revved))); err != nil {
			return nil, fmt.Errorf("rename %s: %w", rel, err)
		}
		m[rel] = revved
	}
	if err := m.Write(r.manifestPath()); err != nil {
		return nil, err
	}
	return m, nil
}

// Rewrite replaces manifest keys with their values in every HTML page under
// root and returns the number of pages changed. Keys are tried longest
// first in a single pass, so rewriting twice with one manifest is a no-op.
func Rewrite(ctx context.Context, root string, m Manifest) (int, error) {
	if len(m) == 0 {
		return 0, nil
	}
	keys := m.Keys()
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	replacer := strings.NewReplacer(pairs...)

	pages, err := assetfs.Glob(root, HTMLPattern)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, rel := range pages {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		p := filepath.Join(root, filepath.FromSlash(rel))
		data, err := os.ReadFile(p)
		if err != nil {
			return changed, fmt.Errorf("read %s: %w", rel, err)
		}
		out := []byte(replacer.Replace(string(data)))
		if bytes.Equal(out, data) {
			continue
		}
		if err := assetfs.WriteFile(p, out); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

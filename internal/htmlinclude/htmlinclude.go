// Package htmlinclude expands @@include directives in HTML pages.
//
// A directive has the form @@include('path') or @@include('path', {json}).
// Paths resolve against the directory of the including file. The JSON
// object defines @@name variables for the included content and for
// everything it includes in turn. Included Markdown files (.md) are
// rendered to HTML.
package htmlinclude

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/assetpipe/internal/assetfs"
	"git.home.luguber.info/inful/assetpipe/internal/compile"
)

const (
	// Pattern selects the pages expanded into the destination root.
	Pattern = "*.html"
	// MaxDepth bounds include nesting.
	MaxDepth = 32
)

// Builder expands every top-level page.
type Builder struct {
	SourceRoot string
	DestRoot   string
	Markdown   goldmark.Markdown
}

// Result lists written pages and pages whose includes could not be expanded.
type Result struct {
	Written  []string
	Failures []compile.Error
}

// Build expands and writes all pages.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	files, err := assetfs.Glob(b.SourceRoot, Pattern)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := b.ExpandFile(filepath.Join(b.SourceRoot, filepath.FromSlash(rel)))
		var ie *IncludeError
		if stderrors.As(err, &ie) {
			res.Failures = append(res.Failures, compile.Error{Path: rel, Message: ie.Error()})
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := assetfs.WriteFile(filepath.Join(b.DestRoot, filepath.FromSlash(rel)), out); err != nil {
			return nil, err
		}
		res.Written = append(res.Written, rel)
	}
	return res, nil
}

// IncludeError reports a broken include chain. Chain lists the files from
// the page down to the one containing the faulty directive.
type IncludeError struct {
	Chain []string
	Err   error
}

func (e *IncludeError) Error() string {
	return strings.Join(e.Chain, " -> ") + ": " + e.Err.Error()
}

func (e *IncludeError) Unwrap() error { return e.Err }

// ExpandFile reads file and expands its directives.
func (b *Builder) ExpandFile(file string) ([]byte, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return b.expand(data, abs, nil, []string{abs})
}

func (b *Builder) expand(doc []byte, file string, vars map[string]string, stack []string) ([]byte, error) {
	doc = substitute(doc, vars)
	dir := filepath.Dir(file)

	var out bytes.Buffer
	offset := 0
	for {
		inc, ok, err := nextInclude(doc, offset)
		if err != nil {
			return nil, b.fail(stack, err)
		}
		if !ok {
			break
		}
		out.Write(doc[offset:inc.start])
		offset = inc.end

		target := filepath.Clean(filepath.Join(dir, filepath.FromSlash(inc.path)))
		for _, seen := range stack {
			if seen == target {
				return nil, b.fail(append(stack, target), fmt.Errorf("include cycle"))
			}
		}
		if len(stack) > MaxDepth {
			return nil, b.fail(stack, fmt.Errorf("includes nested deeper than %d", MaxDepth))
		}
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, b.fail(stack, fmt.Errorf("include %q: %w", inc.path, err))
		}
		child, err := b.expand(data, target, merge(vars, inc.vars), append(stack[:len(stack):len(stack)], target))
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(path.Ext(inc.path), ".md") {
			if child, err = b.render(child); err != nil {
				return nil, b.fail(append(stack, target), err)
			}
		}
		out.Write(child)
	}
	out.Write(doc[offset:])
	return out.Bytes(), nil
}

func (b *Builder) render(md []byte) ([]byte, error) {
	conv := b.Markdown
	if conv == nil {
		conv = goldmark.New()
	}
	var buf bytes.Buffer
	if err := conv.Convert(md, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Builder) fail(stack []string, err error) error {
	chain := make([]string, len(stack))
	for i, p := range stack {
		chain[i] = b.display(p)
	}
	return &IncludeError{Chain: chain, Err: err}
}

func (b *Builder) display(p string) string {
	if root, err := filepath.Abs(b.SourceRoot); err == nil {
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return p
}

// merge returns parent overlaid with the directive's own variables.
func merge(parent map[string]string, own map[string]any) map[string]string {
	if len(own) == 0 {
		return parent
	}
	out := make(map[string]string, len(parent)+len(own))
	for k, v := range parent {
		out[k] = v
	}
	for k, v := range own {
		out[k] = stringify(v)
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// substitute replaces @@name with its value, longest names first so that
// @@title does not clobber @@titleSuffix. The directive keyword itself is
// never substituted.
func substitute(doc []byte, vars map[string]string) []byte {
	if len(vars) == 0 {
		return doc
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		if k != "include" && k != "" {
			names = append(names, k)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	pairs := make([]string, 0, 2*len(names))
	for _, n := range names {
		pairs = append(pairs, prefix+n, vars[n])
	}
	r := strings.NewReplacer(pairs...)
	parts := strings.Split(string(doc), directive)
	for i, part := range parts {
		parts[i] = r.Replace(part)
	}
	return []byte(strings.Join(parts, directive))
}

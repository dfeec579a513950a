package styles

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bep/godartsass/v2"
)

// SassInput is one stylesheet to compile.
type SassInput struct {
	Source       string
	URL          string // file: URL of the source, used for relative imports and maps
	IncludePaths []string
	SourceMap    bool
}

// SassOutput is the compiled CSS and its optional source map.
type SassOutput struct {
	CSS       string
	SourceMap string
}

// SassCompiler compiles SCSS to expanded CSS.
type SassCompiler interface {
	Compile(in SassInput) (SassOutput, error)
	Close() error
}

// DartSass drives a Dart Sass process over the embedded protocol. The
// process is started on first use.
type DartSass struct {
	binary string

	once     sync.Once
	startErr error
	t        *godartsass.Transpiler
}

// NewDartSass returns a compiler using the given Dart Sass executable.
func NewDartSass(binary string) *DartSass {
	return &DartSass{binary: binary}
}

func (d *DartSass) start() error {
	d.once.Do(func() {
		d.t, d.startErr = godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: d.binary})
		if d.startErr != nil {
			d.startErr = fmt.Errorf("start dart sass %q: %w", d.binary, d.startErr)
		}
	})
	return d.startErr
}

// Compile implements SassCompiler.
func (d *DartSass) Compile(in SassInput) (SassOutput, error) {
	if err := d.start(); err != nil {
		return SassOutput{}, err
	}
	res, err := d.t.Execute(godartsass.Args{
		Source:                  in.Source,
		URL:                     in.URL,
		OutputStyle:             godartsass.OutputStyleExpanded,
		SourceSyntax:            godartsass.SourceSyntaxSCSS,
		IncludePaths:            in.IncludePaths,
		EnableSourceMap:         in.SourceMap,
		SourceMapIncludeSources: in.SourceMap,
	})
	if err != nil {
		return SassOutput{}, classifyExecuteError(err)
	}
	return SassOutput{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// classifyExecuteError marks compiler-reported failures as syntax errors.
// Anything else (a dead process, a closed transpiler) is returned as is.
func classifyExecuteError(err error) error {
	var se godartsass.SassError
	if errors.As(err, &se) {
		return &SyntaxError{Err: err}
	}
	return fmt.Errorf("dart sass: %w", err)
}

// Close stops the Dart Sass process.
func (d *DartSass) Close() error {
	if d.t == nil {
		return nil
	}
	return d.t.Close()
}

// SyntaxError marks failures reported by the compiler for the input, as
// opposed to failures to run the compiler at all.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string { return e.Err.Error() }
func (e *SyntaxError) Unwrap() error { return e.Err }

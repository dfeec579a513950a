// Package browsers resolves browser targets into esbuild engine constraints.
package browsers

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/evanw/esbuild/pkg/api"
)

// Defaults approximates the browserslist "defaults" query
// (> 0.5%, last 2 versions, Firefox ESR, not dead).
var Defaults = []string{"chrome109", "edge120", "firefox115", "safari15.6", "ios15.6", "opera102"}

var engines = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"safari":  api.EngineSafari,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
}

// Engines parses targets such as "chrome109" or "safari15.6". An empty list
// resolves to Defaults.
func Engines(targets []string) ([]api.Engine, error) {
	if len(targets) == 0 {
		targets = Defaults
	}
	out := make([]api.Engine, 0, len(targets))
	for _, t := range targets {
		t = strings.ToLower(strings.TrimSpace(t))
		i := strings.IndexFunc(t, unicode.IsDigit)
		if i <= 0 {
			return nil, fmt.Errorf("invalid browser target %q", t)
		}
		name, ok := engines[t[:i]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", t[:i], t)
		}
		out = append(out, api.Engine{Name: name, Version: t[i:]})
	}
	return out, nil
}

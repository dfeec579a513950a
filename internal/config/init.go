package config

import (
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
)

const initTemplate = `# assetpipe configuration
paths:
  source: src
  dest: dist

styles:
  # Dart Sass executable (embedded protocol).
  dart_sass: sass
  include_paths: []

scripts:
  entry: js/main.js

fonts:
  converter: woff2_compress
  stylesheet: scss/_fonts.scss
  # metadata | default | undefined
  weight_policy: metadata
  default_weight: 400

images:
  parallel_max: 50
  tinify:
    # Falls back to $TINIFY_API_KEY when empty.
    api_key: ${TINIFY_API_KEY}
    endpoint: https://api.tinify.com/shrink
    timeout: 60s
  retry:
    mode: linear
    initial_delay: 1s
    max_delay: 30s
    max_retries: 2

rev:
  manifest: rev.json
  extensions: [css, js, svg, png, jpg, jpeg, woff2]

build:
  # notify | fail (empty: notify; fail aborts the task on syntax errors)
  on_compile_error: ""
  max_parallel: 0

watch:
  debounce: 100ms

server:
  host: localhost
  port: 3000

logging:
  level: info
  format: text

history:
  path: .assetpipe/history.db

notify:
  # nats_url: nats://localhost:4222
  subject: assetpipe.events

metrics:
  path: /metrics
`

// Init writes a commented default configuration to path.
// An existing file is only replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).
			WithContext("path", path).Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "create config directory").Build()
		}
	}
	if err := os.WriteFile(path, []byte(initTemplate), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write config file").
			WithContext("path", path).Build()
	}
	return nil
}

// Package compile carries per-file compiler and bundler errors and applies
// the compile-error policy to them.
package compile

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/notify"
)

// Error is a diagnostic for one source file.
type Error struct {
	Path    string
	Message string
}

func (e Error) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// Apply reports failures according to policy. Under notify every failure is
// sent to n and nil is returned; under fail a classified tool error
// describing all failures is returned.
func Apply(policy config.CompileErrorPolicy, n *notify.Notifier, stage string, failures []Error) error {
	if len(failures) == 0 {
		return nil
	}
	if policy == config.CompileErrorNotify {
		for _, f := range failures {
			n.Notify(notify.Notification{Stage: stage, Title: "Compile error", Path: f.Path, Message: f.Message})
		}
		return nil
	}
	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.Error()
	}
	return errors.ToolError(fmt.Sprintf("%d file(s) failed to compile", len(failures))).
		WithCause(fmt.Errorf("%s", strings.Join(msgs, "\n"))).
		WithContext("stage", stage).
		WithContext("files", len(failures)).
		Build()
}

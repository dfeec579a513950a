package compile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetpipe/internal/config"
	"git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/notify"
)

func TestApplyNotify(t *testing.T) {
	var got []notify.Notification
	n := notify.New(notify.SinkFunc(func(note notify.Notification) { got = append(got, note) }))
	err := Apply(config.CompileErrorNotify, n, "styles", []Error{{Path: "scss/a.scss", Message: "expected }"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "styles", got[0].Stage)
	require.Equal(t, "scss/a.scss", got[0].Path)
}

func TestApplyFail(t *testing.T) {
	err := Apply(config.CompileErrorFail, nil, "scripts", []Error{{Path: "js/main.js", Message: "unexpected token"}, {Message: "other"}})
	require.Error(t, err)
	require.True(t, errors.HasCategory(err, errors.CategoryTool))
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	stage, _ := ce.Context().GetString("stage")
	require.Equal(t, "scripts", stage)
	require.Contains(t, err.Error(), "js/main.js: unexpected token")
}

func TestApplyNoFailures(t *testing.T) {
	require.NoError(t, Apply(config.CompileErrorFail, nil, "styles", nil))
}

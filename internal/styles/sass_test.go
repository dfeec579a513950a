package styles

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bep/godartsass/v2"
	"github.com/stretchr/testify/require"
)

func TestClassifyExecuteError(t *testing.T) {
	compileErr := fmt.Errorf("execute: %w", godartsass.SassError{Message: "expected \";\""})
	err := classifyExecuteError(compileErr)
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	require.Contains(t, se.Error(), `expected ";"`)

	transportErr := errors.New("connection is shut down")
	err = classifyExecuteError(transportErr)
	require.False(t, errors.As(err, &se))
	require.ErrorIs(t, err, transportErr)
}

package scanner

import (
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/config"
)

func TestIsContextError(t *testing.T) {
	assert.False(t, isContextError(nil))
	assert.False(t, isContextError(errors.New("net::ERR_CONNECTION_REFUSED")))

	for _, msg := range []string{
		"Cannot find context with specified id",
		"Execution context was destroyed.",
		"encountered an undefined value (-32000)",
	} {
		assert.True(t, isContextError(errors.New(msg)), msg)
	}
}

func TestExceptionText(t *testing.T) {
	exc := &runtime.ExceptionDetails{Text: "Uncaught"}
	assert.Equal(t, "Uncaught", exceptionText(exc))

	exc.Exception = &runtime.RemoteObject{Description: "TypeError: boom"}
	assert.Equal(t, "TypeError: boom", exceptionText(exc))
}

func TestAsScannerErrorPassesTypedErrorsThrough(t *testing.T) {
	typed := &schemas.ExecError{Code: schemas.CodeTimeout, Message: "slow"}
	assert.Same(t, typed, asScannerError("ignored", typed))
}

func TestAsScannerErrorWrapsRawErrors(t *testing.T) {
	err := asScannerError("key dispatch failed", errors.New("target crashed"))
	var ee *schemas.ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, schemas.CodeScannerError, ee.Code)
	assert.Equal(t, "key dispatch failed: target crashed", ee.Message)
}

func TestEvalTimeout(t *testing.T) {
	e := newEngine(config.ScannerConfig{}, zap.NewNop())
	assert.Equal(t, 10*time.Second, e.evalTimeout())

	e = newEngine(config.ScannerConfig{EvalTimeout: 3 * time.Second}, zap.NewNop())
	assert.Equal(t, 3*time.Second, e.evalTimeout())
}

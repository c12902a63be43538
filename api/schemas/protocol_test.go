package schemas_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

func u32(v uint32) *uint32 { return &v }

func TestExecErrorRendering(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		err  schemas.ExecError
		want string
	}{
		{
			name: "EngineMessagePassesThrough",
			err:  schemas.ExecError{Code: schemas.CodeElementNotFound, Message: "element 9 not found"},
			want: "element 9 not found",
		},
		{
			name: "UnknownCodeStaysVisible",
			err:  schemas.ExecError{Code: "QUOTA_EXCEEDED", Message: "too many requests"},
			want: "[QUOTA_EXCEEDED] too many requests",
		},
		{
			name: "MissingMessageBuildsFromDetails",
			err:  schemas.ExecError{Code: schemas.CodeElementNotFound, Details: schemas.ErrorDetails{ID: u32(4)}},
			want: "element 4 not found",
		},
		{
			name: "OptionDetailNamesTheValue",
			err:  schemas.ExecError{Code: schemas.CodeOptionNotFound, Details: schemas.ErrorDetails{Value: "Express"}},
			want: `option "Express" not found`,
		},
		{
			name: "TypeMismatchShowsBothSides",
			err: schemas.ExecError{
				Code:    schemas.CodeInvalidElementType,
				Details: schemas.ErrorDetails{Expected: "select", Got: "input"},
			},
			want: "invalid element type: expected select, got input",
		},
		{
			name: "TimeoutDefault",
			err:  schemas.ExecError{Code: schemas.CodeTimeout},
			want: "timed out",
		},
		{
			name: "NothingKnownStillSaysSomething",
			err:  schemas.ExecError{},
			want: "execution failed",
		},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRecoveryHints(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		code string
		want string
	}{
		{schemas.CodeElementNotFound, "Run scan to refresh the element map"},
		{schemas.CodeElementStale, "Run scan to refresh the element map"},
		{schemas.CodeElementNotVisible, "Scroll the element into view or wait for it to appear"},
		{schemas.CodeElementDisabled, "Wait for the element to become enabled"},
		{schemas.CodeElementNotInteractable, "Use --force or wait for overlays to clear"},
		{schemas.CodeTimeout, "Increase the timeout or verify the condition is reachable"},
		{schemas.CodeSelectorInvalid, "Fix the selector syntax"},
		{schemas.CodeNavigationError, "Check the URL and network connectivity"},
		{schemas.CodeScriptError, "Check the command parameters"},
		{"SOMETHING_NEW", "Check the command parameters"},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			e := schemas.ExecError{Code: tt.code}
			assert.Equal(t, tt.want, e.RecoveryHint())
		})
	}
}

func TestResponseErrLifting(t *testing.T) {
	t.Parallel()

	t.Run("SuccessIsNil", func(t *testing.T) {
		t.Parallel()
		r := schemas.OKResponse("click")
		assert.NoError(t, r.Err())
	})

	t.Run("ErrorCarriesCodeAndDetails", func(t *testing.T) {
		t.Parallel()
		resp, err := schemas.DecodeResponse([]byte(
			`{"status":"error","code":"ELEMENT_STALE","error":"element 12 is stale","details":{"id":12}}`))
		require.NoError(t, err)

		lifted := resp.Err()
		require.Error(t, lifted)
		var ee *schemas.ExecError
		require.ErrorAs(t, lifted, &ee)
		assert.Equal(t, schemas.CodeElementStale, ee.Code)
		assert.Equal(t, "element 12 is stale", ee.Message)
		require.NotNil(t, ee.Details.ID)
		assert.Equal(t, uint32(12), *ee.Details.ID)
	})

	t.Run("MissingCodeBecomesScannerError", func(t *testing.T) {
		t.Parallel()
		resp, err := schemas.DecodeResponse([]byte(`{"status":"error","error":"engine blew up"}`))
		require.NoError(t, err)
		assert.True(t, schemas.IsCode(resp.Err(), schemas.CodeScannerError))
	})

	t.Run("MalformedDetailsLoseDetailNotError", func(t *testing.T) {
		t.Parallel()
		resp, err := schemas.DecodeResponse([]byte(
			`{"status":"error","code":"TIMEOUT","error":"timed out","details":"not an object"}`))
		require.NoError(t, err)

		lifted := resp.Err()
		require.Error(t, lifted)
		assert.True(t, schemas.IsCode(lifted, schemas.CodeTimeout))
		var ee *schemas.ExecError
		require.ErrorAs(t, lifted, &ee)
		assert.Nil(t, ee.Details.ID)
	})
}

func TestIsCode(t *testing.T) {
	t.Parallel()
	base := &schemas.ExecError{Code: schemas.CodeTimeout, Message: "timed out"}

	assert.True(t, schemas.IsCode(base, schemas.CodeTimeout))
	assert.True(t, schemas.IsCode(fmt.Errorf("wait visible: %w", base), schemas.CodeTimeout))
	assert.False(t, schemas.IsCode(base, schemas.CodeElementStale))
	assert.False(t, schemas.IsCode(fmt.Errorf("plain"), schemas.CodeTimeout))
	assert.False(t, schemas.IsCode(nil, schemas.CodeTimeout))
}

// The cmd tag and the pointer-vs-value ID split are load-bearing parts of
// the engine contract: value IDs always serialize, pointer IDs vanish when
// absent so the engine can tell "no target" from "element 0".
func TestEncodeRequestShapes(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name string
		req  schemas.Request
		want string
	}{
		{
			name: "ClickAlwaysCarriesItsID",
			req:  &schemas.ClickRequest{Cmd: schemas.CmdClick, ID: 0},
			want: `{"cmd":"click","id":0}`,
		},
		{
			name: "UntargetedSubmitOmitsIDAndAsksForTheForm",
			req:  &schemas.SubmitRequest{Cmd: schemas.CmdSubmit, Resolve: schemas.ResolveContainingForm},
			want: `{"cmd":"submit","resolve":"containing_form"}`,
		},
		{
			name: "TargetedWaitRidesThePointer",
			req:  &schemas.WaitRequest{Cmd: schemas.CmdWait, Condition: schemas.WaitCondVisible, ID: u32(3)},
			want: `{"cmd":"wait","condition":"visible","id":3}`,
		},
		{
			name: "BareScanIsJustTheCmd",
			req:  &schemas.ScanRequest{Cmd: schemas.CmdScan},
			want: `{"cmd":"scan"}`,
		},
	}
	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			data, err := schemas.EncodeRequest(tt.req)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}

	t.Run("NilRequestRefused", func(t *testing.T) {
		t.Parallel()
		_, err := schemas.EncodeRequest(nil)
		assert.ErrorContains(t, err, "nil request")
	})
}

func TestDecodeResponse(t *testing.T) {
	t.Parallel()

	t.Run("StatusIsMandatory", func(t *testing.T) {
		t.Parallel()
		_, err := schemas.DecodeResponse([]byte(`{"action":"click"}`))
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.CodeSerializationError))
		assert.ErrorContains(t, err, "missing status")
	})

	t.Run("GarbageIsASerializationError", func(t *testing.T) {
		t.Parallel()
		_, err := schemas.DecodeResponse([]byte(`{"status":`))
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.CodeSerializationError))
	})

	t.Run("UnknownFieldsAreIgnored", func(t *testing.T) {
		t.Parallel()
		resp, err := schemas.DecodeResponse([]byte(
			`{"status":"ok","action":"click","future_field":true}`))
		require.NoError(t, err)
		assert.True(t, resp.OK())
		assert.Equal(t, "click", resp.Action)
	})
}

func TestDataPayloadHelpers(t *testing.T) {
	t.Parallel()

	t.Run("RoundTrip", func(t *testing.T) {
		t.Parallel()
		resp, err := schemas.DataResponse(schemas.DataCookies, []schemas.Cookie{
			{Name: "sid", Value: "abc", Domain: "example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.DataCookies, resp.Action)

		var cookies []schemas.Cookie
		require.NoError(t, resp.DecodeData(&cookies))
		require.Len(t, cookies, 1)
		assert.Equal(t, "sid", cookies[0].Name)
	})

	t.Run("EmptyPayloadLeavesTargetAlone", func(t *testing.T) {
		t.Parallel()
		r := schemas.OKResponse("storage")
		out := []string{"sentinel"}
		require.NoError(t, r.DecodeData(&out))
		assert.Equal(t, []string{"sentinel"}, out)
	})

	t.Run("MalformedPayloadNamesTheAction", func(t *testing.T) {
		t.Parallel()
		resp := &schemas.Response{Status: schemas.StatusOK, Action: schemas.DataTabs}
		resp.Data = []byte(`{"not":"a list"`)
		var tabs []string
		err := resp.DecodeData(&tabs)
		require.Error(t, err)
		assert.True(t, schemas.IsCode(err, schemas.CodeSerializationError))
		assert.ErrorContains(t, err, "tabs")
	})
}

package schemas

import (
	"errors"
	"fmt"
)

// -- Error Codes --

// Execution error codes. The engine-owned codes form the wire taxonomy;
// the host-side codes cover failures before a request reaches the page.
const (
	// Engine-reported.
	CodeElementNotFound        = "ELEMENT_NOT_FOUND"
	CodeElementStale           = "ELEMENT_STALE"
	CodeElementNotVisible      = "ELEMENT_NOT_VISIBLE"
	CodeElementDisabled        = "ELEMENT_DISABLED"
	CodeElementNotInteractable = "ELEMENT_NOT_INTERACTABLE"
	CodeSelectorInvalid        = "SELECTOR_INVALID"
	CodeTimeout                = "TIMEOUT"
	CodeNavigationError        = "NAVIGATION_ERROR"
	CodeScriptError            = "SCRIPT_ERROR"
	CodeUnknownCommand         = "UNKNOWN_COMMAND"
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidElementType     = "INVALID_ELEMENT_TYPE"
	CodeOptionNotFound         = "OPTION_NOT_FOUND"

	// Host-side.
	CodeScannerError       = "SCANNER_ERROR"
	CodeConnectionLost     = "CONNECTION_LOST"
	CodeNotReady           = "NOT_READY"
	CodeIOError            = "IO_ERROR"
	CodeSerializationError = "SERIALIZATION_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeNotSupported       = "NOT_SUPPORTED"
)

// ErrorDetails is the structured payload an error response may attach.
type ErrorDetails struct {
	ID       *uint32 `json:"id,omitempty"`
	Expected string  `json:"expected,omitempty"`
	Got      string  `json:"got,omitempty"`
	Value    string  `json:"value,omitempty"`
	Selector string  `json:"selector,omitempty"`
}

// ExecError is an execution-phase failure: the engine (or the host on its
// behalf) rejected or failed a translated request.
type ExecError struct {
	Code    string
	Message string
	Details ErrorDetails
}

// Error renders the failure for operators. Messages from the engine are
// already human-readable; codes outside the taxonomy keep their raw code
// visible so nothing is swallowed.
func (e *ExecError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessage(e.Code, e.Details)
	}
	if !knownCode(e.Code) && e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, msg)
	}
	return msg
}

// RecoveryHint suggests the operator action most likely to clear the
// failure.
func (e *ExecError) RecoveryHint() string {
	switch e.Code {
	case CodeElementNotFound, CodeElementStale:
		return "Run scan to refresh the element map"
	case CodeElementNotVisible:
		return "Scroll the element into view or wait for it to appear"
	case CodeElementDisabled:
		return "Wait for the element to become enabled"
	case CodeElementNotInteractable:
		return "Use --force or wait for overlays to clear"
	case CodeTimeout:
		return "Increase the timeout or verify the condition is reachable"
	case CodeSelectorInvalid:
		return "Fix the selector syntax"
	case CodeNavigationError:
		return "Check the URL and network connectivity"
	default:
		return "Check the command parameters"
	}
}

func defaultMessage(code string, d ErrorDetails) string {
	switch code {
	case CodeElementNotFound:
		if d.ID != nil {
			return fmt.Sprintf("element %d not found", *d.ID)
		}
		return "element not found"
	case CodeElementStale:
		if d.ID != nil {
			return fmt.Sprintf("element %d is stale", *d.ID)
		}
		return "element is stale"
	case CodeInvalidElementType:
		if d.Expected != "" || d.Got != "" {
			return fmt.Sprintf("invalid element type: expected %s, got %s", d.Expected, d.Got)
		}
		return "invalid element type"
	case CodeOptionNotFound:
		if d.Value != "" {
			return fmt.Sprintf("option %q not found", d.Value)
		}
		return "option not found"
	case CodeSelectorInvalid:
		if d.Selector != "" {
			return fmt.Sprintf("invalid selector %q", d.Selector)
		}
		return "invalid selector"
	case CodeTimeout:
		return "timed out"
	default:
		return "execution failed"
	}
}

func knownCode(code string) bool {
	switch code {
	case CodeElementNotFound, CodeElementStale, CodeElementNotVisible,
		CodeElementDisabled, CodeElementNotInteractable, CodeSelectorInvalid,
		CodeTimeout, CodeNavigationError, CodeScriptError, CodeUnknownCommand,
		CodeInvalidRequest, CodeInvalidElementType, CodeOptionNotFound,
		CodeScannerError, CodeConnectionLost, CodeNotReady, CodeIOError,
		CodeSerializationError, CodeInternalError, CodeNotSupported:
		return true
	}
	return false
}

// errorFromResponse lifts an error response into a typed ExecError,
// decoding the details payload when present.
func errorFromResponse(r *Response) *ExecError {
	e := &ExecError{Code: r.Code, Message: r.Error}
	if e.Code == "" {
		e.Code = CodeScannerError
	}
	if len(r.Details) > 0 {
		// Details are best-effort; a malformed payload loses detail, not
		// the error itself.
		_ = json.Unmarshal(r.Details, &e.Details)
	}
	return e
}

// IsCode reports whether err is an ExecError carrying the given code.
func IsCode(err error, code string) bool {
	var ee *ExecError
	return errors.As(err, &ee) && ee.Code == code
}

package schemas

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// json is the codec used for every wire exchange with the in-page engine.
// ConfigCompatibleWithStandardLibrary keeps field ordering and number
// handling identical to encoding/json while staying off the hot-path cost.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Command Names --

// Wire command names. Every request carries exactly one of these in its
// "cmd" field; the in-page engine dispatches on it.
const (
	CmdScan      = "scan"
	CmdQuery     = "query"
	CmdClick     = "click"
	CmdType      = "type"
	CmdClear     = "clear"
	CmdSelect    = "select"
	CmdCheck     = "check"
	CmdHover     = "hover"
	CmdFocus     = "focus"
	CmdSubmit    = "submit"
	CmdScroll    = "scroll"
	CmdWait      = "wait"
	CmdText      = "text"
	CmdHTML      = "html"
	CmdExtract   = "extract"
	CmdBox       = "box"
	CmdHighlight = "highlight"
	CmdStorage   = "storage"
)

// ResolveContainingForm asks the engine to locate the form that owns the
// currently focused element. It is the only target fallback a submit
// request may carry; a numeric placeholder ID is never valid.
const ResolveContainingForm = "containing_form"

// Request is implemented by every wire request type.
type Request interface {
	CmdName() string
}

// -- Requests --

// ScanRequest captures the current element map.
type ScanRequest struct {
	Cmd       string `json:"cmd"`
	Full      bool   `json:"full,omitempty"`
	Minimal   bool   `json:"minimal,omitempty"`
	Viewport  bool   `json:"viewport,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Positions bool   `json:"positions,omitempty"`
	Diff      bool   `json:"diff,omitempty"`
	Near      string `json:"near,omitempty"`
	TimeoutMs int64  `json:"timeout_ms,omitempty"`
}

func (r *ScanRequest) CmdName() string { return CmdScan }

// QueryRequest evaluates a raw CSS or XPath selector against the page and
// returns the matching entries from the current element map. Resolution
// uses it so selector targets are never rejected for not being numeric IDs.
type QueryRequest struct {
	Cmd      string `json:"cmd"`
	Selector string `json:"selector"`
	Kind     string `json:"kind"` // "css" or "xpath"
	Limit    int    `json:"limit,omitempty"`
}

func (r *QueryRequest) CmdName() string { return CmdQuery }

// ClickRequest clicks a resolved element.
type ClickRequest struct {
	Cmd        string `json:"cmd"`
	ID         uint32 `json:"id"`
	Button     string `json:"button,omitempty"` // left (default), right, middle
	ClickCount int    `json:"click_count,omitempty"`
	Modifiers  int    `json:"modifiers,omitempty"` // alt=1 ctrl=2 meta=4 shift=8
	Force      bool   `json:"force,omitempty"`
}

func (r *ClickRequest) CmdName() string { return CmdClick }

// TypeRequest types text into a resolved element.
type TypeRequest struct {
	Cmd     string  `json:"cmd"`
	ID      uint32  `json:"id"`
	Text    string  `json:"text"`
	Clear   bool    `json:"clear,omitempty"`
	Submit  bool    `json:"submit,omitempty"`
	DelayMs float64 `json:"delay_ms,omitempty"`
}

func (r *TypeRequest) CmdName() string { return CmdType }

// ClearRequest empties the value of a resolved element.
type ClearRequest struct {
	Cmd string `json:"cmd"`
	ID  uint32 `json:"id"`
}

func (r *ClearRequest) CmdName() string { return CmdClear }

// SelectRequest picks an option of a resolved select element. Exactly one
// of Value, Index, or Label is set.
type SelectRequest struct {
	Cmd   string `json:"cmd"`
	ID    uint32 `json:"id"`
	Value string `json:"value,omitempty"`
	Index *int   `json:"index,omitempty"`
	Label string `json:"label,omitempty"`
}

func (r *SelectRequest) CmdName() string { return CmdSelect }

// CheckRequest sets the checked state of a resolved checkbox or radio.
type CheckRequest struct {
	Cmd     string `json:"cmd"`
	ID      uint32 `json:"id"`
	Checked bool   `json:"checked"`
}

func (r *CheckRequest) CmdName() string { return CmdCheck }

// HoverRequest moves the pointer over a resolved element.
type HoverRequest struct {
	Cmd string `json:"cmd"`
	ID  uint32 `json:"id"`
}

func (r *HoverRequest) CmdName() string { return CmdHover }

// FocusRequest focuses a resolved element.
type FocusRequest struct {
	Cmd string `json:"cmd"`
	ID  uint32 `json:"id"`
}

func (r *FocusRequest) CmdName() string { return CmdFocus }

// SubmitRequest submits a form. With an explicit target the resolved ID is
// sent; without one, Resolve carries ResolveContainingForm and the engine
// finds the form owning the focused element itself.
type SubmitRequest struct {
	Cmd     string  `json:"cmd"`
	ID      *uint32 `json:"id,omitempty"`
	Resolve string  `json:"resolve,omitempty"`
}

func (r *SubmitRequest) CmdName() string { return CmdSubmit }

// ScrollRequest scrolls the page or brings a resolved element into view.
type ScrollRequest struct {
	Cmd       string  `json:"cmd"`
	Direction string  `json:"direction,omitempty"` // up, down, left, right
	Amount    float64 `json:"amount,omitempty"`
	Page      bool    `json:"page,omitempty"`
	ID        *uint32 `json:"id,omitempty"`
}

func (r *ScrollRequest) CmdName() string { return CmdScroll }

// WaitRequest checks a wait condition once. The executor polls it; the
// engine never blocks. Textual condition targets ride Text (and Role),
// never Selector; the engine treats Selector strictly as CSS.
type WaitRequest struct {
	Cmd        string  `json:"cmd"`
	Condition  string  `json:"condition"`
	ID         *uint32 `json:"id,omitempty"`
	Selector   string  `json:"selector,omitempty"`
	Text       string  `json:"text,omitempty"`
	Role       string  `json:"role,omitempty"`
	URL        string  `json:"url,omitempty"`
	Expression string  `json:"expression,omitempty"`
	Count      float64 `json:"count,omitempty"`
}

func (r *WaitRequest) CmdName() string { return CmdWait }

// Wait condition names carried by WaitRequest.Condition.
const (
	WaitCondLoad       = "load"
	WaitCondIdle       = "idle"
	WaitCondNavigation = "navigation"
	WaitCondReady      = "ready"
	WaitCondVisible    = "visible"
	WaitCondHidden     = "hidden"
	WaitCondExists     = "exists"
	WaitCondGone       = "gone"
	WaitCondURL        = "url"
	WaitCondUntil      = "until"
	WaitCondItems      = "items"
)

// TextRequest reads the visible text of an element or of the page.
type TextRequest struct {
	Cmd      string  `json:"cmd"`
	ID       *uint32 `json:"id,omitempty"`
	Selector string  `json:"selector,omitempty"`
}

func (r *TextRequest) CmdName() string { return CmdText }

// HTMLRequest reads the outer HTML of a selector match or the document.
type HTMLRequest struct {
	Cmd      string `json:"cmd"`
	Selector string `json:"selector,omitempty"`
}

func (r *HTMLRequest) CmdName() string { return CmdHTML }

// ExtractRequest pulls structured data out of the page.
type ExtractRequest struct {
	Cmd      string `json:"cmd"`
	What     string `json:"what"` // links, images, tables, meta, text, css
	Selector string `json:"selector,omitempty"`
	Format   string `json:"format,omitempty"`
}

func (r *ExtractRequest) CmdName() string { return CmdExtract }

// BoxRequest reports the bounding box of a resolved element.
type BoxRequest struct {
	Cmd string `json:"cmd"`
	ID  uint32 `json:"id"`
}

func (r *BoxRequest) CmdName() string { return CmdBox }

// HighlightRequest draws or clears a visual overlay on an element.
type HighlightRequest struct {
	Cmd        string  `json:"cmd"`
	ID         *uint32 `json:"id,omitempty"`
	Clear      bool    `json:"clear,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	Color      string  `json:"color,omitempty"`
}

func (r *HighlightRequest) CmdName() string { return CmdHighlight }

// StorageRequest reads or mutates localStorage/sessionStorage.
type StorageRequest struct {
	Cmd   string `json:"cmd"`
	Scope string `json:"scope"` // "local" or "session"
	Op    string `json:"op"`    // list, get, set, delete, clear
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

func (r *StorageRequest) CmdName() string { return CmdStorage }

// -- Response --

// ResponseStatus values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Response is the engine's answer to any request. Fields beyond Status are
// command-specific; absent ones decode to their zero values.
type Response struct {
	Status string `json:"status"`

	// Error surface; present only when Status == StatusError.
	Error   string              `json:"error,omitempty"`
	Code    string              `json:"code,omitempty"`
	Details jsoniter.RawMessage `json:"details,omitempty"`

	// Action results.
	Action      string      `json:"action,omitempty"`
	Selector    string      `json:"selector,omitempty"`
	Coordinates *Point      `json:"coordinates,omitempty"`
	Value       string      `json:"value,omitempty"`
	Previous    string      `json:"previous,omitempty"`
	Scroll      *ScrollInfo `json:"scroll,omitempty"`
	DOMChanges  *DOMChanges `json:"dom_changes,omitempty"`
	Navigation  bool        `json:"navigation,omitempty"`
	WaitedMs    int64       `json:"waited_ms,omitempty"`

	// Wait polling: whether the condition held this check.
	Condition *bool `json:"condition,omitempty"`

	// Scan and query results.
	Elements        []Element           `json:"elements,omitempty"`
	Page            *PageInfo           `json:"page,omitempty"`
	Stats           *ScanStats          `json:"stats,omitempty"`
	SettingsApplied map[string]any      `json:"settings_applied,omitempty"`
	Changes         *MapDiff            `json:"changes,omitempty"`
	Patterns        []Pattern           `json:"patterns,omitempty"`
	Data            jsoniter.RawMessage `json:"data,omitempty"`

	// Text/HTML reads.
	Text string `json:"text,omitempty"`
	HTML string `json:"html,omitempty"`
	Rect *Rect  `json:"rect,omitempty"`
}

// OK reports whether the response carries a success status.
func (r *Response) OK() bool { return r.Status == StatusOK }

// Err converts an error response into a typed ExecError. It returns nil
// for success responses.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return errorFromResponse(r)
}

// -- Codec --

// EncodeRequest serializes a request for delivery to the engine. The cmd
// field must have been stamped by the request constructor.
func EncodeRequest(r Request) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("encode request: nil request")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", r.CmdName(), err)
	}
	return data, nil
}

// OKResponse builds a bare success response for the given action.
func OKResponse(action string) *Response {
	return &Response{Status: StatusOK, Action: action}
}

// DataResponse builds a success response carrying v as its data payload.
// action names the payload kind (see the Data* constants) so the
// formatter knows how to decode it.
func DataResponse(action string, v any) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &ExecError{
			Code:    CodeSerializationError,
			Message: fmt.Sprintf("encode %s payload: %v", action, err),
		}
	}
	return &Response{Status: StatusOK, Action: action, Data: data}, nil
}

// DecodeData unmarshals the response's data payload into v. An empty
// payload leaves v untouched.
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &ExecError{
			Code:    CodeSerializationError,
			Message: fmt.Sprintf("malformed %s payload: %v", r.Action, err),
		}
	}
	return nil
}

// DecodeResponse parses an engine response.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ExecError{
			Code:    CodeSerializationError,
			Message: fmt.Sprintf("malformed engine response: %v", err),
		}
	}
	if resp.Status == "" {
		return nil, &ExecError{
			Code:    CodeSerializationError,
			Message: "engine response missing status",
		}
	}
	return &resp, nil
}

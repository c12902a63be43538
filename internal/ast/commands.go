package ast

// Command is the closed union of every language statement. Only types in
// this package implement it; consumers dispatch with an exhaustive type
// switch whose default branch reports an internal error, so a new variant
// fails loudly everywhere until it is handled.
type Command interface {
	// Name returns the canonical verb of the command.
	Name() string
	// Pos returns the source span of the whole command.
	Pos() Span
	commandNode()
}

// Meta carries the source span shared by every command variant.
type Meta struct {
	Span Span
}

// Pos returns the command's source span.
func (m Meta) Pos() Span { return m.Span }

func (Meta) commandNode() {}

// -- Navigation --

// GotoCmd navigates to a URL. Fragments survive normalization: a "#" glued
// to the URL is data, not a comment.
type GotoCmd struct {
	Meta
	URL     string
	Headers string
	Timeout Duration
}

func (*GotoCmd) Name() string { return "goto" }

// BackCmd goes one step back in session history.
type BackCmd struct{ Meta }

func (*BackCmd) Name() string { return "back" }

// ForwardCmd goes one step forward in session history.
type ForwardCmd struct{ Meta }

func (*ForwardCmd) Name() string { return "forward" }

// RefreshCmd reloads the page, bypassing cache when Hard is set.
type RefreshCmd struct {
	Meta
	Hard bool
}

func (*RefreshCmd) Name() string { return "refresh" }

// URLCmd prints the current page URL.
type URLCmd struct{ Meta }

func (*URLCmd) Name() string { return "url" }

// -- Observation --

// ObserveCmd captures a fresh element map. Full and Minimal are mutually
// exclusive verbosity levels.
type ObserveCmd struct {
	Meta
	Full      bool
	Minimal   bool
	Viewport  bool
	Hidden    bool
	Positions bool
	Diff      bool
	Near      string
	Timeout   Duration
}

func (*ObserveCmd) Name() string { return "observe" }

// HTMLCmd prints outer HTML of a selector match or the whole document.
type HTMLCmd struct {
	Meta
	Selector string
}

func (*HTMLCmd) Name() string { return "html" }

// TextCmd prints the visible text of a target, or of the page when no
// target is given.
type TextCmd struct {
	Meta
	Target *Target
}

func (*TextCmd) Name() string { return "text" }

// TitleCmd prints the page title.
type TitleCmd struct{ Meta }

func (*TitleCmd) Name() string { return "title" }

// ScreenshotCmd captures the viewport, the full page, or one element.
type ScreenshotCmd struct {
	Meta
	Output   string
	Format   string
	FullPage bool
	Target   *Target
}

func (*ScreenshotCmd) Name() string { return "screenshot" }

// BoxCmd prints the bounding box of a target.
type BoxCmd struct {
	Meta
	Target Target
}

func (*BoxCmd) Name() string { return "box" }

// -- Actions --

// ClickCmd clicks a target. Right and Middle select alternate buttons and
// conflict with each other; Double doubles the click count.
type ClickCmd struct {
	Meta
	Target  Target
	Double  bool
	Right   bool
	Middle  bool
	Force   bool
	Ctrl    bool
	Shift   bool
	Alt     bool
	Timeout Duration
}

func (*ClickCmd) Name() string { return "click" }

// TypeCmd types text into a target.
type TypeCmd struct {
	Meta
	Target  Target
	Text    string
	Append  bool
	Enter   bool
	Delay   *float64
	Clear   bool
	Timeout Duration
}

func (*TypeCmd) Name() string { return "type" }

// ClearCmd empties a target's value.
type ClearCmd struct {
	Meta
	Target Target
}

func (*ClearCmd) Name() string { return "clear" }

// PressCmd sends one key chord: modifiers plus a final key.
type PressCmd struct {
	Meta
	Combo KeyCombo
}

func (*PressCmd) Name() string { return "press" }

// KeydownCmd holds a key down until a matching keyup.
type KeydownCmd struct {
	Meta
	Key string
}

func (*KeydownCmd) Name() string { return "keydown" }

// KeyupCmd releases a held key, or every held key when Key is "all".
type KeyupCmd struct {
	Meta
	Key string
}

func (*KeyupCmd) Name() string { return "keyup" }

// KeysCmd lists the keys currently held down.
type KeysCmd struct{ Meta }

func (*KeysCmd) Name() string { return "keys" }

// SelectCmd picks an option of a select target by value, index, or label.
type SelectCmd struct {
	Meta
	Target Target
	Value  string
}

func (*SelectCmd) Name() string { return "select" }

// CheckCmd checks a checkbox/radio target.
type CheckCmd struct {
	Meta
	Target Target
}

func (*CheckCmd) Name() string { return "check" }

// UncheckCmd unchecks a checkbox target.
type UncheckCmd struct {
	Meta
	Target Target
}

func (*UncheckCmd) Name() string { return "uncheck" }

// HoverCmd moves the pointer over a target.
type HoverCmd struct {
	Meta
	Target Target
}

func (*HoverCmd) Name() string { return "hover" }

// FocusCmd focuses a target.
type FocusCmd struct {
	Meta
	Target Target
}

func (*FocusCmd) Name() string { return "focus" }

// ScrollCmd scrolls the page in a direction or brings a target into view.
type ScrollCmd struct {
	Meta
	Direction string
	Amount    *float64
	Page      bool
	Timeout   Duration
	Target    *Target
}

func (*ScrollCmd) Name() string { return "scroll" }

// SubmitCmd submits a form. Without a target the form containing the
// focused element is submitted; the engine resolves that fallback itself.
type SubmitCmd struct {
	Meta
	Target *Target
}

func (*SubmitCmd) Name() string { return "submit" }

// -- Wait --

// WaitKind discriminates wait conditions.
type WaitKind string

const (
	WaitLoad       WaitKind = "load"
	WaitIdle       WaitKind = "idle"
	WaitNavigation WaitKind = "navigation"
	WaitReady      WaitKind = "ready"
	WaitVisible    WaitKind = "visible"
	WaitHidden     WaitKind = "hidden"
	WaitExists     WaitKind = "exists"
	WaitGone       WaitKind = "gone"
	WaitURL        WaitKind = "url"
	WaitUntil      WaitKind = "until"
	WaitItems      WaitKind = "items"
)

// WaitCondition is the flat payload of a wait command. Target is set for
// visible/hidden, Selector for exists/gone/items, Pattern for url, Expr
// for until, Count for items.
type WaitCondition struct {
	Kind     WaitKind
	Target   *Target
	Selector string
	Pattern  string
	Expr     string
	Count    float64
}

// WaitCmd polls a condition until it holds or the timeout elapses.
type WaitCmd struct {
	Meta
	Cond    WaitCondition
	Timeout Duration
}

func (*WaitCmd) Name() string { return "wait" }

// -- Extraction --

// ExtractKind discriminates extraction sources.
type ExtractKind string

const (
	ExtractLinks  ExtractKind = "links"
	ExtractImages ExtractKind = "images"
	ExtractTables ExtractKind = "tables"
	ExtractMeta   ExtractKind = "meta"
	ExtractText   ExtractKind = "text"
	ExtractCss    ExtractKind = "css"
)

// ExtractCmd pulls structured data from the page. CssArg holds the
// selector of the css(...) form; Selector optionally narrows the scope.
type ExtractCmd struct {
	Meta
	What     ExtractKind
	CssArg   string
	Selector string
	Format   string
}

func (*ExtractCmd) Name() string { return "extract" }

// -- Session / State --

// Subcommand operations shared by cookies, storage, and similar verbs.
const (
	OpList   = "list"
	OpGet    = "get"
	OpSet    = "set"
	OpDelete = "delete"
	OpClear  = "clear"
)

// CookiesCmd manages browser cookies. Op defaults to list.
type CookiesCmd struct {
	Meta
	Op    string
	Name  string
	Value string
}

func (*CookiesCmd) Name() string { return "cookies" }

// StorageCmd manages web storage. Local and Session pick the scope and
// are mutually exclusive; unset means local.
type StorageCmd struct {
	Meta
	Op      string
	Local   bool
	Session bool
	Key     string
	Value   string
}

func (*StorageCmd) Name() string { return "storage" }

// SessionsCmd lists open sessions.
type SessionsCmd struct{ Meta }

func (*SessionsCmd) Name() string { return "sessions" }

// SessionCmd manages named sessions; Op is new, close, or switch, empty
// shows the current session.
type SessionCmd struct {
	Meta
	Op      string
	Session string
	Mode    string
}

func (*SessionCmd) Name() string { return "session" }

// StateCmd saves or loads session state (cookies, storage) to a file.
type StateCmd struct {
	Meta
	Op             string // save or load
	Path           string
	CookiesOnly    bool
	Domain         string
	IncludeSession bool
	Merge          bool
}

func (*StateCmd) Name() string { return "state" }

// HeadersCmd manages extra request headers, optionally per domain. Empty
// Op shows the active header sets.
type HeadersCmd struct {
	Meta
	Op     string // set, clear, show, or ""
	Domain string
	JSON   string
}

func (*HeadersCmd) Name() string { return "headers" }

// -- Tabs --

// TabsCmd lists open tabs.
type TabsCmd struct{ Meta }

func (*TabsCmd) Name() string { return "tabs" }

// TabCmd opens, switches to, or closes a tab. Index is -1 when absent
// (close defaults to the current tab).
type TabCmd struct {
	Meta
	Op    string // new, switch, close
	URL   string
	Index int
}

func (*TabCmd) Name() string { return "tab" }

// -- Intents --

// LoginCmd fills and submits a recognized login form.
type LoginCmd struct {
	Meta
	User     string
	Pass     string
	NoSubmit bool
	Wait     string
	Timeout  Duration
}

func (*LoginCmd) Name() string { return "login" }

// SearchCmd fills and submits a recognized search box.
type SearchCmd struct {
	Meta
	Query   string
	Submit  string
	Wait    string
	Timeout Duration
}

func (*SearchCmd) Name() string { return "search" }

// DismissCmd closes a modal, banner, or similar overlay by description.
type DismissCmd struct {
	Meta
	What string
}

func (*DismissCmd) Name() string { return "dismiss" }

// AcceptCookiesCmd accepts a recognized cookie-consent banner.
type AcceptCookiesCmd struct{ Meta }

func (*AcceptCookiesCmd) Name() string { return "accept_cookies" }

// ScrollUntilCmd scrolls repeatedly until the target becomes visible.
type ScrollUntilCmd struct {
	Meta
	Target  Target
	Amount  *float64
	Page    bool
	Timeout Duration
}

func (*ScrollUntilCmd) Name() string { return "scroll until" }

// -- Packs --

// PacksCmd lists installed intent packs.
type PacksCmd struct{ Meta }

func (*PacksCmd) Name() string { return "packs" }

// PackCmd loads, unloads, or installs an intent pack.
type PackCmd struct {
	Meta
	Op  string // load, unload, install
	Arg string // pack name or source URL
}

func (*PackCmd) Name() string { return "pack" }

// IntentsCmd lists defined intents; Session narrows to this session's.
type IntentsCmd struct {
	Meta
	Session bool
}

func (*IntentsCmd) Name() string { return "intents" }

// DefineCmd starts recording a named intent.
type DefineCmd struct {
	Meta
	Intent string
}

func (*DefineCmd) Name() string { return "define" }

// UndefineCmd removes a defined intent.
type UndefineCmd struct {
	Meta
	Intent string
}

func (*UndefineCmd) Name() string { return "undefine" }

// ExportCmd writes a defined intent to a file.
type ExportCmd struct {
	Meta
	Intent string
	Out    string
}

func (*ExportCmd) Name() string { return "export" }

// RunCmd executes a defined intent with key=value parameters.
type RunCmd struct {
	Meta
	Intent string
	Params []Param
}

// Param is one key=value argument of a run command.
type Param struct {
	Key   string
	Value string
}

func (*RunCmd) Name() string { return "run" }

// -- Network --

// InterceptCmd installs or clears request interception rules.
type InterceptCmd struct {
	Meta
	Op          string // set or clear
	Pattern     string
	Block       bool
	Respond     string
	RespondFile string
	Status      int
}

func (*InterceptCmd) Name() string { return "intercept" }

// RequestsCmd lists captured network requests.
type RequestsCmd struct {
	Meta
	Filter string
	Method string
	Last   int
}

func (*RequestsCmd) Name() string { return "requests" }

// -- Console / Errors --

// ConsoleCmd lists or clears captured console messages.
type ConsoleCmd struct {
	Meta
	Clear  bool
	Level  string
	Filter string
	Last   int
}

func (*ConsoleCmd) Name() string { return "console" }

// ErrorsCmd lists or clears captured JavaScript errors.
type ErrorsCmd struct {
	Meta
	Clear bool
	Last  int
}

func (*ErrorsCmd) Name() string { return "errors" }

// -- Frames --

// FramesCmd lists frames in the page.
type FramesCmd struct{ Meta }

func (*FramesCmd) Name() string { return "frames" }

// FrameCmd switches the active frame: main, parent, or one matched by a
// target.
type FrameCmd struct {
	Meta
	Kind   string // main, parent, target
	Target *Target
}

func (*FrameCmd) Name() string { return "frame" }

// -- Dialog --

// DialogCmd answers or configures JavaScript dialogs.
type DialogCmd struct {
	Meta
	Op   string // accept, dismiss, auto
	Text string // prompt reply for accept
	Mode string // auto mode: accept, dismiss, off
}

func (*DialogCmd) Name() string { return "dialog" }

// -- Viewport / Device / Media --

// ViewportCmd resizes the viewport.
type ViewportCmd struct {
	Meta
	Width  float64
	Height float64
}

func (*ViewportCmd) Name() string { return "viewport" }

// DeviceCmd emulates a named device; empty resets emulation.
type DeviceCmd struct {
	Meta
	Device string
}

func (*DeviceCmd) Name() string { return "device" }

// DevicesCmd lists the built-in device descriptors.
type DevicesCmd struct{ Meta }

func (*DevicesCmd) Name() string { return "devices" }

// MediaCmd overrides a media feature; empty resets all overrides.
type MediaCmd struct {
	Meta
	Feature string
	Value   string
}

func (*MediaCmd) Name() string { return "media" }

// -- Recording --

// TraceCmd starts or stops a performance trace.
type TraceCmd struct {
	Meta
	Start bool
	Path  string
}

func (*TraceCmd) Name() string { return "trace" }

// RecordCmd starts or stops a screencast recording.
type RecordCmd struct {
	Meta
	Start   bool
	Path    string
	Quality string
}

func (*RecordCmd) Name() string { return "record" }

// HighlightCmd draws an overlay on a target, or clears all overlays.
type HighlightCmd struct {
	Meta
	Clear    bool
	Target   *Target
	Duration Duration
	Color    string
}

func (*HighlightCmd) Name() string { return "highlight" }

// -- Utility --

// PDFCmd renders the page to a PDF file.
type PDFCmd struct {
	Meta
	Path      string
	Format    string
	Landscape bool
	Margin    string
}

func (*PDFCmd) Name() string { return "pdf" }

// LearnCmd manages the action-recording workflow.
type LearnCmd struct {
	Meta
	Op     string // status, save, discard, show
	Intent string
}

func (*LearnCmd) Name() string { return "learn" }

// ExitCmd ends the session.
type ExitCmd struct{ Meta }

func (*ExitCmd) Name() string { return "exit" }

// HelpCmd prints usage, optionally for one topic.
type HelpCmd struct {
	Meta
	Topic string
}

func (*HelpCmd) Name() string { return "help" }

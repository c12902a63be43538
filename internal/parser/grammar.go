package parser

// Rule tags a node in the untyped parse tree.
type Rule string

// Command rules, one per command shape the dispatch table can select.
const (
	RuleGoto          Rule = "goto_cmd"
	RuleBack          Rule = "back_cmd"
	RuleForward       Rule = "forward_cmd"
	RuleRefresh       Rule = "refresh_cmd"
	RuleURL           Rule = "url_cmd"
	RuleObserve       Rule = "observe_cmd"
	RuleHTML          Rule = "html_cmd"
	RuleText          Rule = "text_cmd"
	RuleTitle         Rule = "title_cmd"
	RuleScreenshot    Rule = "screenshot_cmd"
	RuleBox           Rule = "box_cmd"
	RuleClick         Rule = "click_cmd"
	RuleType          Rule = "type_cmd"
	RuleClear         Rule = "clear_cmd"
	RulePress         Rule = "press_cmd"
	RuleKeydown       Rule = "keydown_cmd"
	RuleKeyup         Rule = "keyup_cmd"
	RuleKeys          Rule = "keys_cmd"
	RuleSelect        Rule = "select_cmd"
	RuleCheck         Rule = "check_cmd"
	RuleUncheck       Rule = "uncheck_cmd"
	RuleHover         Rule = "hover_cmd"
	RuleFocus         Rule = "focus_cmd"
	RuleScroll        Rule = "scroll_cmd"
	RuleScrollUntil   Rule = "scroll_until_cmd"
	RuleSubmit        Rule = "submit_cmd"
	RuleWait          Rule = "wait_cmd"
	RuleExtract       Rule = "extract_cmd"
	RuleCookies       Rule = "cookies_cmd"
	RuleStorage       Rule = "storage_cmd"
	RuleSessions      Rule = "sessions_cmd"
	RuleSession       Rule = "session_cmd"
	RuleState         Rule = "state_cmd"
	RuleHeaders       Rule = "headers_cmd"
	RuleTabs          Rule = "tabs_cmd"
	RuleTab           Rule = "tab_cmd"
	RuleLogin         Rule = "login_cmd"
	RuleSearch        Rule = "search_cmd"
	RuleDismiss       Rule = "dismiss_cmd"
	RuleAcceptCookies Rule = "accept_cookies_cmd"
	RulePacks         Rule = "packs_cmd"
	RulePack          Rule = "pack_cmd"
	RuleIntents       Rule = "intents_cmd"
	RuleDefine        Rule = "define_cmd"
	RuleUndefine      Rule = "undefine_cmd"
	RuleExport        Rule = "export_cmd"
	RuleRun           Rule = "run_cmd"
	RuleIntercept     Rule = "intercept_cmd"
	RuleRequests      Rule = "requests_cmd"
	RuleConsole       Rule = "console_cmd"
	RuleErrors        Rule = "errors_cmd"
	RuleFrames        Rule = "frames_cmd"
	RuleFrame         Rule = "frame_cmd"
	RuleDialog        Rule = "dialog_cmd"
	RuleViewport      Rule = "viewport_cmd"
	RuleDevice        Rule = "device_cmd"
	RuleDevices       Rule = "devices_cmd"
	RuleMedia         Rule = "media_cmd"
	RuleTrace         Rule = "trace_cmd"
	RuleRecord        Rule = "record_cmd"
	RuleHighlight     Rule = "highlight_cmd"
	RulePDF           Rule = "pdf_cmd"
	RuleLearn         Rule = "learn_cmd"
	RuleExit          Rule = "exit_cmd"
	RuleHelp          Rule = "help_cmd"
)

// Structural rules below the command level.
const (
	RuleLine     Rule = "line"
	RuleComment  Rule = "comment"
	RuleTarget   Rule = "target"
	RuleAtomID   Rule = "target_id"
	RuleAtomText Rule = "target_text"
	RuleAtomRole Rule = "target_role"
	RuleAtomSel  Rule = "target_selector"
	RuleRelation Rule = "relation"
	RuleString   Rule = "string"
	RuleNumber   Rule = "number"
	RuleWord     Rule = "word"
	RuleOption   Rule = "option"
)

// Phrase is a literal word sequence that selects a command rule.
type Phrase struct {
	Words []string
	Rule  Rule
}

// CommandDispatch is the ordered-choice table for command dispatch.
// Ordering is load-bearing: when one phrase is a strict prefix of
// another ("scroll" vs "scroll until"), the longer phrase must appear
// first or it can never match. CheckTables enforces this.
var CommandDispatch = []Phrase{
	{[]string{"scroll", "until"}, RuleScrollUntil},
	{[]string{"accept_cookies"}, RuleAcceptCookies},
	{[]string{"screenshot"}, RuleScreenshot},
	{[]string{"highlight"}, RuleHighlight},
	{[]string{"intercept"}, RuleIntercept},
	{[]string{"undefine"}, RuleUndefine},
	{[]string{"viewport"}, RuleViewport},
	{[]string{"requests"}, RuleRequests},
	{[]string{"sessions"}, RuleSessions},
	{[]string{"session"}, RuleSession},
	{[]string{"observe"}, RuleObserve},
	{[]string{"forward"}, RuleForward},
	{[]string{"refresh"}, RuleRefresh},
	{[]string{"storage"}, RuleStorage},
	{[]string{"cookies"}, RuleCookies},
	{[]string{"headers"}, RuleHeaders},
	{[]string{"console"}, RuleConsole},
	{[]string{"devices"}, RuleDevices},
	{[]string{"dismiss"}, RuleDismiss},
	{[]string{"extract"}, RuleExtract},
	{[]string{"keydown"}, RuleKeydown},
	{[]string{"uncheck"}, RuleUncheck},
	{[]string{"intents"}, RuleIntents},
	{[]string{"define"}, RuleDefine},
	{[]string{"device"}, RuleDevice},
	{[]string{"dialog"}, RuleDialog},
	{[]string{"errors"}, RuleErrors},
	{[]string{"export"}, RuleExport},
	{[]string{"frames"}, RuleFrames},
	{[]string{"record"}, RuleRecord},
	{[]string{"scroll"}, RuleScroll},
	{[]string{"search"}, RuleSearch},
	{[]string{"select"}, RuleSelect},
	{[]string{"submit"}, RuleSubmit},
	{[]string{"clear"}, RuleClear},
	{[]string{"check"}, RuleCheck},
	{[]string{"click"}, RuleClick},
	{[]string{"focus"}, RuleFocus},
	{[]string{"frame"}, RuleFrame},
	{[]string{"hover"}, RuleHover},
	{[]string{"keyup"}, RuleKeyup},
	{[]string{"learn"}, RuleLearn},
	{[]string{"login"}, RuleLogin},
	{[]string{"media"}, RuleMedia},
	{[]string{"packs"}, RulePacks},
	{[]string{"press"}, RulePress},
	{[]string{"state"}, RuleState},
	{[]string{"title"}, RuleTitle},
	{[]string{"trace"}, RuleTrace},
	{[]string{"back"}, RuleBack},
	{[]string{"exit"}, RuleExit},
	{[]string{"goto"}, RuleGoto},
	{[]string{"help"}, RuleHelp},
	{[]string{"html"}, RuleHTML},
	{[]string{"keys"}, RuleKeys},
	{[]string{"pack"}, RulePack},
	{[]string{"tabs"}, RuleTabs},
	{[]string{"text"}, RuleText},
	{[]string{"type"}, RuleType},
	{[]string{"wait"}, RuleWait},
	{[]string{"box"}, RuleBox},
	{[]string{"pdf"}, RulePDF},
	{[]string{"run"}, RuleRun},
	{[]string{"tab"}, RuleTab},
	{[]string{"url"}, RuleURL},
}

// Relations between target atoms, tried in table order.
var Relations = []string{
	"contains",
	"before",
	"inside",
	"after",
	"near",
}

// WaitKinds are the condition keywords a wait command accepts.
var WaitKinds = []string{
	"navigation",
	"visible",
	"hidden",
	"exists",
	"items",
	"ready",
	"until",
	"load",
	"idle",
	"gone",
	"url",
}

// ExtractKinds are the built-in extraction sources. css(...) is handled
// as a selector expression, not a keyword.
var ExtractKinds = []string{
	"images",
	"tables",
	"links",
	"meta",
	"text",
}

// ScrollDirections for the directional scroll form.
var ScrollDirections = []string{
	"bottom",
	"right",
	"down",
	"left",
	"top",
	"up",
}

// KeyNames are the named keys whose spelling the grammar fixes. The
// f10/f11/f12 entries sit before f1: matched longest-first, a bare f1
// would otherwise shadow them.
var KeyNames = []string{
	"arrowright",
	"arrowdown",
	"arrowleft",
	"backspace",
	"pagedown",
	"arrowup",
	"escape",
	"pageup",
	"delete",
	"enter",
	"space",
	"home",
	"end",
	"tab",
	"f10",
	"f11",
	"f12",
	"f1",
	"f2",
	"f3",
	"f4",
	"f5",
	"f6",
	"f7",
	"f8",
	"f9",
}

// ModifierKeys are the key-combo modifiers.
var ModifierKeys = []string{
	"control",
	"shift",
	"ctrl",
	"meta",
	"alt",
}

// Roles the resolver gives dedicated input-type matching. The grammar
// itself accepts any bare identifier as a role atom; this table feeds
// requirement validation and the resolver's type mapping.
var KnownRoles = []string{
	"username",
	"password",
	"checkbox",
	"search",
	"submit",
	"button",
	"email",
	"phone",
	"input",
	"radio",
	"link",
	"url",
}

// Sub-operation keyword tables.
var (
	CookieOps  = []string{"delete", "clear", "list", "get", "set"}
	StorageOps = []string{"delete", "clear", "list", "get", "set"}
	SessionOps = []string{"switch", "close", "new"}
	StateOps   = []string{"save", "load"}
	HeaderOps  = []string{"clear", "show", "set"}
	TabOps     = []string{"switch", "close", "new"}
	DialogOps  = []string{"dismiss", "accept", "auto"}
	FrameKinds = []string{"parent", "main"}
	TraceOps   = []string{"start", "stop"}
	PackOps    = []string{"install", "unload", "load", "use"}
	LearnOps   = []string{"discard", "status", "save", "show"}
)

// optionArg states what, if anything, follows an option name.
type optionArg int

const (
	argNone optionArg = iota
	argString
	argWord
	argNumber
	argDuration
)

// commandOptions declares the option vocabulary per command. The parser
// rejects options outside a command's set at parse time, so a typo'd
// option fails the line rather than being silently ignored.
var commandOptions = map[Rule]map[string]optionArg{
	RuleGoto:        {"headers": argString, "timeout": argDuration},
	RuleRefresh:     {"hard": argNone},
	RuleObserve:     {"full": argNone, "minimal": argNone, "viewport": argNone, "hidden": argNone, "positions": argNone, "diff": argNone, "near": argString, "timeout": argDuration},
	RuleScreenshot:  {"output": argString, "format": argWord, "fullpage": argNone},
	RuleClick:       {"double": argNone, "right": argNone, "middle": argNone, "force": argNone, "ctrl": argNone, "shift": argNone, "alt": argNone, "timeout": argDuration},
	RuleType:        {"append": argNone, "enter": argNone, "clear": argNone, "delay": argNumber, "timeout": argDuration},
	RuleScroll:      {"page": argNone, "timeout": argDuration},
	RuleScrollUntil: {"page": argNone, "timeout": argDuration},
	RuleWait:        {"timeout": argDuration},
	RuleExtract:     {"format": argWord},
	RuleStorage:     {"local": argNone, "session": argNone},
	RuleSession:     {"mode": argWord},
	RuleState:       {"cookies-only": argNone, "domain": argString, "include-session": argNone, "merge": argNone},
	RuleLogin:       {"no-submit": argNone, "wait": argWord, "timeout": argDuration},
	RuleSearch:      {"submit": argWord, "wait": argWord, "timeout": argDuration},
	RuleIntents:     {"session": argNone},
	RuleExport:      {"out": argString},
	RuleIntercept:   {"block": argNone, "respond": argString, "respond-file": argString, "status": argNumber},
	RuleRequests:    {"filter": argString, "method": argWord, "last": argNumber},
	RuleConsole:     {"clear": argNone, "level": argWord, "filter": argString, "last": argNumber},
	RuleErrors:      {"clear": argNone, "last": argNumber},
	RuleHighlight:   {"clear": argNone, "duration": argDuration, "color": argWord},
	RuleRecord:      {"quality": argWord},
	RulePDF:         {"format": argWord, "landscape": argNone, "margin": argString},
}

func optionsFor(rule Rule) map[string]optionArg {
	return commandOptions[rule]
}

func keywordIn(word string, table []string) bool {
	for _, k := range table {
		if word == k {
			return true
		}
	}
	return false
}

package executor

import (
	"fmt"
	"sort"
	"strings"
)

const helpOverview = `Commands by group (help <command> for details):

  navigate    goto back forward refresh url title
  observe     scan html text box extract screenshot pdf
  act         click type clear select check uncheck hover focus submit
              press keydown keyup scroll "scroll until" highlight
  wait        wait load|idle|navigation|ready|visible|hidden|exists|gone|url|until|items
  session     cookies storage session sessions state headers
  tabs        tabs tab frames frame dialog
  network     intercept requests console errors
  emulate     viewport device devices media
  capture     trace record
  intents     login search dismiss accept_cookies
              define..end undefine export run intents packs pack learn
  misc        help exit`

var helpTopics = map[string]string{
	"goto":    "goto <url> [--timeout <d>]\n  Navigate. Bare hosts get https:// prefixed.",
	"scan":    "scan [--full|--minimal] [--viewport] [--hidden] [--positions] [--diff] [--near <text>]\n  Build the element map. Element IDs from the newest scan address later commands.",
	"click":   "click <target> [--double|--right|--middle] [--force] [--ctrl|--shift|--alt]\n  Targets: element ID, \"text\", css(...), xpath(...), role(...), with near/inside/above/below relations.",
	"type":    "type <target> <text> [--append] [--enter] [--clear] [--delay <ms>]\n  Type into an input. --enter submits after typing.",
	"clear":   "clear <target>\n  Empty an input's value.",
	"select":  "select <target> <value>\n  Pick an option by value, label, or index.",
	"scroll":  "scroll up|down|left|right [<px>] [--page]\nscroll <target>\nscroll until <target> [--page] [--timeout <d>]\n  The until form keeps scrolling and rescanning until the target appears.",
	"wait":    "wait <condition> [--timeout <d>]\n  Conditions: load, idle, navigation, ready, visible <target>, hidden <target>,\n  exists <sel>, gone <sel>, url <pattern>, until (<expr>), items <sel> <n>.",
	"extract": "extract links|images|tables|meta|text|css(<sel>) [--format json|csv|markdown|text]",
	"text":    "text [<target>]\n  Visible text of an element, or the page without a target.",
	"html":    "html [<selector>]\n  Outer HTML of the first match, or the document.",
	"screenshot": "screenshot [<target>] [--output <file>] [--format png|jpeg|webp] [--fullpage]\n" +
		"  With a target, captures just that element's box.",
	"pdf":            "pdf [--output <file>] [--format a4|letter|legal|tabloid] [--landscape] [--margin <in>]",
	"cookies":        "cookies [list|get <name>|set <name> <value>|delete <name>|clear]",
	"storage":        "storage [--local|--session] [list|get <k>|set <k> <v>|delete <k>|clear]",
	"session":        "sessions | session <name> | session new [--clean]\n  Isolated browser contexts with separate cookies and storage.",
	"state":          "state save|load [<name>] [--domain <d>] [--cookies-only] [--include-session] [--merge]\n  Signed state files under the configured state directory.",
	"headers":        "headers [list|set <json>|clear] [--domain <d>]\n  Extra request headers, optionally per domain.",
	"tab":            "tabs | tab new [<url>] | tab <n> | tab close [<n>]",
	"frame":          "frames | frame <name-or-url> | frame main | frame parent",
	"dialog":         "dialog accept|dismiss [<text>] | dialog auto accept|dismiss|off\n  Answer the next dialog once, or set a sticky mode.",
	"intercept":      "intercept [list] | intercept <pattern> --block|--respond <body>|--status <n>\n  intercept clear [<pattern>]",
	"requests":       "requests [--filter <s>] [--method <m>] [--last <n>]\n  The network capture ring. intercept rules mark blocked entries.",
	"console":        "console [--level <l>] [--filter <s>] [--last <n>] [--clear]",
	"errors":         "errors [--last <n>] [--clear]",
	"viewport":       "viewport <w> <h>",
	"device":         "devices | device <name> | device reset",
	"media":          "media <feature> <value>\n  Emulate media features, e.g. media prefers-color-scheme dark.",
	"trace":          "trace start | trace stop [--output <file>]",
	"record":         "record start [--quality low|medium|high|<1-100>] | record stop [--output <file>]",
	"highlight":      "highlight <target> [--duration <d>] [--color <css>] | highlight clear",
	"login":          "login <user> <pass> [--no-submit] [--wait <cond>] [--timeout <d>]\n  Uses the recognized login form; no selectors needed.",
	"search":         "search <query> [--submit enter|click|none] [--wait <cond>]",
	"dismiss":        "dismiss [popups|modal|banner]\n  Click the close control of the recognized overlay.",
	"accept_cookies": "accept_cookies\n  Click the accept control of the recognized consent banner.",
	"define":         "define <name>\n  ...commands, ${param} for parameters...\nend\n  Then: run <name> param=value",
	"run":            "run <name> [key=value ...]\n  Execute a defined intent. Also: run <file.oil> from the shell.",
	"intents":        "intents [--session]\n  List runnable intents: built-ins, loaded packs, session definitions.",
	"pack":           "packs | pack load <name> | pack unload <name> | pack install <git-url>",
	"learn":          "learn [status|show|save <name>|discard]\n  Successful actions accumulate in a buffer; save promotes them to an intent.",
	"exit":           "exit\n  Leave the shell.",
}

// Aliases resolve to their canonical topic.
var helpAliases = map[string]string{
	"observe":  "scan",
	"nav":      "goto",
	"navigate": "goto",
	"back":     "goto",
	"forward":  "goto",
	"refresh":  "goto",
	"tabs":     "tab",
	"frames":   "frame",
	"sessions": "session",
	"packs":    "pack",
	"export":   "define",
	"undefine": "define",
	"devices":  "device",
	"box":      "scan",
	"quit":     "exit",
	"md":       "extract",
}

func helpText(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return helpOverview
	}
	if canonical, ok := helpAliases[topic]; ok {
		topic = canonical
	}
	if text, ok := helpTopics[topic]; ok {
		return text
	}
	known := make([]string, 0, len(helpTopics))
	for k := range helpTopics {
		known = append(known, k)
	}
	sort.Strings(known)
	return fmt.Sprintf("no help for %q\nTopics: %s", topic, strings.Join(known, " "))
}

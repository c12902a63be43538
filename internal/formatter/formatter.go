// Package formatter renders engine responses and execution errors as the
// compact operator-facing text the CLI prints.
//
// The grammar of the output is small: a scan renders a page header plus
// one line per element, actions render an "ok" line with comment-prefixed
// annotations, and list-style responses render a counted section. Values
// whose field names look sensitive are masked before they reach any
// output surface.
package formatter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Formatter renders responses for the interactive loop and the script
// runner. It holds no state; one instance serves every surface.
type Formatter struct{}

// New returns a Formatter.
func New() *Formatter { return &Formatter{} }

// Response renders a success response as display text without a trailing
// newline. A nil response renders as nothing; an error response is
// delegated to Error so tolerant callers print something sensible.
func (f *Formatter) Response(resp *schemas.Response) string {
	if resp == nil {
		return ""
	}
	if !resp.OK() {
		return f.Error(resp.Err())
	}

	var out string
	switch {
	case resp.Page != nil || len(resp.Elements) > 0 || resp.Changes != nil:
		out = f.scan(resp)
	case len(resp.Data) > 0:
		out = f.data(resp)
	case resp.HTML != "":
		out = resp.HTML
	case resp.Text != "":
		out = resp.Text
	case resp.Rect != nil:
		out = fmt.Sprintf("@ (%.0f,%.0f) %.0fx%.0f",
			resp.Rect.X, resp.Rect.Y, resp.Rect.Width, resp.Rect.Height)
	case resp.Value != "" && resp.Action == "":
		out = "Value: " + resp.Value
	default:
		out = f.action(resp)
	}
	return strings.TrimRight(out, "\n")
}

// Error renders a failure. Execution errors add the recovery hint line;
// parse and semantic errors already carry their span in the message.
func (f *Formatter) Error(err error) string {
	if err == nil {
		return ""
	}
	var ee *schemas.ExecError
	if errors.As(err, &ee) {
		return fmt.Sprintf("Error: %s\nHint: %s", ee.Error(), ee.RecoveryHint())
	}
	return "Error: " + err.Error()
}

// -- Scan rendering --

func (f *Formatter) scan(resp *schemas.Response) string {
	var b strings.Builder
	if resp.Page != nil {
		fmt.Fprintf(&b, "@ %s %q\n", resp.Page.URL, resp.Page.Title)
	}
	positions := withPositions(resp)
	for i := range resp.Elements {
		writeElementLine(&b, &resp.Elements[i], positions)
	}
	if len(resp.Patterns) > 0 {
		writePatterns(&b, resp.Patterns)
	}
	if resp.Changes != nil {
		writeDiff(&b, resp.Changes)
	}
	return b.String()
}

// withPositions reports whether the scan ran with position output. The
// engine echoes the settings it applied, so the formatter never guesses.
func withPositions(resp *schemas.Response) bool {
	for _, key := range []string{"positions", "full"} {
		if v, ok := resp.SettingsApplied[key].(bool); ok && v {
			return true
		}
	}
	return false
}

// writeElementLine renders one element map entry:
//
//	[7] input/email "Work address" {disabled} = "a@b.c"
func writeElementLine(b *strings.Builder, e *schemas.Element, positions bool) {
	typeStr := e.Type
	if e.Role != "" {
		typeStr += "/" + e.Role
	}
	fmt.Fprintf(b, "[%d] %s %q", e.ID, typeStr, e.Label())

	if positions {
		fmt.Fprintf(b, " @ (%.0f,%.0f) %.0fx%.0f",
			e.Rect.X, e.Rect.Y, e.Rect.Width, e.Rect.Height)
	}
	if flags := stateFlags(e); len(flags) > 0 {
		fmt.Fprintf(b, " {%s}", strings.Join(flags, ", "))
	}
	if v := e.Attr("value"); v != "" {
		fmt.Fprintf(b, " = %q", MaskValue(v, maskContext(e)))
	} else if (e.Type == "checkbox" || e.Type == "radio") && e.State.Checked {
		b.WriteString(" = checked")
	}
	b.WriteByte('\n')
}

func stateFlags(e *schemas.Element) []string {
	var flags []string
	if e.State.Checked {
		flags = append(flags, "checked")
	}
	if e.State.Selected {
		flags = append(flags, "selected")
	}
	if !e.State.Enabled {
		flags = append(flags, "disabled")
	}
	if e.State.ReadOnly {
		flags = append(flags, "readonly")
	}
	return flags
}

// maskContext gathers the name-ish attributes of an element so value
// masking can match any of them.
func maskContext(e *schemas.Element) string {
	return strings.Join([]string{e.Role, e.Attr("name"), e.Attr("type"), e.Attr("autocomplete")}, " ")
}

// patternNames maps engine pattern kinds to display names.
var patternNames = map[string]string{
	"login":         "Login Form",
	"search":        "Search Box",
	"modal":         "Modal",
	"cookie_banner": "Cookie Banner",
	"pagination":    "Pagination",
}

func writePatterns(b *strings.Builder, patterns []schemas.Pattern) {
	b.WriteString("\nPatterns:\n")
	for _, p := range patterns {
		name := patternNames[p.Kind]
		if name == "" {
			name = p.Kind
		}
		b.WriteString("- " + name)
		if p.Label != "" {
			fmt.Fprintf(b, " %q", p.Label)
		}
		b.WriteByte('\n')
	}
}

func writeDiff(b *strings.Builder, d *schemas.MapDiff) {
	if len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0 {
		return
	}
	b.WriteString("\n# changes\n")
	for i := range d.Added {
		e := &d.Added[i]
		fmt.Fprintf(b, "+ [%d] appeared: %q\n", e.ID, e.Label())
	}
	for _, id := range d.Removed {
		fmt.Fprintf(b, "- [%d] disappeared\n", id)
	}
	for i := range d.Modified {
		e := &d.Modified[i]
		fmt.Fprintf(b, "~ [%d] changed: %q\n", e.ID, e.Label())
	}
}

// -- Action rendering --

func (f *Formatter) action(resp *schemas.Response) string {
	var b strings.Builder
	b.WriteString("ok")
	if resp.Action != "" {
		b.WriteString(" " + resp.Action)
	}
	if resp.WaitedMs > 0 {
		fmt.Fprintf(&b, " (%dms)", resp.WaitedMs)
	}
	b.WriteByte('\n')

	if resp.Navigation {
		b.WriteString("# navigation detected\n")
	}
	if c := resp.DOMChanges; c != nil && (c.Added > 0 || c.Removed > 0) {
		fmt.Fprintf(&b, "# changes: +%d -%d elements\n", c.Added, c.Removed)
	}
	if resp.Value != "" {
		fmt.Fprintf(&b, "# value: %q\n", resp.Value)
	}
	if resp.Previous != "" {
		fmt.Fprintf(&b, "# previous: %q\n", resp.Previous)
	}
	return b.String()
}

// -- Data payload rendering --

func (f *Formatter) data(resp *schemas.Response) string {
	render := func(v any, section func(*strings.Builder)) string {
		if err := resp.DecodeData(v); err != nil {
			return f.Error(err)
		}
		var b strings.Builder
		section(&b)
		return b.String()
	}

	switch resp.Action {
	case schemas.DataCookies:
		var cookies []schemas.Cookie
		return render(&cookies, func(b *strings.Builder) { writeCookies(b, cookies) })
	case schemas.DataTabs:
		var tabs []schemas.TabInfo
		return render(&tabs, func(b *strings.Builder) { writeTabs(b, tabs) })
	case schemas.DataFrames:
		var frames []schemas.FrameInfo
		return render(&frames, func(b *strings.Builder) { writeFrames(b, frames) })
	case schemas.DataConsole:
		var entries []schemas.ConsoleEntry
		return render(&entries, func(b *strings.Builder) { writeConsole(b, entries) })
	case schemas.DataErrors:
		var errs []schemas.PageError
		return render(&errs, func(b *strings.Builder) { writePageErrors(b, errs) })
	case schemas.DataRequests:
		var reqs []schemas.CapturedRequest
		return render(&reqs, func(b *strings.Builder) { writeRequests(b, reqs) })
	case schemas.DataDevices:
		var devices []schemas.DeviceDescriptor
		return render(&devices, func(b *strings.Builder) { writeDevices(b, devices) })
	case schemas.DataSessions:
		var sessions []schemas.SessionInfo
		return render(&sessions, func(b *strings.Builder) { writeSessions(b, sessions) })
	case schemas.DataKeys:
		var keys []string
		return render(&keys, func(b *strings.Builder) { writeKeys(b, keys) })
	case schemas.DataIntents:
		var intents []schemas.IntentInfo
		return render(&intents, func(b *strings.Builder) { writeIntents(b, intents) })
	case schemas.DataPacks:
		var packs []schemas.PackInfo
		return render(&packs, func(b *strings.Builder) { writePacks(b, packs) })
	case schemas.DataStorage:
		var snapshot schemas.StorageSnapshot
		return render(&snapshot, func(b *strings.Builder) { writeStorage(b, snapshot) })
	case schemas.DataHeaders:
		var headers map[string]map[string]string
		return render(&headers, func(b *strings.Builder) { writeHeaders(b, headers) })
	default:
		return prettyJSON(resp.Data)
	}
}

func writeCookies(b *strings.Builder, cookies []schemas.Cookie) {
	fmt.Fprintf(b, "Cookies (%d):\n", len(cookies))
	for _, c := range cookies {
		fmt.Fprintf(b, "  %s = %s", c.Name, MaskValue(c.Value, c.Name))
		if c.Domain != "" {
			fmt.Fprintf(b, " (domain: %s)", c.Domain)
		}
		b.WriteByte('\n')
	}
}

func writeTabs(b *strings.Builder, tabs []schemas.TabInfo) {
	fmt.Fprintf(b, "Tabs (%d):\n", len(tabs))
	for i, t := range tabs {
		marker := "-"
		if t.Active {
			marker = "*"
		}
		fmt.Fprintf(b, "  %s [%d] %s (%s)\n", marker, i, t.Title, t.URL)
	}
}

func writeFrames(b *strings.Builder, frames []schemas.FrameInfo) {
	fmt.Fprintf(b, "Frames (%d):\n", len(frames))
	for _, fr := range frames {
		marker := "-"
		if fr.Current {
			marker = "*"
		}
		fmt.Fprintf(b, "  %s%s %s", strings.Repeat("  ", fr.Depth), marker, fr.URL)
		if fr.Name != "" {
			fmt.Fprintf(b, " (%s)", fr.Name)
		}
		b.WriteByte('\n')
	}
}

func writeConsole(b *strings.Builder, entries []schemas.ConsoleEntry) {
	fmt.Fprintf(b, "Console (%d):\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(b, "  [%s] %s\n", e.Level, e.Text)
	}
}

func writePageErrors(b *strings.Builder, errs []schemas.PageError) {
	fmt.Fprintf(b, "Page Errors (%d):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(b, "  %s", e.Message)
		if e.URL != "" {
			fmt.Fprintf(b, " (%s:%d:%d)", e.URL, e.Line, e.Column)
		}
		b.WriteByte('\n')
	}
}

func writeRequests(b *strings.Builder, reqs []schemas.CapturedRequest) {
	fmt.Fprintf(b, "Requests (%d):\n", len(reqs))
	for _, r := range reqs {
		status := "---"
		if r.Status > 0 {
			status = fmt.Sprintf("%d", r.Status)
		}
		fmt.Fprintf(b, "  %s %s %s", status, r.Method, r.URL)

		var notes []string
		if r.Type != "" {
			notes = append(notes, r.Type)
		}
		if r.Size > 0 {
			notes = append(notes, fmt.Sprintf("%dB", r.Size))
		}
		if r.TookMs > 0 {
			notes = append(notes, fmt.Sprintf("%dms", r.TookMs))
		}
		if len(notes) > 0 {
			fmt.Fprintf(b, " (%s)", strings.Join(notes, ", "))
		}
		if r.Blocked {
			b.WriteString(" [blocked]")
		}
		b.WriteByte('\n')
	}
}

func writeDevices(b *strings.Builder, devices []schemas.DeviceDescriptor) {
	fmt.Fprintf(b, "Devices (%d):\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(b, "  %s (%dx%d @%gx", d.Name, d.Width, d.Height, d.Scale)
		if d.Mobile {
			b.WriteString(", mobile")
		}
		if d.Touch {
			b.WriteString(", touch")
		}
		b.WriteString(")\n")
	}
}

func writeSessions(b *strings.Builder, sessions []schemas.SessionInfo) {
	fmt.Fprintf(b, "Sessions (%d):\n", len(sessions))
	for _, s := range sessions {
		marker := "-"
		if s.Active {
			marker = "*"
		}
		fmt.Fprintf(b, "  %s %s (%s)\n", marker, s.Name, tabCount(s.Tabs))
	}
}

func tabCount(n int) string {
	if n == 1 {
		return "1 tab"
	}
	return fmt.Sprintf("%d tabs", n)
}

func writeKeys(b *strings.Builder, keys []string) {
	if len(keys) == 0 {
		b.WriteString("No keys held\n")
		return
	}
	fmt.Fprintf(b, "Held keys: %s\n", strings.Join(keys, ", "))
}

func writeIntents(b *strings.Builder, intents []schemas.IntentInfo) {
	fmt.Fprintf(b, "Intents (%d):\n", len(intents))
	for _, in := range intents {
		b.WriteString("  " + in.Name)
		if len(in.Params) > 0 {
			fmt.Fprintf(b, " (%s)", strings.Join(in.Params, ", "))
		}
		fmt.Fprintf(b, " [%s]\n", in.Source)
	}
}

func writePacks(b *strings.Builder, packs []schemas.PackInfo) {
	fmt.Fprintf(b, "Packs (%d):\n", len(packs))
	for _, p := range packs {
		fmt.Fprintf(b, "  %s (%d intents)", p.Name, p.Intents)
		if p.Loaded {
			b.WriteString(" [loaded]")
		}
		b.WriteByte('\n')
	}
}

func writeStorage(b *strings.Builder, snapshot schemas.StorageSnapshot) {
	fmt.Fprintf(b, "Storage (%d):\n", len(snapshot))
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s = %s\n", k, MaskValue(snapshot[k], k))
	}
}

func writeHeaders(b *strings.Builder, headers map[string]map[string]string) {
	domains := make([]string, 0, len(headers))
	for d := range headers {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	fmt.Fprintf(b, "Headers (%d):\n", len(domains))
	for _, d := range domains {
		fmt.Fprintf(b, "  %s:\n", d)
		names := make([]string, 0, len(headers[d]))
		for n := range headers[d] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(b, "    %s: %s\n", n, MaskValue(headers[d][n], n))
		}
	}
}

// prettyJSON indents an arbitrary data payload, falling back to the raw
// bytes when it will not re-encode.
func prettyJSON(data []byte) string {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(data)
	}
	return string(pretty)
}

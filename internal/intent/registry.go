// Package intent stores named command sequences: session definitions
// created with define..end, intents shipped in packs, and the built-in
// pattern-driven verbs. Expansion substitutes ${param} placeholders and
// returns plain script lines for the executor to run.
package intent

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// Intent is one named, parameterized command sequence.
type Intent struct {
	Name   string
	Params []string // ${placeholder} names in order of first appearance
	Lines  []string
	Source string // "builtin", "session", or the owning pack name
}

// Registry resolves intent names across the three scopes. Session
// definitions shadow pack intents, which shadow built-ins; undefine
// only ever removes session definitions.
type Registry struct {
	mu      sync.RWMutex
	log     *zap.Logger
	dir     string
	session map[string]*Intent
	packs   map[string]*pack
	builtin map[string]*Intent
}

// New builds a registry rooted at packsDir. The directory may be empty
// or absent; packs appear once installed or loaded.
func New(packsDir string, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		log:     log.Named("intent"),
		dir:     packsDir,
		session: make(map[string]*Intent),
		packs:   make(map[string]*pack),
		builtin: builtinIntents(),
	}
}

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)
	paramPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_-]*)\}`)
)

// ValidName reports whether name is usable as an intent name.
func ValidName(name string) bool { return namePattern.MatchString(name) }

// scanParams collects ${k} placeholders in order of first appearance.
func scanParams(lines []string) []string {
	var params []string
	seen := make(map[string]bool)
	for _, line := range lines {
		for _, m := range paramPattern.FindAllStringSubmatch(line, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				params = append(params, m[1])
			}
		}
	}
	return params
}

// Define registers a session intent. Redefining replaces the previous
// definition; a session intent may shadow a pack or built-in name.
func (r *Registry) Define(name string, lines []string) (*Intent, error) {
	if !namePattern.MatchString(name) {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("invalid intent name %q", name),
		}
	}
	cleaned := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("intent %q has no commands", name),
		}
	}
	in := &Intent{
		Name:   name,
		Params: scanParams(cleaned),
		Lines:  cleaned,
		Source: "session",
	}
	r.mu.Lock()
	r.session[name] = in
	r.mu.Unlock()
	r.log.Debug("intent defined",
		zap.String("name", name),
		zap.Int("lines", len(cleaned)),
		zap.Strings("params", in.Params))
	return in, nil
}

// Undefine removes a session intent. Pack and built-in intents cannot be
// removed this way; unload the pack instead.
func (r *Registry) Undefine(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.session[name]; !ok {
		if in, found := r.lookupLocked(name); found {
			return &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: fmt.Sprintf("intent %q comes from %s and cannot be undefined", name, in.Source),
			}
		}
		return &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no intent named %q", name),
		}
	}
	delete(r.session, name)
	return nil
}

// Lookup finds an intent by name: session first, then loaded packs in
// name order, then built-ins.
func (r *Registry) Lookup(name string) (*Intent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupLocked(name)
}

func (r *Registry) lookupLocked(name string) (*Intent, bool) {
	if in, ok := r.session[name]; ok {
		return in, true
	}
	for _, pn := range sortedPackNames(r.packs) {
		p := r.packs[pn]
		if !p.loaded {
			continue
		}
		if in, ok := p.intents[name]; ok {
			return in, true
		}
	}
	in, ok := r.builtin[name]
	return in, ok
}

// Expand resolves an intent and substitutes its parameters, returning
// the script lines ready to execute. Unknown and missing parameters are
// both errors so typos fail loudly instead of running a half-filled
// sequence.
func (r *Registry) Expand(name string, params []ast.Param) ([]string, error) {
	in, ok := r.Lookup(name)
	if !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no intent named %q (try: intents)", name),
		}
	}

	declared := make(map[string]bool, len(in.Params))
	for _, p := range in.Params {
		declared[p] = true
	}
	values := make(map[string]string, len(params))
	for _, p := range params {
		if !declared[p.Key] {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: fmt.Sprintf("intent %q has no parameter %q", name, p.Key),
			}
		}
		values[p.Key] = p.Value
	}
	var missing []string
	for _, p := range in.Params {
		if _, ok := values[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("intent %q needs %s", name, paramList(missing)),
		}
	}

	lines := make([]string, len(in.Lines))
	for i, line := range in.Lines {
		lines[i] = paramPattern.ReplaceAllStringFunc(line, func(m string) string {
			key := m[2 : len(m)-1]
			return values[key]
		})
	}
	return lines, nil
}

func paramList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = n + "=..."
	}
	return strings.Join(quoted, " ")
}

// List reports known intents sorted by name. With sessionOnly, only
// define'd intents of this session appear.
func (r *Registry) List(sessionOnly bool) []schemas.IntentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []schemas.IntentInfo
	add := func(in *Intent) {
		infos = append(infos, schemas.IntentInfo{
			Name:   in.Name,
			Params: in.Params,
			Lines:  len(in.Lines),
			Source: in.Source,
		})
	}
	for _, in := range r.session {
		add(in)
	}
	if !sessionOnly {
		seen := make(map[string]bool, len(r.session))
		for n := range r.session {
			seen[n] = true
		}
		for _, pn := range sortedPackNames(r.packs) {
			p := r.packs[pn]
			if !p.loaded {
				continue
			}
			for _, in := range p.intents {
				if !seen[in.Name] {
					seen[in.Name] = true
					add(in)
				}
			}
		}
		for _, in := range r.builtin {
			if !seen[in.Name] {
				add(in)
			}
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Export renders an intent back to script form, a define..end block that
// re-creates it when run through the parser.
func (r *Registry) Export(name string) ([]string, error) {
	in, ok := r.Lookup(name)
	if !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("no intent named %q", name),
		}
	}
	out := make([]string, 0, len(in.Lines)+2)
	out = append(out, "define "+in.Name)
	for _, l := range in.Lines {
		out = append(out, "  "+l)
	}
	out = append(out, "end")
	return out, nil
}

func sortedPackNames(packs map[string]*pack) []string {
	names := make([]string, 0, len(packs))
	for n := range packs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// builtinIntents exposes the pattern-driven verbs through the intent
// listing so `intents` shows the full vocabulary, not just definitions.
func builtinIntents() map[string]*Intent {
	mk := func(name string, lines ...string) *Intent {
		return &Intent{
			Name:   name,
			Params: scanParams(lines),
			Lines:  lines,
			Source: "builtin",
		}
	}
	return map[string]*Intent{
		"login":          mk("login", `login "${user}" "${pass}"`),
		"search":         mk("search", `search "${query}"`),
		"dismiss":        mk("dismiss", "dismiss"),
		"accept_cookies": mk("accept_cookies", "accept_cookies"),
	}
}

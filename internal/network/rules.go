package network

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Rule is one intercept instruction. Exactly one of Block, Respond, or
// RespondFile is acted on; Status overrides the reply status for the
// respond forms and defaults to 200 (or 403 for blocks).
type Rule struct {
	Pattern     string `json:"pattern"`
	Block       bool   `json:"block,omitempty"`
	Respond     string `json:"respond,omitempty"`
	RespondFile string `json:"respond_file,omitempty"`
	Status      int    `json:"status,omitempty"`

	re *regexp.Regexp
}

// Matches reports whether the rule's pattern matches the URL.
func (r *Rule) Matches(url string) bool {
	return r.re != nil && r.re.MatchString(url)
}

// RuleSet is the live intercept table. The proxy consults it per
// request; the session host mirrors it into CDP fetch interception.
type RuleSet struct {
	mu    sync.RWMutex
	rules []*Rule
	gen   uint64
}

// NewRuleSet creates an empty rule table.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Set installs a rule, replacing any existing rule with the same
// pattern. Patterns are URL globs: * matches any run of characters.
func (rs *RuleSet) Set(r Rule) error {
	re, err := compilePattern(r.Pattern)
	if err != nil {
		return err
	}
	r.re = re

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.gen++
	for i, existing := range rs.rules {
		if existing.Pattern == r.Pattern {
			rs.rules[i] = &r
			return nil
		}
	}
	rs.rules = append(rs.rules, &r)
	return nil
}

// Clear removes the rule with the given pattern, or every rule when
// pattern is empty. It reports how many rules were removed.
func (rs *RuleSet) Clear(pattern string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.gen++
	if pattern == "" {
		n := len(rs.rules)
		rs.rules = nil
		return n
	}
	for i, r := range rs.rules {
		if r.Pattern == pattern {
			rs.rules = append(rs.rules[:i], rs.rules[i+1:]...)
			return 1
		}
	}
	return 0
}

// Match returns the first rule matching the URL, or nil.
func (rs *RuleSet) Match(url string) *Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	for _, r := range rs.rules {
		if r.Matches(url) {
			return r
		}
	}
	return nil
}

// List returns the installed rules in insertion order.
func (rs *RuleSet) List() []Rule {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Rule, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = *r
	}
	return out
}

// Len returns the number of installed rules.
func (rs *RuleSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rules)
}

// Generation increments on every mutation. The session host uses it to
// notice when its CDP-side interception needs re-syncing.
func (rs *RuleSet) Generation() uint64 {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.gen
}

// compilePattern turns a URL glob into an anchored regular expression.
// A pattern without wildcards matches as a substring, which is how
// operators type quick filters like "/api/".
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("intercept pattern must not be empty")
	}
	var b strings.Builder
	if strings.Contains(pattern, "*") {
		b.WriteString("^")
		for _, part := range strings.Split(pattern, "*") {
			if b.Len() > 1 {
				b.WriteString(".*")
			}
			b.WriteString(regexp.QuoteMeta(part))
		}
		b.WriteString("$")
	} else {
		b.WriteString(regexp.QuoteMeta(pattern))
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid intercept pattern %q: %w", pattern, err)
	}
	return re, nil
}

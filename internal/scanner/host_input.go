package scanner

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// keyTimeout bounds one key event batch.
const keyTimeout = 5 * time.Second

// keyDef describes one dispatchable key: DOM key value, physical code,
// the text it produces when printable, and its virtual key code.
type keyDef struct {
	key  string
	code string
	text string
	vk   int64
}

// namedKeys maps spelled-out key names to their definitions. Lookup is
// case-insensitive; single printable characters fall through to the
// chromedp key table instead.
var namedKeys = map[string]keyDef{
	"enter":      {key: "Enter", code: "Enter", text: "\r", vk: 13},
	"return":     {key: "Enter", code: "Enter", text: "\r", vk: 13},
	"tab":        {key: "Tab", code: "Tab", vk: 9},
	"escape":     {key: "Escape", code: "Escape", vk: 27},
	"esc":        {key: "Escape", code: "Escape", vk: 27},
	"backspace":  {key: "Backspace", code: "Backspace", vk: 8},
	"delete":     {key: "Delete", code: "Delete", vk: 46},
	"del":        {key: "Delete", code: "Delete", vk: 46},
	"insert":     {key: "Insert", code: "Insert", vk: 45},
	"space":      {key: " ", code: "Space", text: " ", vk: 32},
	"home":       {key: "Home", code: "Home", vk: 36},
	"end":        {key: "End", code: "End", vk: 35},
	"pageup":     {key: "PageUp", code: "PageUp", vk: 33},
	"pagedown":   {key: "PageDown", code: "PageDown", vk: 34},
	"arrowup":    {key: "ArrowUp", code: "ArrowUp", vk: 38},
	"up":         {key: "ArrowUp", code: "ArrowUp", vk: 38},
	"arrowdown":  {key: "ArrowDown", code: "ArrowDown", vk: 40},
	"down":       {key: "ArrowDown", code: "ArrowDown", vk: 40},
	"arrowleft":  {key: "ArrowLeft", code: "ArrowLeft", vk: 37},
	"left":       {key: "ArrowLeft", code: "ArrowLeft", vk: 37},
	"arrowright": {key: "ArrowRight", code: "ArrowRight", vk: 39},
	"right":      {key: "ArrowRight", code: "ArrowRight", vk: 39},
	"f1":         {key: "F1", code: "F1", vk: 112},
	"f2":         {key: "F2", code: "F2", vk: 113},
	"f3":         {key: "F3", code: "F3", vk: 114},
	"f4":         {key: "F4", code: "F4", vk: 115},
	"f5":         {key: "F5", code: "F5", vk: 116},
	"f6":         {key: "F6", code: "F6", vk: 117},
	"f7":         {key: "F7", code: "F7", vk: 118},
	"f8":         {key: "F8", code: "F8", vk: 119},
	"f9":         {key: "F9", code: "F9", vk: 120},
	"f10":        {key: "F10", code: "F10", vk: 121},
	"f11":        {key: "F11", code: "F11", vk: 122},
	"f12":        {key: "F12", code: "F12", vk: 123},
	"shift":      {key: "Shift", code: "ShiftLeft", vk: 16},
	"ctrl":       {key: "Control", code: "ControlLeft", vk: 17},
	"control":    {key: "Control", code: "ControlLeft", vk: 17},
	"alt":        {key: "Alt", code: "AltLeft", vk: 18},
	"option":     {key: "Alt", code: "AltLeft", vk: 18},
	"meta":       {key: "Meta", code: "MetaLeft", vk: 91},
	"cmd":        {key: "Meta", code: "MetaLeft", vk: 91},
	"command":    {key: "Meta", code: "MetaLeft", vk: 91},
}

// lookupKey resolves one key token: a named key, or a single printable
// character resolved through the chromedp key table.
func lookupKey(token string) (keyDef, error) {
	if def, ok := namedKeys[strings.ToLower(token)]; ok {
		return def, nil
	}
	r, size := utf8.DecodeRuneInString(token)
	if size == 0 || size != len(token) || !unicode.IsGraphic(r) {
		return keyDef{}, fmt.Errorf("unknown key %q", token)
	}
	if k, ok := kb.Keys[r]; ok {
		def := keyDef{key: k.Key, code: k.Code, vk: k.Windows}
		if k.Print {
			def.text = k.Text
		}
		return def, nil
	}
	return keyDef{key: string(r), text: string(r)}, nil
}

// comboModifiers folds press-combo modifier names into the CDP bitmask:
// alt=1 ctrl=2 meta=4 shift=8.
func comboModifiers(mods []string) (input.Modifier, error) {
	var mask input.Modifier
	for _, name := range mods {
		switch strings.ToLower(name) {
		case "alt", "option":
			mask |= input.ModifierAlt
		case "ctrl", "control":
			mask |= input.ModifierCtrl
		case "meta", "cmd", "command", "win":
			mask |= input.ModifierMeta
		case "shift":
			mask |= input.ModifierShift
		default:
			return 0, fmt.Errorf("unknown modifier %q", name)
		}
	}
	return mask, nil
}

// modifierBit maps a modifier key to its bitmask; zero for normal keys.
func modifierBit(def keyDef) input.Modifier {
	switch def.key {
	case "Alt":
		return input.ModifierAlt
	case "Control":
		return input.ModifierCtrl
	case "Meta":
		return input.ModifierMeta
	case "Shift":
		return input.ModifierShift
	}
	return 0
}

// keyEvent builds one CDP key event for def.
func keyEvent(typ input.KeyType, def keyDef, mods input.Modifier) *input.DispatchKeyEventParams {
	ev := input.DispatchKeyEvent(typ).
		WithModifiers(mods).
		WithKey(def.key).
		WithWindowsVirtualKeyCode(def.vk).
		WithNativeVirtualKeyCode(def.vk)
	if def.code != "" {
		ev = ev.WithCode(def.code)
	}
	if typ == input.KeyChar {
		ev = ev.WithText(def.text).WithUnmodifiedText(def.text)
	}
	return ev
}

// pressEvents is the dispatch sequence for one chord. A printable key
// with at most a shift modifier also gets the char event that performs
// the insertion, the same triple the chromedp keyboard encoder emits.
func pressEvents(def keyDef, mods input.Modifier) []chromedp.Action {
	down := keyEvent(input.KeyDown, def, mods)
	up := keyEvent(input.KeyUp, def, mods)
	if def.text != "" && mods&^input.ModifierShift == 0 {
		return []chromedp.Action{down, keyEvent(input.KeyChar, def, mods), up}
	}
	return []chromedp.Action{down, up}
}

// -- held key state --

// holdKey records a key as held. A key already down is not held twice.
func (s *session) holdKey(hk heldKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.held {
		if h.name == hk.name {
			return false
		}
	}
	s.held = append(s.held, hk)
	return true
}

func (s *session) releaseKey(name string) (heldKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.held {
		if h.name == name {
			s.held = append(s.held[:i], s.held[i+1:]...)
			return h, true
		}
	}
	return heldKey{}, false
}

func (s *session) releaseAll() []heldKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.held
	s.held = nil
	return out
}

func (s *session) heldNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.held))
	for i, h := range s.held {
		names[i] = h.name
	}
	return names
}

// heldModifiers is the bitmask contributed by held modifier keys. Key
// events dispatched while keys are held carry it, so keydown shift
// followed by press tab sends shift+tab.
func (s *session) heldModifiers() input.Modifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mask input.Modifier
	for _, h := range s.held {
		mask |= modifierBit(h.def)
	}
	return mask
}

// -- handlers --

// doPress sends one key chord as a single dispatch batch.
func (m *Manager) doPress(ctx context.Context, c *ast.PressCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	if c.Combo.Key() == "" {
		return nil, &schemas.ExecError{Code: schemas.CodeInvalidRequest, Message: "press needs a key"}
	}
	mods, err := comboModifiers(c.Combo.Mods())
	if err != nil {
		return nil, &schemas.ExecError{Code: schemas.CodeInvalidRequest, Message: err.Error()}
	}
	def, err := lookupKey(c.Combo.Key())
	if err != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: err.Error(),
			Details: schemas.ErrorDetails{Value: c.Combo.Key()},
		}
	}
	mods |= t.sess.heldModifiers()

	pressCtx, cancel := context.WithTimeout(ctx, keyTimeout)
	defer cancel()
	if err := t.run(pressCtx, pressEvents(def, mods)...); err != nil {
		return nil, asScannerError("key dispatch failed", err)
	}
	return schemas.OKResponse("press"), nil
}

// doKeydown dispatches a key down and leaves it held until keyup.
func (m *Manager) doKeydown(ctx context.Context, c *ast.KeydownCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	def, err := lookupKey(c.Key)
	if err != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: err.Error(),
			Details: schemas.ErrorDetails{Value: c.Key},
		}
	}

	s := t.sess
	name := strings.ToLower(c.Key)
	// A second keydown for a held key is a no-op.
	if !s.holdKey(heldKey{name: name, def: def}) {
		return schemas.OKResponse("keydown"), nil
	}
	// The mask includes the key's own bit, matching what a physical
	// modifier press reports about itself.
	mods := s.heldModifiers()

	downCtx, cancel := context.WithTimeout(ctx, keyTimeout)
	defer cancel()
	if err := t.run(downCtx, keyEvent(input.KeyDown, def, mods)); err != nil {
		s.releaseKey(name)
		return nil, asScannerError("key dispatch failed", err)
	}
	return schemas.OKResponse("keydown"), nil
}

// doKeyup releases one held key, or every held key in reverse order for
// "all".
func (m *Manager) doKeyup(ctx context.Context, c *ast.KeyupCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	s := t.sess

	upCtx, cancel := context.WithTimeout(ctx, keyTimeout)
	defer cancel()

	if strings.EqualFold(c.Key, "all") {
		held := s.releaseAll()
		for i := len(held) - 1; i >= 0; i-- {
			var mask input.Modifier
			for j := 0; j < i; j++ {
				mask |= modifierBit(held[j].def)
			}
			if err := t.run(upCtx, keyEvent(input.KeyUp, held[i].def, mask)); err != nil {
				return nil, asScannerError("key dispatch failed", err)
			}
		}
		return schemas.OKResponse("keyup"), nil
	}

	hk, ok := s.releaseKey(strings.ToLower(c.Key))
	if !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("key %q is not held", c.Key),
			Details: schemas.ErrorDetails{Value: c.Key},
		}
	}
	if err := t.run(upCtx, keyEvent(input.KeyUp, hk.def, s.heldModifiers())); err != nil {
		return nil, asScannerError("key dispatch failed", err)
	}
	return schemas.OKResponse("keyup"), nil
}

// doKeys lists the held keys in the order they went down.
func (m *Manager) doKeys() (*schemas.Response, error) {
	s, err := m.currentSession()
	if err != nil {
		return nil, err
	}
	return schemas.DataResponse(schemas.DataKeys, s.heldNames())
}

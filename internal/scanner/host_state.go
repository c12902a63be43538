package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// stateTimeout bounds one snapshot or restore pass over cookies and web
// storage.
const stateTimeout = 15 * time.Second

// SessionState snapshots the current session: cookies for the whole
// browser context plus the active page's URL and web storage. Storage
// capture is best effort; pages with opaque origins block it.
func (m *Manager) SessionState(ctx context.Context, includeSession bool) (*schemas.SessionState, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}

	st := &schemas.SessionState{SavedAt: time.Now().UTC()}

	st.Cookies, err = m.readCookies(ctx, t)
	if err != nil {
		return nil, err
	}
	st.URL, err = m.currentLocation(ctx, t)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, stateTimeout)
	defer cancel()

	local := schemas.StorageSnapshot{}
	actions := []chromedp.Action{chromedp.Evaluate(storageDumpJS("localStorage"), &local)}
	session := schemas.StorageSnapshot{}
	if includeSession {
		actions = append(actions, chromedp.Evaluate(storageDumpJS("sessionStorage"), &session))
	}
	if err := t.run(opCtx, actions...); err != nil && opCtx.Err() == nil {
		t.log.Warn("capturing web storage failed", zap.Error(err))
	}
	st.LocalStorage = local
	if includeSession {
		st.SessionStorage = session
	}
	return st, nil
}

// ApplySessionState restores a snapshot into the current session.
// Without merge, existing cookies and storage scopes present in the
// snapshot are replaced; with merge, snapshot entries are layered on
// top. A nil storage scope in the snapshot is left untouched either way.
func (m *Manager) ApplySessionState(ctx context.Context, st *schemas.SessionState, merge bool) error {
	t, err := m.activeTab()
	if err != nil {
		return err
	}
	s := t.sess

	opCtx, cancel := context.WithTimeout(ctx, stateTimeout)
	defer cancel()
	err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
		if !merge {
			if err := storage.ClearCookies().WithBrowserContextID(s.browserContextID).Do(cc); err != nil {
				return err
			}
		}
		if len(st.Cookies) == 0 {
			return nil
		}
		return storage.SetCookies(cookieParams(st)).WithBrowserContextID(s.browserContextID).Do(cc)
	}))
	if err != nil {
		return asScannerError("restore cookies", err)
	}

	// Web storage is origin scoped, so land on the saved URL before
	// writing it.
	if st.URL != "" {
		navCtx, navCancel := context.WithTimeout(ctx, m.cfg.Browser.NavigationTimeout)
		defer navCancel()
		if err := t.run(navCtx, chromedp.Navigate(st.URL)); err != nil {
			return navError(navCtx, err, "state load")
		}
	}

	if st.LocalStorage != nil {
		if err := m.restoreStorage(ctx, t, "localStorage", st.LocalStorage, !merge); err != nil {
			return err
		}
	}
	if st.SessionStorage != nil {
		if err := m.restoreStorage(ctx, t, "sessionStorage", st.SessionStorage, !merge); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) restoreStorage(ctx context.Context, t *tab, kind string, items schemas.StorageSnapshot, clear bool) error {
	js, err := storageRestoreJS(kind, items, clear)
	if err != nil {
		return &schemas.ExecError{
			Code:    schemas.CodeSerializationError,
			Message: fmt.Sprintf("encode %s snapshot: %v", kind, err),
		}
	}

	opCtx, cancel := context.WithTimeout(ctx, stateTimeout)
	defer cancel()
	var stored int
	if err := t.run(opCtx, chromedp.Evaluate(js, &stored)); err != nil {
		return asScannerError("restore "+kind, err)
	}
	if stored < 0 {
		t.log.Warn("web storage not accessible on this page", zap.String("kind", kind))
	}
	return nil
}

// cookieParams converts snapshot cookies back to CDP set parameters.
// Cookies without a recorded domain fall back to the snapshot URL.
func cookieParams(st *schemas.SessionState) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(st.Cookies))
	for _, ck := range st.Cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
		}
		if p.Domain == "" {
			p.URL = st.URL
		}
		if ck.SameSite != "" {
			p.SameSite = network.CookieSameSite(ck.SameSite)
		}
		if ck.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}

func storageDumpJS(kind string) string {
	return fmt.Sprintf(`(function() {
	var out = {};
	try {
		var s = window.%s;
		for (var i = 0; s && i < s.length; i++) {
			var k = s.key(i);
			if (k !== null) { out[k] = s.getItem(k); }
		}
	} catch (e) {}
	return out;
})()`, kind)
}

// storageRestoreJS builds the script writing a snapshot into one storage
// scope. It reports the number of keys written, or -1 when the page
// blocks storage access.
func storageRestoreJS(kind string, items schemas.StorageSnapshot, clear bool) (string, error) {
	blob, err := json.MarshalToString(items)
	if err != nil {
		return "", err
	}
	clearStmt := ""
	if clear {
		clearStmt = "s.clear();"
	}
	return fmt.Sprintf(`(function() {
	var items = %s;
	try {
		var s = window.%s;
		if (!s) { return -1; }
		%s
		var n = 0;
		for (var k in items) {
			if (Object.prototype.hasOwnProperty.call(items, k)) { s.setItem(k, items[k]); n++; }
		}
		return n;
	} catch (e) { return -1; }
})()`, blob, kind, clearStmt), nil
}

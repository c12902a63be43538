package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// cookieTimeout bounds one cookie operation.
const cookieTimeout = 10 * time.Second

// doCookies serves the cookies verb against the session's own cookie
// partition: list, get, set, delete, clear.
func (m *Manager) doCookies(ctx context.Context, c *ast.CookiesCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}

	op := c.Op
	if op == "" {
		op = ast.OpList
	}
	switch op {
	case ast.OpList:
		cookies, err := m.readCookies(ctx, t)
		if err != nil {
			return nil, err
		}
		return schemas.DataResponse(schemas.DataCookies, cookies)

	case ast.OpGet:
		cookies, err := m.readCookies(ctx, t)
		if err != nil {
			return nil, err
		}
		for _, ck := range cookies {
			if ck.Name == c.Name {
				return &schemas.Response{Status: schemas.StatusOK, Value: ck.Value}, nil
			}
		}
		return nil, &schemas.ExecError{
			Code:    schemas.CodeElementNotFound,
			Message: fmt.Sprintf("no cookie %q", c.Name),
			Details: schemas.ErrorDetails{Value: c.Name},
		}

	case ast.OpSet:
		if c.Name == "" {
			return nil, &schemas.ExecError{Code: schemas.CodeInvalidRequest, Message: "cookies set needs a name"}
		}
		loc, err := m.currentLocation(ctx, t)
		if err != nil {
			return nil, err
		}
		param := &network.CookieParam{Name: c.Name, Value: c.Value, URL: loc}
		err = m.runCookieAction(ctx, t, chromedp.ActionFunc(func(cc context.Context) error {
			return storage.SetCookies([]*network.CookieParam{param}).
				WithBrowserContextID(t.sess.browserContextID).
				Do(cc)
		}))
		if err != nil {
			return nil, asScannerError("set cookie", err)
		}
		return schemas.OKResponse("cookies"), nil

	case ast.OpDelete:
		if c.Name == "" {
			return nil, &schemas.ExecError{Code: schemas.CodeInvalidRequest, Message: "cookies delete needs a name"}
		}
		loc, err := m.currentLocation(ctx, t)
		if err != nil {
			return nil, err
		}
		err = m.runCookieAction(ctx, t, chromedp.ActionFunc(func(cc context.Context) error {
			return network.DeleteCookies(c.Name).WithURL(loc).Do(cc)
		}))
		if err != nil {
			return nil, asScannerError("delete cookie", err)
		}
		return schemas.OKResponse("cookies"), nil

	case ast.OpClear:
		err := m.runCookieAction(ctx, t, chromedp.ActionFunc(func(cc context.Context) error {
			return storage.ClearCookies().
				WithBrowserContextID(t.sess.browserContextID).
				Do(cc)
		}))
		if err != nil {
			return nil, asScannerError("clear cookies", err)
		}
		return schemas.OKResponse("cookies"), nil
	}

	return nil, &schemas.ExecError{
		Code:    schemas.CodeInvalidRequest,
		Message: fmt.Sprintf("unknown cookies operation %q", c.Op),
		Details: schemas.ErrorDetails{Value: c.Op},
	}
}

// readCookies snapshots the session's cookie partition.
func (m *Manager) readCookies(ctx context.Context, t *tab) ([]schemas.Cookie, error) {
	var raw []*network.Cookie
	err := m.runCookieAction(ctx, t, chromedp.ActionFunc(func(cc context.Context) (err error) {
		raw, err = storage.GetCookies().
			WithBrowserContextID(t.sess.browserContextID).
			Do(cc)
		return err
	}))
	if err != nil {
		return nil, asScannerError("read cookies", err)
	}

	out := make([]schemas.Cookie, 0, len(raw))
	for _, ck := range raw {
		exp := ck.Expires
		if ck.Session || exp < 0 {
			exp = 0
		}
		out = append(out, schemas.Cookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Expires:  exp,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: string(ck.SameSite),
		})
	}
	return out, nil
}

func (m *Manager) runCookieAction(ctx context.Context, t *tab, action chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(ctx, cookieTimeout)
	defer cancel()
	return t.run(opCtx, action)
}

// currentLocation reads the page URL that scopes cookie writes.
func (m *Manager) currentLocation(ctx context.Context, t *tab) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, m.engine.evalTimeout())
	defer cancel()
	var loc string
	if err := t.run(opCtx, chromedp.Location(&loc)); err != nil {
		return "", asScannerError("read location", err)
	}
	return loc, nil
}

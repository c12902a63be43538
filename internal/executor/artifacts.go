package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// runScreenshot captures the page, or just one element when a target is
// given: the element's box becomes the capture clip.
func (e *Executor) runScreenshot(ctx context.Context, c *ast.ScreenshotCmd) (*schemas.Response, error) {
	opts := schemas.ScreenshotOptions{
		Output:   c.Output,
		Format:   strings.ToLower(c.Format),
		FullPage: c.FullPage,
	}
	if opts.Output == "" {
		ext := opts.Format
		if ext == "" {
			ext = "png"
		}
		opts.Output = "screenshot." + ext
	}
	if c.Target != nil {
		boxed, err := e.runWire(ctx, &ast.BoxCmd{Target: *c.Target})
		if err != nil {
			return nil, err
		}
		if boxed.Rect == nil {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeScannerError,
				Message: "element has no bounding box to capture",
			}
		}
		opts.Clip = boxed.Rect
	}
	return e.host.Screenshot(ctx, opts)
}

// runPDF renders the page to PDF. Margin arrives as text from the
// parser and must be a non-negative inch count.
func (e *Executor) runPDF(ctx context.Context, c *ast.PDFCmd) (*schemas.Response, error) {
	opts := schemas.PDFOptions{
		Path:      c.Path,
		Format:    strings.ToLower(c.Format),
		Landscape: c.Landscape,
	}
	if opts.Path == "" {
		opts.Path = "page.pdf"
	}
	if c.Margin != "" {
		m, err := strconv.ParseFloat(c.Margin, 64)
		if err != nil || m < 0 {
			return nil, &schemas.ExecError{
				Code:    schemas.CodeInvalidRequest,
				Message: fmt.Sprintf("--margin must be a non-negative inch count, not %q", c.Margin),
				Details: schemas.ErrorDetails{Value: c.Margin},
			}
		}
		opts.Margin = m
	}
	return e.host.PDF(ctx, opts)
}

// runState saves or restores session state through the state store.
// --domain narrows cookies, --cookies-only drops storage and the URL so
// a load will not navigate.
func (e *Executor) runState(ctx context.Context, c *ast.StateCmd) (*schemas.Response, error) {
	if e.states == nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeNotSupported,
			Message: "state files are disabled; configure state.dir",
		}
	}
	switch c.Op {
	case "save":
		st, err := e.host.SessionState(ctx, c.IncludeSession)
		if err != nil {
			return nil, err
		}
		applyStateFilters(st, c)
		path, err := e.states.Save(c.Path, st)
		if err != nil {
			return nil, err
		}
		resp := schemas.OKResponse("state")
		resp.Text = fmt.Sprintf("saved %d cookie(s) to %s", len(st.Cookies), path)
		return resp, nil

	case "load":
		st, path, err := e.states.Load(c.Path)
		if err != nil {
			return nil, err
		}
		applyStateFilters(st, c)
		if err := e.host.ApplySessionState(ctx, st, c.Merge); err != nil {
			return nil, err
		}
		resp := schemas.OKResponse("state")
		resp.Navigation = st.URL != ""
		resp.Text = fmt.Sprintf("loaded %d cookie(s) from %s", len(st.Cookies), path)
		return resp, nil

	default:
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("state %s: expected save or load", c.Op),
		}
	}
}

func applyStateFilters(st *schemas.SessionState, c *ast.StateCmd) {
	if c.Domain != "" {
		kept := st.Cookies[:0]
		for _, ck := range st.Cookies {
			if cookieMatchesDomain(ck.Domain, c.Domain) {
				kept = append(kept, ck)
			}
		}
		st.Cookies = kept
	}
	if c.CookiesOnly {
		st.LocalStorage = nil
		st.SessionStorage = nil
		st.URL = ""
	}
}

// cookieMatchesDomain keeps a cookie when it belongs to the requested
// domain, to one of its subdomains, or to a parent domain that covers
// it (a ".example.com" cookie matches a filter of app.example.com).
func cookieMatchesDomain(cookieDomain, want string) bool {
	cd := strings.ToLower(strings.TrimPrefix(cookieDomain, "."))
	want = strings.ToLower(strings.TrimPrefix(want, "."))
	if cd == "" || want == "" {
		return cd == want
	}
	return cd == want ||
		strings.HasSuffix(cd, "."+want) ||
		strings.HasSuffix(want, "."+cd)
}

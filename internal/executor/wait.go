package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
	"github.com/xkilldash9x/oil-cli/internal/translator"
)

const (
	defaultWaitTimeout  = 10 * time.Second
	defaultWaitInterval = 100 * time.Millisecond
)

// waitTimeout picks the effective deadline: the command's own --timeout,
// else the configured default, else the built-in one.
func (e *Executor) waitTimeout(cmd ast.Duration) time.Duration {
	if cmd > 0 {
		return time.Duration(cmd.Millis()) * time.Millisecond
	}
	if e.cfg != nil && e.cfg.Executor.WaitTimeout > 0 {
		return e.cfg.Executor.WaitTimeout
	}
	return defaultWaitTimeout
}

func (e *Executor) waitInterval() time.Duration {
	if e.cfg != nil && e.cfg.Executor.WaitInterval > 0 {
		return e.cfg.Executor.WaitInterval
	}
	return defaultWaitInterval
}

// runWait polls a wait condition until it holds. The engine only ever
// checks once per request; pacing lives here, on a rate limiter, so a
// slow engine round-trip never stacks probes.
func (e *Executor) runWait(ctx context.Context, c *ast.WaitCmd) (*schemas.Response, error) {
	req, err := translator.Translate(c)
	if err != nil {
		return nil, err
	}
	wreq, ok := req.(*schemas.WaitRequest)
	if !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInternalError,
			Message: fmt.Sprintf("wait translated to %T", req),
		}
	}

	timeout := e.waitTimeout(c.Timeout)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lim := rate.NewLimiter(rate.Every(e.waitInterval()), 1)
	start := time.Now()
	for {
		if err := lim.Wait(waitCtx); err != nil {
			break
		}
		resp, perr := e.process(waitCtx, wreq)
		if perr != nil {
			if waitCtx.Err() != nil {
				break
			}
			return nil, perr
		}
		if resp.Condition != nil && *resp.Condition {
			resp.WaitedMs = time.Since(start).Milliseconds()
			return resp, nil
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &schemas.ExecError{
		Code: schemas.CodeTimeout,
		Message: fmt.Sprintf("wait %s timed out after %dms",
			describeWait(c.Cond), timeout.Milliseconds()),
	}
}

// describeWait renders a condition for error messages.
func describeWait(cond ast.WaitCondition) string {
	parts := []string{string(cond.Kind)}
	switch {
	case cond.Target != nil:
		parts = append(parts, cond.Target.String())
	case cond.Selector != "":
		parts = append(parts, fmt.Sprintf("%q", cond.Selector))
	case cond.Pattern != "":
		parts = append(parts, fmt.Sprintf("%q", cond.Pattern))
	case cond.Expr != "":
		parts = append(parts, fmt.Sprintf("(%s)", cond.Expr))
	}
	if cond.Kind == ast.WaitItems && cond.Count > 0 {
		parts = append(parts, fmt.Sprintf(">= %g", cond.Count))
	}
	return strings.Join(parts, " ")
}

// runScrollUntil scrolls toward a target that may not be on the page
// yet, rescanning between steps because scrolling is exactly what makes
// lazy content appear. Stops early after the page bottom is seen twice
// with no match.
func (e *Executor) runScrollUntil(ctx context.Context, c *ast.ScrollUntilCmd) (*schemas.Response, error) {
	timeout := e.waitTimeout(c.Timeout)
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	step := &schemas.ScrollRequest{Cmd: schemas.CmdScroll, Direction: "down"}
	if c.Amount != nil {
		step.Amount = *c.Amount
	} else {
		step.Page = true
	}

	lim := rate.NewLimiter(rate.Every(e.waitInterval()), 1)
	start := time.Now()
	bottomSeen := 0
	scrolls := 0
	for {
		m, err := e.freshScan(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				break
			}
			return nil, err
		}
		probe := &ast.ScrollCmd{Target: &c.Target}
		resolved, err := e.res.Resolve(waitCtx, probe, m)
		if err == nil {
			req, terr := translator.Translate(resolved)
			if terr != nil {
				return nil, terr
			}
			resp, perr := e.process(waitCtx, req)
			if perr != nil {
				return nil, perr
			}
			resp.WaitedMs = time.Since(start).Milliseconds()
			return resp, nil
		}
		if !resolveMiss(err) {
			return nil, err
		}
		if bottomSeen >= 2 {
			return nil, &schemas.ExecError{
				Code: schemas.CodeElementNotFound,
				Message: fmt.Sprintf("%s not found after scrolling to the bottom (%d steps)",
					c.Target.String(), scrolls),
			}
		}

		resp, perr := e.process(waitCtx, step)
		if perr != nil {
			if waitCtx.Err() != nil {
				break
			}
			return nil, perr
		}
		scrolls++
		if s := resp.Scroll; s != nil && s.Y >= s.MaxY {
			bottomSeen++
		} else {
			bottomSeen = 0
		}
		if err := lim.Wait(waitCtx); err != nil {
			break
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &schemas.ExecError{
		Code: schemas.CodeTimeout,
		Message: fmt.Sprintf("scroll until %s timed out after %dms",
			c.Target.String(), timeout.Milliseconds()),
	}
}

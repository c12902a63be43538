package executor

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
	"github.com/xkilldash9x/oil-cli/internal/resolver"
	"github.com/xkilldash9x/oil-cli/internal/translator"
)

// resolveMiss reports a not-found resolution outcome. The resolver
// raises its own error type, so this is not the same check as an
// engine-side ELEMENT_NOT_FOUND.
func resolveMiss(err error) bool {
	var se *resolver.SemanticError
	if errors.As(err, &se) {
		return se.Code == schemas.CodeElementNotFound
	}
	return schemas.IsCode(err, schemas.CodeElementNotFound)
}

// runWire executes an in-page command: resolve its target against the
// element map when needed, translate, send. Two recovery paths exist,
// one retry each:
//
//   - resolution against a cached map finds nothing: rescan and resolve
//     again, since the page may have changed without telling us;
//   - the engine reports the element stale after resolution: the map
//     aged between scan and action, so rescan, re-resolve, resend.
func (e *Executor) runWire(ctx context.Context, cmd ast.Command) (*schemas.Response, error) {
	wireCmd := cmd
	if resolver.NeedsResolution(cmd) {
		m, cached, err := e.ensureScan(ctx, false)
		if err != nil {
			return nil, err
		}
		resolved, err := e.res.Resolve(ctx, cmd, m)
		if err != nil && cached && resolveMiss(err) {
			e.log.Debug("resolution missed cached map, rescanning",
				zap.String("command", cmd.Name()))
			if m, _, err = e.ensureScan(ctx, true); err != nil {
				return nil, err
			}
			resolved, err = e.res.Resolve(ctx, cmd, m)
		}
		if err != nil {
			return nil, err
		}
		wireCmd = resolved
	}

	req, err := translator.Translate(wireCmd)
	if err != nil {
		return nil, err
	}
	resp, err := e.process(ctx, req)
	if err != nil && schemas.IsCode(err, schemas.CodeElementStale) && resolver.NeedsResolution(cmd) {
		e.log.Debug("element went stale, retrying with a fresh map",
			zap.String("command", cmd.Name()))
		m, _, serr := e.ensureScan(ctx, true)
		if serr != nil {
			return nil, serr
		}
		resolved, rerr := e.res.Resolve(ctx, cmd, m)
		if rerr != nil {
			return nil, rerr
		}
		if req, rerr = translator.Translate(resolved); rerr != nil {
			return nil, rerr
		}
		resp, err = e.process(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if _, ok := wireCmd.(*ast.ObserveCmd); ok {
		e.cacheScan(resp)
	}
	return resp, nil
}

// process sends one request and lifts error responses into typed errors.
func (e *Executor) process(ctx context.Context, req schemas.Request) (*schemas.Response, error) {
	resp, err := e.host.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	if rerr := resp.Err(); rerr != nil {
		return nil, rerr
	}
	return resp, nil
}

// ensureScan returns the current element map, scanning when the cache
// is missing, outdated, or force is set. The second return reports
// whether the map came from cache.
func (e *Executor) ensureScan(ctx context.Context, force bool) (*resolver.ElementMap, bool, error) {
	if !force {
		e.mu.Lock()
		if e.scan != nil && e.scan.Generation() == e.generation {
			m := e.scan
			e.mu.Unlock()
			return m, true, nil
		}
		e.mu.Unlock()
	}
	resp, err := e.process(ctx, &schemas.ScanRequest{Cmd: schemas.CmdScan})
	if err != nil {
		return nil, false, err
	}
	return e.cacheScan(resp), false, nil
}

// freshScan forces a rescan, for flows that must see the page as it is
// right now.
func (e *Executor) freshScan(ctx context.Context) (*resolver.ElementMap, error) {
	m, _, err := e.ensureScan(ctx, true)
	return m, err
}

// cacheScan stores a scan response as the current element map.
func (e *Executor) cacheScan(resp *schemas.Response) *resolver.ElementMap {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := resolver.NewElementMap(e.generation, resolver.Snapshot{
		Elements: resp.Elements,
		Page:     resp.Page,
		Patterns: resp.Patterns,
	})
	e.scan = m
	return m
}

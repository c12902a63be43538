package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/oil-cli/api/schemas"
	"github.com/xkilldash9x/oil-cli/internal/ast"
)

// emulateTimeout bounds one emulation override.
const emulateTimeout = 10 * time.Second

// applyDevice pushes a device descriptor onto the current target:
// metrics, touch, and the user agent when the descriptor carries one.
func applyDevice(ctx context.Context, d *schemas.DeviceDescriptor) error {
	if err := emulation.SetDeviceMetricsOverride(d.Width, d.Height, d.Scale, d.Mobile).
		WithScreenOrientation(orientationFor(d.Width, d.Height)).
		Do(ctx); err != nil {
		return fmt.Errorf("set device metrics: %w", err)
	}
	if err := emulation.SetTouchEmulationEnabled(d.Touch).Do(ctx); err != nil {
		return fmt.Errorf("set touch emulation: %w", err)
	}
	if d.UserAgent != "" {
		if err := emulation.SetUserAgentOverride(d.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	return nil
}

func orientationFor(width, height int64) *emulation.ScreenOrientation {
	typ := emulation.OrientationTypeLandscapePrimary
	if height > width {
		typ = emulation.OrientationTypePortraitPrimary
	}
	return &emulation.ScreenOrientation{Type: typ, Angle: 0}
}

// doViewport resizes the viewport. The size sticks to the session, so
// tabs opened later inherit it.
func (m *Manager) doViewport(ctx context.Context, c *ast.ViewportCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	w, wok := ast.CoerceInt(c.Width)
	h, hok := ast.CoerceInt(c.Height)
	if !wok || !hok || w <= 0 || h <= 0 {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("viewport needs positive integer dimensions, got %gx%g", c.Width, c.Height),
		}
	}

	d := &schemas.DeviceDescriptor{Name: "custom", Width: int64(w), Height: int64(h), Scale: 1}
	opCtx, cancel := context.WithTimeout(ctx, emulateTimeout)
	defer cancel()
	err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
		return applyDevice(cc, d)
	}))
	if err != nil {
		return nil, asScannerError("set viewport", err)
	}
	t.sess.setDevice(d)
	return schemas.OKResponse("viewport"), nil
}

// doDevice switches to a named device from the table, or resets
// emulation when called bare.
func (m *Manager) doDevice(ctx context.Context, c *ast.DeviceCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	s := t.sess

	opCtx, cancel := context.WithTimeout(ctx, emulateTimeout)
	defer cancel()

	if c.Device == "" {
		err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
			if err := emulation.ClearDeviceMetricsOverride().Do(cc); err != nil {
				return err
			}
			if err := emulation.SetTouchEmulationEnabled(false).Do(cc); err != nil {
				return err
			}
			// An empty override string hands the user agent back to the
			// browser default (or the configured one).
			return emulation.SetUserAgentOverride(m.cfg.Browser.UserAgent).Do(cc)
		}))
		if err != nil {
			return nil, asScannerError("reset device emulation", err)
		}
		s.setDevice(nil)
		return schemas.OKResponse("device"), nil
	}

	d, ok := deviceByName(c.Device)
	if !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown device %q", c.Device),
			Details: schemas.ErrorDetails{Value: c.Device},
		}
	}
	err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
		return applyDevice(cc, &d)
	}))
	if err != nil {
		return nil, asScannerError("apply device emulation", err)
	}
	s.setDevice(&d)
	return schemas.OKResponse("device"), nil
}

// doDevices lists the built-in emulation table.
func (m *Manager) doDevices() (*schemas.Response, error) {
	return schemas.DataResponse(schemas.DataDevices, deviceTable)
}

// doMedia overrides one emulated media feature, or resets every
// override when called bare. "media print" and "media screen" switch
// the emulated media type instead of a feature.
func (m *Manager) doMedia(ctx context.Context, c *ast.MediaCmd) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	s := t.sess

	opCtx, cancel := context.WithTimeout(ctx, emulateTimeout)
	defer cancel()

	if c.Feature == "" {
		err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
			return emulation.SetEmulatedMedia().Do(cc)
		}))
		if err != nil {
			return nil, asScannerError("reset media emulation", err)
		}
		s.clearMedia()
		return schemas.OKResponse("media"), nil
	}

	feature, value := c.Feature, c.Value
	if value == "" && (feature == "print" || feature == "screen") {
		feature, value = "media", feature
	}
	overrides := s.setMediaFeature(feature, value)

	err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
		return mediaParams(overrides).Do(cc)
	}))
	if err != nil {
		return nil, asScannerError("apply media emulation", err)
	}
	return schemas.OKResponse("media"), nil
}

// mediaParams folds the session's override set into one CDP call. The
// "media" key is the emulated type; everything else is a feature.
func mediaParams(overrides map[string]string) *emulation.SetEmulatedMediaParams {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	p := emulation.SetEmulatedMedia()
	features := make([]*emulation.MediaFeature, 0, len(names))
	for _, name := range names {
		if name == "media" {
			p = p.WithMedia(overrides[name])
			continue
		}
		features = append(features, &emulation.MediaFeature{Name: name, Value: overrides[name]})
	}
	if len(features) > 0 {
		p = p.WithFeatures(features)
	}
	return p
}

// -- sticky emulation state --

func (s *session) setDevice(d *schemas.DeviceDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = d
}

// setMediaFeature updates one override and returns a snapshot of the
// full set. An empty value removes the override.
func (s *session) setMediaFeature(name, value string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media == nil {
		s.media = make(map[string]string)
	}
	if value == "" {
		delete(s.media, name)
	} else {
		s.media[name] = value
	}
	snap := make(map[string]string, len(s.media))
	for k, v := range s.media {
		snap[k] = v
	}
	return snap
}

func (s *session) mediaSnapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.media) == 0 {
		return nil
	}
	snap := make(map[string]string, len(s.media))
	for k, v := range s.media {
		snap[k] = v
	}
	return snap
}

func (s *session) clearMedia() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = nil
}

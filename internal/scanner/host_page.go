package scanner

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

// renderTimeout bounds screenshot and PDF captures; full-page renders of
// long documents are the slow path.
const renderTimeout = 30 * time.Second

// paperSizes maps the pdf format word to width x height in inches.
var paperSizes = map[string][2]float64{
	"a4":      {8.27, 11.69},
	"letter":  {8.5, 11},
	"legal":   {8.5, 14},
	"tabloid": {11, 17},
}

// Screenshot captures the active tab. With an output path the image is
// written to disk; without one it rides back base64-encoded in Value.
func (m *Manager) Screenshot(ctx context.Context, opts schemas.ScreenshotOptions) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}
	format, err := screenshotFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	var buf []byte
	err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
		params := page.CaptureScreenshot().WithFormat(format)
		if format != page.CaptureScreenshotFormatPng {
			params = params.WithQuality(90)
		}

		switch {
		case opts.FullPage:
			// Clip to the laid-out document so scrolled-out content is
			// included.
			_, _, contentSize, _, _, cssContentSize, err := page.GetLayoutMetrics().Do(cc)
			if err != nil {
				return fmt.Errorf("read layout metrics: %w", err)
			}
			if cssContentSize == nil {
				cssContentSize = contentSize
			}
			if cssContentSize == nil {
				return fmt.Errorf("page reported no content size")
			}
			params = params.
				WithCaptureBeyondViewport(true).
				WithFromSurface(true).
				WithClip(&page.Viewport{
					X:      cssContentSize.X,
					Y:      cssContentSize.Y,
					Width:  cssContentSize.Width,
					Height: cssContentSize.Height,
					Scale:  1,
				})
		case opts.Clip != nil:
			params = params.
				WithCaptureBeyondViewport(true).
				WithClip(&page.Viewport{
					X:      opts.Clip.X,
					Y:      opts.Clip.Y,
					Width:  opts.Clip.Width,
					Height: opts.Clip.Height,
					Scale:  1,
				})
		}

		var err error
		buf, err = params.Do(cc)
		return err
	}))
	if err != nil {
		return nil, asScannerError("capture screenshot", err)
	}

	resp := schemas.OKResponse("screenshot")
	if opts.Output == "" {
		resp.Value = base64.StdEncoding.EncodeToString(buf)
		return resp, nil
	}
	if err := writeArtifact(opts.Output, buf); err != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeIOError,
			Message: fmt.Sprintf("write screenshot: %v", err),
		}
	}
	resp.Text = fmt.Sprintf("saved screenshot to %s (%d bytes)", opts.Output, len(buf))
	return resp, nil
}

// PDF renders the active tab to a PDF file.
func (m *Manager) PDF(ctx context.Context, opts schemas.PDFOptions) (*schemas.Response, error) {
	t, err := m.activeTab()
	if err != nil {
		return nil, err
	}

	size, ok := paperSizes[strings.ToLower(opts.Format)]
	if opts.Format != "" && !ok {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeInvalidRequest,
			Message: fmt.Sprintf("unknown paper format %q", opts.Format),
			Details: schemas.ErrorDetails{Value: opts.Format},
		}
	}
	if opts.Format == "" {
		size = paperSizes["a4"]
	}

	path := opts.Path
	if path == "" {
		path = "page.pdf"
	}

	opCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	var buf []byte
	err = t.run(opCtx, chromedp.ActionFunc(func(cc context.Context) error {
		params := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(size[0]).
			WithPaperHeight(size[1]).
			WithLandscape(opts.Landscape)
		if opts.Margin > 0 {
			params = params.
				WithMarginTop(opts.Margin).
				WithMarginBottom(opts.Margin).
				WithMarginLeft(opts.Margin).
				WithMarginRight(opts.Margin)
		}
		var err error
		buf, _, err = params.Do(cc)
		return err
	}))
	if err != nil {
		return nil, asScannerError("render pdf", err)
	}

	if err := writeArtifact(path, buf); err != nil {
		return nil, &schemas.ExecError{
			Code:    schemas.CodeIOError,
			Message: fmt.Sprintf("write pdf: %v", err),
		}
	}
	resp := schemas.OKResponse("pdf")
	resp.Text = fmt.Sprintf("saved pdf to %s (%d bytes)", path, len(buf))
	return resp, nil
}

// screenshotFormat validates the requested image format.
func screenshotFormat(f string) (page.CaptureScreenshotFormat, error) {
	switch strings.ToLower(f) {
	case "", "png":
		return page.CaptureScreenshotFormatPng, nil
	case "jpeg", "jpg":
		return page.CaptureScreenshotFormatJpeg, nil
	case "webp":
		return page.CaptureScreenshotFormatWebp, nil
	}
	return "", &schemas.ExecError{
		Code:    schemas.CodeInvalidRequest,
		Message: fmt.Sprintf("screenshot format must be png, jpeg, or webp, got %q", f),
		Details: schemas.ErrorDetails{Value: f},
	}
}

// writeArtifact writes a captured file, creating parent directories.
func writeArtifact(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

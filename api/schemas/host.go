package schemas

import "time"

// -- Host Surface Types --
//
// Types for operations the session host serves natively (outside the
// in-page engine) and for the list payloads host and app surfaces return
// through Response.Data.

// Data payload kinds. A list-style response stamps one of these in its
// Action field so the formatter knows how to decode Data.
const (
	DataCookies  = "cookies"
	DataTabs     = "tabs"
	DataFrames   = "frames"
	DataConsole  = "console"
	DataErrors   = "errors"
	DataRequests = "requests"
	DataDevices  = "devices"
	DataSessions = "sessions"
	DataKeys     = "keys"
	DataIntents  = "intents"
	DataPacks    = "packs"
	DataStorage  = "storage"
	DataHeaders  = "headers"
)

// ScreenshotOptions control a host screenshot capture.
type ScreenshotOptions struct {
	Output   string // destination file; empty keeps the image in the response
	Format   string // png (default), jpeg, webp
	FullPage bool
	Clip     *Rect
}

// PDFOptions control host PDF rendering.
type PDFOptions struct {
	Path      string
	Format    string  // paper size: a4 (default), letter, legal, tabloid
	Landscape bool
	Margin    float64 // inches, applied to all four sides
}

// DeviceDescriptor is one entry of the built-in device emulation table.
type DeviceDescriptor struct {
	Name      string  `json:"name"`
	Width     int64   `json:"width"`
	Height    int64   `json:"height"`
	Scale     float64 `json:"scale"`
	Mobile    bool    `json:"mobile"`
	Touch     bool    `json:"touch"`
	UserAgent string  `json:"user_agent,omitempty"`
}

// CapturedRequest is one entry of the network capture log.
type CapturedRequest struct {
	When    time.Time `json:"when"`
	Method  string    `json:"method"`
	URL     string    `json:"url"`
	Status  int       `json:"status,omitempty"`
	Type    string    `json:"type,omitempty"` // document, xhr, fetch, script, ...
	Size    int64     `json:"size,omitempty"`
	TookMs  int64     `json:"took_ms,omitempty"`
	Blocked bool      `json:"blocked,omitempty"`
	Body    string    `json:"body,omitempty"`
}

// IntentInfo summarizes one registered intent for listings.
type IntentInfo struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
	Lines  int      `json:"lines"`
	Source string   `json:"source"` // "builtin", "session", or a pack name
}

// PackInfo summarizes one intent pack.
type PackInfo struct {
	Name    string `json:"name"`
	Loaded  bool   `json:"loaded"`
	Intents int    `json:"intents"`
	Path    string `json:"path,omitempty"`
}

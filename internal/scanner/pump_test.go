package scanner

import (
	"testing"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	capnet "github.com/xkilldash9x/oil-cli/internal/network"
)

// newEventTab builds a tab whose event handlers can run without a
// browser behind them.
func newEventTab() *tab {
	s := &session{
		mgr:     &Manager{capture: capnet.NewCapture(8, false)},
		console: newConsoleBuffer(16),
		errors:  newErrorBuffer(16),
	}
	return &tab{
		sess:          s,
		log:           zap.NewNop(),
		frameContexts: make(map[cdp.FrameID]cdpruntime.ExecutionContextID),
		pending:       make(map[network.RequestID]*pendingRequest),
	}
}

func TestFormatStack(t *testing.T) {
	assert.Equal(t, "", formatStack(nil))
	assert.Equal(t, "", formatStack(&cdpruntime.StackTrace{}))

	st := &cdpruntime.StackTrace{CallFrames: []*cdpruntime.CallFrame{
		{FunctionName: "doWork", URL: "https://app.test/main.js", LineNumber: 9, ColumnNumber: 4},
		{FunctionName: "", URL: "https://app.test/main.js", LineNumber: 0, ColumnNumber: 0},
	}}
	want := "    at doWork (https://app.test/main.js:10:5)\n" +
		"    at <anonymous> (https://app.test/main.js:1:1)"
	assert.Equal(t, want, formatStack(st))
}

func TestHandleConsoleJoinsArguments(t *testing.T) {
	tb := newEventTab()
	tb.handleConsole(&cdpruntime.EventConsoleAPICalled{
		Type:      cdpruntime.APITypeLog,
		Timestamp: new(cdpruntime.Timestamp),
		Args: []*cdpruntime.RemoteObject{
			{Type: cdpruntime.TypeString, Value: []byte(`"hello"`)},
			{Type: cdpruntime.TypeNumber, Value: []byte(`42`)},
			{Type: cdpruntime.TypeObject, Description: "Uint8Array(3)"},
			{Type: cdpruntime.TypeSymbol},
		},
	})

	entries := tb.sess.console.list("", "", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello 42 Uint8Array(3) [symbol]", entries[0].Text)
	assert.Equal(t, "log", entries[0].Level)
	assert.Equal(t, "console-api", entries[0].Source)
}

func TestHandleLogEntry(t *testing.T) {
	tb := newEventTab()
	tb.handleLogEntry(&cdplog.EventEntryAdded{})
	tb.handleLogEntry(&cdplog.EventEntryAdded{Entry: &cdplog.Entry{
		Source:    cdplog.SourceNetwork,
		Level:     cdplog.LevelWarning,
		Text:      "Mixed Content: the page requested an insecure resource",
		Timestamp: new(cdpruntime.Timestamp),
	}})

	entries := tb.sess.console.list("", "", 0)
	require.Len(t, entries, 1)
	assert.Equal(t, "warning", entries[0].Level)
	assert.Equal(t, "network", entries[0].Source)
}

func TestHandleExceptionPrefersDescription(t *testing.T) {
	tb := newEventTab()
	tb.handleException(&cdpruntime.EventExceptionThrown{Timestamp: new(cdpruntime.Timestamp)})
	tb.handleException(&cdpruntime.EventExceptionThrown{
		Timestamp: new(cdpruntime.Timestamp),
		ExceptionDetails: &cdpruntime.ExceptionDetails{
			Text:         "Uncaught",
			URL:          "https://app.test/boom.js",
			LineNumber:   3,
			ColumnNumber: 7,
			Exception:    &cdpruntime.RemoteObject{Description: "TypeError: x is not a function"},
			StackTrace: &cdpruntime.StackTrace{CallFrames: []*cdpruntime.CallFrame{
				{FunctionName: "boom", URL: "https://app.test/boom.js", LineNumber: 2, ColumnNumber: 6},
			}},
		},
	})

	errs := tb.sess.errors.list(0)
	require.Len(t, errs, 1)
	assert.Equal(t, "TypeError: x is not a function", errs[0].Message)
	assert.Equal(t, "https://app.test/boom.js", errs[0].URL)
	assert.Equal(t, int64(3), errs[0].Line)
	assert.Equal(t, int64(7), errs[0].Column)
	assert.Equal(t, "    at boom (https://app.test/boom.js:3:7)", errs[0].Stack)
}

func TestHandleExceptionFallsBackToText(t *testing.T) {
	tb := newEventTab()
	tb.handleException(&cdpruntime.EventExceptionThrown{
		Timestamp:        new(cdpruntime.Timestamp),
		ExceptionDetails: &cdpruntime.ExceptionDetails{Text: "Uncaught"},
	})

	errs := tb.sess.errors.list(0)
	require.Len(t, errs, 1)
	assert.Equal(t, "Uncaught", errs[0].Message)
	assert.Equal(t, "", errs[0].Stack)
}

func TestContextTracking(t *testing.T) {
	tb := newEventTab()
	tb.handleContextCreated(&cdpruntime.EventExecutionContextCreated{
		Context: &cdpruntime.ExecutionContextDescription{
			ID:      41,
			AuxData: []byte(`{"frameId":"F1","isDefault":true}`),
		},
	})
	// Non-default contexts (isolated worlds) and unparseable aux data are
	// not frame contexts.
	tb.handleContextCreated(&cdpruntime.EventExecutionContextCreated{
		Context: &cdpruntime.ExecutionContextDescription{
			ID:      99,
			AuxData: []byte(`{"frameId":"F2","isDefault":false}`),
		},
	})
	tb.handleContextCreated(&cdpruntime.EventExecutionContextCreated{
		Context: &cdpruntime.ExecutionContextDescription{ID: 7, AuxData: []byte(`not json`)},
	})

	assert.Len(t, tb.frameContexts, 1)
	assert.Equal(t, cdpruntime.ExecutionContextID(41), tb.frameContexts["F1"])

	// The main frame always evaluates in the default context.
	assert.Equal(t, cdpruntime.ExecutionContextID(0), tb.frameContextID())
	tb.frameID = "F1"
	assert.Equal(t, cdpruntime.ExecutionContextID(41), tb.frameContextID())

	tb.handleContextDestroyed(&cdpruntime.EventExecutionContextDestroyed{ExecutionContextID: 41})
	assert.Empty(t, tb.frameContexts)
	assert.Equal(t, cdpruntime.ExecutionContextID(0), tb.frameContextID())

	tb.frameContexts["F3"] = 5
	tb.handleContextsCleared()
	assert.Empty(t, tb.frameContexts)
}

func TestFrameDetachedFallsBackToMain(t *testing.T) {
	tb := newEventTab()
	tb.frameContexts["F9"] = 12
	tb.frameID = "F9"

	tb.handleFrameDetached(&page.EventFrameDetached{FrameID: "other"})
	assert.Equal(t, cdp.FrameID("F9"), tb.frameID)

	tb.handleFrameDetached(&page.EventFrameDetached{FrameID: "F9"})
	assert.Equal(t, cdp.FrameID(""), tb.frameID)
	assert.NotContains(t, tb.frameContexts, cdp.FrameID("F9"))
}

func TestNetworkCaptureFlow(t *testing.T) {
	tb := newEventTab()
	tb.handleRequestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "req-1",
		Type:      network.ResourceTypeDocument,
		Request:   &network.Request{URL: "https://app.test/", Method: "GET"},
	})
	tb.handleResponseReceived(&network.EventResponseReceived{
		RequestID: "req-1",
		Response:  &network.Response{Status: 200, MimeType: "text/html"},
	})
	tb.handleLoadingFinished(&network.EventLoadingFinished{
		RequestID:         "req-1",
		EncodedDataLength: 5120,
	})

	reqs := tb.sess.mgr.capture.List("", "", 0)
	require.Len(t, reqs, 1)
	assert.Equal(t, "GET", reqs[0].Method)
	assert.Equal(t, "https://app.test/", reqs[0].URL)
	assert.Equal(t, 200, reqs[0].Status)
	assert.Equal(t, "document", reqs[0].Type)
	assert.Equal(t, int64(5120), reqs[0].Size)
	assert.False(t, reqs[0].Blocked)
	assert.Empty(t, tb.pending)
}

func TestRedirectRecordsEachLeg(t *testing.T) {
	tb := newEventTab()
	tb.handleRequestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "req-2",
		Type:      network.ResourceTypeDocument,
		Request:   &network.Request{URL: "http://app.test/old", Method: "GET"},
	})
	// A redirect reuses the request ID and reports the first leg's status.
	tb.handleRequestWillBeSent(&network.EventRequestWillBeSent{
		RequestID:        "req-2",
		Type:             network.ResourceTypeDocument,
		Request:          &network.Request{URL: "https://app.test/new", Method: "GET"},
		RedirectResponse: &network.Response{Status: 301},
	})
	tb.handleResponseReceived(&network.EventResponseReceived{
		RequestID: "req-2",
		Response:  &network.Response{Status: 200, MimeType: "text/html"},
	})
	tb.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "req-2"})

	reqs := tb.sess.mgr.capture.List("", "", 0)
	require.Len(t, reqs, 2)
	assert.Equal(t, "http://app.test/old", reqs[0].URL)
	assert.Equal(t, 301, reqs[0].Status)
	assert.Equal(t, "https://app.test/new", reqs[1].URL)
	assert.Equal(t, 200, reqs[1].Status)
}

func TestLoadingFailedMarksBlocked(t *testing.T) {
	tb := newEventTab()
	tb.handleRequestWillBeSent(&network.EventRequestWillBeSent{
		RequestID: "req-3",
		Type:      network.ResourceTypeImage,
		Request:   &network.Request{URL: "https://ads.test/pixel.gif", Method: "GET"},
	})
	tb.handleLoadingFailed(&network.EventLoadingFailed{
		RequestID: "req-3",
		ErrorText: "net::ERR_BLOCKED_BY_CLIENT",
	})

	reqs := tb.sess.mgr.capture.List("", "", 0)
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Blocked)
	assert.Equal(t, "image", reqs[0].Type)

	// Events for unknown request IDs are dropped.
	tb.handleLoadingFinished(&network.EventLoadingFinished{RequestID: "ghost"})
	tb.handleLoadingFailed(&network.EventLoadingFailed{RequestID: "ghost", ErrorText: "net::ERR_FAILED"})
	assert.Len(t, tb.sess.mgr.capture.List("", "", 0), 1)
}

func TestTraceCompleteReleasesWaiter(t *testing.T) {
	tb := newEventTab()
	tr := &tracingState{path: "trace.json", done: make(chan struct{})}
	tb.trace = tr

	tb.handleTraceComplete()
	assert.Nil(t, tb.trace)
	select {
	case <-tr.done:
	default:
		t.Fatal("trace done channel not closed")
	}

	// A stray complete event with no trace running is a no-op.
	tb.handleTraceComplete()
}

func TestPausedURLAndHost(t *testing.T) {
	assert.Equal(t, "", pausedURL(&fetch.EventRequestPaused{}))
	assert.Equal(t, "https://app.test/x",
		pausedURL(&fetch.EventRequestPaused{Request: &network.Request{URL: "https://app.test/x"}}))

	assert.Equal(t, "api.app.test", hostOf("https://api.app.test:8443/v1"))
	assert.Equal(t, "", hostOf("://not-a-url"))
}

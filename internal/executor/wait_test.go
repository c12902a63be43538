package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/oil-cli/api/schemas"
)

func waitProbe(done bool) *schemas.Response {
	r := schemas.OKResponse("wait")
	r.Condition = &done
	return r
}

func TestWaitPollsUntilConditionHolds(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdWait, waitProbe(false), waitProbe(false), waitProbe(true))
	e := newTestExecutor(t, host)

	start := time.Now()
	res := e.ExecuteLine(context.Background(), "wait load")
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{schemas.CmdWait, schemas.CmdWait, schemas.CmdWait}, host.cmdNames())
	assert.GreaterOrEqual(t, res.Response.WaitedMs, int64(0))
	assert.Less(t, time.Since(start), 200*time.Millisecond, "three probes at a 2ms interval")

	wr := reqOfType[*schemas.WaitRequest](t, host)
	assert.Equal(t, schemas.WaitCondLoad, wr.Condition)
}

func TestWaitTextTargetRidesTextField(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdWait, waitProbe(true))
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), `wait visible "Thanks!"`)
	require.NoError(t, res.Err)

	wr := reqOfType[*schemas.WaitRequest](t, host)
	assert.Equal(t, schemas.WaitCondVisible, wr.Condition)
	assert.Equal(t, "Thanks!", wr.Text)
	assert.Empty(t, wr.Selector, "textual targets never ride the CSS field")
}

func TestWaitCommandTimeoutOverridesConfig(t *testing.T) {
	host := newFakeHost()
	// Probes answer ok but the condition never holds.
	e := newTestExecutor(t, host)

	start := time.Now()
	res := e.ExecuteLine(context.Background(), "wait load --timeout 40ms")
	elapsed := time.Since(start)
	require.Error(t, res.Err)
	assert.True(t, schemas.IsCode(res.Err, schemas.CodeTimeout))
	assert.ErrorContains(t, res.Err, "wait load timed out after 40ms")
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "the full requested window elapses first")
	assert.Less(t, elapsed, 250*time.Millisecond, "the 40ms override beats the 300ms config")
	assert.NotEmpty(t, host.cmdNames(), "at least one probe went out")
}

func TestWaitSurfacesEngineError(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdWait, errResp(schemas.CodeInvalidRequest, "bad condition"))
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), "wait load")
	require.Error(t, res.Err)
	assert.True(t, schemas.IsCode(res.Err, schemas.CodeInvalidRequest))
	assert.ErrorContains(t, res.Err, "bad condition")
	assert.Len(t, host.cmdNames(), 1, "engine errors are not retried")
}

func TestScrollUntilFindsTargetAfterScrolling(t *testing.T) {
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1, 7))
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), "scroll until 7")
	require.NotNil(t, res)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{schemas.CmdScan, schemas.CmdScroll, schemas.CmdScan, schemas.CmdScroll}, host.cmdNames())
	assert.GreaterOrEqual(t, res.Response.WaitedMs, int64(0))

	scrolls := reqsOfType[*schemas.ScrollRequest](host)
	require.Len(t, scrolls, 2)
	assert.True(t, scrolls[0].Page, "blind steps scroll a page at a time")
	assert.Nil(t, scrolls[0].ID)
	require.NotNil(t, scrolls[1].ID, "the found target is scrolled to by ID")
	assert.Equal(t, uint32(7), *scrolls[1].ID)
}

func TestScrollUntilStopsAtBottom(t *testing.T) {
	bottom := func() *schemas.Response {
		r := schemas.OKResponse("scroll")
		r.Scroll = &schemas.ScrollInfo{Y: 2400, MaxY: 2400}
		return r
	}
	host := newFakeHost()
	host.queue(schemas.CmdScan, scanResp(1), scanResp(1), scanResp(1))
	host.queue(schemas.CmdScroll, bottom(), bottom())
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), "scroll until 7")
	require.Error(t, res.Err)
	assert.True(t, schemas.IsCode(res.Err, schemas.CodeElementNotFound))
	assert.ErrorContains(t, res.Err, "not found after scrolling to the bottom (2 steps)")
	assert.Equal(t, []string{schemas.CmdScan, schemas.CmdScroll, schemas.CmdScan, schemas.CmdScroll, schemas.CmdScan}, host.cmdNames())
}

func TestScrollUntilTimesOut(t *testing.T) {
	host := newFakeHost()
	// Empty scans, endless page: no match and no bottom.
	e := newTestExecutor(t, host)

	res := e.ExecuteLine(context.Background(), "scroll until 7 --timeout 30ms")
	require.Error(t, res.Err)
	assert.True(t, schemas.IsCode(res.Err, schemas.CodeTimeout))
	assert.ErrorContains(t, res.Err, "timed out after 30ms")
}

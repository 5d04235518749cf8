package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/core"
)

type mockTool struct {
	mock.Mock
	name string
}

func (m *mockTool) Name() string               { return m.name }
func (m *mockTool) Description() string        { return "mock tool" }
func (m *mockTool) Parameters() map[string]any { return nil }
func (m *mockTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	ret := m.Called(tc.ToolCallID(), args)
	return ret.Get(0), ret.Error(1)
}

// delayTool sleeps for the given duration unless its context ends first.
type delayTool struct {
	name   string
	delay  time.Duration
	active *int32
	peak   *int32
}

func (d *delayTool) Name() string               { return d.name }
func (d *delayTool) Description() string        { return "sleeps" }
func (d *delayTool) Parameters() map[string]any { return nil }
func (d *delayTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	if d.active != nil {
		n := atomic.AddInt32(d.active, 1)
		defer atomic.AddInt32(d.active, -1)
		for {
			p := atomic.LoadInt32(d.peak)
			if n <= p || atomic.CompareAndSwapInt32(d.peak, p, n) {
				break
			}
		}
	}
	select {
	case <-time.After(d.delay):
		return tc.ToolCallID(), nil
	case <-tc.Context().Done():
		return nil, tc.Context().Err()
	}
}

func req(id, name string, args map[string]any) core.ToolCallRequest {
	return core.ToolCallRequest{ID: id, Name: name, Arguments: args}
}

func TestExecutor_OneResultPerRequestInOrder(t *testing.T) {
	echo := &mockTool{name: "echo"}
	echo.On("Call", "1", map[string]any{"v": "a"}).Return("a", nil)
	echo.On("Call", "3", map[string]any{"v": "c"}).Return(map[string]any{"v": "c"}, nil)
	echo.On("Call", "4", map[string]any{}).Return(nil, errors.New("boom"))

	registry := MustRegistry(echo, sumTool())
	requests := []core.ToolCallRequest{
		req("1", "echo", map[string]any{"v": "a"}),
		req("2", "missing", nil),
		req("3", "echo", map[string]any{"v": "c"}),
		req("4", "echo", nil),
		req("5", "sum", map[string]any{"a": "x"}),
	}

	results := NewExecutor().Execute(context.Background(), nil, requests, registry)
	require.Len(t, results, len(requests))
	for i, r := range requests {
		assert.Equal(t, r.ID, results[i].ToolCallID)
		assert.Equal(t, core.RoleTool, results[i].Role)
		assert.Equal(t, r.Name, results[i].Name)
	}

	assert.Equal(t, "a", results[0].Content)
	assert.False(t, results[0].IsFault())
	assert.Equal(t, CodeUnknownTool, results[1].Fault.Code)
	assert.JSONEq(t, `{"v":"c"}`, results[2].Content)
	assert.Equal(t, CodeExecutionError, results[3].Fault.Code)
	assert.Contains(t, results[3].Content, "boom")
	assert.Equal(t, CodeInvalidArguments, results[4].Fault.Code)

	echo.AssertExpectations(t)
}

func TestExecutor_ParallelBoundedAndOrdered(t *testing.T) {
	var active, peak int32
	slow := &delayTool{name: "slow", delay: 30 * time.Millisecond, active: &active, peak: &peak}
	registry := MustRegistry(slow)

	requests := make([]core.ToolCallRequest, 6)
	for i := range requests {
		requests[i] = req(string(rune('a'+i)), "slow", nil)
	}

	start := time.Now()
	results := NewExecutor(func(o *ExecutorOptions) { o.MaxParallel = 2 }).
		Execute(context.Background(), nil, requests, registry)

	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, requests[i].ID, r.ToolCallID)
		assert.Equal(t, requests[i].ID, r.Content)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestExecutor_PanicRecovered(t *testing.T) {
	panicky := NewFunctionTool("panicky", "panics", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		panic("kaboom")
	})
	results := NewExecutor().Execute(context.Background(), nil, []core.ToolCallRequest{req("p", "panicky", nil)}, MustRegistry(panicky))

	require.Len(t, results, 1)
	require.True(t, results[0].IsFault())
	assert.Equal(t, CodePanic, results[0].Fault.Code)
	assert.Contains(t, results[0].Fault.Message, "kaboom")
}

func TestExecutor_Timeout(t *testing.T) {
	registry := MustRegistry(&delayTool{name: "slow", delay: time.Second})
	results := NewExecutor(func(o *ExecutorOptions) { o.Timeout = 20 * time.Millisecond }).
		Execute(context.Background(), nil, []core.ToolCallRequest{req("t", "slow", nil)}, registry)

	require.Len(t, results, 1)
	assert.Equal(t, CodeTimeout, results[0].Fault.Code)
}

func TestExecutor_TimeoutIgnoredContext(t *testing.T) {
	stubborn := NewFunctionTool("stubborn", "ignores ctx", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		time.Sleep(200 * time.Millisecond)
		return "late", nil
	})
	start := time.Now()
	results := NewExecutor(func(o *ExecutorOptions) { o.Timeout = 20 * time.Millisecond }).
		Execute(context.Background(), nil, []core.ToolCallRequest{req("s", "stubborn", nil)}, MustRegistry(stubborn))

	assert.Equal(t, CodeTimeout, results[0].Fault.Code)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestExecutor_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	tool := NewFunctionTool("t", "t", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		called = true
		return "x", nil
	})
	results := NewExecutor().Execute(ctx, nil, []core.ToolCallRequest{req("1", "t", nil), req("2", "t", nil)}, MustRegistry(tool))

	require.Len(t, results, 2)
	assert.Equal(t, CodeCancelled, results[0].Fault.Code)
	assert.Equal(t, CodeCancelled, results[1].Fault.Code)
	assert.False(t, called)
}

func TestExecutor_CustomToolErrorCodeKept(t *testing.T) {
	tool := NewFunctionTool("lookup", "l", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, NewToolError("whatever", "no such station", "NOT_FOUND")
	})
	results := NewExecutor().Execute(context.Background(), nil, []core.ToolCallRequest{req("1", "lookup", nil)}, MustRegistry(tool))

	assert.Equal(t, "NOT_FOUND", results[0].Fault.Code)
	assert.Contains(t, results[0].Content, `"tool":"lookup"`)
}

func TestExecutor_SharedScratchpad(t *testing.T) {
	writer := NewFunctionTool("writer", "w", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		tc.SetState("journey", "NDLS-BCT")
		return "stored", nil
	})
	reader := NewFunctionTool("reader", "r", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		v, _ := tc.Scratchpad().GetString("journey")
		return v, nil
	})
	registry := MustRegistry(writer, reader)
	scope := core.NewToolScope("sess-1", nil)
	exec := NewExecutor()

	exec.Execute(context.Background(), scope, []core.ToolCallRequest{req("1", "writer", nil)}, registry)
	results := exec.Execute(context.Background(), scope, []core.ToolCallRequest{req("2", "reader", nil)}, registry)

	assert.Equal(t, "NDLS-BCT", results[0].Content)
}

func TestExecutor_Empty(t *testing.T) {
	assert.Nil(t, NewExecutor().Execute(context.Background(), nil, nil, MustRegistry()))
}

func TestEncodeResult(t *testing.T) {
	s, err := encodeResult("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", s)

	s, err = encodeResult(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", s)

	s, err = encodeResult(struct {
		N int `json:"n"`
	}{N: 3})
	require.NoError(t, err)
	assert.Equal(t, `{"n":3}`, s)

	_, err = encodeResult(make(chan int))
	assert.Error(t, err)
}

func TestExecutor_BareScopeSharedAcrossParallelCalls(t *testing.T) {
	var started sync.WaitGroup
	started.Add(8)
	writer := NewFunctionTool("write", "Records its call id", nil, func(tc *core.ToolContext, _ map[string]any) (any, error) {
		started.Done()
		started.Wait()
		tc.SetState(tc.ToolCallID(), true)
		return len(tc.Scratchpad().Snapshot()), nil
	})
	registry := MustRegistry(writer)

	requests := make([]core.ToolCallRequest, 8)
	for i := range requests {
		requests[i] = core.ToolCallRequest{ID: fmt.Sprintf("c%d", i), Name: "write"}
	}

	scope := &core.ToolScope{SessionID: "s"}
	exec := NewExecutor(func(o *ExecutorOptions) { o.MaxParallel = 8 })
	results := exec.Execute(context.Background(), scope, requests, registry)

	require.Len(t, results, 8)
	for _, r := range results {
		assert.False(t, r.IsFault(), r.Content)
	}
	assert.Nil(t, scope.Scratchpad)

	// every call wrote into one scratchpad, so the last writer saw all of them
	var maxSeen int
	for _, r := range results {
		var n int
		require.NoError(t, json.Unmarshal([]byte(r.Content), &n))
		maxSeen = max(maxSeen, n)
	}
	assert.Equal(t, 8, maxSeen)
}

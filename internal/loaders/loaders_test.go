package loaders

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpogula2014/dcdashboard/internal/fetch"
	"github.com/rpogula2014/dcdashboard/internal/logger"
	"github.com/rpogula2014/dcdashboard/internal/queryengine"
)

// fakeEngine records LoadTable calls and can be told to fail.
type fakeEngine struct {
	mu     sync.Mutex
	tables map[string][]queryengine.Row
	fail   map[string]error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		tables: make(map[string][]queryengine.Row),
		fail:   make(map[string]error),
	}
}

func (f *fakeEngine) LoadTable(_ context.Context, name string, rows []queryengine.Row, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[name]; err != nil {
		return err
	}
	f.tables[name] = rows
	return nil
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func TestManager_LoadOrderLines(t *testing.T) {
	engine := newFakeEngine()
	m := NewManager(engine, testLogger())

	ship := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	lines := []fetch.OrderLine{
		{OrderNumber: 1001, HoldApplied: "Y", HoldReleased: "N", Routed: "N", ScheduleShipDate: &ship},
		{OrderNumber: 1002, HoldApplied: "N", HoldReleased: "N", Routed: "Y"},
	}

	require.NoError(t, m.LoadOrderLines(t.Context(), lines))

	rows := engine.tables[TableOrderLines]
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0]["hold_applied_flag"])
	assert.Equal(t, 0, rows[0]["hold_released_flag"])
	assert.Equal(t, 0, rows[0]["routed_flag"])
	assert.Equal(t, 1, rows[1]["routed_flag"])
	assert.Equal(t, &ship, rows[0]["schedule_ship_date"])

	state, ok := m.State(TableOrderLines)
	require.True(t, ok)
	assert.True(t, state.Loaded)
	assert.Equal(t, 2, state.Count)
	assert.WithinDuration(t, time.Now(), state.LastLoaded, time.Minute)
}

func TestManager_EmptySnapshotDoesNotTouchState(t *testing.T) {
	engine := newFakeEngine()
	m := NewManager(engine, testLogger())

	require.NoError(t, m.LoadOrderLines(t.Context(), []fetch.OrderLine{{OrderNumber: 1}}))
	before, ok := m.State(TableOrderLines)
	require.True(t, ok)

	require.NoError(t, m.LoadOrderLines(t.Context(), nil))

	after, ok := m.State(TableOrderLines)
	require.True(t, ok)
	assert.Equal(t, before.LastLoaded, after.LastLoaded, "empty load must not bump lastLoaded")
	assert.Equal(t, before.Count, after.Count)
	require.Len(t, engine.tables[TableOrderLines], 1, "previous snapshot must remain")
}

func TestManager_FailedLoadLeavesStateIntact(t *testing.T) {
	engine := newFakeEngine()
	m := NewManager(engine, testLogger())

	require.NoError(t, m.LoadOnhand(t.Context(), []fetch.OnhandItem{{ItemNumber: "A"}}))
	before, _ := m.State(TableOnhand)

	engine.fail[TableOnhand] = errors.New("disk full")
	err := m.LoadOnhand(t.Context(), []fetch.OnhandItem{{ItemNumber: "B"}})
	require.Error(t, err)

	after, _ := m.State(TableOnhand)
	assert.Equal(t, before, after)
}

func TestManager_IndependentTables(t *testing.T) {
	engine := newFakeEngine()
	m := NewManager(engine, testLogger())

	engine.fail[TableRoutePlans] = errors.New("boom")

	require.Error(t, m.LoadRoutePlans(t.Context(), []fetch.RoutePlan{{TripID: 1}}))
	require.NoError(t, m.LoadOnhand(t.Context(), []fetch.OnhandItem{{ItemNumber: "A"}}))

	_, ok := m.State(TableRoutePlans)
	assert.False(t, ok)
	_, ok = m.State(TableOnhand)
	assert.True(t, ok)
}

func TestManager_RoutePlanExceptionFlag(t *testing.T) {
	engine := newFakeEngine()
	m := NewManager(engine, testLogger())

	plans := []fetch.RoutePlan{
		{TripID: 1, MDSProcessStatus: "ERROR"},
		{TripID: 2},
	}
	require.NoError(t, m.LoadRoutePlans(t.Context(), plans))

	rows := engine.tables[TableRoutePlans]
	assert.Equal(t, 1, rows[0]["has_exception"])
	assert.Equal(t, 0, rows[1]["has_exception"])
}

func TestManager_States(t *testing.T) {
	engine := newFakeEngine()
	m := NewManager(engine, testLogger())

	require.NoError(t, m.LoadOnhand(t.Context(), []fetch.OnhandItem{{ItemNumber: "A"}}))
	require.NoError(t, m.LoadOrderLines(t.Context(), []fetch.OrderLine{{OrderNumber: 1}}))

	states := m.States()
	assert.Len(t, states, 2)

	// Mutating the copy must not affect the manager.
	states[TableOnhand] = LoadState{}
	got, _ := m.State(TableOnhand)
	assert.True(t, got.Loaded)
}

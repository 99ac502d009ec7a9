package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpogula2014/dcdashboard/internal/queryengine"
	"github.com/rpogula2014/dcdashboard/internal/rules"
)

func TestLoadOrderLines(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/data/order-lines", `[
		{"order_number": 1001, "line": "1.1", "hold_applied": "Y", "hold_released": "N"},
		{"order_number": 1002, "line": "1.1", "routed": "Y"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, rules.DataSourceOrderLines, body["table"])
	assert.Equal(t, float64(2), body["rows"])

	loaded := h.engine.tables[rules.DataSourceOrderLines]
	require.Len(t, loaded, 2)
	assert.Equal(t, 1, loaded[0]["hold_applied_flag"])
	assert.Equal(t, 0, loaded[0]["hold_released_flag"])
}

func TestLoadRoutePlans(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/data/route-plans", `[
		{"trip_id": 9001, "noofopenlines": 3, "mdsprocessstatus": "ERROR: stuck"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.engine.tables[rules.DataSourceRoutePlans], 1)
}

func TestLoadOnhand(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodPost, "/api/v1/data/onhand", `[
		{"itemnumber": "SKU-1", "quantity": -4, "subinventory_code": "PICK"}
	]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.engine.tables[rules.DataSourceOnhand], 1)
}

func TestLoadOrderLines_RejectsMalformedBody(t *testing.T) {
	h := newHarness(t)
	rec := h.request(t, http.MethodPost, "/api/v1/data/order-lines", `{"not": "an array"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDataStatus(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodGet, "/api/v1/data/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	for _, table := range rules.DataSources() {
		state := body[table].(map[string]any)
		assert.Equal(t, false, state["loaded"], "table %s should start unloaded", table)
	}

	loaded := h.request(t, http.MethodPost, "/api/v1/data/onhand",
		`[{"itemnumber": "SKU-1", "quantity": 2}]`)
	require.Equal(t, http.StatusOK, loaded.Code)

	rec = h.request(t, http.MethodGet, "/api/v1/data/status", "")
	body = decodeBody(t, rec)
	state := body[rules.DataSourceOnhand].(map[string]any)
	assert.Equal(t, true, state["loaded"])
	assert.Equal(t, float64(1), state["count"])
}

func TestGetTableColumns(t *testing.T) {
	h := newHarness(t)

	rec := h.request(t, http.MethodGet, "/api/v1/data/dc_unknown/columns", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.request(t, http.MethodGet, "/api/v1/data/dc_onhand/columns", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "unloaded tables have no columns yet")

	h.engine.tables = map[string][]queryengine.Row{rules.DataSourceOnhand: {}}
	h.engine.columns = map[string][]queryengine.ColumnInfo{
		rules.DataSourceOnhand: {
			{Name: "itemnumber", Type: "TEXT"},
			{Name: "quantity", Type: "INTEGER"},
		},
	}

	rec = h.request(t, http.MethodGet, "/api/v1/data/dc_onhand/columns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, rules.DataSourceOnhand, body["table"])
	assert.Len(t, body["columns"], 2)
}

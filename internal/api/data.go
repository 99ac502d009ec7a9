package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rpogula2014/dcdashboard/internal/fetch"
	"github.com/rpogula2014/dcdashboard/internal/rules"
)

// LoadOrderLines replaces the order line table with the posted snapshot.
func (c *Controller) LoadOrderLines(ctx echo.Context) error {
	var lines []fetch.OrderLine
	if err := ctx.Bind(&lines); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.loaders.LoadOrderLines(ctx.Request().Context(), lines); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"table": rules.DataSourceOrderLines, "rows": len(lines)})
}

// LoadRoutePlans replaces the route plan table with the posted snapshot.
func (c *Controller) LoadRoutePlans(ctx echo.Context) error {
	var plans []fetch.RoutePlan
	if err := ctx.Bind(&plans); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.loaders.LoadRoutePlans(ctx.Request().Context(), plans); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"table": rules.DataSourceRoutePlans, "rows": len(plans)})
}

// LoadOnhand replaces the onhand table with the posted snapshot.
func (c *Controller) LoadOnhand(ctx echo.Context) error {
	var items []fetch.OnhandItem
	if err := ctx.Bind(&items); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.loaders.LoadOnhand(ctx.Request().Context(), items); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"table": rules.DataSourceOnhand, "rows": len(items)})
}

// GetDataStatus reports per-table load state.
func (c *Controller) GetDataStatus(ctx echo.Context) error {
	states := c.loaders.States()
	out := make(map[string]any, len(rules.DataSources()))
	for _, table := range rules.DataSources() {
		if state, ok := states[table]; ok {
			out[table] = state
			continue
		}
		out[table] = map[string]any{"loaded": false}
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetTableColumns returns live column metadata for a loaded table.
func (c *Controller) GetTableColumns(ctx echo.Context) error {
	table := ctx.Param("table")
	if !rules.ValidDataSource(table) {
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Unknown data source"})
	}
	if !c.engine.TableExists(table) {
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "Data source is not loaded yet"})
	}

	cols, err := c.engine.Columns(ctx.Request().Context(), table)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"table": table, "columns": cols})
}

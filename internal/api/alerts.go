package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rpogula2014/dcdashboard/internal/logger"
	"github.com/rpogula2014/dcdashboard/internal/rules"
)

// maxImportBytes caps the rule import payload.
const maxImportBytes = 1 << 20

// GetAlertSchema returns the rule-building vocabulary for the UI.
func (c *Controller) GetAlertSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, rules.GetSchema())
}

// ListAlertRules returns all alert rules.
func (c *Controller) ListAlertRules(ctx echo.Context) error {
	all := c.store.List()
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": all,
		"count": len(all),
	})
}

// GetAlertRule returns a single rule by ID.
func (c *Controller) GetAlertRule(ctx echo.Context) error {
	rule, err := c.store.Get(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return err
	}
	return ctx.JSON(http.StatusOK, rule)
}

// CreateAlertRule creates a new alert rule.
func (c *Controller) CreateAlertRule(ctx echo.Context) error {
	var def rules.NewRule
	if err := ctx.Bind(&def); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	rule, err := c.store.Add(ctx.Request().Context(), def)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	c.scheduler.RulesChanged()
	c.log.Info("alert rule created",
		logger.String("id", rule.ID),
		logger.String("name", rule.Name))
	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateAlertRule patches an existing rule.
func (c *Controller) UpdateAlertRule(ctx echo.Context) error {
	var patch rules.RulePatch
	if err := ctx.Bind(&patch); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	rule, err := c.store.Update(ctx.Request().Context(), ctx.Param("id"), patch)
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	c.scheduler.RulesChanged()
	return ctx.JSON(http.StatusOK, rule)
}

// DeleteAlertRule removes a rule.
func (c *Controller) DeleteAlertRule(ctx echo.Context) error {
	if err := c.store.Remove(ctx.Param("id")); err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return err
	}
	c.scheduler.RulesChanged()
	return ctx.NoContent(http.StatusNoContent)
}

// ToggleAlertRule flips a rule's enabled flag.
func (c *Controller) ToggleAlertRule(ctx echo.Context) error {
	rule, err := c.store.Toggle(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	c.scheduler.RulesChanged()
	return ctx.JSON(http.StatusOK, map[string]any{"id": rule.ID, "enabled": rule.Enabled})
}

// PreviewAlertRule returns the SQL predicate a rule compiles to, with
// relative-date tokens resolved against the current clock.
func (c *Controller) PreviewAlertRule(ctx echo.Context) error {
	rule, err := c.store.Get(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, rules.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return err
	}
	return ctx.JSON(http.StatusOK, map[string]string{
		"id":    rule.ID,
		"where": c.compiler.BuildWhereClause(&rule),
	})
}

// ValidateExpression checks an advanced predicate against a data source
// without persisting anything.
func (c *Controller) ValidateExpression(ctx echo.Context) error {
	var body struct {
		DataSource string `json:"dataSource"`
		Expression string `json:"expression"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := c.validator.ValidateWhereClause(ctx.Request().Context(), body.DataSource, body.Expression); err != nil {
		return ctx.JSON(http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
	}
	return ctx.JSON(http.StatusOK, map[string]any{"valid": true})
}

// GetAlertResults returns the most recent evaluation round.
func (c *Controller) GetAlertResults(ctx echo.Context) error {
	results := c.scheduler.Results()
	body := map[string]any{
		"results":       results,
		"count":         len(results),
		"lastRefreshed": c.scheduler.LastRefreshed(),
		"loading":       c.scheduler.IsLoading(),
	}
	if err := c.scheduler.Err(); err != nil {
		body["error"] = err.Error()
	}
	return ctx.JSON(http.StatusOK, body)
}

// RefreshAlerts runs an evaluation round immediately and returns its
// results.
func (c *Controller) RefreshAlerts(ctx echo.Context) error {
	results := c.scheduler.Refresh(ctx.Request().Context())
	return ctx.JSON(http.StatusOK, map[string]any{
		"results":       results,
		"count":         len(results),
		"lastRefreshed": c.scheduler.LastRefreshed(),
	})
}

// ExportAlertRules streams the rule collection as a portable JSON document.
func (c *Controller) ExportAlertRules(ctx echo.Context) error {
	raw, err := c.store.Snapshot()
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="alert-rules.json"`)
	return ctx.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}

// ImportAlertRules replaces the rule collection with an exported document.
func (c *Controller) ImportAlertRules(ctx echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxImportBytes))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
	}

	if err := c.store.Restore(ctx.Request().Context(), raw); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	c.scheduler.RulesChanged()
	count := len(c.store.List())
	c.log.Info("alert rules imported", logger.Int("count", count))
	return ctx.JSON(http.StatusOK, map[string]any{"imported": count})
}

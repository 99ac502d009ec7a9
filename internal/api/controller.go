// Package api exposes the dashboard's HTTP surface: alert rule management,
// evaluation results, and snapshot ingestion for the backing tables.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpogula2014/dcdashboard/internal/loaders"
	"github.com/rpogula2014/dcdashboard/internal/logger"
	"github.com/rpogula2014/dcdashboard/internal/queryengine"
	"github.com/rpogula2014/dcdashboard/internal/rules"
)

// ColumnLister exposes the query engine metadata the API serves alongside
// the static rule schema.
type ColumnLister interface {
	Columns(ctx context.Context, table string) ([]queryengine.ColumnInfo, error)
	TableExists(table string) bool
}

// Controller carries the HTTP handlers and their collaborators.
type Controller struct {
	store     *rules.Store
	scheduler *rules.Scheduler
	compiler  *rules.Compiler
	validator rules.ExpressionValidator
	engine    ColumnLister
	loaders   *loaders.Manager
	log       logger.Logger
}

// NewController wires the handlers; call RegisterRoutes to attach them to an
// echo instance.
func NewController(
	store *rules.Store,
	scheduler *rules.Scheduler,
	compiler *rules.Compiler,
	validator rules.ExpressionValidator,
	engine ColumnLister,
	manager *loaders.Manager,
	log logger.Logger,
) *Controller {
	return &Controller{
		store:     store,
		scheduler: scheduler,
		compiler:  compiler,
		validator: validator,
		engine:    engine,
		loaders:   manager,
		log:       log,
	}
}

// RegisterRoutes attaches all endpoints under /api/v1 plus the operational
// endpoints at the root.
func (c *Controller) RegisterRoutes(e *echo.Echo) {
	e.Use(middleware.Recover())

	e.GET("/healthz", c.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	g := e.Group("/api/v1")

	alerts := g.Group("/alerts")
	alerts.GET("/schema", c.GetAlertSchema)
	alerts.GET("/rules", c.ListAlertRules)
	alerts.GET("/rules/export", c.ExportAlertRules)
	alerts.POST("/rules/import", c.ImportAlertRules)
	alerts.POST("/rules", c.CreateAlertRule)
	alerts.GET("/rules/:id", c.GetAlertRule)
	alerts.PUT("/rules/:id", c.UpdateAlertRule)
	alerts.DELETE("/rules/:id", c.DeleteAlertRule)
	alerts.PATCH("/rules/:id/toggle", c.ToggleAlertRule)
	alerts.GET("/rules/:id/where", c.PreviewAlertRule)
	alerts.POST("/validate", c.ValidateExpression)
	alerts.GET("/results", c.GetAlertResults)
	alerts.POST("/refresh", c.RefreshAlerts)

	data := g.Group("/data")
	data.POST("/order-lines", c.LoadOrderLines)
	data.POST("/route-plans", c.LoadRoutePlans)
	data.POST("/onhand", c.LoadOnhand)
	data.GET("/status", c.GetDataStatus)
	data.GET("/:table/columns", c.GetTableColumns)
}

// Health reports liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

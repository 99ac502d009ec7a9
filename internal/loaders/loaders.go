// Package loaders transforms fetched domain records into the flat row shape
// the query engine ingests, and tracks per-table load state.
package loaders

import (
	"context"
	"sync"
	"time"

	"github.com/rpogula2014/dcdashboard/internal/fetch"
	"github.com/rpogula2014/dcdashboard/internal/logger"
	"github.com/rpogula2014/dcdashboard/internal/metrics"
	"github.com/rpogula2014/dcdashboard/internal/queryengine"
)

// Table names in the analytical engine. These are the data sources alert
// rules target.
const (
	TableOrderLines = "dc_order_lines"
	TableRoutePlans = "route_plans"
	TableOnhand     = "dc_onhand"
)

// LoadState is the freshness record tracked per table.
type LoadState struct {
	Loaded     bool      `json:"loaded"`
	Count      int       `json:"count"`
	LastLoaded time.Time `json:"lastLoaded"`
}

// TableLoader is the engine surface the loaders need.
type TableLoader interface {
	LoadTable(ctx context.Context, name string, rows []queryengine.Row, replace bool) error
}

// Manager runs snapshot loads and tracks load state. Loads of different
// tables may run concurrently; a failed load leaves the previous snapshot
// and its state intact.
type Manager struct {
	engine TableLoader
	log    logger.Logger

	mu     sync.RWMutex
	states map[string]LoadState
}

// NewManager creates a loader manager on top of the query engine.
func NewManager(engine TableLoader, log logger.Logger) *Manager {
	return &Manager{
		engine: engine,
		log:    log,
		states: make(map[string]LoadState),
	}
}

// LoadOrderLines replaces the dc_order_lines snapshot.
func (m *Manager) LoadOrderLines(ctx context.Context, lines []fetch.OrderLine) error {
	rows := make([]queryengine.Row, 0, len(lines))
	for i := range lines {
		rows = append(rows, orderLineRow(&lines[i]))
	}
	return m.load(ctx, TableOrderLines, rows)
}

// LoadRoutePlans replaces the route_plans snapshot.
func (m *Manager) LoadRoutePlans(ctx context.Context, plans []fetch.RoutePlan) error {
	rows := make([]queryengine.Row, 0, len(plans))
	for i := range plans {
		rows = append(rows, routePlanRow(&plans[i]))
	}
	return m.load(ctx, TableRoutePlans, rows)
}

// LoadOnhand replaces the dc_onhand snapshot.
func (m *Manager) LoadOnhand(ctx context.Context, items []fetch.OnhandItem) error {
	rows := make([]queryengine.Row, 0, len(items))
	for i := range items {
		rows = append(rows, onhandRow(&items[i]))
	}
	return m.load(ctx, TableOnhand, rows)
}

func (m *Manager) load(ctx context.Context, table string, rows []queryengine.Row) error {
	if len(rows) == 0 {
		m.log.Warn("skipping snapshot load, no rows fetched", logger.String("table", table))
		metrics.SnapshotLoads.WithLabelValues(table, metrics.OutcomeSkipped).Inc()
		return nil
	}

	if err := m.engine.LoadTable(ctx, table, rows, true); err != nil {
		m.log.Error("snapshot load failed",
			logger.String("table", table),
			logger.Int("rows", len(rows)),
			logger.Error(err))
		metrics.SnapshotLoads.WithLabelValues(table, metrics.OutcomeFailed).Inc()
		return err
	}

	m.mu.Lock()
	m.states[table] = LoadState{Loaded: true, Count: len(rows), LastLoaded: time.Now()}
	m.mu.Unlock()

	metrics.SnapshotLoads.WithLabelValues(table, metrics.OutcomeLoaded).Inc()
	metrics.SnapshotRows.WithLabelValues(table).Set(float64(len(rows)))
	return nil
}

// State returns the load state of one table.
func (m *Manager) State(table string) (LoadState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[table]
	return s, ok
}

// States returns a copy of all tracked load states.
func (m *Manager) States() map[string]LoadState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]LoadState, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

// ynFlag turns Oracle-style Y/N status text into an integer flag column so
// predicates can count and filter without string comparisons.
func ynFlag(v string) int {
	if v == "Y" || v == "y" {
		return 1
	}
	return 0
}

func orderLineRow(l *fetch.OrderLine) queryengine.Row {
	return queryengine.Row{
		"ordered_date":          l.OrderedDate,
		"ordered_item":          l.OrderedItem,
		"order_category":        l.OrderCategory,
		"order_number":          l.OrderNumber,
		"line_id":               l.LineID,
		"line":                  l.Line,
		"schedule_ship_date":    l.ScheduleShipDate,
		"ordered_quantity":      l.OrderedQuantity,
		"reserved_qty":          l.ReservedQty,
		"shipping_method_code":  l.ShippingMethodCode,
		"order_type":            l.OrderType,
		"sold_to":               l.SoldTo,
		"dc":                    l.DC,
		"ship_to":               l.ShipTo,
		"header_id":             l.HeaderID,
		"delivery_id":           l.DeliveryID,
		"original_line_status":  l.OriginalLineStatus,
		"hold_applied":          l.HoldApplied,
		"hold_released":         l.HoldReleased,
		"routed":                l.Routed,
		"planned":               l.Planned,
		"productgrp":            l.ProductGroup,
		"vendor":                l.Vendor,
		"style":                 l.Style,
		"item_description":      l.ItemDescription,
		"trip_id":               l.TripID,
		"shipping_instructions": l.ShippingInstructions,
		"hold_applied_flag":     ynFlag(l.HoldApplied),
		"hold_released_flag":    ynFlag(l.HoldReleased),
		"routed_flag":           ynFlag(l.Routed),
		"planned_flag":          ynFlag(l.Planned),
	}
}

func routePlanRow(p *fetch.RoutePlan) queryengine.Row {
	return queryengine.Row{
		"trip_id":           p.TripID,
		"route_id":          p.RouteID,
		"route_description": p.RouteDescription,
		"noofopenlines":     p.NoOfOpenLines,
		"issueorder":        p.IssueOrder,
		"mdsprocessstatus":  p.MDSProcessStatus,
		"mdsprocessmsg":     p.MDSProcessMsg,
		"driver1":           p.Driver1,
		"tractionstatus":    p.TractionStatus,
		"tractionmsg":       p.TractionMsg,
		"has_exception":     boolFlag(p.MDSProcessStatus != "" || p.TractionStatus != ""),
	}
}

func onhandRow(o *fetch.OnhandItem) queryengine.Row {
	return queryengine.Row{
		"inventory_item_id":  o.InventoryItemID,
		"itemnumber":         o.ItemNumber,
		"item_description":   o.ItemDescription,
		"subinventory_code":  o.SubinventoryCode,
		"quantity":           o.Quantity,
		"locator":            o.Locator,
		"aisle":              o.Aisle,
		"customsubinventory": o.CustomSubinv,
		"vendor":             o.Vendor,
		"product_group":      o.ProductGroup,
		"productgrp_display": o.ProductGrpDisplay,
		"style":              o.Style,
	}
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

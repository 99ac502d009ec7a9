// Package fetch defines the record shapes and collaborator interfaces of the
// backend fetch layer. Column names are a fixed contract with the table
// loaders; the actual REST clients live outside this core.
package fetch

import "time"

// OrderLine is one open DC order line as delivered by the backend.
type OrderLine struct {
	OrderedDate          *time.Time `json:"ordered_date"`
	OrderedItem          string     `json:"ordered_item"`
	OrderCategory        string     `json:"order_category"`
	OrderNumber          int64      `json:"order_number"`
	LineID               int64      `json:"line_id"`
	Line                 string     `json:"line"`
	ScheduleShipDate     *time.Time `json:"schedule_ship_date"`
	OrderedQuantity      int64      `json:"ordered_quantity"`
	ReservedQty          int64      `json:"reserved_qty"`
	ShippingMethodCode   string     `json:"shipping_method_code"`
	OrderType            string     `json:"order_type"`
	SoldTo               string     `json:"sold_to"`
	DC                   string     `json:"dc"`
	ShipTo               string     `json:"ship_to"`
	HeaderID             int64      `json:"header_id"`
	DeliveryID           int64      `json:"delivery_id"`
	OriginalLineStatus   string     `json:"original_line_status"`
	HoldApplied          string     `json:"hold_applied"`
	HoldReleased         string     `json:"hold_released"`
	Routed               string     `json:"routed"`
	Planned              string     `json:"planned"`
	ProductGroup         string     `json:"productgrp"`
	Vendor               string     `json:"vendor"`
	Style                string     `json:"style"`
	ItemDescription      string     `json:"item_description"`
	TripID               int64      `json:"trip_id"`
	ShippingInstructions string     `json:"shipping_instructions"`
}

// RoutePlan is one open trip/route record with its exception status.
type RoutePlan struct {
	TripID           int64  `json:"trip_id"`
	RouteID          int64  `json:"route_id"`
	RouteDescription string `json:"route_description"`
	NoOfOpenLines    int64  `json:"noofopenlines"`
	IssueOrder       string `json:"issueorder"`
	MDSProcessStatus string `json:"mdsprocessstatus"`
	MDSProcessMsg    string `json:"mdsprocessmsg"`
	Driver1          string `json:"driver1"`
	TractionStatus   string `json:"tractionstatus"`
	TractionMsg      string `json:"tractionmsg"`
}

// OnhandItem is one DC onhand inventory record.
type OnhandItem struct {
	InventoryItemID   int64   `json:"inventory_item_id"`
	ItemNumber        string  `json:"itemnumber"`
	ItemDescription   string  `json:"item_description"`
	SubinventoryCode  string  `json:"subinventory_code"`
	Quantity          float64 `json:"quantity"`
	Locator           string  `json:"locator"`
	Aisle             string  `json:"aisle"`
	CustomSubinv      string  `json:"customsubinventory"`
	Vendor            string  `json:"vendor"`
	ProductGroup      string  `json:"product_group"`
	ProductGrpDisplay string  `json:"productgrp_display"`
	Style             string  `json:"style"`
}

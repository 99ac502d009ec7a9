package rules

import (
	"time"

	"github.com/google/uuid"
)

// DefaultRules returns the built-in alert rules seeded on first start or when
// persisted rules are unreadable. All of them compile to plain condition
// predicates, so they need no engine validation to seed.
func DefaultRules(now time.Time) []AlertRule {
	base := AlertRule{
		Enabled:         true,
		RefreshInterval: 60,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	mk := func(r AlertRule) AlertRule {
		r.ID = uuid.NewString()
		r.Enabled = base.Enabled
		r.RefreshInterval = base.RefreshInterval
		r.CreatedAt = base.CreatedAt
		r.UpdatedAt = base.UpdatedAt
		return r
	}

	return []AlertRule{
		mk(AlertRule{
			Name:        "Orders on hold",
			Description: "Order lines with a hold applied that has not been released",
			Severity:    SeverityCritical,
			DataSource:  DataSourceOrderLines,
			Conditions: []RuleCondition{
				{Field: "hold_applied", Operator: OperatorEquals, Value: "Y"},
				{Field: "hold_released", Operator: OperatorNotEquals, Value: "Y"},
			},
		}),
		mk(AlertRule{
			Name:        "Reserved but not routed",
			Description: "Order lines with reserved quantity that have not been routed",
			Severity:    SeverityWarning,
			DataSource:  DataSourceOrderLines,
			Conditions: []RuleCondition{
				{Field: "reserved_qty", Operator: OperatorGreaterThan, Value: "0"},
				{Field: "routed", Operator: OperatorNotEquals, Value: "Y"},
			},
		}),
		mk(AlertRule{
			Name:        "Due to ship today",
			Description: "Order lines scheduled to ship today",
			Severity:    SeverityInfo,
			DataSource:  DataSourceOrderLines,
			Conditions: []RuleCondition{
				{Field: "schedule_ship_date", Operator: OperatorEquals, Value: "@TODAY"},
			},
		}),
		mk(AlertRule{
			Name:        "Past due shipments",
			Description: "Order lines whose schedule ship date has passed",
			Severity:    SeverityCritical,
			DataSource:  DataSourceOrderLines,
			Conditions: []RuleCondition{
				{Field: "schedule_ship_date", Operator: OperatorLessThan, Value: "@TODAY"},
			},
		}),
		mk(AlertRule{
			Name:        "Backordered lines",
			Description: "Order lines currently in backorder status",
			Severity:    SeverityWarning,
			DataSource:  DataSourceOrderLines,
			Conditions: []RuleCondition{
				{Field: "original_line_status", Operator: OperatorLike, Value: "BACKORDER"},
			},
		}),
		mk(AlertRule{
			Name:        "Trip processing errors",
			Description: "Route plans whose MDS processing reported an error",
			Severity:    SeverityCritical,
			DataSource:  DataSourceRoutePlans,
			Conditions: []RuleCondition{
				{Field: "mdsprocessstatus", Operator: OperatorLike, Value: "ERROR"},
			},
		}),
		mk(AlertRule{
			Name:        "Negative onhand",
			Description: "Onhand records with a negative quantity",
			Severity:    SeverityCritical,
			DataSource:  DataSourceOnhand,
			Conditions: []RuleCondition{
				{Field: "quantity", Operator: OperatorLessThan, Value: "0"},
			},
		}),
	}
}

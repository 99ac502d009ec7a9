// Package rules implements the exception-alerting engine: persisted alert
// rule definitions, predicate compilation, concurrent evaluation against the
// query engine, and the shared refresh scheduler.
package rules

import (
	"time"

	"github.com/rpogula2014/dcdashboard/internal/queryengine"
)

// Severity is the triage priority of a rule. Results are ordered critical,
// warning, info.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityRank gives the fixed display order. Unknown severities sort last.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityWarning:  1,
	SeverityInfo:     2,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Data sources a rule can target. These are the loader table names.
const (
	DataSourceOrderLines = "dc_order_lines"
	DataSourceRoutePlans = "route_plans"
	DataSourceOnhand     = "dc_onhand"
)

// DataSources lists the queryable tables in display order.
func DataSources() []string {
	return []string{DataSourceOrderLines, DataSourceRoutePlans, DataSourceOnhand}
}

// ValidDataSource reports whether name is a known data source.
func ValidDataSource(name string) bool {
	switch name {
	case DataSourceOrderLines, DataSourceRoutePlans, DataSourceOnhand:
		return true
	}
	return false
}

// Condition operators supported by the simple rule builder.
const (
	OperatorEquals      = "="
	OperatorNotEquals   = "!="
	OperatorGreaterThan = ">"
	OperatorLessThan    = "<"
	OperatorGreaterOrEq = ">="
	OperatorLessOrEq    = "<="
	OperatorLike        = "LIKE"
	OperatorIsNull      = "IS NULL"
	OperatorIsNotNull   = "IS NOT NULL"
)

// Operators lists the builder operators in display order.
func Operators() []string {
	return []string{
		OperatorEquals, OperatorNotEquals,
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEq, OperatorLessOrEq,
		OperatorLike, OperatorIsNull, OperatorIsNotNull,
	}
}

// ValidOperator reports whether op is a supported condition operator.
func ValidOperator(op string) bool {
	switch op {
	case OperatorEquals, OperatorNotEquals,
		OperatorGreaterThan, OperatorLessThan,
		OperatorGreaterOrEq, OperatorLessOrEq,
		OperatorLike, OperatorIsNull, OperatorIsNotNull:
		return true
	}
	return false
}

// RuleCondition is one field/operator/value clause. Conditions in a rule are
// AND-joined in list order; IS NULL / IS NOT NULL ignore Value.
type RuleCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// AlertRule is a persisted, user-authored exception definition over one
// data source. Exactly one of Conditions or AdvancedExpression carries the
// predicate; when both are empty the rule compiles to a flagged match-all.
type AlertRule struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Severity           Severity        `json:"severity"`
	DataSource         string          `json:"dataSource"`
	RefreshInterval    int             `json:"refreshInterval"` // seconds; 0 = manual only
	Enabled            bool            `json:"enabled"`
	Conditions         []RuleCondition `json:"conditions,omitempty"`
	AdvancedExpression string          `json:"advancedExpression,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// IsAdvanced reports whether the rule carries a raw predicate expression.
func (r *AlertRule) IsAdvanced() bool {
	return r.AdvancedExpression != ""
}

// AlertResult is the transient outcome of evaluating one rule at one point
// in time. It is never persisted; each evaluation round replaces the last.
type AlertResult struct {
	RuleID       string            `json:"ruleId"`
	RuleName     string            `json:"ruleName"`
	Severity     Severity          `json:"severity"`
	MatchCount   int               `json:"matchCount"`
	MatchingRows []queryengine.Row `json:"matchingRows"`
	LastChecked  time.Time         `json:"lastChecked"`
	Error        string            `json:"error,omitempty"`
}

package rules

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rpogula2014/dcdashboard/internal/logger"
)

// matchAllPredicate is what an empty rule compiles to. A rule with neither
// conditions nor an advanced expression matches every row; compilation flags
// it with a warning instead of failing, so an operator can spot and fix the
// rule rather than wonder why it vanished.
const matchAllPredicate = "1=1"

// Compiler turns rule definitions into executable SQL boolean predicates.
// The clock is injectable so relative-date resolution is testable.
type Compiler struct {
	now func() time.Time
	log logger.Logger
}

// NewCompiler creates a Compiler anchored to the wall clock.
func NewCompiler(log logger.Logger) *Compiler {
	return &Compiler{now: time.Now, log: log}
}

// BuildWhereClause compiles a rule to a single SQL boolean predicate.
// Advanced expressions pass through with only relative-date tokens resolved;
// condition lists are AND-joined in list order.
func (c *Compiler) BuildWhereClause(rule *AlertRule) string {
	if rule.IsAdvanced() {
		return c.resolveTokens(rule.AdvancedExpression)
	}
	if len(rule.Conditions) > 0 {
		parts := make([]string, 0, len(rule.Conditions))
		for i := range rule.Conditions {
			parts = append(parts, c.renderCondition(&rule.Conditions[i]))
		}
		return strings.Join(parts, " AND ")
	}
	c.log.Warn("rule has no conditions or expression, compiling to match-all",
		logger.String("rule", rule.Name),
		logger.String("rule_id", rule.ID))
	return matchAllPredicate
}

func (c *Compiler) renderCondition(cond *RuleCondition) string {
	switch cond.Operator {
	case OperatorIsNull, OperatorIsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator)
	case OperatorLike:
		return fmt.Sprintf("%s LIKE '%%%s%%'", cond.Field, escapeSingleQuotes(c.resolveTokens(cond.Value)))
	default:
		return fmt.Sprintf("%s %s %s", cond.Field, cond.Operator, c.renderValue(cond.Value))
	}
}

// renderValue resolves relative-date tokens, then renders numbers bare and
// everything else single-quoted.
func (c *Compiler) renderValue(value string) string {
	resolved := c.resolveTokens(value)
	if resolved == value {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return value
		}
	}
	return "'" + escapeSingleQuotes(resolved) + "'"
}

func escapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// relativeTokenPattern matches candidate relative-date tokens anywhere in a
// value or expression. Tokens that match the pattern but not a known form
// (for example @NEXTWEEK) are left untouched.
var relativeTokenPattern = regexp.MustCompile(`@[A-Z]+(?:[+-]\d+)?`)

// todayOffsetPattern extracts the day offset from @TODAY+N / @TODAY-N.
var todayOffsetPattern = regexp.MustCompile(`^@TODAY([+-]\d+)$`)

// resolveTokens replaces every resolvable relative-date token in s with a
// concrete YYYY-MM-DD calendar date anchored to the current day. Resolution
// happens at evaluation time so rules like "due today" re-anchor every run.
func (c *Compiler) resolveTokens(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}
	return relativeTokenPattern.ReplaceAllStringFunc(s, func(token string) string {
		if resolved, ok := resolveRelativeDate(token, c.now()); ok {
			return resolved
		}
		return token
	})
}

// resolveRelativeDate resolves one token against the given instant. The
// time of day is cleared to midnight before any day arithmetic, and the
// result renders as a calendar date.
func resolveRelativeDate(token string, now time.Time) (string, bool) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch token {
	case "@TODAY":
		return midnight.Format(time.DateOnly), true
	case "@TOMORROW":
		return midnight.AddDate(0, 0, 1).Format(time.DateOnly), true
	case "@YESTERDAY":
		return midnight.AddDate(0, 0, -1).Format(time.DateOnly), true
	}

	if m := todayOffsetPattern.FindStringSubmatch(token); m != nil {
		days, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		return midnight.AddDate(0, 0, days).Format(time.DateOnly), true
	}
	return "", false
}

// QueryEngine is the engine surface the rule engine depends on. The real
// implementation is queryengine.Service; tests substitute fakes.
type QueryEngine interface {
	Query(ctx context.Context, sql string) ([]map[string]any, error)
	TableExists(name string) bool
}

// ExpressionValidator checks a raw predicate against a data source before it
// may be persisted on an enabled advanced rule.
type ExpressionValidator interface {
	ValidateWhereClause(ctx context.Context, dataSource, whereClause string) error
}

// Validator implements ExpressionValidator by probing the query engine: the
// predicate is valid exactly when the engine will execute it, regardless of
// how many rows it matches.
type Validator struct {
	engine   QueryEngine
	compiler *Compiler
}

// NewValidator creates a Validator on top of the query engine.
func NewValidator(engine QueryEngine, compiler *Compiler) *Validator {
	return &Validator{engine: engine, compiler: compiler}
}

// ValidateWhereClause submits SELECT 1 FROM <dataSource> WHERE <clause>
// LIMIT 1. Any execution failure invalidates the clause, with the engine's
// error surfaced to the author. Relative-date tokens are resolved first so
// validation exercises the same text evaluation will.
func (v *Validator) ValidateWhereClause(ctx context.Context, dataSource, whereClause string) error {
	if !ValidDataSource(dataSource) {
		return fmt.Errorf("unknown data source %q", dataSource)
	}
	if strings.TrimSpace(whereClause) == "" {
		return fmt.Errorf("where clause must not be empty")
	}
	probe := fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1",
		dataSource, v.compiler.resolveTokens(whereClause))
	if _, err := v.engine.Query(ctx, probe); err != nil {
		return fmt.Errorf("invalid where clause: %w", err)
	}
	return nil
}

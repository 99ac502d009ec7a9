package rules

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rpogula2014/dcdashboard/internal/logger"
	"github.com/rpogula2014/dcdashboard/internal/metrics"
	"github.com/rpogula2014/dcdashboard/internal/queryengine"
)

// matchLimit caps the rows returned per rule. When a result set hits the cap
// exactly, a second COUNT(*) query recovers the true match count.
const matchLimit = 500

// Executor runs compiled predicates against the query engine. Rule failures
// are isolated: a bad rule produces an error-carrying result, never an
// aborted round.
type Executor struct {
	engine   QueryEngine
	compiler *Compiler
	log      logger.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(engine QueryEngine, compiler *Compiler, log logger.Logger) *Executor {
	return &Executor{engine: engine, compiler: compiler, log: log}
}

// Evaluate runs a single rule and always returns a result. Errors land in
// the result's Error field with zero counts and no rows.
func (e *Executor) Evaluate(ctx context.Context, rule *AlertRule) AlertResult {
	result := AlertResult{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		LastChecked: time.Now(),
	}
	metrics.RuleEvaluations.WithLabelValues(string(rule.Severity)).Inc()

	if !e.engine.TableExists(rule.DataSource) {
		// Snapshots load asynchronously after startup; this is transient,
		// not a rule defect.
		result.Error = fmt.Sprintf("data source %s is not loaded yet", rule.DataSource)
		metrics.RuleEvaluationFailures.WithLabelValues("table_not_loaded").Inc()
		return result
	}

	whereClause := e.compiler.BuildWhereClause(rule)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s LIMIT %d", rule.DataSource, whereClause, matchLimit)

	rows, err := e.engine.Query(ctx, query)
	if err != nil {
		e.log.Warn("rule evaluation failed",
			logger.String("rule", rule.Name),
			logger.String("where", whereClause),
			logger.Error(err))
		result.Error = err.Error()
		metrics.RuleEvaluationFailures.WithLabelValues("query_failed").Inc()
		return result
	}

	result.MatchingRows = rows
	result.MatchCount = len(rows)

	if len(rows) == matchLimit {
		count, err := e.exactCount(ctx, rule.DataSource, whereClause)
		if err != nil {
			e.log.Warn("exact count query failed",
				logger.String("rule", rule.Name),
				logger.Error(err))
			result = AlertResult{
				RuleID:      rule.ID,
				RuleName:    rule.Name,
				Severity:    rule.Severity,
				LastChecked: result.LastChecked,
				Error:       err.Error(),
			}
			metrics.RuleEvaluationFailures.WithLabelValues("count_failed").Inc()
			return result
		}
		result.MatchCount = count
	}
	return result
}

func (e *Executor) exactCount(ctx context.Context, dataSource, whereClause string) (int, error) {
	rows, err := e.engine.Query(ctx,
		fmt.Sprintf("SELECT COUNT(*) AS match_count FROM %s WHERE %s", dataSource, whereClause))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("count query returned no rows")
	}
	return toInt(rows[0]["match_count"])
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

// EvaluateAll evaluates every enabled rule concurrently and returns exactly
// one result per enabled rule, ordered by severity (critical, warning, info)
// and then by descending match count within a tier.
func (e *Executor) EvaluateAll(ctx context.Context, allRules []AlertRule) []AlertResult {
	enabled := make([]AlertRule, 0, len(allRules))
	for i := range allRules {
		if allRules[i].Enabled {
			enabled = append(enabled, allRules[i])
		}
	}
	if len(enabled) == 0 {
		return []AlertResult{}
	}

	start := time.Now()
	results := make([]AlertResult, len(enabled))
	var wg sync.WaitGroup
	for i := range enabled {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Evaluate(ctx, &enabled[i])
		}(i)
	}
	wg.Wait()
	metrics.EvaluationRoundDuration.Observe(time.Since(start).Seconds())

	sortResults(results)
	return results
}

// sortResults applies the display contract: all criticals first, then
// warnings, then infos; within a tier, higher match counts first. A critical
// with zero matches still outranks a warning with matches.
func sortResults(results []AlertResult) {
	sort.SliceStable(results, func(i, j int) bool {
		ri, iKnown := severityRank[results[i].Severity]
		rj, jKnown := severityRank[results[j].Severity]
		if !iKnown {
			ri = len(severityRank)
		}
		if !jKnown {
			rj = len(severityRank)
		}
		if ri != rj {
			return ri < rj
		}
		return results[i].MatchCount > results[j].MatchCount
	})
}

var _ QueryEngine = (*queryengine.Service)(nil)

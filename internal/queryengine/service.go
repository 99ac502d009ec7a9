// Package queryengine manages the process-local analytical database that
// holds operational table snapshots and answers the rule engine's SQL
// predicates. One engine instance serves the whole process.
package queryengine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/rpogula2014/dcdashboard/internal/logger"
)

// Row is a single result record keyed by column name.
type Row = map[string]any

// ColumnInfo describes one column of an ingested table, used by the
// rule-builder field pickers.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Config tunes the engine instance.
type Config struct {
	// DSN is the SQLite data source. The default keeps all snapshots in
	// process memory; cache=shared lets the single pooled connection and
	// short-lived introspection statements see the same database.
	DSN string
	// ColumnCacheTTL bounds how long Columns results are cached.
	ColumnCacheTTL time.Duration
}

const (
	defaultDSN            = "file:dcdash?mode=memory&cache=shared"
	defaultColumnCacheTTL = 5 * time.Minute
)

// Service is the query engine lifecycle manager. Initialization is lazy and
// once-only: every caller, concurrent first callers included, converges on
// the same attempt, and a failed attempt is cached and re-surfaced rather
// than retried.
type Service struct {
	cfg Config
	log logger.Logger

	initOnce sync.Once
	db       *gorm.DB
	initErr  error

	colCache *cache.Cache
}

// New creates a Service. The database is not opened until Initialize or the
// first operation needing it.
func New(cfg Config, log logger.Logger) *Service {
	if cfg.DSN == "" {
		cfg.DSN = defaultDSN
	}
	if cfg.ColumnCacheTTL <= 0 {
		cfg.ColumnCacheTTL = defaultColumnCacheTTL
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		colCache: cache.New(cfg.ColumnCacheTTL, 2*cfg.ColumnCacheTTL),
	}
}

// Initialize opens the engine if it is not open yet. Idempotent; safe for
// concurrent first callers.
func (s *Service) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.db, s.initErr = s.open(ctx)
		if s.initErr != nil {
			s.log.Error("query engine initialization failed", logger.Error(s.initErr))
			return
		}
		s.log.Info("query engine initialized", logger.String("dsn", s.cfg.DSN))
	})
	return s.initErr
}

func (s *Service) open(ctx context.Context) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(s.cfg.DSN), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open analytical database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	// A single connection keeps the in-memory database alive and makes each
	// table replace atomic from the perspective of concurrent readers.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping analytical database: %w", err)
	}
	return db, nil
}

// handle returns the context-bound database, initializing on first use.
func (s *Service) handle(ctx context.Context) (*gorm.DB, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	return s.db.WithContext(ctx), nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdent reports whether s is safe to splice into DDL as an identifier.
func validIdent(s string) bool {
	return identPattern.MatchString(s)
}

// LoadTable replaces the named table with the given row collection. An empty
// collection is a logged no-op that leaves any existing table untouched.
// The replace is transactional: on failure the previous snapshot survives.
func (s *Service) LoadTable(ctx context.Context, name string, rows []Row, replace bool) error {
	if !validIdent(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	if len(rows) == 0 {
		s.log.Warn("skipping table load with empty snapshot",
			logger.String("table", name))
		return nil
	}

	db, err := s.handle(ctx)
	if err != nil {
		return err
	}

	cols, err := inferColumns(rows)
	if err != nil {
		return fmt.Errorf("failed to derive schema for table %s: %w", name, err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", name)).Error; err != nil {
				return fmt.Errorf("failed to drop table %s: %w", name, err)
			}
		}
		if replace || !tx.Migrator().HasTable(name) {
			if err := tx.Exec(createTableSQL(name, cols)).Error; err != nil {
				return fmt.Errorf("failed to create table %s: %w", name, err)
			}
		}
		return insertRows(tx, name, cols, rows)
	})
	if err != nil {
		return err
	}

	s.colCache.Delete(name)
	s.log.Info("table snapshot loaded",
		logger.String("table", name),
		logger.Int("rows", len(rows)))
	return nil
}

// Query executes an arbitrary read statement and returns the result rows.
// Engine failures propagate verbatim so rule authors see the real error.
func (s *Service) Query(ctx context.Context, query string) ([]Row, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	var out []Row
	if err := db.Raw(query).Scan(&out).Error; err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return out, nil
}

// TableExists reports whether the named table has been loaded. Introspection
// failures, including an engine that never initialized, degrade to false.
func (s *Service) TableExists(name string) bool {
	if !validIdent(name) {
		return false
	}
	if err := s.Initialize(context.Background()); err != nil {
		return false
	}
	return s.db.Migrator().HasTable(name)
}

// Columns returns the column catalog of a loaded table. Results are cached
// briefly; the cache is invalidated on every snapshot load of the table.
func (s *Service) Columns(ctx context.Context, name string) ([]ColumnInfo, error) {
	if !validIdent(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	if cached, ok := s.colCache.Get(name); ok {
		if cols, ok := cached.([]ColumnInfo); ok {
			return cols, nil
		}
	}

	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	types, err := db.Migrator().ColumnTypes(name)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect table %s: %w", name, err)
	}
	cols := make([]ColumnInfo, 0, len(types))
	for _, ct := range types {
		cols = append(cols, ColumnInfo{Name: ct.Name(), Type: ct.DatabaseTypeName()})
	}
	s.colCache.Set(name, cols, cache.DefaultExpiration)
	return cols, nil
}

// column pairs a name with its SQLite affinity.
type column struct {
	name    string
	sqlType string
}

// inferColumns derives the table schema from the row collection: the first
// row fixes the column set, and the first non-nil value per column fixes the
// affinity. Loaders emit uniform rows, so this is a contract, not a guess.
func inferColumns(rows []Row) ([]column, error) {
	names := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		if !validIdent(name) {
			return nil, fmt.Errorf("invalid column name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	cols := make([]column, 0, len(names))
	for _, name := range names {
		cols = append(cols, column{name: name, sqlType: affinityFor(name, rows)})
	}
	return cols, nil
}

func affinityFor(name string, rows []Row) string {
	for _, r := range rows {
		switch r[name].(type) {
		case nil:
			continue
		case int, int32, int64, uint, uint32, uint64, bool:
			return "INTEGER"
		case float32, float64:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func createTableSQL(name string, cols []column) string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("%s %s", c.name, c.sqlType))
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))
}

// maxBindVars stays under SQLite's historical 999-parameter statement limit.
const maxBindVars = 900

func insertRows(tx *gorm.DB, name string, cols []column, rows []Row) error {
	colNames := make([]string, len(cols))
	holders := make([]string, len(cols))
	for i, c := range cols {
		colNames[i] = c.name
		holders[i] = "?"
	}
	rowTemplate := "(" + strings.Join(holders, ", ") + ")"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", name, strings.Join(colNames, ", "))

	chunkSize := maxBindVars / len(cols)
	if chunkSize < 1 {
		chunkSize = 1
	}

	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, r := range chunk {
			values[i] = rowTemplate
			for _, c := range cols {
				args = append(args, normalizeValue(r[c.name]))
			}
		}
		if err := tx.Exec(prefix+strings.Join(values, ", "), args...).Error; err != nil {
			return fmt.Errorf("failed to insert rows into %s: %w", name, err)
		}
	}
	return nil
}

// normalizeValue renders values the predicate layer compares as text.
// Timestamps become calendar strings so date predicates match what the
// compiler emits for relative-date tokens.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format("2006-01-02 15:04:05")
	case *time.Time:
		if t == nil {
			return nil
		}
		return normalizeValue(*t)
	default:
		return v
	}
}

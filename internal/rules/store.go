package rules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/rpogula2014/dcdashboard/internal/logger"
)

// rulesKey is the single durable-storage key holding the whole rule
// collection as one serialized envelope.
var rulesKey = []byte("alert_rules")

// rulesSchemaVersion is bumped when the persisted rule shape changes; load
// branches on it to run migrations.
const rulesSchemaVersion = 1

// ErrRuleNotFound is returned when no rule matches the requested ID.
var ErrRuleNotFound = errors.New("alert rule not found")

// rulesEnvelope is the persisted form of the rule collection.
type rulesEnvelope struct {
	SchemaVersion int         `json:"schemaVersion"`
	Rules         []AlertRule `json:"rules"`
}

// Store holds the alert rule collection. The in-memory copy is authoritative;
// every mutation synchronously writes the whole collection to badger, and a
// failed write is logged without blocking further edits.
//
// All methods are safe for concurrent use: badger serializes writes and the
// store guards its in-memory slice internally.
type Store struct {
	db        *badger.DB
	validator ExpressionValidator
	log       logger.Logger
	now       func() time.Time

	mu    chan struct{} // 1-buffered semaphore; see lock/unlock
	rules []AlertRule
}

// NewStore loads the rule collection from db, seeding the default rule set
// when nothing (or nothing readable) is persisted. The validator guards
// advanced-expression rules: they are checked before any enabled persist.
func NewStore(db *badger.DB, validator ExpressionValidator, log logger.Logger) (*Store, error) {
	s := &Store{
		db:        db,
		validator: validator,
		log:       log,
		now:       time.Now,
		mu:        make(chan struct{}, 1),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) lock()   { s.mu <- struct{}{} }
func (s *Store) unlock() { <-s.mu }

// load reads the persisted envelope. A missing key, unreadable payload, or
// unknown schema version all fall back to the default rule set, which is
// persisted immediately so the next run starts clean.
func (s *Store) load() error {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(rulesKey)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		s.log.Info("no persisted alert rules, seeding defaults")
		s.rules = DefaultRules(s.now())
		return s.persist()
	case err != nil:
		return fmt.Errorf("failed to read alert rules: %w", err)
	}

	var envelope rulesEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.log.Warn("persisted alert rules are unreadable, seeding defaults", logger.Error(err))
		s.rules = DefaultRules(s.now())
		return s.persist()
	}
	if envelope.SchemaVersion != rulesSchemaVersion {
		s.log.Warn("persisted alert rules have unknown schema version, seeding defaults",
			logger.Int("version", envelope.SchemaVersion))
		s.rules = DefaultRules(s.now())
		return s.persist()
	}

	s.rules = envelope.Rules
	s.log.Info("alert rules loaded", logger.Int("count", len(s.rules)))
	return nil
}

// persist writes the whole collection under the single key. Caller holds
// the lock. Persistence failure is non-fatal: memory stays authoritative.
func (s *Store) persist() error {
	envelope := rulesEnvelope{SchemaVersion: rulesSchemaVersion, Rules: s.rules}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to serialize alert rules: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(rulesKey, raw)
	})
	if err != nil {
		return fmt.Errorf("failed to persist alert rules: %w", err)
	}
	return nil
}

func (s *Store) persistLogged() {
	if err := s.persist(); err != nil {
		s.log.Error("alert rule persistence failed, in-memory state remains authoritative",
			logger.Error(err))
	}
}

// NewRule is the caller-supplied part of a rule; Add assigns identity and
// timestamps.
type NewRule struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Severity           Severity        `json:"severity"`
	DataSource         string          `json:"dataSource"`
	RefreshInterval    int             `json:"refreshInterval"`
	Enabled            bool            `json:"enabled"`
	Conditions         []RuleCondition `json:"conditions,omitempty"`
	AdvancedExpression string          `json:"advancedExpression,omitempty"`
}

func (n *NewRule) validate() error {
	if n.Name == "" {
		return errors.New("rule name is required")
	}
	if !n.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", n.Severity)
	}
	if !ValidDataSource(n.DataSource) {
		return fmt.Errorf("unknown data source %q", n.DataSource)
	}
	if n.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must not be negative, got %d", n.RefreshInterval)
	}
	if len(n.Conditions) > 0 && n.AdvancedExpression != "" {
		return errors.New("rule may carry conditions or an advanced expression, not both")
	}
	for i := range n.Conditions {
		c := &n.Conditions[i]
		if c.Field == "" {
			return fmt.Errorf("condition %d has no field", i)
		}
		if !ValidOperator(c.Operator) {
			return fmt.Errorf("condition %d has unknown operator %q", i, c.Operator)
		}
	}
	return nil
}

// Add creates a rule from the supplied definition, assigning a fresh ID and
// createdAt=updatedAt=now. Enabled advanced-expression rules must pass
// engine validation before anything is persisted.
func (s *Store) Add(ctx context.Context, def NewRule) (AlertRule, error) {
	if err := def.validate(); err != nil {
		return AlertRule{}, err
	}
	if def.AdvancedExpression != "" && def.Enabled {
		if err := s.validator.ValidateWhereClause(ctx, def.DataSource, def.AdvancedExpression); err != nil {
			return AlertRule{}, err
		}
	}

	now := s.now()
	rule := AlertRule{
		ID:                 uuid.NewString(),
		Name:               def.Name,
		Description:        def.Description,
		Severity:           def.Severity,
		DataSource:         def.DataSource,
		RefreshInterval:    def.RefreshInterval,
		Enabled:            def.Enabled,
		Conditions:         def.Conditions,
		AdvancedExpression: def.AdvancedExpression,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	s.lock()
	defer s.unlock()
	s.rules = append(s.rules, rule)
	s.persistLogged()
	return rule, nil
}

// RulePatch carries the fields an update may change; nil fields are left
// untouched.
type RulePatch struct {
	Name               *string          `json:"name,omitempty"`
	Description        *string          `json:"description,omitempty"`
	Severity           *Severity        `json:"severity,omitempty"`
	DataSource         *string          `json:"dataSource,omitempty"`
	RefreshInterval    *int             `json:"refreshInterval,omitempty"`
	Enabled            *bool            `json:"enabled,omitempty"`
	Conditions         *[]RuleCondition `json:"conditions,omitempty"`
	AdvancedExpression *string          `json:"advancedExpression,omitempty"`
}

// Update merges the patch into the identified rule and bumps updatedAt.
// The merged rule is re-validated, including engine validation when it ends
// up enabled with an advanced expression.
func (s *Store) Update(ctx context.Context, id string, patch RulePatch) (AlertRule, error) {
	s.lock()
	defer s.unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return AlertRule{}, ErrRuleNotFound
	}

	merged := s.rules[idx]
	if patch.Name != nil {
		merged.Name = *patch.Name
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Severity != nil {
		merged.Severity = *patch.Severity
	}
	if patch.DataSource != nil {
		merged.DataSource = *patch.DataSource
	}
	if patch.RefreshInterval != nil {
		merged.RefreshInterval = *patch.RefreshInterval
	}
	if patch.Enabled != nil {
		merged.Enabled = *patch.Enabled
	}
	if patch.Conditions != nil {
		merged.Conditions = *patch.Conditions
		merged.AdvancedExpression = ""
	}
	if patch.AdvancedExpression != nil {
		merged.AdvancedExpression = *patch.AdvancedExpression
		if *patch.AdvancedExpression != "" {
			merged.Conditions = nil
		}
	}

	def := NewRule{
		Name:               merged.Name,
		Description:        merged.Description,
		Severity:           merged.Severity,
		DataSource:         merged.DataSource,
		RefreshInterval:    merged.RefreshInterval,
		Enabled:            merged.Enabled,
		Conditions:         merged.Conditions,
		AdvancedExpression: merged.AdvancedExpression,
	}
	if err := def.validate(); err != nil {
		return AlertRule{}, err
	}
	if merged.AdvancedExpression != "" && merged.Enabled {
		if err := s.validator.ValidateWhereClause(ctx, merged.DataSource, merged.AdvancedExpression); err != nil {
			return AlertRule{}, err
		}
	}

	merged.UpdatedAt = s.now()
	s.rules[idx] = merged
	s.persistLogged()
	return merged, nil
}

// Remove deletes the identified rule.
func (s *Store) Remove(id string) error {
	s.lock()
	defer s.unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrRuleNotFound
	}
	s.rules = append(s.rules[:idx], s.rules[idx+1:]...)
	s.persistLogged()
	return nil
}

// Toggle flips the rule's enabled flag and bumps updatedAt. An advanced
// rule being switched on is re-validated first.
func (s *Store) Toggle(ctx context.Context, id string) (AlertRule, error) {
	s.lock()
	defer s.unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return AlertRule{}, ErrRuleNotFound
	}

	rule := s.rules[idx]
	if !rule.Enabled && rule.AdvancedExpression != "" {
		if err := s.validator.ValidateWhereClause(ctx, rule.DataSource, rule.AdvancedExpression); err != nil {
			return AlertRule{}, err
		}
	}
	rule.Enabled = !rule.Enabled
	rule.UpdatedAt = s.now()
	s.rules[idx] = rule
	s.persistLogged()
	return rule, nil
}

// Get returns the identified rule.
func (s *Store) Get(id string) (AlertRule, error) {
	s.lock()
	defer s.unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return AlertRule{}, ErrRuleNotFound
	}
	return s.rules[idx], nil
}

// List returns a copy of all rules in creation order.
func (s *Store) List() []AlertRule {
	s.lock()
	defer s.unlock()

	out := make([]AlertRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Enabled returns a copy of the currently enabled rules.
func (s *Store) Enabled() []AlertRule {
	s.lock()
	defer s.unlock()

	var out []AlertRule
	for i := range s.rules {
		if s.rules[i].Enabled {
			out = append(out, s.rules[i])
		}
	}
	return out
}

// Snapshot returns the persisted envelope form of the collection, suitable
// for export.
func (s *Store) Snapshot() ([]byte, error) {
	s.lock()
	defer s.unlock()

	envelope := rulesEnvelope{SchemaVersion: rulesSchemaVersion, Rules: s.rules}
	raw, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize alert rules: %w", err)
	}
	return raw, nil
}

// Restore replaces the whole collection with a previously exported envelope.
// Every rule is validated before anything changes; enabled advanced rules are
// checked against the engine.
func (s *Store) Restore(ctx context.Context, raw []byte) error {
	var envelope rulesEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to parse alert rules export: %w", err)
	}
	if envelope.SchemaVersion != rulesSchemaVersion {
		return fmt.Errorf("unsupported alert rules schema version %d", envelope.SchemaVersion)
	}

	seen := make(map[string]struct{}, len(envelope.Rules))
	for i := range envelope.Rules {
		r := &envelope.Rules[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate rule ID %q in export", r.ID)
		}
		seen[r.ID] = struct{}{}

		def := NewRule{
			Name:               r.Name,
			Description:        r.Description,
			Severity:           r.Severity,
			DataSource:         r.DataSource,
			RefreshInterval:    r.RefreshInterval,
			Enabled:            r.Enabled,
			Conditions:         r.Conditions,
			AdvancedExpression: r.AdvancedExpression,
		}
		if err := def.validate(); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
		if r.AdvancedExpression != "" && r.Enabled {
			if err := s.validator.ValidateWhereClause(ctx, r.DataSource, r.AdvancedExpression); err != nil {
				return fmt.Errorf("rule %q: %w", r.Name, err)
			}
		}
	}

	s.lock()
	defer s.unlock()
	s.rules = envelope.Rules
	s.persistLogged()
	s.log.Info("alert rules restored from export", logger.Int("count", len(s.rules)))
	return nil
}

// indexOf returns the slice index of the rule with the given ID, or -1.
// Caller holds the lock.
func (s *Store) indexOf(id string) int {
	for i := range s.rules {
		if s.rules[i].ID == id {
			return i
		}
	}
	return -1
}

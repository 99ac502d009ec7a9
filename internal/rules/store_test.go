package rules

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	err     error
	checked []string
}

func (v *stubValidator) ValidateWhereClause(_ context.Context, _, whereClause string) error {
	v.checked = append(v.checked, whereClause)
	return v.err
}

func testBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestStore(t *testing.T, db *badger.DB, validator ExpressionValidator) *Store {
	t.Helper()
	if validator == nil {
		validator = &stubValidator{}
	}
	store, err := NewStore(db, validator, testLogger())
	require.NoError(t, err)
	return store
}

func sampleRule() NewRule {
	return NewRule{
		Name:            "Stuck pick waves",
		Description:     "Lines picked but not shipped",
		Severity:        SeverityWarning,
		DataSource:      DataSourceOrderLines,
		RefreshInterval: 120,
		Enabled:         true,
		Conditions: []RuleCondition{
			{Field: "original_line_status", Operator: OperatorLike, Value: "PICKED"},
		},
	}
}

func TestStore_SeedsDefaultsOnEmptyDB(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)

	rules := store.List()
	require.NotEmpty(t, rules)
	for _, r := range rules {
		assert.NotEmpty(t, r.ID)
		assert.True(t, r.Severity.Valid(), "rule %q has invalid severity", r.Name)
		assert.True(t, ValidDataSource(r.DataSource), "rule %q has unknown data source", r.Name)
	}
}

func TestStore_ReloadsPersistedRules(t *testing.T) {
	db := testBadger(t)
	store := newTestStore(t, db, nil)

	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)

	reloaded := newTestStore(t, db, nil)
	got, err := reloaded.Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stuck pick waves", got.Name)
	assert.Len(t, reloaded.List(), len(store.List()))
}

func TestStore_ReseedsOnCorruptPayload(t *testing.T) {
	db := testBadger(t)
	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set(rulesKey, []byte("{not json"))
	})
	require.NoError(t, err)

	store := newTestStore(t, db, nil)
	assert.NotEmpty(t, store.List())
}

func TestStore_ReseedsOnUnknownSchemaVersion(t *testing.T) {
	db := testBadger(t)
	raw, err := json.Marshal(rulesEnvelope{SchemaVersion: 99})
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set(rulesKey, raw)
	}))

	store := newTestStore(t, db, nil)
	assert.NotEmpty(t, store.List())
}

func TestStore_AddAssignsIdentityAndTimestamps(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	fixed := time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)

	assert.NotEmpty(t, added.ID)
	assert.Equal(t, fixed, added.CreatedAt)
	assert.Equal(t, fixed, added.UpdatedAt)
}

func TestStore_AddRejectsInvalidRules(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*NewRule)
	}{
		{"empty name", func(r *NewRule) { r.Name = "" }},
		{"bad severity", func(r *NewRule) { r.Severity = "urgent" }},
		{"unknown data source", func(r *NewRule) { r.DataSource = "dc_unknown" }},
		{"negative interval", func(r *NewRule) { r.RefreshInterval = -5 }},
		{"conditions and expression", func(r *NewRule) { r.AdvancedExpression = "1=1" }},
		{"bad operator", func(r *NewRule) { r.Conditions[0].Operator = "~=" }},
		{"empty field", func(r *NewRule) { r.Conditions[0].Field = "" }},
	}

	before := len(store.List())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := sampleRule()
			tt.mutate(&def)
			_, err := store.Add(ctx, def)
			assert.Error(t, err)
		})
	}
	assert.Len(t, store.List(), before, "failed adds must not change the collection")
}

func TestStore_AddValidatesEnabledAdvancedExpression(t *testing.T) {
	validator := &stubValidator{err: errors.New("near \"FRM\": syntax error")}
	store := newTestStore(t, testBadger(t), validator)

	def := sampleRule()
	def.Conditions = nil
	def.AdvancedExpression = "hold_applied = 'Y'"

	_, err := store.Add(context.Background(), def)
	assert.Error(t, err)
	assert.Len(t, validator.checked, 1)

	// A disabled advanced rule skips engine validation.
	def.Enabled = false
	_, err = store.Add(context.Background(), def)
	assert.NoError(t, err)
	assert.Len(t, validator.checked, 1)
}

func TestStore_UpdateMergesPatch(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)

	later := added.UpdatedAt.Add(time.Hour)
	store.now = func() time.Time { return later }

	name := "Stuck waves, renamed"
	sev := SeverityCritical
	updated, err := store.Update(context.Background(), added.ID, RulePatch{
		Name:     &name,
		Severity: &sev,
	})
	require.NoError(t, err)

	assert.Equal(t, name, updated.Name)
	assert.Equal(t, SeverityCritical, updated.Severity)
	assert.Equal(t, added.Description, updated.Description, "unpatched fields stay")
	assert.Equal(t, added.CreatedAt, updated.CreatedAt)
	assert.Equal(t, later, updated.UpdatedAt)
}

func TestStore_UpdateSwitchingToAdvancedClearsConditions(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)

	expr := "reserved_qty > 0 AND routed != 'Y'"
	updated, err := store.Update(context.Background(), added.ID, RulePatch{
		AdvancedExpression: &expr,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Conditions)
	assert.Equal(t, expr, updated.AdvancedExpression)
}

func TestStore_UpdateUnknownID(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	_, err := store.Update(context.Background(), "no-such-rule", RulePatch{})
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestStore_Remove(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)

	require.NoError(t, store.Remove(added.ID))
	_, err = store.Get(added.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	assert.ErrorIs(t, store.Remove(added.ID), ErrRuleNotFound)
}

func TestStore_Toggle(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)
	require.True(t, added.Enabled)

	toggled, err := store.Toggle(context.Background(), added.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	toggled, err = store.Toggle(context.Background(), added.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Enabled)
}

func TestStore_ToggleRevalidatesAdvancedRuleOnEnable(t *testing.T) {
	validator := &stubValidator{}
	store := newTestStore(t, testBadger(t), validator)

	def := sampleRule()
	def.Conditions = nil
	def.AdvancedExpression = "hold_applied = 'Y'"
	def.Enabled = false
	added, err := store.Add(context.Background(), def)
	require.NoError(t, err)
	require.Empty(t, validator.checked)

	validator.err = errors.New("no such column: hold_applied")
	_, err = store.Toggle(context.Background(), added.ID)
	assert.Error(t, err)

	got, err := store.Get(added.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled, "failed validation must leave the rule disabled")
}

func TestStore_EnabledFiltersDisabledRules(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)

	enabledBefore := len(store.Enabled())
	_, err = store.Toggle(context.Background(), added.ID)
	require.NoError(t, err)
	assert.Len(t, store.Enabled(), enabledBefore-1)
}

func TestStore_ListReturnsCopy(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)

	rules := store.List()
	require.NotEmpty(t, rules)
	rules[0].Name = "mutated"

	assert.NotEqual(t, "mutated", store.List()[0].Name)
}

func TestStore_SnapshotRestoreRoundTrip(t *testing.T) {
	db := testBadger(t)
	store := newTestStore(t, db, nil)
	added, err := store.Add(context.Background(), sampleRule())
	require.NoError(t, err)

	raw, err := store.Snapshot()
	require.NoError(t, err)

	other := newTestStore(t, testBadger(t), nil)
	require.NoError(t, other.Restore(context.Background(), raw))

	got, err := other.Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, added.Name, got.Name)
	assert.Len(t, other.List(), len(store.List()))
}

func TestStore_RestoreRejectsBadPayloads(t *testing.T) {
	store := newTestStore(t, testBadger(t), nil)
	before := store.List()

	assert.Error(t, store.Restore(context.Background(), []byte("{not json")))

	raw, err := json.Marshal(rulesEnvelope{SchemaVersion: 7})
	require.NoError(t, err)
	assert.Error(t, store.Restore(context.Background(), raw))

	dup := sampleRule()
	envelope := rulesEnvelope{
		SchemaVersion: rulesSchemaVersion,
		Rules: []AlertRule{
			{ID: "r1", Name: dup.Name, Severity: dup.Severity, DataSource: dup.DataSource, Conditions: dup.Conditions},
			{ID: "r1", Name: "other", Severity: SeverityInfo, DataSource: DataSourceOnhand},
		},
	}
	raw, err = json.Marshal(envelope)
	require.NoError(t, err)
	assert.Error(t, store.Restore(context.Background(), raw))

	assert.Equal(t, before, store.List(), "rejected restores must not change the collection")
}

func TestDefaultRules_AreWellFormed(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	defaults := DefaultRules(now)
	require.NotEmpty(t, defaults)

	compiler := testCompiler(2025, 6, 10)
	seen := make(map[string]struct{}, len(defaults))
	for _, r := range defaults {
		require.NotEmpty(t, r.ID)
		_, dup := seen[r.ID]
		assert.False(t, dup, "duplicate ID on %q", r.Name)
		seen[r.ID] = struct{}{}

		assert.True(t, r.Severity.Valid(), "rule %q", r.Name)
		assert.True(t, ValidDataSource(r.DataSource), "rule %q", r.Name)
		assert.Equal(t, now, r.CreatedAt)

		clause := compiler.BuildWhereClause(&r)
		assert.NotEqual(t, matchAllPredicate, clause, "rule %q compiles to match-all", r.Name)
		for i, c := range r.Conditions {
			assert.True(t, ValidOperator(c.Operator), "rule %q condition %d", r.Name, i)
		}
	}
}

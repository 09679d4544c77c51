package rulestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/packkeeper/internal/core/db/dbtest"
	"github.com/solatis/packkeeper/internal/rules"
	"github.com/solatis/packkeeper/internal/types"
)

func newTestStore(t *testing.T) (*Store, Account) {
	t.Helper()
	_, q := dbtest.Open(t)
	s := New(q)
	acct, err := s.EnsureAccount(context.Background(), "acme")
	require.NoError(t, err)
	return s, acct
}

func dhlRuleSet(tag string) types.RuleSet {
	return types.RuleSet{Version: 1, Rules: []types.RuleConfig{{
		Name:       "tag DHL",
		Conditions: []types.ConditionConfig{{Field: "Shipping_Provider", Operator: "equals", Value: "DHL"}},
		Actions:    []types.ActionConfig{{Type: "ADD_TAG", Value: tag}},
	}}}
}

func TestEnsureAccount(t *testing.T) {
	s, acct := newTestStore(t)
	ctx := context.Background()

	again, err := s.EnsureAccount(ctx, " acme ")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, again.ID)

	found, err := s.AccountByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, found.ID)

	_, err = s.AccountByName(ctx, "globex")
	assert.ErrorIs(t, err, types.ErrAccountNotFound)

	_, err = s.EnsureAccount(ctx, "  ")
	assert.Error(t, err)
}

func TestPutRuleSet_Versions(t *testing.T) {
	s, acct := newTestStore(t)
	ctx := context.Background()

	v1, err := s.PutRuleSet(ctx, acct.ID, "shipping", dhlRuleSet("DHL-SHIP"))
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, types.RuleSetVersion, v1.SchemaVersion)
	assert.Len(t, v1.Checksum, 64)

	same, err := s.PutRuleSet(ctx, acct.ID, "shipping", dhlRuleSet("DHL-SHIP"))
	require.NoError(t, err)
	assert.Equal(t, v1.ID, same.ID, "identical document must not create a revision")

	v2, err := s.PutRuleSet(ctx, acct.ID, "shipping", dhlRuleSet("DHL"))
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version)
	assert.NotEqual(t, v1.Checksum, v2.Checksum)

	latest, err := s.GetRuleSet(ctx, acct.ID, "shipping", 0)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, latest.ID)
	require.Len(t, latest.RuleSet.Rules, 1)
	assert.Equal(t, "DHL", latest.RuleSet.Rules[0].Steps[0].Actions[0].Value)

	old, err := s.GetRuleSet(ctx, acct.ID, "shipping", 1)
	require.NoError(t, err)
	assert.Equal(t, "DHL-SHIP", old.RuleSet.Rules[0].Steps[0].Actions[0].Value)
}

func TestPutRuleSet_StoresNormalizedShape(t *testing.T) {
	s, acct := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutRuleSet(ctx, acct.ID, "shipping", dhlRuleSet("DHL-SHIP"))
	require.NoError(t, err)

	got, err := s.GetRuleSet(ctx, acct.ID, "shipping", 0)
	require.NoError(t, err)
	assert.Equal(t, types.RuleSetVersion, got.RuleSet.Version)
	rule := got.RuleSet.Rules[0]
	assert.Empty(t, rule.Conditions, "legacy conditions folded into steps")
	require.Len(t, rule.Steps, 1)
	assert.Equal(t, types.MatchAll, rule.Steps[0].Match)
	require.NotNil(t, rule.Priority)
	assert.Equal(t, rules.DefaultPriorityBase, *rule.Priority)
	assert.Equal(t, types.LevelArticle, rule.Level)
}

func TestPutRuleSet_Rejected(t *testing.T) {
	s, acct := newTestStore(t)
	ctx := context.Background()

	bad := types.RuleSet{Rules: []types.RuleConfig{{
		Name:       "broken",
		Level:      "warehouse",
		Conditions: []types.ConditionConfig{{Field: "SKU", Operator: "resembles", Value: "A"}},
	}}}
	_, err := s.PutRuleSet(ctx, acct.ID, "broken", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInvalidRuleSet)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, rules.HasErrors(verr.Issues))
	assert.Contains(t, err.Error(), "invalid rule level")

	_, err = s.PutRuleSet(ctx, acct.ID, " ", dhlRuleSet("X"))
	assert.ErrorIs(t, err, types.ErrInvalidRuleSet)

	_, err = s.GetRuleSet(ctx, acct.ID, "broken", 0)
	assert.ErrorIs(t, err, types.ErrRuleSetNotFound)
}

func TestPutRuleSet_WarningsAccepted(t *testing.T) {
	s, acct := newTestStore(t)
	rs := types.RuleSet{Rules: []types.RuleConfig{{
		Name:       "reversed",
		Conditions: []types.ConditionConfig{{Field: "Quantity", Operator: "between", Value: "9-1"}},
		Actions:    []types.ActionConfig{{Type: "SET_PRIORITY", Value: "high"}},
	}}}
	_, err := s.PutRuleSet(context.Background(), acct.ID, "warn", rs)
	assert.NoError(t, err)
}

func TestListRuleSets(t *testing.T) {
	s, acct := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutRuleSet(ctx, acct.ID, "shipping", dhlRuleSet("A"))
	require.NoError(t, err)
	_, err = s.PutRuleSet(ctx, acct.ID, "shipping", dhlRuleSet("B"))
	require.NoError(t, err)
	_, err = s.PutRuleSet(ctx, acct.ID, "gifts", dhlRuleSet("C"))
	require.NoError(t, err)

	other, err := s.EnsureAccount(ctx, "globex")
	require.NoError(t, err)
	_, err = s.PutRuleSet(ctx, other.ID, "private", dhlRuleSet("D"))
	require.NoError(t, err)

	metas, err := s.ListRuleSets(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "gifts", metas[0].Name)
	assert.Equal(t, 1, metas[0].Version)
	assert.Equal(t, "shipping", metas[1].Name)
	assert.Equal(t, 2, metas[1].Version)

	_, err = s.GetRuleSet(ctx, acct.ID, "private", 0)
	assert.ErrorIs(t, err, types.ErrRuleSetNotFound, "rule sets are scoped to their account")
}

func TestRecordRun(t *testing.T) {
	s, acct := newTestStore(t)
	ctx := context.Background()

	meta, err := s.PutRuleSet(ctx, acct.ID, "shipping", dhlRuleSet("A"))
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	report := &rules.RunReport{RowsIn: 5, RowsOut: 6, SynthesizedRows: 1, Warnings: 2, Duration: 1500 * time.Millisecond}
	first, err := s.RecordRun(ctx, acct.ID, meta.ID, report)
	require.NoError(t, err)
	second, err := s.RecordRun(ctx, acct.ID, "", &rules.RunReport{RowsIn: 1, RowsOut: 1})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second, runs[0].ID, "newest first")
	assert.False(t, runs[0].RuleSetID.Valid)
	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, string(meta.ID), runs[1].RuleSetID.String)
	assert.Equal(t, 6, runs[1].RowsOut)
	assert.Equal(t, int64(1500), runs[1].DurationMs)
	assert.Contains(t, runs[1].Report, `"synthesized_rows":1`)

	limited, err := s.ListRuns(ctx, acct.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// Package rulestore persists per-account rule sets and run history.
//
// Rule sets are immutable revisions: every PutRuleSet whose normalized
// document differs from the latest revision inserts version N+1, an identical
// document returns the latest revision unchanged. Documents are stored as the
// normalized JSON produced by rules.EncodeRuleSet, so the engine never sees a
// legacy shape read back from the store.
package rulestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solatis/packkeeper/internal/core/db"
	"github.com/solatis/packkeeper/internal/rules"
	"github.com/solatis/packkeeper/internal/types"
)

// Store is the rule-set and run-history repository.
type Store struct {
	q   *db.Queries
	now func() time.Time
}

// New returns a store over q.
func New(q *db.Queries) *Store {
	return &Store{q: q, now: func() time.Time { return time.Now().UTC() }}
}

// Account owns rule sets, API keys and runs.
type Account struct {
	ID        string    `db:"account_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// RuleSetMeta describes one stored rule set revision.
type RuleSetMeta struct {
	ID            types.RuleSetID `db:"rule_set_id"`
	AccountID     string          `db:"account_id"`
	Name          string          `db:"name"`
	Version       int             `db:"version"`
	SchemaVersion int             `db:"schema_version"`
	Checksum      string          `db:"checksum"`
	CreatedAt     time.Time       `db:"created_at"`
}

// StoredRuleSet is a revision together with its decoded rules.
type StoredRuleSet struct {
	RuleSetMeta
	RuleSet types.RuleSet
}

type ruleSetRow struct {
	RuleSetMeta
	Document string `db:"document"`
}

// ValidationError carries the validator findings that rejected a rule set.
type ValidationError struct {
	Issues []rules.Issue
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, i := range e.Issues {
		if i.Severity == rules.SeverityError {
			msgs = append(msgs, i.String())
		}
	}
	return fmt.Sprintf("%v: %s", types.ErrInvalidRuleSet, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return types.ErrInvalidRuleSet }

// EnsureAccount returns the account named name, creating it if needed.
func (s *Store) EnsureAccount(ctx context.Context, name string) (Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, fmt.Errorf("account name is empty")
	}
	var acct Account
	err := s.q.Get(ctx, "get-account-by-name", &acct, name)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	acct = Account{ID: uuid.Must(uuid.NewV7()).String(), Name: name, CreatedAt: s.now()}
	if _, err := s.q.Exec(ctx, "insert-account", acct.ID, acct.Name, acct.CreatedAt); err != nil {
		return Account{}, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return acct, nil
}

// AccountByName looks up an existing account.
func (s *Store) AccountByName(ctx context.Context, name string) (Account, error) {
	var acct Account
	err := s.q.Get(ctx, "get-account-by-name", &acct, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("%w: %q", types.ErrAccountNotFound, name)
	}
	if err != nil {
		return Account{}, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return acct, nil
}

// PutRuleSet validates rs and stores it as the newest revision of name.
// Rule sets with validation errors are rejected with a *ValidationError.
func (s *Store) PutRuleSet(ctx context.Context, accountID, name string, rs types.RuleSet) (RuleSetMeta, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return RuleSetMeta{}, fmt.Errorf("%w: name is empty", types.ErrInvalidRuleSet)
	}
	if issues := rules.Validate(rs.Rules, nil); rules.HasErrors(issues) {
		return RuleSetMeta{}, &ValidationError{Issues: issues}
	}

	doc, err := rules.EncodeRuleSet(rs)
	if err != nil {
		return RuleSetMeta{}, err
	}
	sum := sha256.Sum256(doc)
	checksum := hex.EncodeToString(sum[:])

	var meta RuleSetMeta
	err = s.q.InTx(ctx, func(tx *db.Queries) error {
		var latest ruleSetRow
		err := tx.Get(ctx, "get-rule-set-latest", &latest, accountID, name)
		switch {
		case err == nil && latest.Checksum == checksum:
			meta = latest.RuleSetMeta
			return nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("%w: %v", types.ErrStorage, err)
		}

		meta = RuleSetMeta{
			ID:            types.NewRuleSetID(),
			AccountID:     accountID,
			Name:          name,
			Version:       latest.Version + 1,
			SchemaVersion: types.RuleSetVersion,
			Checksum:      checksum,
			CreatedAt:     s.now(),
		}
		_, err = tx.Exec(ctx, "insert-rule-set",
			string(meta.ID), meta.AccountID, meta.Name, meta.Version,
			meta.SchemaVersion, meta.Checksum, string(doc), meta.CreatedAt)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return RuleSetMeta{}, err
	}
	return meta, nil
}

// GetRuleSet returns revision version of name, or the latest if version is 0.
func (s *Store) GetRuleSet(ctx context.Context, accountID, name string, version int) (StoredRuleSet, error) {
	var row ruleSetRow
	var err error
	if version <= 0 {
		err = s.q.Get(ctx, "get-rule-set-latest", &row, accountID, name)
	} else {
		err = s.q.Get(ctx, "get-rule-set-version", &row, accountID, name, version)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return StoredRuleSet{}, fmt.Errorf("%w: %q", types.ErrRuleSetNotFound, name)
	}
	if err != nil {
		return StoredRuleSet{}, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}

	rs, err := rules.ParseRuleSet([]byte(row.Document))
	if err != nil {
		return StoredRuleSet{}, fmt.Errorf("stored rule set %q v%d: %w", name, row.Version, err)
	}
	return StoredRuleSet{RuleSetMeta: row.RuleSetMeta, RuleSet: rs}, nil
}

// ListRuleSets returns the latest revision of every rule set of the account.
func (s *Store) ListRuleSets(ctx context.Context, accountID string) ([]RuleSetMeta, error) {
	var metas []RuleSetMeta
	if err := s.q.Select(ctx, "list-rule-sets", &metas, accountID); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return metas, nil
}

// Run is one recorded engine run.
type Run struct {
	ID              types.RunID    `db:"run_id"`
	AccountID       string         `db:"account_id"`
	RuleSetID       sql.NullString `db:"rule_set_id"`
	RowsIn          int            `db:"rows_in"`
	RowsOut         int            `db:"rows_out"`
	SynthesizedRows int            `db:"synthesized_rows"`
	Warnings        int            `db:"warnings"`
	DurationMs      int64          `db:"duration_ms"`
	Report          string         `db:"report"`
	CreatedAt       time.Time      `db:"created_at"`
}

// RecordRun stores report in the account's run history. ruleSetID is empty
// for runs with inline rules.
func (s *Store) RecordRun(ctx context.Context, accountID string, ruleSetID types.RuleSetID, report *rules.RunReport) (types.RunID, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode run report: %w", err)
	}
	id := types.NewRunID()
	rsID := sql.NullString{String: string(ruleSetID), Valid: ruleSetID != ""}
	_, err = s.q.Exec(ctx, "insert-run",
		string(id), accountID, rsID,
		report.RowsIn, report.RowsOut, report.SynthesizedRows, report.Warnings,
		report.Duration.Milliseconds(), string(body), s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return id, nil
}

// ListRuns returns up to limit most recent runs of the account.
func (s *Store) ListRuns(ctx context.Context, accountID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []Run
	if err := s.q.Select(ctx, "list-runs", &runs, accountID, limit); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrStorage, err)
	}
	return runs, nil
}

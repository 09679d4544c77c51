package api

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/packkeeper/internal/core/auth"
	"github.com/solatis/packkeeper/internal/types"
)

// Apply runs a rule set against the request rows and returns the mutated rows.
//
// Request fields:
//   - rows: list of objects (required)
//   - columns: list of column names fixing column order (optional)
//   - rules: inline rule set, list or {version, rules} (one of rules/rule_set)
//   - rule_set, version: name (and optional revision) of a stored rule set
//
// Response fields: rows, columns, report, run_id.
func (s *RuleEngineService) Apply(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID := auth.AccountIDFromContext(ctx)
	if accountID == "" {
		return nil, status.Error(codes.Internal, "missing account_id in context")
	}

	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	ds, err := datasetFromStruct(req, s.cfg.MaxRows)
	if err != nil {
		return nil, invalidArgument("%v", err)
	}

	inline, hasInline := req.GetFields()["rules"]
	name := stringField(req, "rule_set")
	var (
		rs        types.RuleSet
		ruleSetID types.RuleSetID
	)
	switch {
	case hasInline && name != "":
		return nil, invalidArgument("rules and rule_set are mutually exclusive")
	case hasInline:
		rs, err = ruleSetFromValue(inline)
		if err != nil {
			return nil, invalidArgument("rules: %v", err)
		}
	case name != "":
		stored, err := s.store.GetRuleSet(ctx, accountID, name, intField(req, "version"))
		if err != nil {
			return nil, toStatus(err)
		}
		rs, ruleSetID = stored.RuleSet, stored.ID
	default:
		return nil, invalidArgument("one of rules or rule_set is required")
	}

	report := s.engine.Run(ds, rs.Rules)
	if err := ctx.Err(); err != nil {
		return nil, toStatus(err)
	}

	fields, err := datasetToFields(ds)
	if err != nil {
		return nil, toStatus(err)
	}
	if fields["report"], err = toStructValue(report); err != nil {
		return nil, toStatus(err)
	}

	// Run history is best effort; the evaluated rows are still returned
	runID, err := s.store.RecordRun(ctx, accountID, ruleSetID, report)
	if err != nil {
		s.log.Warn("failed to record run", slog.String("account_id", accountID), slog.Any("error", err))
	} else {
		fields["run_id"] = structpb.NewStringValue(string(runID))
	}

	s.log.Debug("apply",
		slog.String("account_id", accountID),
		slog.String("rule_set", name),
		slog.Int("rows_in", report.RowsIn),
		slog.Int("rows_out", report.RowsOut),
		slog.Int("warnings", report.Warnings))

	return &structpb.Struct{Fields: fields}, nil
}

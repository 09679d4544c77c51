package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/packkeeper/internal/core/auth"
	"github.com/solatis/packkeeper/internal/core/rulestore"
	"github.com/solatis/packkeeper/internal/rules"
)

// PutRuleSet validates and stores {name, rules} as a new revision.
// Response: {name, version, checksum, rule_set_id, warnings}.
func (s *RuleEngineService) PutRuleSet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID := auth.AccountIDFromContext(ctx)
	if accountID == "" {
		return nil, status.Error(codes.Internal, "missing account_id in context")
	}

	name := stringField(req, "name")
	if name == "" {
		return nil, invalidArgument("name is required")
	}
	raw, ok := req.GetFields()["rules"]
	if !ok {
		return nil, invalidArgument("rules is required")
	}
	rs, err := ruleSetFromValue(raw)
	if err != nil {
		return nil, invalidArgument("rules: %v", err)
	}

	meta, err := s.store.PutRuleSet(ctx, accountID, name, rs)
	if err != nil {
		var verr *rulestore.ValidationError
		if errors.As(err, &verr) {
			return nil, status.Error(codes.InvalidArgument, verr.Error())
		}
		return nil, toStatus(err)
	}

	var warnings []any
	for _, issue := range rules.Validate(rs.Rules, nil) {
		warnings = append(warnings, issue.String())
	}
	warnList, err := structpb.NewList(warnings)
	if err != nil {
		return nil, toStatus(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":        structpb.NewStringValue(meta.Name),
		"version":     structpb.NewNumberValue(float64(meta.Version)),
		"checksum":    structpb.NewStringValue(meta.Checksum),
		"rule_set_id": structpb.NewStringValue(string(meta.ID)),
		"warnings":    structpb.NewListValue(warnList),
	}}, nil
}

// GetRuleSet returns {name, version?} as {name, version, checksum, rules}
// with rules in the normalized {version, rules} shape.
func (s *RuleEngineService) GetRuleSet(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID := auth.AccountIDFromContext(ctx)
	if accountID == "" {
		return nil, status.Error(codes.Internal, "missing account_id in context")
	}

	name := stringField(req, "name")
	if name == "" {
		return nil, invalidArgument("name is required")
	}

	stored, err := s.store.GetRuleSet(ctx, accountID, name, intField(req, "version"))
	if err != nil {
		return nil, toStatus(err)
	}
	body, err := toStructValue(rules.NormalizeRuleSet(stored.RuleSet))
	if err != nil {
		return nil, toStatus(err)
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"name":     structpb.NewStringValue(stored.Name),
		"version":  structpb.NewNumberValue(float64(stored.Version)),
		"checksum": structpb.NewStringValue(stored.Checksum),
		"rules":    body,
	}}, nil
}

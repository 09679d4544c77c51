// Package api provides the gRPC RuleEngine service.
package api

import (
	"fmt"
	"log/slog"

	"github.com/solatis/packkeeper/internal/core/config"
	"github.com/solatis/packkeeper/internal/core/rulestore"
	"github.com/solatis/packkeeper/internal/logging"
	"github.com/solatis/packkeeper/internal/rules"
)

// RuleEngineService implements RuleEngineServer.
// Thin orchestration layer delegating to auth, rules and the rule-set store.
type RuleEngineService struct {
	store  *rulestore.Store
	engine *rules.Engine
	cfg    *config.ServerConfig
	log    *slog.Logger
}

var _ RuleEngineServer = (*RuleEngineService)(nil)

// NewRuleEngineService creates service instance with dependencies.
func NewRuleEngineService(store *rulestore.Store, engine *rules.Engine, cfg *config.ServerConfig) (*RuleEngineService, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}

	return &RuleEngineService{
		store:  store,
		engine: engine,
		cfg:    cfg,
		log:    logging.New("api"),
	}, nil
}

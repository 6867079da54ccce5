// Package api provides the contract engine service: plan verification and
// value generation, and the gRPC surface that exposes them.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pact-foundation/pactengine/internal/core/db"
	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/plan"
	"github.com/pact-foundation/pactengine/internal/planner"
	"github.com/pact-foundation/pactengine/internal/types"
)

// ContractStore is the part of the contract store the service uses.
type ContractStore interface {
	GetContract(ctx context.Context, id types.ContractID) (*db.Contract, error)
	RecordVerification(ctx context.Context, id types.ContractID, result db.VerificationResult) (types.VerificationID, error)
}

// Recorder receives service metrics.
type Recorder interface {
	engine.Observer
	RecordVerification(plan string, ok bool, duration time.Duration)
	RecordGeneration(ok bool)
}

// ContractService verifies interactions against plans and generates values.
// Thin orchestration layer over the planner, interpreter, plan catalog and
// contract store.
type ContractService struct {
	config  engine.MatchingConfiguration
	planner *planner.Planner
	catalog *plan.Catalog
	store   ContractStore
	metrics Recorder
	logger  *slog.Logger
}

// Option configures a ContractService.
type Option func(*ContractService)

// WithCatalog lets requests name a plan held in the catalog.
func WithCatalog(c *plan.Catalog) Option {
	return func(s *ContractService) { s.catalog = c }
}

// WithStore lets requests refer to stored contracts and records
// verification outcomes.
func WithStore(store ContractStore) Option {
	return func(s *ContractService) { s.store = store }
}

// WithMetrics reports executions to r.
func WithMetrics(r Recorder) Option {
	return func(s *ContractService) { s.metrics = r }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *ContractService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewContractService creates a service executing plans with config.
func NewContractService(config engine.MatchingConfiguration, opts ...Option) *ContractService {
	s := &ContractService{config: config, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.planner = planner.New().WithLogger(s.logger)
	return s
}

// Planner returns the planner used for interactions without a plan, so
// callers can register body builders.
func (s *ContractService) Planner() *planner.Planner { return s.planner }

func (s *ContractService) interpreter(rules *matchingrules.MatchingRules) *engine.Interpreter {
	i := engine.NewInterpreter(engine.NewPlanMatchingContext(s.config, rules)).WithLogger(s.logger)
	if s.metrics != nil {
		i = i.WithObserver(s.metrics)
	}
	return i
}

// contract loads a stored contract's rules and generators.
func (s *ContractService) contract(ctx context.Context, id types.ContractID) (*matchingrules.MatchingRules, *generators.Generators, error) {
	if s.store == nil {
		return nil, nil, fmt.Errorf("%w: no contract store is configured", ErrInvalidRequest)
	}
	c, err := s.store.GetContract(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rules, err := c.Rules()
	if err != nil {
		return nil, nil, err
	}
	gens, err := c.GeneratorSet()
	if err != nil {
		return nil, nil, err
	}
	return rules, gens, nil
}

package api

import (
	"context"
	"fmt"
	"time"

	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/matchers"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/types"
)

// GenerateRequest applies body generators to an example body.
type GenerateRequest struct {
	// Generators are used unless ContractID names a stored contract.
	Generators *generators.Generators
	ContractID types.ContractID

	Body any

	// Seed drives the random generators. Zero seeds from the clock.
	Seed          int64
	ProviderState map[string]any
}

// Generate returns a copy of the body with generated values in place.
func (s *ContractService) Generate(ctx context.Context, req *GenerateRequest) (any, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty generate request", ErrInvalidRequest)
	}

	gens := req.Generators
	if req.ContractID != "" {
		rules, stored, err := s.contract(ctx, req.ContractID)
		if err != nil {
			return nil, err
		}
		gens = withRuleGenerators(stored, rules)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gctx := generators.NewContext(seed)
	gctx.ProviderState = req.ProviderState
	gctx.VariantMatcher = matchers.VariantMatcher(s.config.AllowUnexpectedEntries)

	body := gens.ApplyBody(gctx, req.Body)
	if s.metrics != nil {
		s.metrics.RecordGeneration(true)
	}
	return body, nil
}

// withRuleGenerators adds the body generators implied by array-contains
// rules. Explicit generators win over rule-derived ones at the same path.
func withRuleGenerators(gens *generators.Generators, rules *matchingrules.MatchingRules) *generators.Generators {
	if rules == nil || !rules.HasCategory("body") {
		return gens
	}
	implied := rules.RulesForCategory("body").Generators()
	if len(implied) == 0 {
		return gens
	}
	out := generators.New()
	if gens != nil {
		for category, byKey := range gens.Categories {
			for key, gen := range byKey {
				out.Add(category, key, gen)
			}
		}
	}
	for key, gen := range implied {
		if _, ok := out.Get(generators.CategoryBody, key); !ok {
			out.Add(generators.CategoryBody, key, gen)
		}
	}
	return out
}

package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pact-foundation/pactengine/internal/core/db"
	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/interaction"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/resolvers"
	"github.com/pact-foundation/pactengine/internal/types"
)

// VerifyRequest selects a plan and the actual data to run it against.
//
// With Plan or PlanName the plan is executed against exactly one of Request
// or Response. Without a plan, Expected is compiled into request and
// response plans for whichever of Request and Response are given.
type VerifyRequest struct {
	Plan     *engine.ExecutionPlanNode
	PlanName string
	Expected *interaction.Interaction

	Request  *interaction.HTTPRequest
	Response *interaction.HTTPResponse

	// ContractID supplies the matching rules and receives the outcome.
	ContractID types.ContractID
}

// VerifyResult is the outcome of a verification.
type VerifyResult struct {
	OK     bool
	Trees  []*engine.ExecutionPlanNode
	Errors []string
	// VerificationID is set when the outcome was recorded.
	VerificationID types.VerificationID
}

// Summary renders the container summary of every executed tree.
func (r *VerifyResult) Summary(ansi bool) string {
	parts := make([]string, 0, len(r.Trees))
	for _, t := range r.Trees {
		parts = append(parts, t.Summary(ansi))
	}
	return strings.Join(parts, "\n")
}

// PrettyForm renders every executed tree.
func (r *VerifyResult) PrettyForm() string {
	parts := make([]string, 0, len(r.Trees))
	for _, t := range r.Trees {
		parts = append(parts, t.PrettyForm())
	}
	return strings.Join(parts, "\n")
}

type execution struct {
	plan     *engine.ExecutionPlanNode
	resolver engine.ValueResolver
	rules    *matchingrules.MatchingRules
}

// Verify executes the selected plans and reports the combined verdict.
func (s *ContractService) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: empty verify request", ErrInvalidRequest)
	}

	var stored *matchingrules.MatchingRules
	if req.ContractID != "" {
		rules, _, err := s.contract(ctx, req.ContractID)
		if err != nil {
			return nil, err
		}
		stored = rules
	}

	runs, name, err := s.executions(req, stored)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &VerifyResult{OK: true}
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tree := s.interpreter(run.rules).Execute(run.plan, run.resolver)
		result.Trees = append(result.Trees, tree)
		result.Errors = append(result.Errors, tree.Errors()...)
		if !passed(tree) {
			result.OK = false
		}
	}

	if s.metrics != nil {
		s.metrics.RecordVerification(name, result.OK, time.Since(start))
	}
	s.logger.Debug("verified", "plan", name, "ok", result.OK, "errors", len(result.Errors))

	if req.ContractID != "" {
		id, err := s.store.RecordVerification(ctx, req.ContractID, db.VerificationResult{
			PlanName: name,
			OK:       result.OK,
			Summary:  result.Summary(false),
			Errors:   result.Errors,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record verification: %w", err)
		}
		result.VerificationID = id
	}
	return result, nil
}

// passed is the verdict of an executed tree: no errors anywhere and a
// truthy root.
func passed(tree *engine.ExecutionPlanNode) bool {
	if len(tree.Errors()) > 0 || tree.Result == nil || tree.Result.IsError() {
		return false
	}
	return tree.Result.IsOK() || tree.Result.IsTruthy()
}

func (s *ContractService) executions(req *VerifyRequest, stored *matchingrules.MatchingRules) ([]execution, string, error) {
	p := req.Plan
	name := req.PlanName
	if p == nil && name != "" {
		if s.catalog == nil {
			return nil, "", fmt.Errorf("%w: no plan catalog is configured", ErrInvalidRequest)
		}
		found, ok := s.catalog.Get(name)
		if !ok {
			return nil, "", fmt.Errorf("plan %s: %w", name, types.ErrNotFound)
		}
		p = found
	}

	if p != nil {
		if name == "" {
			name = p.NodeType.Label
		}
		switch {
		case req.Request != nil && req.Response != nil:
			return nil, "", fmt.Errorf("%w: a plan runs against a request or a response, not both", ErrInvalidRequest)
		case req.Request != nil:
			return []execution{{p, resolvers.NewHTTPRequestResolver(req.Request), stored}}, name, nil
		case req.Response != nil:
			return []execution{{p, resolvers.NewHTTPResponseResolver(req.Response), stored}}, name, nil
		}
		return nil, "", fmt.Errorf("%w: no request or response to verify", ErrInvalidRequest)
	}

	expected := req.Expected
	if expected == nil {
		return nil, "", fmt.Errorf("%w: a plan, a plan name or an expected interaction is required", ErrInvalidRequest)
	}
	name = expected.Description
	if name == "" {
		name = "interaction"
	}

	var runs []execution
	if req.Request != nil {
		if expected.Request == nil {
			return nil, "", fmt.Errorf("%w: the expected interaction has no request", ErrInvalidRequest)
		}
		rules := pick(stored, expected.Request.MatchingRules)
		plan := s.planner.BuildRequestPlan(expected.Request, engine.NewPlanMatchingContext(s.config, rules))
		runs = append(runs, execution{plan, resolvers.NewHTTPRequestResolver(req.Request), rules})
	}
	if req.Response != nil {
		if expected.Response == nil {
			return nil, "", fmt.Errorf("%w: the expected interaction has no response", ErrInvalidRequest)
		}
		rules := pick(stored, expected.Response.MatchingRules)
		plan := s.planner.BuildResponsePlan(expected.Response, engine.NewPlanMatchingContext(s.config, rules))
		runs = append(runs, execution{plan, resolvers.NewHTTPResponseResolver(req.Response), rules})
	}
	if len(runs) == 0 {
		return nil, "", fmt.Errorf("%w: no request or response to verify", ErrInvalidRequest)
	}
	return runs, name, nil
}

func pick(stored, own *matchingrules.MatchingRules) *matchingrules.MatchingRules {
	if stored != nil {
		return stored
	}
	return own
}

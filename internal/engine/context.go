// internal/engine/context.go
package engine

import (
	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/matchers"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
)

// MatchingConfiguration drives optional behaviour of plan execution.
type MatchingConfiguration struct {
	// AllowUnexpectedEntries ignores extra keys and values in actual data.
	AllowUnexpectedEntries bool
	// LogExecutedPlan logs the annotated tree after execution.
	LogExecutedPlan bool
	// LogPlanSummary logs the container summary after execution.
	LogPlanSummary bool
	// ColouredOutput colours the summary with ANSI escapes.
	ColouredOutput bool
	// LogRawPlan logs the plan before it is executed.
	LogRawPlan bool
	// MaxPlanDepth bounds the nesting the interpreter will walk. Zero uses
	// types.MaxPlanDepth.
	MaxPlanDepth int
}

// DefaultConfiguration returns the configuration used when none is given.
func DefaultConfiguration() MatchingConfiguration {
	return MatchingConfiguration{LogPlanSummary: true, ColouredOutput: true}
}

// PlanMatchingContext carries the configuration and the matching rules in
// effect for the part of the interaction being checked.
type PlanMatchingContext struct {
	Config MatchingConfiguration
	// Rules are all the rules of the expected interaction.
	Rules *matchingrules.MatchingRules
	// Matching selects rules from the current category.
	Matching *matchers.Context
}

// NewPlanMatchingContext returns a context over rules with no category
// selected.
func NewPlanMatchingContext(config MatchingConfiguration, rules *matchingrules.MatchingRules) *PlanMatchingContext {
	if rules == nil {
		rules = matchingrules.NewMatchingRules()
	}
	return &PlanMatchingContext{
		Config:   config,
		Rules:    rules,
		Matching: matchers.NewContext(matchingrules.NewCategory(""), config.AllowUnexpectedEntries),
	}
}

func (c *PlanMatchingContext) forCategory(name string, config MatchingConfiguration, coerce bool) *PlanMatchingContext {
	// RulesForCategory creates missing categories, which would race when a
	// plan is evaluated concurrently.
	category := matchingrules.NewCategory(name)
	if c.Rules.HasCategory(name) {
		category = c.Rules.RulesForCategory(name)
	}
	m := matchers.NewContext(category, c.Config.AllowUnexpectedEntries)
	m.CoerceNumbers = coerce
	return &PlanMatchingContext{Config: config, Rules: c.Rules, Matching: m}
}

// ForMethod narrows the context to the method rules.
func (c *PlanMatchingContext) ForMethod() *PlanMatchingContext {
	return c.forCategory("method", c.Config, false)
}

// ForPath narrows the context to the path rules.
func (c *PlanMatchingContext) ForPath() *PlanMatchingContext {
	return c.forCategory("path", c.Config, false)
}

// ForQuery narrows the context to the query parameter rules. Numbers held
// in strings are accepted by the number matchers.
func (c *PlanMatchingContext) ForQuery() *PlanMatchingContext {
	return c.forCategory("query", c.Config, true)
}

// ForHeaders narrows the context to the header rules. Extra headers are
// always allowed.
func (c *PlanMatchingContext) ForHeaders() *PlanMatchingContext {
	config := c.Config
	config.AllowUnexpectedEntries = true
	return c.forCategory("header", config, true)
}

// ForBody narrows the context to the body rules.
func (c *PlanMatchingContext) ForBody() *PlanMatchingContext {
	return c.forCategory("body", c.Config, false)
}

// ForStatus narrows the context to the status rules.
func (c *PlanMatchingContext) ForStatus() *PlanMatchingContext {
	return c.forCategory("status", c.Config, false)
}

// rulePath converts a plan path into the path the rules are keyed on.
// Header and query rules are keyed by name, so "$.headers.accept" becomes
// ["accept"].
func rulePath(path docpath.DocPath) []string {
	segments := path.Segments()
	if field, ok := path.FirstField(); ok && (field == "headers" || field == "query") && len(segments) >= 2 {
		return segments[2:]
	}
	return segments
}

// MatcherIsDefined reports whether a rule applies at path.
func (c *PlanMatchingContext) MatcherIsDefined(path docpath.DocPath) bool {
	return c.Matching.MatcherDefined(rulePath(path))
}

// SelectBestMatcher returns the rules that apply at path, or nil.
func (c *PlanMatchingContext) SelectBestMatcher(path docpath.DocPath) *matchingrules.MatchingRuleGroup {
	return c.Matching.SelectBestMatcher(rulePath(path))
}

// TypeMatcherDefined reports whether a type rule applies at path.
func (c *PlanMatchingContext) TypeMatcherDefined(path docpath.DocPath) bool {
	return c.Matching.TypeMatcherDefined(rulePath(path))
}

// ValueResolver supplies the values of one concrete interaction.
type ValueResolver interface {
	// Resolve returns the value at path. The error text is reported on the
	// resolving node.
	Resolve(path docpath.DocPath, ctx *PlanMatchingContext) (NodeValue, error)
}

// ResolverFunc adapts a function to ValueResolver.
type ResolverFunc func(path docpath.DocPath, ctx *PlanMatchingContext) (NodeValue, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(path docpath.DocPath, ctx *PlanMatchingContext) (NodeValue, error) {
	return f(path, ctx)
}

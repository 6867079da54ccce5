// internal/planner/rules.go
package planner

import (
	"fmt"
	"strings"

	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/matchingrules"
	"github.com/pact-foundation/pactengine/internal/types"
)

// matchingRuleNode builds the match: actions for a rule group. Several rules
// are combined with an and or an or action as the group logic says. Length
// bounds only apply to collections, so single items drop them.
func matchingRuleNode(expected, actual *engine.ExecutionPlanNode, group *matchingrules.MatchingRuleGroup, forCollection bool) *engine.ExecutionPlanNode {
	if len(group.Rules) == 1 {
		return ruleNode(expected, actual, group.Rules[0], forCollection)
	}
	logic := engine.ActionNode("and")
	if group.Logic == matchingrules.LogicOr {
		logic = engine.ActionNode("or")
	}
	for _, rule := range group.Rules {
		logic.Add(ruleNode(expected, actual, rule, forCollection))
	}
	return logic
}

func ruleNode(expected, actual *engine.ExecutionPlanNode, rule matchingrules.MatchingRule, forCollection bool) *engine.ExecutionPlanNode {
	if !forCollection {
		rule = forSingleItem(rule)
	}
	params, _ := jsondoc.Normalise(rule.ToMap(types.SpecV4)).(map[string]any)
	kind, _ := params["match"].(string)
	delete(params, "match")
	return engine.ActionNode("match:"+kind).Add(expected, actual, engine.JSONNode(params))
}

func forSingleItem(rule matchingrules.MatchingRule) matchingrules.MatchingRule {
	switch rule.(type) {
	case matchingrules.MinTypeMatcher, matchingrules.MaxTypeMatcher, matchingrules.MinMaxTypeMatcher:
		return matchingrules.TypeMatcher{}
	}
	return rule
}

// describeGroup renders a rule group for plan annotations.
func describeGroup(group *matchingrules.MatchingRuleGroup, forCollection bool) string {
	parts := make([]string, 0, len(group.Rules))
	for _, rule := range group.Rules {
		if !forCollection {
			rule = forSingleItem(rule)
		}
		parts = append(parts, describeRule(rule))
	}
	sep := " and "
	if group.Logic == matchingrules.LogicOr {
		sep = " or "
	}
	return strings.Join(parts, sep)
}

func describeRule(rule matchingrules.MatchingRule) string {
	switch r := rule.(type) {
	case matchingrules.EqualityMatcher:
		return "must be equal to the expected value"
	case matchingrules.TypeMatcher:
		return "must match by type"
	case matchingrules.MinTypeMatcher:
		return fmt.Sprintf("must match by type and have at least %d items", r.Min)
	case matchingrules.MaxTypeMatcher:
		return fmt.Sprintf("must match by type and have at most %d items", r.Max)
	case matchingrules.MinMaxTypeMatcher:
		return fmt.Sprintf("must match by type and have at least %d and at most %d items", r.Min, r.Max)
	case matchingrules.RegexMatcher:
		return fmt.Sprintf("must match the regular expression /%s/", r.Regex)
	case matchingrules.NumberTypeMatcher:
		switch r.Kind {
		case matchingrules.NumberInteger:
			return "must be an integer"
		case matchingrules.NumberDecimal:
			return "must be a decimal number"
		}
		return "must be a number"
	case matchingrules.BooleanMatcher:
		return "must be a boolean"
	case matchingrules.DateMatcher:
		return fmt.Sprintf("must match the date format '%s'", r.Format)
	case matchingrules.TimeMatcher:
		return fmt.Sprintf("must match the time format '%s'", r.Format)
	case matchingrules.TimestampMatcher:
		return fmt.Sprintf("must match the date-time format '%s'", r.Format)
	case matchingrules.IncludeMatcher:
		return fmt.Sprintf("must include '%s'", r.Value)
	case matchingrules.NullMatcher:
		return "must be null"
	case matchingrules.ContentTypeMatcher:
		return fmt.Sprintf("must be of content type %s", r.ContentType)
	case matchingrules.NotEmptyMatcher:
		return "must not be empty"
	case matchingrules.SemverMatcher:
		return "must be a semantic version"
	}
	return "must match the " + rule.Name() + " rule"
}

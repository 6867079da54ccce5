// internal/matchingrules/category.go
package matchingrules

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/generators"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * A Category keeps its keys in insertion order: for categories without
 * path weights (header, query, metadata) the first group added wins.
 *
 * Wire shapes per key:
 *
 *   V3+  {"matchers": [{"match": "type"}, ...], "combine": "AND"}
 *   V2   the first rule only, flattened under "$.<category><path>"
 *
 * Categories keyed by path expression (body, header, query, metadata,
 * content) nest one group per key; path and status hold a single group.
 */

// MatchingRuleGroup is the list of rules at one path and how they combine.
// Cascaded marks a group inherited from a parent path.
type MatchingRuleGroup struct {
	Rules    []MatchingRule
	Logic    RuleLogic
	Cascaded bool
}

// NewGroup returns a group combining rules with AND.
func NewGroup(rules ...MatchingRule) *MatchingRuleGroup {
	return &MatchingRuleGroup{Rules: rules}
}

// ToMap renders the group. Before V3 only the first rule is written.
func (g *MatchingRuleGroup) ToMap(v types.SpecVersion) map[string]any {
	if !v.AtLeast(types.SpecV3) {
		if len(g.Rules) == 0 {
			return map[string]any{}
		}
		return g.Rules[0].ToMap(v)
	}
	matchers := make([]any, len(g.Rules))
	for i, r := range g.Rules {
		matchers[i] = r.ToMap(v)
	}
	return map[string]any{"matchers": matchers, "combine": g.Logic.String()}
}

// WithCascaded returns a copy with the cascaded flag set.
func (g *MatchingRuleGroup) WithCascaded(cascaded bool) *MatchingRuleGroup {
	cp := *g
	cp.Rules = append([]MatchingRule(nil), g.Rules...)
	cp.Cascaded = cascaded
	return &cp
}

// HasRule reports whether any rule has one of the given names.
func (g *MatchingRuleGroup) HasRule(names ...string) bool {
	for _, r := range g.Rules {
		for _, n := range names {
			if r.Name() == n {
				return true
			}
		}
	}
	return false
}

// ValidateForVersion collects version problems of every rule.
func (g *MatchingRuleGroup) ValidateForVersion(v types.SpecVersion) []string {
	var out []string
	for _, r := range g.Rules {
		out = append(out, r.ValidateForVersion(v)...)
	}
	return out
}

// GroupFromJSON reads a V3 group. Bad combine values and malformed rules
// are logged and skipped.
func GroupFromJSON(def any) *MatchingRuleGroup {
	group := &MatchingRuleGroup{}
	obj, ok := def.(map[string]any)
	if !ok {
		return group
	}
	if combine, ok := obj["combine"]; ok {
		switch jsondoc.String(combine) {
		case "AND":
			group.Logic = LogicAnd
		case "OR":
			group.Logic = LogicOr
		default:
			slog.Warn(fmt.Sprintf("%s is not a valid matcher rule logic value", jsondoc.Serialise(combine)))
		}
	}
	if matchers, ok := obj["matchers"]; ok {
		list, ok := matchers.([]any)
		if !ok {
			slog.Warn(fmt.Sprintf("%s does not contain a list of matchers", jsondoc.Serialise(obj)))
			return group
		}
		for _, m := range list {
			if _, isObj := m.(map[string]any); !isObj {
				continue
			}
			rule, err := RuleFromJSON(m)
			if err != nil {
				slog.Warn("Ignoring invalid matcher definition", "definition", jsondoc.Serialise(m), "error", err)
				continue
			}
			group.Rules = append(group.Rules, rule)
		}
	}
	return group
}

// Category is a named set of rule groups keyed by path expression.
type Category struct {
	Name   string
	keys   []string
	groups map[string]*MatchingRuleGroup
}

// NewCategory returns an empty category.
func NewCategory(name string) *Category {
	return &Category{Name: name, groups: make(map[string]*MatchingRuleGroup)}
}

func (c *Category) ensure() {
	if c.groups == nil {
		c.groups = make(map[string]*MatchingRuleGroup)
	}
}

// AddRule appends rule to the group at key, creating it with logic if
// needed.
func (c *Category) AddRule(key string, rule MatchingRule, logic RuleLogic) *Category {
	c.ensure()
	if g, ok := c.groups[key]; ok {
		g.Rules = append(g.Rules, rule)
		return c
	}
	c.keys = append(c.keys, key)
	c.groups[key] = &MatchingRuleGroup{Rules: []MatchingRule{rule}, Logic: logic}
	return c
}

// SetRules replaces the group at key.
func (c *Category) SetRules(key string, group *MatchingRuleGroup) *Category {
	c.ensure()
	if _, ok := c.groups[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.groups[key] = group
	return c
}

// Keys returns the keys in insertion order.
func (c *Category) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Group returns the group at key.
func (c *Category) Group(key string) (*MatchingRuleGroup, bool) {
	if c == nil {
		return nil, false
	}
	g, ok := c.groups[key]
	return g, ok
}

// Len returns the number of keys.
func (c *Category) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// IsEmpty reports whether the category holds no rules at all.
func (c *Category) IsEmpty() bool {
	if c == nil {
		return true
	}
	for _, g := range c.groups {
		if len(g.Rules) > 0 {
			return false
		}
	}
	return true
}

// IsNotEmpty is !IsEmpty.
func (c *Category) IsNotEmpty() bool { return !c.IsEmpty() }

// Filter returns a new category with the keys accepted by keep.
func (c *Category) Filter(keep func(key string, group *MatchingRuleGroup) bool) *Category {
	out := NewCategory("")
	if c == nil {
		return out
	}
	out.Name = c.Name
	for _, k := range c.keys {
		if keep(k, c.groups[k]) {
			out.SetRules(k, c.groups[k])
		}
	}
	return out
}

// AllRules returns every rule in key order.
func (c *Category) AllRules() []MatchingRule {
	var out []MatchingRule
	if c == nil {
		return out
	}
	for _, k := range c.keys {
		out = append(out, c.groups[k].Rules...)
	}
	return out
}

// Copy returns a copy with copied groups.
func (c *Category) Copy() *Category {
	out := NewCategory("")
	if c == nil {
		return out
	}
	out.Name = c.Name
	for _, k := range c.keys {
		out.SetRules(k, c.groups[k].WithCascaded(c.groups[k].Cascaded))
	}
	return out
}

// UpdateKeys returns the groups whose key starts with prefix, re-keyed by
// replacing the prefix with newRoot.
func (c *Category) UpdateKeys(prefix, newRoot string) *Category {
	out := NewCategory(c.Name)
	for _, k := range c.keys {
		if strings.HasPrefix(k, prefix) {
			out.SetRules(strings.Replace(k, prefix, newRoot, 1), c.groups[k])
		}
	}
	return out
}

// OrElse returns c unless it is empty.
func (c *Category) OrElse(other *Category) *Category {
	if c.IsEmpty() {
		return other
	}
	return c
}

// Generators collects the generators implied by rules, keyed like the
// rules. Only array-contains rules imply one.
func (c *Category) Generators() map[string]generators.Generator {
	out := make(map[string]generators.Generator)
	if c == nil {
		return out
	}
	for _, k := range c.keys {
		for _, r := range c.groups[k].Rules {
			if ac, ok := r.(ArrayContainsMatcher); ok {
				out[k] = ac.BuildGenerator()
			}
		}
	}
	return out
}

// ValidateForVersion collects version problems of every group.
func (c *Category) ValidateForVersion(v types.SpecVersion) []string {
	var out []string
	for _, k := range c.keys {
		out = append(out, c.groups[k].ValidateForVersion(v)...)
	}
	return out
}

// ToMap renders the category. For V3+ keys are the raw paths, with the
// empty key flattened into the result. Before V3 every key is rewritten
// under "$.<category>".
func (c *Category) ToMap(v types.SpecVersion) map[string]any {
	out := make(map[string]any)
	if c == nil {
		return out
	}
	if v.AtLeast(types.SpecV3) {
		for _, k := range c.keys {
			if k == "" {
				for gk, gv := range c.groups[k].ToMap(v) {
					out[gk] = gv
				}
				continue
			}
			out[k] = c.groups[k].ToMap(v)
		}
		return out
	}
	for _, k := range c.keys {
		out[c.v2Key(k)] = c.groups[k].ToMap(v)
	}
	return out
}

func (c *Category) v2Key(key string) string {
	keyBase := "$." + c.Name
	if c.Name == "header" {
		keyBase = "$.headers"
	}
	suffix := key
	switch c.Name {
	case "header", "headers", "query":
		if key != "" {
			suffix = docpath.FieldToken(key).String()
		}
	}
	switch {
	case strings.HasPrefix(suffix, "$"):
		return keyBase + suffix[1:]
	case suffix != "" && !strings.HasPrefix(suffix, "["):
		return keyBase + "." + suffix
	case suffix != "":
		return keyBase + suffix
	}
	return keyBase
}

func (c *Category) requiresSubkeys() bool {
	return c.Name != "path" && c.Name != "status"
}

// FromJSON loads V3 groups into the category.
func (c *Category) FromJSON(def any) *Category {
	obj, ok := def.(map[string]any)
	if !ok {
		return c
	}
	if !c.requiresSubkeys() {
		if inner, ok := obj[""]; ok && len(obj) == 1 {
			c.SetRules("", GroupFromJSON(inner))
		} else {
			c.SetRules("", GroupFromJSON(obj))
		}
		return c
	}
	for _, key := range jsondoc.SortedKeys(obj) {
		switch value := obj[key].(type) {
		case map[string]any:
			c.SetRules(key, GroupFromJSON(value))
		case []any:
			if c.Name != "path" {
				slog.Warn(fmt.Sprintf("%s is not a valid matcher definition", jsondoc.Serialise(value)))
				continue
			}
			for _, item := range value {
				if rule, err := RuleFromJSON(item); err == nil {
					c.AddRule("", rule, LogicAnd)
				}
			}
		default:
			slog.Warn(fmt.Sprintf("%s is not a valid matcher definition", jsondoc.Serialise(value)))
		}
	}
	return c
}

// MatchingRules is the full set of categories of one interaction.
type MatchingRules struct {
	categories map[string]*Category
}

// NewMatchingRules returns an empty rule set.
func NewMatchingRules() *MatchingRules {
	return &MatchingRules{categories: make(map[string]*Category)}
}

// RulesForCategory returns the named category, creating it if missing.
func (m *MatchingRules) RulesForCategory(name string) *Category {
	if m.categories == nil {
		m.categories = make(map[string]*Category)
	}
	c, ok := m.categories[name]
	if !ok {
		c = NewCategory(name)
		m.categories[name] = c
	}
	return c
}

// AddCategory stores c, replacing any category of the same name.
func (m *MatchingRules) AddCategory(c *Category) *Category {
	if m.categories == nil {
		m.categories = make(map[string]*Category)
	}
	m.categories[c.Name] = c
	return c
}

// HasCategory reports whether the named category exists.
func (m *MatchingRules) HasCategory(name string) bool {
	_, ok := m.categories[name]
	return ok
}

// Categories returns the category names in sorted order.
func (m *MatchingRules) Categories() []string {
	names := make([]string, 0, len(m.categories))
	for n := range m.categories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsEmpty reports whether every category is empty.
func (m *MatchingRules) IsEmpty() bool {
	for _, c := range m.categories {
		if c.IsNotEmpty() {
			return false
		}
	}
	return true
}

// Copy returns a copy with copied categories.
func (m *MatchingRules) Copy() *MatchingRules {
	out := NewMatchingRules()
	for _, c := range m.categories {
		out.AddCategory(c.Copy())
	}
	return out
}

// Rename moves a category to a new name.
func (m *MatchingRules) Rename(oldName, newName string) *MatchingRules {
	out := m.Copy()
	if c, ok := out.categories[oldName]; ok {
		delete(out.categories, oldName)
		c.Name = newName
		out.categories[newName] = c
	}
	return out
}

// ValidateForVersion collects version problems of every category.
func (m *MatchingRules) ValidateForVersion(v types.SpecVersion) []string {
	var out []string
	for _, name := range m.Categories() {
		out = append(out, m.categories[name].ValidateForVersion(v)...)
	}
	return out
}

// ToMap renders every category. Before V3 all categories merge into one
// flat map; from V3 the non-empty categories nest under their names.
func (m *MatchingRules) ToMap(v types.SpecVersion) map[string]any {
	out := make(map[string]any)
	if !v.AtLeast(types.SpecV3) {
		for _, name := range m.Categories() {
			for k, val := range m.categories[name].ToMap(v) {
				out[k] = val
			}
		}
		return out
	}
	for _, name := range m.Categories() {
		if c := m.categories[name]; c.IsNotEmpty() {
			out[name] = c.ToMap(v)
		}
	}
	return out
}

// FromJSON loads rules in either dialect. V2 documents are recognised by
// keys starting with "$".
func FromJSON(doc any) *MatchingRules {
	rules := NewMatchingRules()
	obj, ok := doc.(map[string]any)
	if !ok || len(obj) == 0 {
		slog.Warn(fmt.Sprintf("%s is not valid matching rules format", jsondoc.Serialise(doc)))
		return rules
	}
	keys := jsondoc.SortedKeys(obj)
	if strings.HasPrefix(keys[0], "$") {
		rules.fromV2(obj, keys)
	} else {
		for _, k := range keys {
			rules.RulesForCategory(k).FromJSON(obj[k])
		}
	}
	return rules
}

func (m *MatchingRules) fromV2(obj map[string]any, keys []string) {
	for _, key := range keys {
		rule, err := RuleFromJSON(obj[key])
		if err != nil {
			slog.Warn("Ignoring invalid matcher definition", "path", key, "error", err)
			continue
		}
		path := strings.Split(key, ".")
		switch {
		case key == "$.body":
			m.RulesForCategory("body").AddRule("$", rule, LogicAnd)
		case strings.HasPrefix(key, "$.body"):
			m.RulesForCategory("body").AddRule("$"+key[len("$.body"):], rule, LogicAnd)
		case strings.HasPrefix(key, "$.headers") && len(path) > 2:
			m.RulesForCategory("header").AddRule(path[2], rule, LogicAnd)
		case len(path) > 2:
			m.RulesForCategory(path[1]).AddRule(path[2], rule, LogicAnd)
		case len(path) == 2:
			m.RulesForCategory(path[1]).AddRule("", rule, LogicAnd)
		default:
			slog.Warn("Ignoring matcher with an invalid path", "path", key)
		}
	}
}

// internal/generators/arraycontains.go
package generators

import (
	"log/slog"
	"sort"

	"github.com/pact-foundation/pactengine/internal/docpath"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Array-contains generation handles heterogeneous arrays. Each variant
 * pairs a rule set describing one element shape with generators for that
 * shape. For every element the first variant whose rules match it with no
 * mismatches wins, and only that variant's generators are applied to the
 * element. Elements matching no variant are left untouched.
 *
 * Judging an element against rules belongs to the structural comparator,
 * which lives above this package; it is supplied on the Context as a
 * VariantMatcher.
 */

// RuleSet is the rule category of a variant. Only serialisation is needed
// here; matching is delegated to the VariantMatcher.
type RuleSet interface {
	ToMap(v types.SpecVersion) map[string]any
}

// ArrayContainsVariant describes one element shape of an array-contains
// expectation.
type ArrayContainsVariant struct {
	Index      int
	Rules      RuleSet
	Generators map[string]Generator
}

// VariantMatcher reports whether element satisfies the variant's rules
// with zero mismatches.
type VariantMatcher func(variant ArrayContainsVariant, element any) bool

// ArrayContains applies per-variant generators to the elements of an array.
type ArrayContains struct {
	Variants []ArrayContainsVariant
}

func (g ArrayContains) Type() string                { return "ArrayContains" }
func (g ArrayContains) CorrespondsToMode(Mode) bool { return true }

func (g ArrayContains) Generate(ctx *Context, example any) (any, error) {
	arr, ok := example.([]any)
	if !ok || ctx == nil || ctx.VariantMatcher == nil {
		return example, nil
	}
	out := make([]any, len(arr))
	for i, element := range arr {
		out[i] = element
		for _, variant := range g.Variants {
			if ctx.VariantMatcher(variant, element) {
				out[i] = ApplyAt(ctx, jsondoc.Clone(element), variant.Generators)
				break
			}
		}
	}
	return out, nil
}

func (g ArrayContains) ToMap(v types.SpecVersion) map[string]any {
	variants := make([]any, 0, len(g.Variants))
	for _, variant := range g.Variants {
		gens := make(map[string]any, len(variant.Generators))
		for key, gen := range variant.Generators {
			gens[key] = gen.ToMap(v)
		}
		entry := map[string]any{"index": variant.Index, "generators": gens}
		if variant.Rules != nil {
			entry["rules"] = variant.Rules.ToMap(v)
		} else {
			entry["rules"] = map[string]any{}
		}
		variants = append(variants, entry)
	}
	return map[string]any{"type": g.Type(), "variants": variants}
}

// ApplyAt runs each generator against every location its path expression
// matches in doc and returns the updated document. Generators are applied
// in sorted key order; ones not meant for ctx.Mode are skipped.
func ApplyAt(ctx *Context, doc any, gens map[string]Generator) any {
	keys := make([]string, 0, len(gens))
	for k := range gens {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mode := ModeConsumer
	if ctx != nil {
		mode = ctx.Mode
	}
	for _, key := range keys {
		gen := gens[key]
		if !gen.CorrespondsToMode(mode) {
			continue
		}
		path, err := docpath.Parse(key)
		if err != nil {
			slog.Warn("Ignoring generator with invalid path", "path", key, "error", err)
			continue
		}
		if path.IsEmpty() || path.IsRoot() {
			doc = generateOrKeep(ctx, gen, doc)
			continue
		}
		var matches []docpath.Match
		path.Visit(doc, func(m docpath.Match) { matches = append(matches, m) })
		for _, m := range matches {
			ptr := ""
			for _, seg := range m.Segments {
				ptr += "/" + seg
			}
			doc, _ = jsondoc.SetPointer(doc, ptr, generateOrKeep(ctx, gen, m.Value))
		}
	}
	return doc
}

func generateOrKeep(ctx *Context, gen Generator, value any) any {
	generated, err := gen.Generate(ctx, value)
	if err != nil {
		slog.Warn("Generator failed, keeping the example value", "generator", gen.Type(), "error", err)
		return value
	}
	return jsondoc.Normalise(generated)
}

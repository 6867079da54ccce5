// internal/generators/category.go
package generators

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

// Category names the part of an interaction a generator targets.
type Category string

const (
	CategoryMethod   Category = "method"
	CategoryPath     Category = "path"
	CategoryHeader   Category = "header"
	CategoryQuery    Category = "query"
	CategoryBody     Category = "body"
	CategoryStatus   Category = "status"
	CategoryMetadata Category = "metadata"
	CategoryContent  Category = "content"
)

var categories = []Category{
	CategoryMethod, CategoryPath, CategoryHeader, CategoryQuery,
	CategoryBody, CategoryStatus, CategoryMetadata, CategoryContent,
}

// ParseCategory accepts a category name in any case.
func ParseCategory(name string) (Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}

// singular reports whether the category holds one generator under the
// empty key rather than one per path.
func (c Category) singular() bool {
	return c == CategoryMethod || c == CategoryPath || c == CategoryStatus
}

// Generators holds the generators of one interaction, keyed by category
// and then by path expression (or header/query name).
type Generators struct {
	Categories map[Category]map[string]Generator
}

// New returns an empty container.
func New() *Generators {
	return &Generators{Categories: make(map[Category]map[string]Generator)}
}

// Add registers gen under category and key. Singular categories ignore
// the key.
func (g *Generators) Add(category Category, key string, gen Generator) *Generators {
	if g.Categories == nil {
		g.Categories = make(map[Category]map[string]Generator)
	}
	if category.singular() {
		key = ""
	}
	if g.Categories[category] == nil {
		g.Categories[category] = make(map[string]Generator)
	}
	g.Categories[category][key] = gen
	return g
}

// Get returns the generator registered for category and key.
func (g *Generators) Get(category Category, key string) (Generator, bool) {
	if g == nil {
		return nil, false
	}
	gen, ok := g.Categories[category][key]
	return gen, ok
}

// IsEmpty reports whether no generators are registered.
func (g *Generators) IsEmpty() bool {
	if g == nil {
		return true
	}
	for _, gens := range g.Categories {
		if len(gens) > 0 {
			return false
		}
	}
	return true
}

// Apply calls fn for every generator in category that applies in mode, in
// sorted key order.
func (g *Generators) Apply(category Category, mode Mode, fn func(key string, gen Generator)) {
	if g == nil {
		return
	}
	gens := g.Categories[category]
	keys := make([]string, 0, len(gens))
	for k := range gens {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if gens[k].CorrespondsToMode(mode) {
			fn(k, gens[k])
		}
	}
}

// ApplyBody applies the body generators to a JSON document and returns
// the result. doc is not modified.
func (g *Generators) ApplyBody(ctx *Context, doc any) any {
	if g == nil || len(g.Categories[CategoryBody]) == 0 {
		return doc
	}
	return ApplyAt(ctx, jsondoc.Clone(doc), g.Categories[CategoryBody])
}

// ToMap renders the wire form. Generators did not exist before V3.
func (g *Generators) ToMap(v types.SpecVersion) (map[string]any, error) {
	if !v.AtLeast(types.SpecV3) {
		return nil, types.NewEvalError(types.ErrInvalidGenerator, "Generators are only supported with pact specification version 3+")
	}
	out := make(map[string]any)
	if g == nil {
		return out, nil
	}
	for category, gens := range g.Categories {
		if len(gens) == 0 {
			continue
		}
		if category.singular() {
			if gen, ok := gens[""]; ok {
				out[string(category)] = gen.ToMap(v)
			}
			continue
		}
		entries := make(map[string]any, len(gens))
		for key, gen := range gens {
			entries[key] = gen.ToMap(v)
		}
		out[string(category)] = entries
	}
	return out, nil
}

// FromJSON loads the wire form. Invalid categories and generator
// definitions are logged and skipped.
func FromJSON(doc map[string]any) *Generators {
	g := New()
	for _, key := range jsondoc.SortedKeys(doc) {
		category, ok := ParseCategory(key)
		if !ok {
			slog.Warn(fmt.Sprintf("Ignoring generator with invalid category '%s'", key))
			continue
		}
		def, ok := doc[key].(map[string]any)
		if !ok {
			slog.Warn(fmt.Sprintf("Ignoring invalid generator config '%s'", jsondoc.Serialise(doc[key])))
			continue
		}
		if category.singular() {
			if _, typed := def["type"]; typed {
				if gen, ok := Lookup(def); ok {
					g.Add(category, "", gen)
				}
			} else {
				slog.Warn(fmt.Sprintf("Ignoring invalid generator config '%s'", jsondoc.Serialise(def)))
			}
			continue
		}
		for _, genKey := range jsondoc.SortedKeys(def) {
			genDef, ok := def[genKey].(map[string]any)
			if !ok {
				slog.Warn(fmt.Sprintf("Ignoring invalid generator config '%s'", jsondoc.Serialise(def[genKey])))
				continue
			}
			if _, typed := genDef["type"]; !typed {
				slog.Warn(fmt.Sprintf("Ignoring invalid generator config '%s'", jsondoc.Serialise(genDef)))
				continue
			}
			if gen, ok := Lookup(genDef); ok {
				g.Add(category, genKey, gen)
			}
		}
	}
	return g
}

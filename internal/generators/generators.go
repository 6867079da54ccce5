// internal/generators/generators.go

// Package generators synthesizes example values for contract expectations:
// random numbers and strings, UUIDs, regex-shaped strings, dates and times
// computed from expressions, and values taken from provider state.
package generators

import (
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pact-foundation/pactengine/internal/javatime"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
	"github.com/pact-foundation/pactengine/internal/types"
)

// Mode selects which generators apply: some only make sense while
// verifying a provider.
type Mode int

const (
	ModeConsumer Mode = iota
	ModeProvider
)

// Context carries everything a generator may consult. Each caller owns its
// Context; Rand is not shared between goroutines.
type Context struct {
	Rand *rand.Rand

	// Zero values mean "now".
	BaseDate     time.Time
	BaseTime     time.Time
	BaseDateTime time.Time

	// ProviderState holds values returned by provider state callbacks.
	ProviderState map[string]any

	// Mode filters generators applied inside nested structures.
	Mode Mode

	// VariantMatcher decides which array-contains variant an element
	// belongs to. Without one, array-contains generation is a no-op.
	VariantMatcher VariantMatcher
}

// NewContext returns a Context seeded from seed.
func NewContext(seed int64) *Context {
	return &Context{Rand: rand.New(rand.NewSource(seed))}
}

func (c *Context) rng() *rand.Rand {
	if c == nil || c.Rand == nil {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c.Rand
}

func (c *Context) base(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// Generator produces a new value given the current example value.
type Generator interface {
	// Type is the wire name of the generator ("RandomInt", "Date", ...).
	Type() string
	Generate(ctx *Context, example any) (any, error)
	ToMap(v types.SpecVersion) map[string]any
	CorrespondsToMode(mode Mode) bool
}

// RandomInt generates an integer in [Min, Max].
type RandomInt struct{ Min, Max int }

func (g RandomInt) Type() string                { return "RandomInt" }
func (g RandomInt) CorrespondsToMode(Mode) bool { return true }

func (g RandomInt) Generate(ctx *Context, _ any) (any, error) {
	if g.Max <= g.Min {
		return json.Number(strconv.Itoa(g.Min)), nil
	}
	n := g.Min + ctx.rng().Intn(g.Max-g.Min+1)
	return json.Number(strconv.Itoa(n)), nil
}

func (g RandomInt) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"type": g.Type(), "min": g.Min, "max": g.Max}
}

// RandomDecimal generates a decimal number with Digits digits.
type RandomDecimal struct{ Digits int }

func (g RandomDecimal) Type() string                { return "RandomDecimal" }
func (g RandomDecimal) CorrespondsToMode(Mode) bool { return true }

func (g RandomDecimal) Generate(ctx *Context, _ any) (any, error) {
	r := ctx.rng()
	digits := g.Digits
	if digits < 1 {
		digits = 1
	}
	var b strings.Builder
	b.WriteByte(byte('1' + r.Intn(9)))
	for i := 1; i < digits; i++ {
		b.WriteByte(byte('0' + r.Intn(10)))
	}
	s := b.String()
	if digits > 1 {
		point := 1 + r.Intn(digits-1)
		s = s[:point] + "." + s[point:]
	}
	return json.Number(s), nil
}

func (g RandomDecimal) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"type": g.Type(), "digits": g.Digits}
}

// RandomHexadecimal generates a lower-case hexadecimal string.
type RandomHexadecimal struct{ Digits int }

func (g RandomHexadecimal) Type() string                { return "RandomHexadecimal" }
func (g RandomHexadecimal) CorrespondsToMode(Mode) bool { return true }

func (g RandomHexadecimal) Generate(ctx *Context, _ any) (any, error) {
	return randomFrom(ctx.rng(), "0123456789abcdef", g.Digits), nil
}

func (g RandomHexadecimal) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"type": g.Type(), "digits": g.Digits}
}

// RandomString generates an alphanumeric string of Size characters.
type RandomString struct{ Size int }

func (g RandomString) Type() string                { return "RandomString" }
func (g RandomString) CorrespondsToMode(Mode) bool { return true }

func (g RandomString) Generate(ctx *Context, _ any) (any, error) {
	return randomFrom(ctx.rng(), alphanumeric, g.Size), nil
}

func (g RandomString) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"type": g.Type(), "size": g.Size}
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomFrom(r *rand.Rand, alphabet string, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}

// Regex generates a string matching Regex.
type Regex struct{ Regex string }

func (g Regex) Type() string                { return "Regex" }
func (g Regex) CorrespondsToMode(Mode) bool { return true }

func (g Regex) Generate(ctx *Context, _ any) (any, error) {
	return GenerateFromRegex(ctx.rng(), g.Regex)
}

func (g Regex) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"type": g.Type(), "regex": g.Regex}
}

// UUID formats.
const (
	UUIDLowerHyphenated = "lower-case-hyphenated"
	UUIDUpperHyphenated = "upper-case-hyphenated"
	UUIDSimple          = "simple"
	UUIDURN             = "URN"
)

// Uuid generates a random UUID in the requested Format (lower-case
// hyphenated by default).
type Uuid struct{ Format string }

func (g Uuid) Type() string                { return "Uuid" }
func (g Uuid) CorrespondsToMode(Mode) bool { return true }

func (g Uuid) Generate(ctx *Context, _ any) (any, error) {
	id, err := uuid.NewRandomFromReader(ctx.rng())
	if err != nil {
		return nil, fmt.Errorf("generating uuid: %w", err)
	}
	switch g.Format {
	case UUIDSimple:
		return strings.ReplaceAll(id.String(), "-", ""), nil
	case UUIDUpperHyphenated:
		return strings.ToUpper(id.String()), nil
	case UUIDURN:
		return id.URN(), nil
	default:
		return id.String(), nil
	}
}

func (g Uuid) ToMap(v types.SpecVersion) map[string]any {
	m := map[string]any{"type": g.Type()}
	if g.Format != "" && v.AtLeast(types.SpecV4) {
		m["format"] = g.Format
	}
	return m
}

// Date generates a date, optionally shifted by a date expression.
type Date struct{ Format, Expression string }

func (g Date) Type() string                { return "Date" }
func (g Date) CorrespondsToMode(Mode) bool { return true }

func (g Date) Generate(ctx *Context, _ any) (any, error) {
	base := ctx.base(baseDateOf(ctx))
	t, err := ExecuteDateExpression(base, g.Expression)
	if err != nil {
		slog.Warn("Failed to evaluate date expression, using the base date", "expression", g.Expression, "error", err)
		t = base
	}
	return formatTime(g.Format, "2006-01-02", t)
}

func (g Date) ToMap(types.SpecVersion) map[string]any {
	return formatExpressionMap(g.Type(), g.Format, g.Expression)
}

// Time generates a time, optionally shifted by a time expression.
type Time struct{ Format, Expression string }

func (g Time) Type() string                { return "Time" }
func (g Time) CorrespondsToMode(Mode) bool { return true }

func (g Time) Generate(ctx *Context, _ any) (any, error) {
	var base time.Time
	if ctx != nil {
		base = ctx.BaseTime
	}
	base = ctx.base(base)
	t, err := ExecuteTimeExpression(base, g.Expression)
	if err != nil {
		slog.Warn("Failed to evaluate time expression, using the base time", "expression", g.Expression, "error", err)
		t = base
	}
	return formatTime(g.Format, "15:04:05Z07:00", t)
}

func (g Time) ToMap(types.SpecVersion) map[string]any {
	return formatExpressionMap(g.Type(), g.Format, g.Expression)
}

// DateTime generates a timestamp, optionally shifted by a
// "<date expression> @ <time expression>" expression.
type DateTime struct{ Format, Expression string }

func (g DateTime) Type() string                { return "DateTime" }
func (g DateTime) CorrespondsToMode(Mode) bool { return true }

func (g DateTime) Generate(ctx *Context, _ any) (any, error) {
	var base time.Time
	if ctx != nil {
		base = ctx.BaseDateTime
	}
	base = ctx.base(base)
	t, err := ExecuteDateTimeExpression(base, g.Expression)
	if err != nil {
		slog.Warn("Failed to evaluate datetime expression, using the base datetime", "expression", g.Expression, "error", err)
		t = base
	}
	return formatTime(g.Format, time.RFC3339Nano, t)
}

func (g DateTime) ToMap(types.SpecVersion) map[string]any {
	return formatExpressionMap(g.Type(), g.Format, g.Expression)
}

func baseDateOf(ctx *Context) time.Time {
	if ctx == nil {
		return time.Time{}
	}
	return ctx.BaseDate
}

func formatTime(pattern, defaultLayout string, t time.Time) (any, error) {
	if pattern == "" {
		return t.Format(defaultLayout), nil
	}
	s, err := javatime.Format(pattern, t)
	if err != nil {
		return nil, types.NewEvalError(types.ErrInvalidGenerator, err.Error())
	}
	return s, nil
}

func formatExpressionMap(typ, format, expression string) map[string]any {
	m := map[string]any{"type": typ}
	if format != "" {
		m["format"] = format
	}
	if expression != "" {
		m["expression"] = expression
	}
	return m
}

// RandomBoolean generates true or false.
type RandomBoolean struct{}

func (g RandomBoolean) Type() string                { return "RandomBoolean" }
func (g RandomBoolean) CorrespondsToMode(Mode) bool { return true }

func (g RandomBoolean) Generate(ctx *Context, _ any) (any, error) {
	return ctx.rng().Intn(2) == 1, nil
}

func (g RandomBoolean) ToMap(types.SpecVersion) map[string]any {
	return map[string]any{"type": g.Type()}
}

// Provider state data types.
const (
	DataTypeRaw     = "RAW"
	DataTypeString  = "STRING"
	DataTypeInteger = "INTEGER"
	DataTypeDecimal = "DECIMAL"
	DataTypeFloat   = "FLOAT"
	DataTypeBoolean = "BOOLEAN"
)

var stateExpression = regexp.MustCompile(`\$\{([^}]*)\}`)

// ProviderState looks up Expression in the provider state values. An
// expression containing ${name} placeholders is interpolated instead.
type ProviderState struct{ Expression, DataType string }

func (g ProviderState) Type() string { return "ProviderState" }

func (g ProviderState) CorrespondsToMode(mode Mode) bool { return mode == ModeProvider }

func (g ProviderState) Generate(ctx *Context, _ any) (any, error) {
	if ctx == nil || ctx.ProviderState == nil {
		return nil, nil
	}
	var value any
	if stateExpression.MatchString(g.Expression) {
		matches := stateExpression.FindAllStringSubmatchIndex(g.Expression, -1)
		if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(g.Expression) {
			value = ctx.ProviderState[strings.TrimSpace(g.Expression[matches[0][2]:matches[0][3]])]
		} else {
			value = stateExpression.ReplaceAllStringFunc(g.Expression, func(m string) string {
				key := strings.TrimSpace(m[2 : len(m)-1])
				return jsondoc.String(jsondoc.Normalise(ctx.ProviderState[key]))
			})
		}
	} else {
		value = ctx.ProviderState[g.Expression]
	}
	return convertDataType(jsondoc.Normalise(value), g.DataType)
}

func (g ProviderState) ToMap(types.SpecVersion) map[string]any {
	dt := g.DataType
	if dt == "" {
		dt = DataTypeRaw
	}
	return map[string]any{"type": g.Type(), "expression": g.Expression, "dataType": dt}
}

func convertDataType(v any, dataType string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch dataType {
	case DataTypeString:
		return jsondoc.String(v), nil
	case DataTypeInteger:
		n, err := strconv.ParseFloat(jsondoc.String(v), 64)
		if err != nil {
			return nil, types.NewEvalError(types.ErrTypeMismatch, fmt.Sprintf("'%s' is not a valid integer", jsondoc.String(v)))
		}
		return json.Number(strconv.FormatInt(int64(n), 10)), nil
	case DataTypeDecimal, DataTypeFloat:
		s := jsondoc.String(v)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return nil, types.NewEvalError(types.ErrTypeMismatch, fmt.Sprintf("'%s' is not a valid number", s))
		}
		return json.Number(s), nil
	case DataTypeBoolean:
		b, err := strconv.ParseBool(jsondoc.String(v))
		if err != nil {
			return nil, types.NewEvalError(types.ErrTypeMismatch, fmt.Sprintf("'%s' is not a valid boolean", jsondoc.String(v)))
		}
		return b, nil
	default:
		return v, nil
	}
}

// Lookup builds a generator from its wire form. Unknown types are logged
// and reported as not ok.
func Lookup(def map[string]any) (Generator, bool) {
	typ, _ := def["type"].(string)
	switch typ {
	case "RandomInt":
		return RandomInt{
			Min: intField(def, "min", 0),
			Max: intField(def, "max", 2147483647),
		}, true
	case "RandomDecimal":
		return RandomDecimal{Digits: intField(def, "digits", 10)}, true
	case "RandomHexadecimal":
		return RandomHexadecimal{Digits: intField(def, "digits", 10)}, true
	case "RandomString":
		return RandomString{Size: intField(def, "size", 10)}, true
	case "Regex":
		return Regex{Regex: stringField(def, "regex")}, true
	case "Uuid":
		return Uuid{Format: stringField(def, "format")}, true
	case "Date":
		return Date{Format: stringField(def, "format"), Expression: stringField(def, "expression")}, true
	case "Time":
		return Time{Format: stringField(def, "format"), Expression: stringField(def, "expression")}, true
	case "DateTime":
		return DateTime{Format: stringField(def, "format"), Expression: stringField(def, "expression")}, true
	case "RandomBoolean":
		return RandomBoolean{}, true
	case "ProviderState":
		dt := stringField(def, "dataType")
		if dt == "" {
			dt = DataTypeRaw
		}
		return ProviderState{Expression: stringField(def, "expression"), DataType: dt}, true
	}
	slog.Warn("Could not find generator class for generator config", "config", jsondoc.Serialise(def))
	return nil, false
}

func intField(def map[string]any, key string, fallback int) int {
	if _, present := def[key]; !present {
		return fallback
	}
	if n, ok := def[key].(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	}
	switch n := def[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	slog.Warn(fmt.Sprintf("Ignoring invalid value for %s: '%s'", key, jsondoc.Serialise(def[key])))
	return fallback
}

func stringField(def map[string]any, key string) string {
	switch v := def[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return jsondoc.Serialise(v)
	}
}

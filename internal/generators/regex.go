// internal/generators/regex.go
package generators

import (
	"fmt"
	"math/rand"
	"regexp/syntax"
	"strings"

	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Regex-driven string generation walks the parsed syntax tree and emits one
 * random string the pattern accepts. Anchors and word boundaries emit
 * nothing; unbounded repetition is capped at maxRepeat extra iterations.
 * Character classes pick a random rune from a random range, restricted to
 * printable ASCII when the class spans it.
 */

const maxRepeat = 10

// GenerateFromRegex returns a random string matching pattern.
func GenerateFromRegex(r *rand.Rand, pattern string) (string, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", types.NewEvalError(types.ErrInvalidGenerator, fmt.Sprintf("'%s' is not a valid regular expression: %v", pattern, err))
	}
	var b strings.Builder
	emitRegex(r, re.Simplify(), &b)
	return b.String(), nil
}

func emitRegex(r *rand.Rand, re *syntax.Regexp, b *strings.Builder) {
	switch re.Op {
	case syntax.OpLiteral:
		for _, c := range re.Rune {
			if re.Flags&syntax.FoldCase != 0 && r.Intn(2) == 0 {
				c = swapCase(c)
			}
			b.WriteRune(c)
		}
	case syntax.OpCharClass:
		b.WriteRune(pickFromClass(r, re.Rune))
	case syntax.OpAnyCharNotNL, syntax.OpAnyChar:
		b.WriteByte(byte(' ' + 1 + r.Intn('~'-' ')))
	case syntax.OpCapture:
		emitRegex(r, re.Sub[0], b)
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			emitRegex(r, sub, b)
		}
	case syntax.OpAlternate:
		emitRegex(r, re.Sub[r.Intn(len(re.Sub))], b)
	case syntax.OpStar:
		repeat(r, re.Sub[0], 0, maxRepeat, b)
	case syntax.OpPlus:
		repeat(r, re.Sub[0], 1, 1+maxRepeat, b)
	case syntax.OpQuest:
		repeat(r, re.Sub[0], 0, 1, b)
	case syntax.OpRepeat:
		upper := re.Max
		if upper < 0 {
			upper = re.Min + maxRepeat
		}
		repeat(r, re.Sub[0], re.Min, upper, b)
	}
}

func repeat(r *rand.Rand, re *syntax.Regexp, lower, upper int, b *strings.Builder) {
	n := lower
	if upper > lower {
		n += r.Intn(upper - lower + 1)
	}
	for i := 0; i < n; i++ {
		emitRegex(r, re, b)
	}
}

func pickFromClass(r *rand.Rand, ranges []rune) rune {
	if len(ranges) == 0 {
		return '?'
	}
	// prefer printable ASCII sub-ranges so negated classes stay readable
	var printable []rune
	for i := 0; i+1 < len(ranges); i += 2 {
		lo, hi := ranges[i], ranges[i+1]
		if lo < '!' {
			lo = '!'
		}
		if hi > '~' {
			hi = '~'
		}
		if lo <= hi {
			printable = append(printable, lo, hi)
		}
	}
	if len(printable) > 0 {
		ranges = printable
	}
	pair := r.Intn(len(ranges)/2) * 2
	lo, hi := ranges[pair], ranges[pair+1]
	return lo + rune(r.Intn(int(hi-lo)+1))
}

func swapCase(c rune) rune {
	switch {
	case c >= 'a' && c <= 'z':
		return c - 'a' + 'A'
	case c >= 'A' && c <= 'Z':
		return c - 'A' + 'a'
	}
	return c
}

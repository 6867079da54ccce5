// internal/docpath/weight.go
package docpath

import "strconv"

/*
 * Path weights rank how specifically a rule path expression addresses a
 * concrete path. Exact tokens score 2, wildcards score 1 and a mismatch
 * scores 0. The weight is the product over the tokens, so a single
 * mismatch disqualifies the expression. A "*" segment stands for any array
 * index, as in the paths of array item templates.
 */

func matchesToken(element string, t Token) int {
	switch t.Kind {
	case Root:
		if element == "$" {
			return 2
		}
	case Field:
		if element == t.Name {
			return 2
		}
	case Index:
		if isDigits(element) {
			if i, err := strconv.Atoi(element); err == nil && i == t.Index {
				return 2
			}
		}
	case StarIndex:
		if element == "*" || isDigits(element) {
			return 1
		}
	case Star:
		return 1
	}
	return 0
}

// Weight calculates the weight of this expression against a concrete path
// given as raw segments starting with "$". Expressions longer than the
// path weigh 0.
func (p DocPath) Weight(path []string) int {
	if len(path) < len(p.tokens) {
		return 0
	}
	weight := 1
	for i, t := range p.tokens {
		weight *= matchesToken(path[i], t)
	}
	return weight
}

// MatchesPath reports whether the expression matches a prefix of path.
func (p DocPath) MatchesPath(path []string) bool {
	return p.Weight(path) > 0
}

// MatchesPathExactly reports whether the expression matches path and both
// have the same length.
func (p DocPath) MatchesPathExactly(path []string) bool {
	return len(p.tokens) == len(path) && p.MatchesPath(path)
}

// internal/docpath/docpath.go

// Package docpath parses and evaluates document path expressions such as
// $.body.items[*].name or $.headers['Content-Type'].
package docpath

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/pact-foundation/pactengine/internal/types"
)

/*
 * Path expression grammar:
 *
 *   parse_path_exp -> $ path_exp | empty
 *   path_exp       -> (dot_path | bracket_path)*
 *   dot_path       -> . (identifier | *)
 *   bracket_path   -> [ ('string' | digits | *) ]
 *   identifier     -> (letter | digit | - _ : # @)+
 *
 * The empty expression parses to a path with no tokens. Every non-empty
 * expression starts with the root marker.
 */

const (
	specialChars        = "'[].@ \t\n"
	allowedSpecialChars = "-_:#@"
)

// TokenKind identifies the kind of a path token.
type TokenKind int

// Token kinds.
const (
	Root TokenKind = iota
	Field
	Index
	Star
	StarIndex
)

// Token is one element of a parsed path.
type Token struct {
	Kind  TokenKind
	Name  string // Field only
	Index int    // Index only
}

// FieldToken returns a Field token.
func FieldToken(name string) Token { return Token{Kind: Field, Name: name} }

// IndexToken returns an Index token.
func IndexToken(i int) Token { return Token{Kind: Index, Index: i} }

// String renders the token as it appears inside an expression. Fields with
// special characters use the bracketed quoted form.
func (t Token) String() string {
	switch t.Kind {
	case Root:
		return "$"
	case Field:
		if strings.ContainsAny(t.Name, specialChars) {
			return "['" + t.Name + "']"
		}
		return t.Name
	case Index:
		return "[" + strconv.Itoa(t.Index) + "]"
	case Star:
		return "*"
	case StarIndex:
		return "[*]"
	}
	return ""
}

// Raw returns the token text without any quoting.
func (t Token) Raw() string {
	switch t.Kind {
	case Field:
		return t.Name
	case Index:
		return strconv.Itoa(t.Index)
	default:
		return t.String()
	}
}

// DocPath is a parsed path expression. The zero value is the empty path.
type DocPath struct {
	tokens []Token
	expr   string
}

// Parse parses a path expression.
func Parse(expr string) (DocPath, error) {
	tokens, err := parseTokens(expr)
	if err != nil {
		return DocPath{}, err
	}
	return DocPath{tokens: tokens, expr: expr}, nil
}

// MustParse is Parse for expressions known to be valid. It panics otherwise.
func MustParse(expr string) DocPath {
	p, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// RootPath returns the path consisting of only the root marker.
func RootPath() DocPath {
	return DocPath{tokens: []Token{{Kind: Root}}, expr: "$"}
}

// FromTokens builds a path from tokens, generating its expression.
func FromTokens(tokens []Token) DocPath {
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	return DocPath{tokens: cp, expr: ExprFromTokens(cp)}
}

// Tokens returns a copy of the path tokens.
func (p DocPath) Tokens() []Token {
	cp := make([]Token, len(p.tokens))
	copy(cp, p.tokens)
	return cp
}

// Len returns the number of tokens, including the root.
func (p DocPath) Len() int { return len(p.tokens) }

// Segments returns the path as plain strings: "$", field names, indexes and
// "*" for both wildcards.
func (p DocPath) Segments() []string {
	out := make([]string, 0, len(p.tokens))
	for _, t := range p.tokens {
		switch t.Kind {
		case StarIndex:
			out = append(out, "*")
		default:
			out = append(out, t.Raw())
		}
	}
	return out
}

func (p DocPath) String() string { return p.expr }

// IsEmpty reports whether the path has no tokens.
func (p DocPath) IsEmpty() bool { return len(p.tokens) == 0 }

// IsRoot reports whether the path is exactly "$".
func (p DocPath) IsRoot() bool {
	return len(p.tokens) == 1 && p.tokens[0].Kind == Root
}

// IsWildcard reports whether the path ends in a star.
func (p DocPath) IsWildcard() bool {
	last, ok := p.Last()
	return ok && last.Kind == Star
}

// Last returns the final token.
func (p DocPath) Last() (Token, bool) {
	if len(p.tokens) == 0 {
		return Token{}, false
	}
	return p.tokens[len(p.tokens)-1], true
}

// FirstField returns the name of the first Field token.
func (p DocPath) FirstField() (string, bool) {
	for _, t := range p.tokens {
		if t.Kind == Field {
			return t.Name, true
		}
	}
	return "", false
}

// LastField returns the name of the last Field token.
func (p DocPath) LastField() (string, bool) {
	for i := len(p.tokens) - 1; i >= 0; i-- {
		if p.tokens[i].Kind == Field {
			return p.tokens[i].Name, true
		}
	}
	return "", false
}

// Join returns a new path with part appended. "*" and "[*]" append the
// wildcards, digits append an index and anything else a field.
func (p DocPath) Join(part string) DocPath {
	switch {
	case part == "*":
		return p.push(Token{Kind: Star})
	case part == "[*]":
		return p.push(Token{Kind: StarIndex})
	case isDigits(part):
		if i, err := strconv.Atoi(part); err == nil {
			return p.push(IndexToken(i))
		}
	}
	return p.push(FieldToken(part))
}

// JoinField returns a new path with a field appended. A trailing star is
// replaced by the field.
func (p DocPath) JoinField(name string) DocPath {
	if last, ok := p.Last(); ok && last.Kind == Star {
		return p.replaceLast(FieldToken(name))
	}
	return p.push(FieldToken(name))
}

// JoinIndex returns a new path with an index appended. A trailing star or
// star index is replaced by the index.
func (p DocPath) JoinIndex(i int) DocPath {
	if last, ok := p.Last(); ok && (last.Kind == Star || last.Kind == StarIndex) {
		return p.replaceLast(IndexToken(i))
	}
	return p.push(IndexToken(i))
}

func (p DocPath) push(t Token) DocPath {
	tokens := make([]Token, len(p.tokens), len(p.tokens)+1)
	copy(tokens, p.tokens)
	return FromTokens(append(tokens, t))
}

func (p DocPath) replaceLast(t Token) DocPath {
	tokens := p.Tokens()
	tokens[len(tokens)-1] = t
	return FromTokens(tokens)
}

// ExprFromTokens renders tokens back into a path expression.
func ExprFromTokens(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		switch t.Kind {
		case Root:
			b.WriteString("$")
		case Field:
			s := t.String()
			if b.Len() > 0 && !strings.HasPrefix(s, "[") {
				b.WriteString(".")
			}
			b.WriteString(s)
		case Index:
			b.WriteString("[" + strconv.Itoa(t.Index) + "]")
		case Star:
			if b.Len() > 0 {
				b.WriteString(".")
			}
			b.WriteString("*")
		case StarIndex:
			b.WriteString("[*]")
		}
	}
	return b.String()
}

// ValidPathChar reports whether c may appear in an unquoted identifier.
func ValidPathChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || strings.ContainsRune(allowedSpecialChars, c)
}

// ConstructValidPath appends segment to rootPath, quoting or indexing it as
// required for the result to parse.
func ConstructValidPath(segment, rootPath string) string {
	switch {
	case rootPath == "":
		return segment
	case segment == "":
		return rootPath
	}
	root := strings.TrimRight(rootPath, ".")
	if isDigits(segment) {
		return root + "[" + segment + "]"
	}
	if segment != "*" {
		for _, c := range segment {
			if !ValidPathChar(c) {
				return root + "['" + segment + "']"
			}
		}
	}
	return root + "." + segment
}

// ConstructPath folds a list of segments into a path expression. The first
// segment is used as the root.
func ConstructPath(segments []string) string {
	path := ""
	for _, s := range segments {
		if path == "" {
			path = s
		} else {
			path = ConstructValidPath(s, path)
		}
	}
	return path
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func invalidPath(format string, args ...any) error {
	return types.NewEvalError(types.ErrInvalidPath, fmt.Sprintf(format, args...))
}

// parser walks the expression rune by rune. Indexes in messages are rune offsets.
type parser struct {
	path  string
	runes []rune
	pos   int
}

func (ps *parser) hasNext() bool { return ps.pos < len(ps.runes) }

func (ps *parser) next() (rune, int) {
	c := ps.runes[ps.pos]
	ps.pos++
	return c, ps.pos - 1
}

func (ps *parser) pushback() { ps.pos-- }

func parseTokens(path string) ([]Token, error) {
	ps := &parser{path: path, runes: []rune(path)}
	if !ps.hasNext() {
		return nil, nil
	}
	if c, _ := ps.next(); c != '$' {
		return nil, invalidPath("Path expression %q does not start with a root marker \"$\"", path)
	}
	tokens := []Token{{Kind: Root}}
	for ps.hasNext() {
		c, idx := ps.next()
		var (
			tok Token
			err error
		)
		switch c {
		case '.':
			tok, err = ps.pathIdentifier(idx)
		case '[':
			tok, err = ps.bracketPath(idx)
		default:
			err = invalidPath("Expected a \".\" or \"[\" instead of \"%c\" in path expression %q at index %d", c, path, idx)
		}
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func (ps *parser) pathIdentifier(index int) (Token, error) {
	if !ps.hasNext() {
		return Token{}, invalidPath("Expected a path after \".\" in path expression %q at index %d", ps.path, index)
	}
	c, idx := ps.next()
	switch {
	case c == '*':
		return Token{Kind: Star}, nil
	case ValidPathChar(c):
		return ps.identifier(c)
	}
	return Token{}, invalidPath("Expected either a \"*\" or path identifier in path expression %q at index %d", ps.path, idx)
}

func (ps *parser) identifier(first rune) (Token, error) {
	id := []rune{first}
	for ps.hasNext() {
		c, idx := ps.next()
		if ValidPathChar(c) {
			id = append(id, c)
			continue
		}
		if c == '.' || c == '\'' || c == '[' {
			ps.pushback()
			break
		}
		return Token{}, invalidPath("\"%c\" is not allowed in an identifier in path expression %q at index %d", c, ps.path, idx)
	}
	return FieldToken(string(id)), nil
}

func (ps *parser) bracketPath(index int) (Token, error) {
	if !ps.hasNext() {
		return Token{}, invalidPath("Expected a \"'\" (single quote) or a digit in path expression %q after index %d", ps.path, index)
	}
	c, idx := ps.next()
	var (
		tok Token
		err error
	)
	switch {
	case c == '\'':
		tok, err = ps.stringPath(idx)
	case c >= '0' && c <= '9':
		tok, err = ps.indexPath(c)
	case c == '*':
		tok = Token{Kind: StarIndex}
	case c == ']':
		err = invalidPath("Empty bracket expressions are not allowed in path expression %q at index %d", ps.path, idx)
	default:
		err = invalidPath("Indexes can only consist of numbers or a \"*\", found \"%c\" instead in path expression %q at index %d", c, ps.path, idx)
	}
	if err != nil {
		return Token{}, err
	}
	if !ps.hasNext() {
		return Token{}, invalidPath("Unterminated brackets in path expression %q at index %d", ps.path, idx)
	}
	if c2, idx2 := ps.next(); c2 != ']' {
		return Token{}, invalidPath("Unterminated brackets, found \"%c\" instead of \"]\" in path expression %q at index %d", c2, ps.path, idx2)
	}
	return tok, nil
}

func (ps *parser) stringPath(index int) (Token, error) {
	var id []rune
	last := index
	for ps.hasNext() {
		c, idx := ps.next()
		last = idx
		if c == '\'' {
			if len(id) == 0 {
				return Token{}, invalidPath("Empty strings are not allowed in path expression %q at index %d", ps.path, idx)
			}
			return FieldToken(string(id)), nil
		}
		id = append(id, c)
	}
	return Token{}, invalidPath("Unterminated string in path expression %q at index %d", ps.path, last)
}

func (ps *parser) indexPath(first rune) (Token, error) {
	id := []rune{first}
	for ps.hasNext() {
		c, idx := ps.next()
		if c >= '0' && c <= '9' {
			id = append(id, c)
			continue
		}
		if c == ']' {
			ps.pushback()
			break
		}
		return Token{}, invalidPath("Indexes can only consist of numbers or a \"*\", found \"%c\" instead in path expression %q at index %d", c, ps.path, idx)
	}
	i, err := strconv.Atoi(string(id))
	if err != nil {
		return Token{}, invalidPath("Index %q is out of range in path expression %q", string(id), ps.path)
	}
	return IndexToken(i), nil
}

package penalty

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// The formula penalty type is a narrow declarative expression language:
// named variables, arithmetic and comparison operators, parentheses. It is
// parsed once at catalog load and evaluated against a fixed variable set.
// Unknown identifiers are a hard CalculationError, never silently zero.

// CalculationError marks a formula or evaluation failure. The affected rule
// is excluded from the run and the aggregation proceeds degraded.
type CalculationError struct {
	Reason string
}

func (e *CalculationError) Error() string {
	return "calculation error: " + e.Reason
}

type nodeKind int

const (
	nodeNumber nodeKind = iota
	nodeVariable
	nodeUnary
	nodeBinary
)

type node struct {
	kind  nodeKind
	num   decimal.Decimal
	name  string
	op    string
	left  *node
	right *node
}

// Formula is a parsed penalty expression.
type Formula struct {
	root *node
	src  string
}

// ParseFormula parses the expression without evaluating it.
func ParseFormula(src string) (*Formula, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty formula")
	}
	p := &parser{tokens: tokenize(src)}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.tokens) {
		return nil, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	return &Formula{root: root, src: src}, nil
}

// Eval evaluates the formula against the named variables.
func (f *Formula) Eval(vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	return evalNode(f.root, vars)
}

func evalNode(n *node, vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	switch n.kind {
	case nodeNumber:
		return n.num, nil

	case nodeVariable:
		v, ok := vars[n.name]
		if !ok {
			return decimal.Zero, &CalculationError{Reason: fmt.Sprintf("unknown identifier %q", n.name)}
		}
		return v, nil

	case nodeUnary:
		v, err := evalNode(n.left, vars)
		if err != nil {
			return decimal.Zero, err
		}
		return v.Neg(), nil

	case nodeBinary:
		left, err := evalNode(n.left, vars)
		if err != nil {
			return decimal.Zero, err
		}
		right, err := evalNode(n.right, vars)
		if err != nil {
			return decimal.Zero, err
		}
		return applyOp(n.op, left, right)
	}
	return decimal.Zero, &CalculationError{Reason: "malformed expression"}
}

func applyOp(op string, left, right decimal.Decimal) (decimal.Decimal, error) {
	switch op {
	case "+":
		return left.Add(right), nil
	case "-":
		return left.Sub(right), nil
	case "*":
		return left.Mul(right), nil
	case "/":
		if right.IsZero() {
			return decimal.Zero, &CalculationError{Reason: "division by zero"}
		}
		return left.DivRound(right, 8), nil
	case "<":
		return boolDec(left.LessThan(right)), nil
	case "<=":
		return boolDec(left.LessThanOrEqual(right)), nil
	case ">":
		return boolDec(left.GreaterThan(right)), nil
	case ">=":
		return boolDec(left.GreaterThanOrEqual(right)), nil
	case "==":
		return boolDec(left.Equal(right)), nil
	case "!=":
		return boolDec(!left.Equal(right)), nil
	}
	return decimal.Zero, &CalculationError{Reason: fmt.Sprintf("unknown operator %q", op)}
}

func boolDec(b bool) decimal.Decimal {
	if b {
		return decimal.NewFromInt(1)
	}
	return decimal.Zero
}

type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	tok := p.peek()
	p.pos++
	return tok
}

// Grammar, lowest precedence first:
//
//	expr   -> cmp
//	cmp    -> addsub (("<" | "<=" | ">" | ">=" | "==" | "!=") addsub)?
//	addsub -> muldiv (("+" | "-") muldiv)*
//	muldiv -> unary (("*" | "/") unary)*
//	unary  -> "-" unary | primary
//	primary-> NUMBER | IDENT | "(" expr ")"
func (p *parser) parseExpr() (*node, error) {
	return p.parseCmp()
}

func (p *parser) parseCmp() (*node, error) {
	left, err := p.parseAddSub()
	if err != nil {
		return nil, err
	}
	switch p.peek() {
	case "<", "<=", ">", ">=", "==", "!=":
		op := p.next()
		right, err := p.parseAddSub()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeBinary, op: op, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parseAddSub() (*node, error) {
	left, err := p.parseMulDiv()
	if err != nil {
		return nil, err
	}
	for p.peek() == "+" || p.peek() == "-" {
		op := p.next()
		right, err := p.parseMulDiv()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseMulDiv() (*node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek() == "*" || p.peek() == "/" {
		op := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &node{kind: nodeBinary, op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*node, error) {
	if p.peek() == "-" {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &node{kind: nodeUnary, left: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*node, error) {
	tok := p.next()
	switch {
	case tok == "":
		return nil, fmt.Errorf("unexpected end of formula")

	case tok == "(":
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.next() != ")" {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		return inner, nil

	case isNumberToken(tok):
		num, err := decimal.NewFromString(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", tok)
		}
		return &node{kind: nodeNumber, num: num}, nil

	case isIdentToken(tok):
		return &node{kind: nodeVariable, name: tok}, nil
	}
	return nil, fmt.Errorf("unexpected token %q", tok)
}

func tokenize(src string) []string {
	var tokens []string
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			tokens = append(tokens, string(runes[start:i]))

		case r == '<' || r == '>' || r == '=' || r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, string(runes[i:i+2]))
				i += 2
			} else {
				tokens = append(tokens, string(r))
				i++
			}

		default:
			tokens = append(tokens, string(r))
			i++
		}
	}
	return tokens
}

func isNumberToken(tok string) bool {
	return len(tok) > 0 && unicode.IsDigit([]rune(tok)[0])
}

func isIdentToken(tok string) bool {
	r := []rune(tok)[0]
	return unicode.IsLetter(r) || r == '_'
}

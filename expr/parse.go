package expr

import (
	"strings"
	"unicode/utf8"
)

// Expr = num | Neg | Plus | Add | Sub | Mul | Div | Mod | Pow | '(' Expr ')'
// Neg = '-' Expr
// Plus = '+' Expr
// Add = Expr '+' Expr
// Sub = Expr '-' Expr
// Mul = Expr '*' Expr
// Div = Expr '/' Expr
// Mod = Expr '%' Expr
// Pow = Expr '^' Expr

// Expr is a parsed expression that can be evaluated with a context.
type Expr struct {
	// n is the root node of the expression.
	n *node
}

// tokens is a cursor over a token list with one token of pushback.
type tokens struct {
	toks []Token
	p    Token
	end  int
}

func scan(toks []Token) *tokens {
	end := 1
	if len(toks) > 0 {
		last := toks[len(toks)-1]
		end = last.Pos + utf8.RuneCountInString(last.Text)
	}
	return &tokens{toks: toks, end: end}
}

// push unreads a token so that it is the next token returned from next. Panics
// if there is already a pushed token.
func (s *tokens) push(tok Token) {
	if s.p.Kind != tokenNone {
		panic("expr: double push")
	}
	s.p = tok
}

// must scans the pushed token. Panics if there is no pushed token.
func (s *tokens) must() Token {
	tok := s.p
	if tok.Kind == tokenNone {
		panic("expr: no pushed token")
	}
	s.p = Token{}
	return tok
}

// next returns the next token. Past the end of the list, the result is an EOF
// token positioned just after the last token.
func (s *tokens) next() Token {
	if s.p.Kind != tokenNone {
		tok := s.p
		s.p = Token{}
		return tok
	}
	if len(s.toks) == 0 {
		return Token{Kind: tokenEOF, Pos: s.end}
	}
	tok := s.toks[0]
	s.toks = s.toks[1:]
	return tok
}

// Parse parses a token list, as produced by Tokenize, so it can be evaluated
// with a context. Every error is a SyntaxError.
func Parse(toks []Token) (*Expr, error) {
	s := scan(toks)
	n, err := parseterm(s, exprprec)
	if err != nil {
		return nil, err
	}
	if tok := s.must(); tok.Kind != tokenEOF {
		return nil, itShouldNotHaveEndedThisWay(tok, false)
	}
	if n == nil {
		// Only a leading close bracket gets here, and that is reported above.
		panic("expr: nil expression without error")
	}
	return &Expr{n: n}, nil
}

// ParseString tokenizes and parses an expression.
func ParseString(src string) (*Expr, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(toks)
}

// parseterm parses a single term. If there is no error, then parseterm pushes
// the last token it scans, including EOF. If the input is an empty
// subexpression ending in a close bracket, the result is nil with no error;
// callers must create an error in contexts where that is illegal, which is
// every context except the top level.
func parseterm(s *tokens, until operator) (*node, error) {
	n, err := parselhs(s, until)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	for {
		tok := s.next()
		switch tok.Kind {
		case Operator:
			// Binary operator.
			prec := binop(tok.Text)
			if prec.op == nodeNone {
				return nil, &OperatorError{Col: tok.Pos, Operator: tok.Text, Unary: false}
			}
			if !prec.moreBinding(until) {
				s.push(tok)
				return n, nil
			}
			rhs, err := parseterm(s, prec)
			if err != nil {
				return nil, err
			}
			if rhs == nil {
				return nil, missingOperand(s)
			}
			n = &node{kind: prec.op, name: tok.Text, pos: tok.Pos, left: n, right: rhs}
		case Number, LParen:
			// Juxtaposed terms. There is no implicit multiplication.
			return nil, &TokenError{Col: tok.Pos, Text: tok.Text}
		case RParen, tokenEOF:
			// End of expression.
			s.push(tok)
			return n, nil
		default:
			return nil, &TokenError{Col: tok.Pos, Text: tok.Text}
		}
	}
}

// parselhs parses the first component of a term. I.e., operators are unary and
// any encountered token must be valid as the start of a subexpression.
func parselhs(s *tokens, until operator) (*node, error) {
	tok := s.next()
	var n *node
	switch tok.Kind {
	case Number:
		if !validNumber(tok.Text) {
			return nil, &LexError{Text: tok.Text, Kind: "number", Col: tok.Pos}
		}
		n = &node{kind: nodeNum, name: tok.Text, pos: tok.Pos}
	case Operator:
		// unary operator
		prec := unop(tok.Text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.Pos, Operator: tok.Text, Unary: true}
		}
		if !prec.moreBinding(until) {
			// x^-y -> x^(-y)
			// Just use the new operator's precedence to simplify.
			prec.prec, prec.right = until.prec, until.right
		}
		rhs, err := parseterm(s, prec)
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, missingOperand(s)
		}
		n = &node{kind: prec.op, name: tok.Text, pos: tok.Pos, left: rhs}
	case LParen:
		rhs, err := parseterm(s, exprprec)
		if err != nil {
			return nil, err
		}
		end := s.must()
		if end.Kind != RParen {
			return nil, itShouldNotHaveEndedThisWay(end, true)
		}
		if rhs == nil {
			return nil, &EmptyExpressionError{Col: end.Pos, End: end.Text}
		}
		n = rhs
	case RParen:
		// Let the caller decide what an empty subexpression means.
		s.push(tok)
		return nil, nil
	case tokenEOF:
		return nil, &EmptyExpressionError{Col: tok.Pos, End: ""}
	default:
		return nil, &TokenError{Col: tok.Pos, Text: tok.Text}
	}
	return n, nil
}

// validNumber checks a number token's text the way the lexer would, since
// token lists need not come from Tokenize.
func validNumber(s string) bool {
	dig, dot := false, false
	for _, r := range s {
		switch {
		case '0' <= r && r <= '9':
			dig = true
		case r == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return dig
}

// missingOperand creates the error for an operator followed directly by a
// close bracket. The bracket is the pushed token.
func missingOperand(s *tokens) error {
	end := s.must()
	return &EmptyExpressionError{Col: end.Pos, End: end.Text}
}

// itShouldNotHaveEndedThisWay returns an error appropriate for an unexpected
// token at the end of a subexpression. open tells whether the subexpression
// began with an open bracket.
func itShouldNotHaveEndedThisWay(tok Token, open bool) error {
	switch tok.Kind {
	case tokenEOF:
		// Unexpected EOF implies an open bracket that was not closed.
		return &BracketError{Col: tok.Pos, Open: open, Close: false}
	case RParen:
		// A close bracket at the top level has no open bracket.
		return &BracketError{Col: tok.Pos, Open: open, Close: true}
	default:
		panic("expr: it really should not have ended this way: " + tok.String())
	}
}

// String creates a string representation of the parsed expression, with
// alternating round and square brackets grouping each term.
func (e *Expr) String() string {
	var b strings.Builder
	e.n.fmt(&b, false)
	return b.String()
}

type operator struct {
	// prec is the precedence value. Higher is more binding.
	prec int8
	// right indicates right-associativity.
	right bool
	// op is the node kind to use when this operator is selected.
	op nodeKind
}

func (p operator) moreBinding(than operator) bool {
	if p.prec != than.prec {
		return p.prec > than.prec
	}
	return p.right
}

// binop gets a binary operator for a token string. If there is no such binary
// operator, then the result has an op of nodeNone.
func binop(text string) operator {
	switch text {
	case "+":
		return operator{1, false, nodeAdd}
	case "-":
		return operator{1, false, nodeSub}
	case "*":
		return operator{5, false, nodeMul}
	case "/":
		return operator{5, false, nodeDiv}
	case "%":
		return operator{5, false, nodeMod}
	case "^":
		return operator{15, true, nodePow}
	default:
		return operator{}
	}
}

// unop gets a unary operator for a token string. If there is no such unary
// operator, then the result has an op of nodeNone.
func unop(text string) operator {
	switch text {
	case "+":
		return operator{10, true, nodeNop}
	case "-":
		return operator{10, true, nodeNeg}
	default:
		return operator{}
	}
}

// exprprec is the precedence required to parse an entire subexpression.
var exprprec = operator{-128, true, nodeNone}

package expr

import "strconv"

// OperatorError is an error indicating an operator token that is not
// understood by the parser in its position, like the * in "*2". It implements
// SyntaxError.
type OperatorError struct {
	// Col is the position of the operator.
	Col int
	// Operator is the token that was not understood.
	Operator string
	// Unary is whether the parser expected a unary operator at the time.
	Unary bool
}

func (err *OperatorError) Error() string {
	s := "binary"
	if err.Unary {
		s = "unary"
	}
	return errpos(err.Col, "unknown "+s+" operator "+strconv.Quote(err.Operator))
}

func (err *OperatorError) Pos() int {
	return err.Col
}

// BracketError is an error indicating unbalanced brackets in the input. It
// implements SyntaxError.
type BracketError struct {
	// Col is the position of the token where the imbalance was found.
	Col int
	// Open is whether the subexpression began with an open bracket.
	Open bool
	// Close is whether a close bracket was found.
	Close bool
}

func (err *BracketError) Error() string {
	if !err.Open {
		return errpos(err.Col, "close bracket with no open bracket")
	}
	return errpos(err.Col, "open bracket with no close bracket")
}

func (err *BracketError) Pos() int {
	return err.Col
}

// TokenError is an error indicating a token that cannot follow the term
// before it, e.g. the 3 in "2 3". It implements SyntaxError.
type TokenError struct {
	// Col is the position of the token.
	Col int
	// Text is the token.
	Text string
}

func (err *TokenError) Error() string {
	return errpos(err.Col, "unexpected "+strconv.Quote(err.Text)+" after complete term")
}

func (err *TokenError) Pos() int {
	return err.Col
}

// EmptyExpressionError is an error indicating an empty subexpression, i.e. a
// missing operand. It implements SyntaxError.
type EmptyExpressionError struct {
	// Col is the position of the token that ended the subexpression.
	Col int
	// End is the token that ended the subexpression, or "" for the end of the
	// input.
	End string
}

func (err *EmptyExpressionError) Error() string {
	if err.End == "" {
		if err.Col <= 1 {
			return errpos(err.Col, "no expression")
		}
		return errpos(err.Col, "no expression at end")
	}
	return errpos(err.Col, "no expression up to "+strconv.Quote(err.End))
}

func (err *EmptyExpressionError) Pos() int {
	return err.Col
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// SyntaxError is an error with position information. Every error resulting
// from input outside the grammar implements SyntaxError.
type SyntaxError interface {
	error
	// Pos returns the position of the error as the number of runes up to and
	// including the start of the token that caused the error.
	Pos() int
}

var (
	_ SyntaxError = (*OperatorError)(nil)
	_ SyntaxError = (*BracketError)(nil)
	_ SyntaxError = (*TokenError)(nil)
	_ SyntaxError = (*EmptyExpressionError)(nil)
	_ SyntaxError = (*LexError)(nil)
)

// Package expr implements a restricted arithmetic calculator.
//
// The grammar is deliberately small: decimal numbers, the binary operators
// + - * / % ^, unary + and -, and round brackets. There are no names, no
// function calls, and no implicit multiplication, so "2 3" and "2(3)" are
// rejected rather than guessed at. "-2^2^n" is the same as "-(2^(2^n))".
//
// Evaluation happens in arbitrary precision and is converted to float64 at
// the end. Anything that would produce a non-finite float64, division or
// modulo by zero included, is an *ArithmeticError; anything outside the
// grammar is a SyntaxError.
package expr

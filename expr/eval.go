package expr

import (
	"math"
	"math/big"
	"strconv"

	"github.com/zephyrtronium/bigfloat"
)

// Context is a context for evaluating expressions. It is not safe to use a
// Context concurrently.
type Context struct {
	stack []*big.Float
	nums  map[string]*big.Float
	prec  uint
	err   error
}

// ContextOption is an option used when creating a context.
type ContextOption interface {
	ctxOption()
}

type precopt uint

func (precopt) ctxOption() {}

// Prec sets the precision of calculations in bits.
func Prec(prec uint) ContextOption {
	return precopt(prec)
}

// DefaultPrec is the precision of a context created without a Prec option.
const DefaultPrec = 64

// MinPrec is the smallest precision that holds a float64 mantissa. Lower
// precisions round operands before any operation.
const MinPrec = 53

// NewContext creates a new evaluation context.
func NewContext(opts ...ContextOption) *Context {
	ctx := Context{nums: make(map[string]*big.Float), prec: DefaultPrec}
	return ctx.Clone(opts...)
}

// Eval evaluates an expression and returns the result. If an error occurs,
// then the result is 0 and the error is an *ArithmeticError; ctx.Err returns
// the same error until the next evaluation.
func (ctx *Context) Eval(e *Expr) (f float64, err error) {
	switch len(ctx.stack) {
	case 0: // do nothing
	case 1:
		// The previous result may still be held by the caller.
		ctx.stack[0] = new(big.Float).SetPrec(ctx.prec)
		ctx.stack = ctx.stack[:0]
	default:
		panic("expr: Eval during Eval")
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		nan, ok := r.(big.ErrNaN)
		if !ok {
			panic(r)
		}
		f, err = 0, &ArithmeticError{Reason: nan.Error()}
		ctx.err = err
		ctx.stack = ctx.stack[:0]
	}()
	err = e.n.eval(ctx)
	if err == nil {
		f, err = ctx.float(ctx.top(), e.n)
	}
	ctx.err = err
	if err != nil {
		ctx.stack = ctx.stack[:0]
		return 0, err
	}
	return f, nil
}

// Result returns the full-precision result obtained after evaluating an
// expression. Panics if ctx has not been used to evaluate an expression.
// Returns nil if an error occurred during evaluation.
func (ctx *Context) Result() *big.Float {
	if ctx.err != nil {
		return nil
	}
	switch len(ctx.stack) {
	case 0:
		panic("expr: Context.Result called before evaluating any expression")
	case 1:
		return ctx.stack[0]
	default:
		panic("expr: inconsistent stack: " + strconv.Itoa(len(ctx.stack)) + " items (bad AST?)")
	}
}

// Err returns the error from the last evaluation, if any.
func (ctx *Context) Err() error {
	return ctx.err
}

// Prec returns the precision to which values are computed in the context.
func (ctx *Context) Prec() uint {
	return ctx.prec
}

// Clone creates a copy of a context and applies options to it. The returned
// context has no Result and is safe to use to evaluate an expression.
func (ctx *Context) Clone(opts ...ContextOption) *Context {
	n := Context{
		stack: make([]*big.Float, 0, cap(ctx.stack)),
		nums:  make(map[string]*big.Float, len(ctx.nums)),
		prec:  ctx.prec,
	}
	// Loop backward so we apply the last precision.
	for i := len(opts) - 1; i >= 0; i-- {
		if p, ok := opts[i].(precopt); ok {
			n.prec = uint(p)
			break
		}
	}
	// Copy numbers only if the new precision is no higher than the old, so
	// that we always use the precision we need.
	if n.prec <= ctx.prec {
		for k, v := range ctx.nums {
			n.nums[k] = new(big.Float).SetPrec(n.prec).Set(v)
		}
	}
	for _, opt := range opts {
		switch opt.(type) {
		case nil, precopt:
			// Already done.
		default:
			panic("expr: unknown option type")
		}
	}
	return &n
}

// push ensures a settable value on the stack.
func (ctx *Context) push() *big.Float {
	if len(ctx.stack) < cap(ctx.stack) {
		ctx.stack = ctx.stack[:len(ctx.stack)+1]
		if ctx.stack[len(ctx.stack)-1] == nil {
			ctx.stack[len(ctx.stack)-1] = new(big.Float).SetPrec(ctx.prec)
		}
	} else {
		ctx.stack = append(ctx.stack, new(big.Float).SetPrec(ctx.prec))
	}
	return ctx.stack[len(ctx.stack)-1]
}

// pop removes the top from the stack and returns it. The returned value may be
// modified by future node evaluations.
func (ctx *Context) pop() *big.Float {
	r := ctx.stack[len(ctx.stack)-1]
	ctx.stack = ctx.stack[:len(ctx.stack)-1]
	return r
}

// top is a shortcut to get the top element of the stack.
func (ctx *Context) top() *big.Float {
	return ctx.stack[len(ctx.stack)-1]
}

// num gets a possibly cached number from its text.
func (ctx *Context) num(s string) *big.Float {
	if r := ctx.nums[s]; r != nil {
		return r
	}
	r, _, err := new(big.Float).SetPrec(ctx.prec).Parse(s, 10)
	if err != nil {
		// The parser only creates number nodes from valid number tokens.
		panic("expr: invalid number: " + s + " (" + err.Error() + ")")
	}
	ctx.nums[s] = r
	return r
}

// float converts x to float64, or returns an error if it is not finite in
// float64 range.
func (ctx *Context) float(x *big.Float, n *node) (float64, error) {
	f, _ := x.Float64()
	if math.IsInf(f, 0) {
		reason := "result out of range"
		if n.kind == nodeNum {
			reason = "number out of range"
		}
		return 0, &ArithmeticError{Col: n.pos, Op: n.name, Reason: reason}
	}
	return f, nil
}

// binary evaluates both operands of n and returns them. l is the top of the
// stack, which receives the result.
func (n *node) binary(ctx *Context) (l, r *big.Float, err error) {
	if err := n.left.eval(ctx); err != nil {
		return nil, nil, err
	}
	if err := n.right.eval(ctx); err != nil {
		return nil, nil, err
	}
	r = ctx.pop()
	l = ctx.top()
	return l, r, nil
}

// eval pushes the node's value to the context's stack.
func (n *node) eval(ctx *Context) error {
	switch n.kind {
	case nodeNum:
		return ctx.flush(ctx.push().Set(ctx.num(n.name)), n)
	case nodeNeg:
		if err := n.left.eval(ctx); err != nil {
			return err
		}
		v := ctx.top()
		v.Neg(v)
		return nil
	case nodeNop:
		return n.left.eval(ctx)
	}
	l, r, err := n.binary(ctx)
	if err != nil {
		return err
	}
	switch n.kind {
	case nodeAdd:
		l.Add(l, r)
	case nodeSub:
		l.Sub(l, r)
	case nodeMul:
		l.Mul(l, r)
	case nodeDiv:
		if r.Sign() == 0 {
			return &ArithmeticError{Col: n.pos, Op: n.name, Reason: "division by zero"}
		}
		l.Quo(l, r)
	case nodeMod:
		if r.Sign() == 0 {
			return &ArithmeticError{Col: n.pos, Op: n.name, Reason: "modulo by zero"}
		}
		mod(l, l, r)
	case nodePow:
		if err := n.pow(ctx, l, r); err != nil {
			return err
		}
	default:
		panic("expr: invalid AST node " + n.kind.String())
	}
	return ctx.flush(l, n)
}

// flush checks that x is in float64 range and sets it to zero if it is too
// small to be represented, so that every intermediate value stays bounded.
func (ctx *Context) flush(x *big.Float, n *node) error {
	f, err := ctx.float(x, n)
	if err != nil {
		return err
	}
	if f == 0 {
		x.SetInt64(0)
	}
	return nil
}

// mod sets z to the floored modulus x - y*floor(x/y), which has the sign of y
// and magnitude less than |y| as a float64. y must be nonzero.
func mod(z, x, y *big.Float) *big.Float {
	// Work at a precision that holds the integer quotient and the remainder
	// exactly, then round once into z.
	d := x.MantExp(nil) - y.MantExp(nil)
	if d < 0 {
		d = -d
	}
	prec := max(x.MinPrec(), y.MinPrec()) + uint(d) + 64
	q := new(big.Float).SetPrec(prec).Quo(x, y)
	i, _ := q.Int(nil)
	if q.Sign() < 0 && !q.IsInt() {
		i.Sub(i, big.NewInt(1))
	}
	r := new(big.Float).SetPrec(prec).SetInt(i)
	r.Mul(r, y)
	r.Sub(x, r)
	// The rounded quotient can be off by one.
	if r.Sign() != 0 && r.Sign() != y.Sign() {
		r.Add(r, y)
	}
	if cmpAbs(r, y) >= 0 {
		r.Sub(r, y)
	}
	z.Set(r)
	// A remainder within rounding of |y| is congruent to zero.
	zf, _ := z.Float64()
	yf, _ := y.Float64()
	if math.Abs(zf) >= math.Abs(yf) {
		z.SetInt64(0)
	}
	return z
}

// cmpAbs compares |x| and |y|.
func cmpAbs(x, y *big.Float) int {
	a := new(big.Float).Abs(x)
	b := new(big.Float).Abs(y)
	return a.Cmp(b)
}

// pow sets z to z^y.
func (n *node) pow(ctx *Context, z, y *big.Float) error {
	if y.IsInt() {
		e, _ := y.Int(nil)
		return n.intpow(ctx, z, e)
	}
	switch z.Sign() {
	case -1:
		return &ArithmeticError{Col: n.pos, Op: n.name, Reason: "negative base with fractional exponent"}
	case 0:
		if y.Sign() < 0 {
			return &ArithmeticError{Col: n.pos, Op: n.name, Reason: "division by zero"}
		}
		z.SetInt64(0)
		return nil
	}
	// Estimate the magnitude first so that bigfloat never works on results
	// which could not be converted anyway.
	xf, _ := z.Float64()
	yf, _ := y.Float64()
	switch est := yf * math.Log2(xf); {
	case est > 1030:
		return &ArithmeticError{Col: n.pos, Op: n.name, Reason: "result out of range"}
	case est < -1100:
		z.SetInt64(0)
		return nil
	}
	bigfloat.Pow(z, z, y)
	return nil
}

// intpow sets z to z^e by repeated squaring.
func (n *node) intpow(ctx *Context, z *big.Float, e *big.Int) error {
	if z.Sign() == 0 {
		switch e.Sign() {
		case 0:
			z.SetInt64(1)
		case 1:
			z.SetInt64(0)
		case -1:
			return &ArithmeticError{Col: n.pos, Op: n.name, Reason: "division by zero"}
		}
		return nil
	}
	neg := e.Sign() < 0
	e = new(big.Int).Abs(e)
	b := new(big.Float).SetPrec(ctx.prec).Set(z)
	acc := new(big.Float).SetPrec(ctx.prec).SetInt64(1)
	for i := 0; i < e.BitLen(); i++ {
		if e.Bit(i) == 1 {
			acc.Mul(acc, b)
		}
		b.Mul(b, b)
	}
	if neg {
		if acc.IsInf() {
			z.SetInt64(0)
			return nil
		}
		acc.Quo(big.NewFloat(1), acc)
	}
	z.Set(acc)
	return nil
}

// EvalString is a shortcut to parse and evaluate a string expression.
func EvalString(src string, opts ...ContextOption) (float64, error) {
	a, err := ParseString(src)
	if err != nil {
		return 0, err
	}
	return NewContext(opts...).Eval(a)
}

// ArithmeticError is an error returned when an operation has no finite
// result, e.g. a division by zero.
type ArithmeticError struct {
	// Col is the position of the operator or number whose result failed, or
	// 0 if unknown.
	Col int
	// Op is the operator or number text.
	Op string
	// Reason describes the failure.
	Reason string
}

func (err *ArithmeticError) Error() string {
	if err.Col <= 0 {
		return err.Reason
	}
	return errpos(err.Col, err.Reason)
}

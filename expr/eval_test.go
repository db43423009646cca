package expr_test

import (
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/zephyrtronium/rulebot/expr"
)

func TestEval(t *testing.T) {
	cases := []struct {
		name string
		src  string
		r    float64
	}{
		{"num", "1", 1},
		{"decimal", "1.5", 1.5},
		{"leading-dot", ".5", 0.5},
		{"trailing-dot", "5.", 5},
		{"spaces", "  1 + 1  ", 2},
		{"plus", "+4", 4},
		{"neg", "-4", -4},
		{"neg-neg", "--4", 4},
		{"add", "4+5+6", 4 + 5 + 6},
		{"sub", "4-5-6", 4 - 5 - 6},
		{"mul", "4*5*6", 4 * 5 * 6},
		{"group", "(2+3)*4", 20},
		{"precedence", "2+3*4", 14},
		{"pow", "2^3^2", 512},
		{"pow-left-group", "(2^3)^2", 64},
		{"neg-pow", "-2^2", -4},
		{"neg-base", "(-2)^3", -8},
		{"neg-base-neg-exp", "(-2)^-2", 0.25},
		{"pow-neg", "2^-1", 0.5},
		{"pow-zero-zero", "0^0", 1},
		{"pow-zero", "0^5", 0},
		{"pow-big", "2^1023", math.Pow(2, 1023)},
		{"pow-tiny", "0.5^2000", 0},
		{"pow-neg-huge", "2^-5000", 0},
		{"mod", "7%3", 1},
		{"mod-neg-left", "-7%3", 2},
		{"mod-neg-right", "7%-3", -2},
		{"mod-both-neg", "-7%-3", -1},
		{"mod-frac", "5.5%2", 1.5},
		{"mod-exact", "9%3", 0},
		{"mul-neg", "2*-3", -6},
		{"div-int", "8/4", 2},
		{"nested", "((((7))))", 7},
	}
	ctx := expr.NewContext(expr.Prec(64))
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, err := expr.ParseString(c.src)
			if err != nil {
				t.Fatal(c.src, "failed to parse:", err)
			}
			ctx := ctx.Clone()
			r, err := ctx.Eval(a)
			if err != nil {
				t.Fatal("evaluation error:", err)
			}
			if ctx.Err() != nil {
				t.Error("Err reports error after successful evaluation:", ctx.Err())
			}
			if q, _ := ctx.Result().Float64(); q != r {
				t.Errorf("different results: Eval returned %g, Result returned %g", r, q)
			}
			if r != c.r {
				t.Errorf("wrong result: want %g, got %g", c.r, r)
			}
		})
	}
}

func TestEvalApprox(t *testing.T) {
	cases := []struct {
		name string
		src  string
		r    float64
	}{
		{"div", "4/5/6", 4.0 / 5.0 / 6.0},
		{"third", "1/3", 1.0 / 3},
		{"sqrt2", "2^0.5", math.Sqrt2},
		{"sqrt4", "4^(1/2)", 2},
		{"cbrt", "27^(1/3)", 3},
		{"frac-neg-exp", "4^-0.5", 0.5},
		{"big", "10^308", 1e308},
		{"mixed", "(1.5+2.25)*4/3-1", 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := expr.EvalString(c.src)
			if err != nil {
				t.Fatalf("evaluating %q: %v", c.src, err)
			}
			if math.Abs(r-c.r) > 1e-12*math.Max(1, math.Abs(c.r)) {
				t.Errorf("wrong result for %q: want %g, got %g", c.src, c.r, r)
			}
		})
	}
}

func TestEvalBinaryOps(t *testing.T) {
	// a op b for every operator agrees with float64 arithmetic on small
	// integers, where the results are exact.
	ops := []struct {
		op string
		f  func(a, b float64) float64
	}{
		{"+", func(a, b float64) float64 { return a + b }},
		{"-", func(a, b float64) float64 { return a - b }},
		{"*", func(a, b float64) float64 { return a * b }},
		{"%", func(a, b float64) float64 { return a - b*math.Floor(a/b) }},
		{"^", math.Pow},
	}
	vals := []string{"0", "1", "2", "3", "7", "12"}
	for _, o := range ops {
		for _, a := range vals {
			for _, b := range vals {
				if b == "0" && o.op == "%" {
					continue
				}
				src := a + o.op + b
				r, err := expr.EvalString(src)
				if err != nil {
					t.Errorf("%s: %v", src, err)
					continue
				}
				x, _ := expr.EvalString(a)
				y, _ := expr.EvalString(b)
				if want := o.f(x, y); r != want {
					t.Errorf("%s: want %g, got %g", src, want, r)
				}
			}
		}
	}
}

// exact formats v with enough digits that parsing it at any precision of at
// least 53 bits gives v again.
func exact(v float64) string {
	return new(big.Float).SetFloat64(v).Text('f', 1100)
}

// floorMod is the floored modulus computed in float64.
func floorMod(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

func TestEvalModLarge(t *testing.T) {
	cases := []struct {
		name string
		a, b float64
	}{
		{"1e20", 1e20, 10},
		{"1e300", 1e300, 7},
		{"-1e300", -1e300, 7},
		{"max", math.MaxFloat64, 1e-300},
		{"fraction", 2.5, 0.1},
		{"neg-fraction", -2.5, 0.1},
		{"neg-divisor", 2.5, -0.1},
		{"small-divisor", 123.456, 1e-5},
		{"tiny", 1e-300, 3},
		{"both-neg", -7.25, -2},
		{"mixed", 7.25, -2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := "(" + exact(c.a) + ")%(" + exact(c.b) + ")"
			r, err := expr.EvalString(src)
			if err != nil {
				t.Fatal(err)
			}
			want := floorMod(c.a, c.b)
			if math.Abs(r-want) > 1e-15*math.Abs(c.b) {
				t.Errorf("%g %% %g: want %g, got %g", c.a, c.b, want, r)
			}
			if r != 0 && (r < 0) != (c.b < 0) {
				t.Errorf("%g %% %g: result %g has the wrong sign", c.a, c.b, r)
			}
			if math.Abs(r) >= math.Abs(c.b) {
				t.Errorf("%g %% %g: result %g not smaller than divisor", c.a, c.b, r)
			}
		})
	}
}

func TestEvalModBeyondPrec(t *testing.T) {
	// The dividend needs more than 64 bits, so it is rounded, but the
	// remainder must still be in range.
	r, err := expr.EvalString("123456789012345678901234567 % 10")
	if err != nil {
		t.Fatal(err)
	}
	if r < 0 || r >= 10 {
		t.Errorf("want result in [0, 10), got %g", r)
	}
	r, err = expr.EvalString("123456789012345678901234567 % 10", expr.Prec(128))
	if err != nil {
		t.Fatal(err)
	}
	if r != 7 {
		t.Errorf("at 128 bits: want 7, got %g", r)
	}
	r, err = expr.EvalString("-123456789012345678901234567 % 10", expr.Prec(128))
	if err != nil {
		t.Fatal(err)
	}
	if r != 3 {
		t.Errorf("negated at 128 bits: want 3, got %g", r)
	}
}

func TestEvalDivLarge(t *testing.T) {
	cases := []struct {
		name string
		a, b float64
	}{
		{"huge", 1e300, 1e-5},
		{"third", 1, 3},
		{"neg-fraction", -2.5, 0.1},
		{"tiny", 1e-300, 1e10},
		{"max", math.MaxFloat64, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			src := "(" + exact(c.a) + ")/(" + exact(c.b) + ")"
			r, err := expr.EvalString(src)
			if err != nil {
				t.Fatal(err)
			}
			want := c.a / c.b
			if math.Abs(r-want) > 1e-15*math.Abs(want) {
				t.Errorf("%g / %g: want %g, got %g", c.a, c.b, want, r)
			}
		})
	}
}

func TestEvalArithmeticErrors(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		reason string
	}{
		{"div-zero", "1/0", "division by zero"},
		{"div-zero-zero", "0/0", "division by zero"},
		{"div-zero-expr", "1/(2-2)", "division by zero"},
		{"mod-zero", "5%0", "modulo by zero"},
		{"zero-neg-pow", "0^-1", "division by zero"},
		{"zero-neg-frac-pow", "0^-0.5", "division by zero"},
		{"neg-frac-pow", "(-8)^(1/3)", "negative base"},
		{"overflow-pow", "10^400", "out of range"},
		{"overflow-frac-pow", "10^400.5", "out of range"},
		{"overflow-intermediate", "10^400/10^399", "out of range"},
		{"overflow-pow-2", "2^1024", "out of range"},
		{"exponent-notation", "1e308", ""},
		{"overflow-literal", "1" + strings.Repeat("0", 400), "number out of range"},
		{"underflow-div", "1/0.1^400", "division by zero"},
		{"overflow-div", "1/0.5^1025", "out of range"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := expr.EvalString(c.src)
			if c.reason == "" {
				// Not arithmetic at all; the grammar has no exponents.
				var se expr.SyntaxError
				if !errors.As(err, &se) {
					t.Errorf("%q: want SyntaxError, got %v, %#v", c.src, r, err)
				}
				return
			}
			var ae *expr.ArithmeticError
			if !errors.As(err, &ae) {
				t.Fatalf("%q: want ArithmeticError, got %v, %#v", c.src, r, err)
			}
			if r != 0 {
				t.Errorf("%q: non-zero result %g with error", c.src, r)
			}
			if !strings.Contains(ae.Error(), c.reason) {
				t.Errorf("%q: error %q doesn't mention %q", c.src, ae.Error(), c.reason)
			}
		})
	}
}

func TestEvalSyntaxErrors(t *testing.T) {
	srcs := []string{
		"",
		"   ",
		"2+",
		"(2",
		"2)",
		"2 3",
		"2(3)",
		"*2",
		"abc",
		"x+1",
		"1.2.3",
		"()",
		"2^",
		"2**3",
		"exp(1)",
		"1,000",
	}
	for _, src := range srcs {
		r, err := expr.EvalString(src)
		var se expr.SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%q: want SyntaxError, got %v, %#v", src, r, err)
			continue
		}
		var ae *expr.ArithmeticError
		if errors.As(err, &ae) {
			t.Errorf("%q: SyntaxError is also ArithmeticError", src)
		}
	}
}

func TestEvalErrorThenReuse(t *testing.T) {
	ctx := expr.NewContext()
	bad, err := expr.ParseString("1/0")
	if err != nil {
		t.Fatal(err)
	}
	good, err := expr.ParseString("6*7")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.Eval(bad); err == nil {
		t.Fatal("no error dividing by zero")
	}
	if ctx.Err() == nil {
		t.Error("Err is nil after failed evaluation")
	}
	if ctx.Result() != nil {
		t.Errorf("Result is %v after failed evaluation", ctx.Result())
	}
	r, err := ctx.Eval(good)
	if err != nil {
		t.Fatalf("reused context failed: %v", err)
	}
	if r != 42 {
		t.Errorf("wrong result from reused context: want 42, got %g", r)
	}
	first := ctx.Result()
	if _, err := ctx.Eval(good); err != nil {
		t.Fatal(err)
	}
	if first == ctx.Result() {
		t.Error("Result reused across evaluations")
	}
	if f, _ := first.Float64(); f != 42 {
		t.Errorf("earlier result changed to %g", f)
	}
}

func TestPrec(t *testing.T) {
	a, err := expr.ParseString("1/3")
	if err != nil {
		t.Fatal(err)
	}
	ctx := expr.NewContext()
	if ctx.Prec() != expr.DefaultPrec {
		t.Errorf("default context has precision %d", ctx.Prec())
	}
	ctx = ctx.Clone(expr.Prec(200))
	if ctx.Prec() != 200 {
		t.Errorf("cloned context has precision %d", ctx.Prec())
	}
	if _, err := ctx.Eval(a); err != nil {
		t.Fatal(err)
	}
	if p := ctx.Result().Prec(); p != 200 {
		t.Errorf("result has precision %d", p)
	}
	if s := ctx.Result().Text('g', 50); !strings.HasPrefix(s, "0.33333333333333333333333333333333333333333333") {
		t.Errorf("result not computed to precision: %s", s)
	}
}

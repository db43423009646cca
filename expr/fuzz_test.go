//go:build go1.18
// +build go1.18

package expr_test

import (
	"errors"
	"math"
	"testing"

	"github.com/zephyrtronium/rulebot/expr"
)

func FuzzEvalString(f *testing.F) {
	f.Add("1+2")
	f.Add("2^3^2")
	f.Add("(-8)^(1/3)")
	f.Add("7%-3")
	f.Add("((1)")
	f.Fuzz(func(t *testing.T, s string) {
		r, err := expr.EvalString(s)
		if err != nil {
			var se expr.SyntaxError
			var ae *expr.ArithmeticError
			if !errors.As(err, &se) && !errors.As(err, &ae) {
				t.Errorf("%q: unclassified error %#v", s, err)
			}
			return
		}
		if math.IsInf(r, 0) || math.IsNaN(r) {
			t.Errorf("%q: non-finite result %g", s, r)
		}
	})
}

func FuzzMod(f *testing.F) {
	f.Add(7.0, 3.0)
	f.Add(-7.0, 3.0)
	f.Add(7.0, -3.0)
	f.Add(1e300, 7.0)
	f.Add(2.5, 0.1)
	f.Add(-1e-300, 1e300)
	f.Fuzz(func(t *testing.T, a, b float64) {
		if b == 0 || math.IsInf(a, 0) || math.IsInf(b, 0) || math.IsNaN(a) || math.IsNaN(b) {
			return
		}
		src := "(" + exact(a) + ")%(" + exact(b) + ")"
		r, err := expr.EvalString(src)
		if err != nil {
			t.Fatalf("%g %% %g: %v", a, b, err)
		}
		if r != 0 && (r < 0) != (b < 0) {
			t.Errorf("%g %% %g: result %g does not have the sign of the divisor", a, b, r)
		}
		if math.Abs(r) >= math.Abs(b) {
			t.Errorf("%g %% %g: result %g not smaller than divisor", a, b, r)
		}
	})
}

package expr

import (
	"strconv"
	"strings"
)

// node is a node in the abstract syntax tree of an expression.
type node struct {
	kind nodeKind

	// name is the source text of a number, or the operator of any other node.
	name string
	// pos is the column of the node's token, for error reporting.
	pos int

	left  *node
	right *node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum // push num

	nodeNeg // evaluate left, then negate
	nodeAdd // evaluate left, add right
	nodeSub // evaluate left, sub right
	nodeMul // evaluate left, mul right
	nodeDiv // evaluate left, div by right
	nodeMod // evaluate left, floored mod by right
	nodePow // evaluate left, exp by right
	nodeNop // evaluate left
)

func (k nodeKind) String() string {
	switch k {
	case nodeNone:
		return "None"
	case nodeNum:
		return "Num"
	case nodeNeg:
		return "Neg"
	case nodeAdd:
		return "Add"
	case nodeSub:
		return "Sub"
	case nodeMul:
		return "Mul"
	case nodeDiv:
		return "Div"
	case nodeMod:
		return "Mod"
	case nodePow:
		return "Pow"
	case nodeNop:
		return "Nop"
	default:
		return "nodeKind(" + strconv.Itoa(int(k)) + ")"
	}
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b, false)
	return b.String()
}

func (n *node) fmt(b *strings.Builder, square bool) {
	var l, r byte = '(', ')'
	if square {
		l, r = '[', ']'
	}
	b.WriteByte(l)
	defer b.WriteByte(r)
	switch n.kind {
	case nodeNone:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		if n.left != nil {
			n.left.fmt(b, square)
		}
		b.WriteByte('#')
		if n.right != nil {
			n.right.fmt(b, square)
		}
		b.WriteByte('$')
	case nodeNum:
		b.WriteString(n.name)
	case nodeNeg:
		b.WriteByte('-')
		n.left.fmt(b, !square)
	case nodeNop:
		b.WriteByte('+')
		n.left.fmt(b, !square)
	case nodeAdd, nodeSub, nodeMul, nodeDiv, nodeMod, nodePow:
		n.left.fmt(b, !square)
		b.WriteByte(' ')
		b.WriteString(n.name)
		b.WriteByte(' ')
		n.right.fmt(b, !square)
	default:
		panic("expr: invalid node kind " + n.kind.String() + " after writing " + b.String())
	}
}

package expr

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// Token is a classified unit of an expression.
type Token struct {
	// Text is the source text of the token.
	Text string
	// Kind is the token's classification.
	Kind TokenKind
	// Pos is the 1-based rune column of the token's first rune.
	Pos int
}

func (t Token) String() string {
	return t.Kind.String() + ":" + t.Text + "@" + strconv.Itoa(t.Pos)
}

// TokenKind classifies tokens.
type TokenKind int

const (
	tokenNone TokenKind = iota
	// tokenEOF indicates the end of the input. Tokenize never returns it.
	tokenEOF
	// Number is a decimal number, e.g. 12, 1.5, .5, or 3.
	Number
	// Operator is one of the runes in Operators.
	Operator
	// LParen is an open bracket.
	LParen
	// RParen is a close bracket.
	RParen
)

func (k TokenKind) String() string {
	switch k {
	case tokenNone:
		return "None"
	case tokenEOF:
		return "EOF"
	case Number:
		return "Number"
	case Operator:
		return "Operator"
	case LParen:
		return "LParen"
	case RParen:
		return "RParen"
	default:
		return "TokenKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Operators contains the runes which are considered to be operators.
const Operators = "+-*/%^"

type lexer struct {
	src  io.RuneScanner
	buf  strings.Builder
	rune int
	eof  bool
}

func lex(src io.RuneScanner) *lexer {
	return &lexer{
		src:  src,
		rune: 1,
	}
}

// Tokenize scans an entire expression. Whitespace separates tokens and is
// otherwise ignored. The first invalid token stops the scan; the error is a
// *LexError.
func Tokenize(src string) ([]Token, error) {
	l := lex(strings.NewReader(src))
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == tokenEOF {
			return toks, nil
		}
		toks = append(toks, tok)
	}
}

// readRune reads a rune from the src and updates the lexer's position info.
func (l *lexer) readRune() (r rune, err error) {
	r, sz, err := l.src.ReadRune()
	if sz > 0 {
		l.rune++
	}
	return r, err
}

// unreadRune unreads a rune from the src and updates the lexer's position
// info. Panics if unreading returns an error.
func (l *lexer) unreadRune() {
	if err := l.src.UnreadRune(); err != nil {
		panic(err)
	}
	l.rune--
}

// next scans the next token from the input. The first time EOF is encountered,
// the result is an EOF token with a nil error. Subsequent times, the result is
// an empty token with io.EOF.
func (l *lexer) next() (Token, error) {
	if l.eof {
		return Token{}, io.EOF
	}
	defer l.buf.Reset()
	tok := Token{Pos: l.rune}
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				tok.Kind = tokenEOF
				l.eof = true
				return tok, nil
			}
			return tok, err
		}
		switch {
		case unicode.IsSpace(r):
			tok.Pos++
			continue
		case '0' <= r && r <= '9', r == '.':
			l.unreadRune()
			if err := l.scanNum(); err != nil {
				return tok, err
			}
			tok.Text = l.buf.String()
			tok.Kind = Number
			return tok, nil
		case r == '(':
			tok.Text = "("
			tok.Kind = LParen
			return tok, nil
		case r == ')':
			tok.Text = ")"
			tok.Kind = RParen
			return tok, nil
		default:
			if strings.ContainsRune(Operators, r) {
				tok.Text = string(r)
				tok.Kind = Operator
				return tok, nil
			}
			// Write the rune so that it shows up in the error message.
			l.buf.WriteRune(r)
			return tok, l.error("")
		}
	}
}

func (l *lexer) scanNum() error {
	var dig, dot bool
	for {
		r, err := l.readRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if unicode.IsSpace(r) || strings.ContainsRune(Operators+"()", r) {
			l.unreadRune()
			break
		}
		l.buf.WriteRune(r)
		switch r {
		case '.':
			if dot {
				return l.error("number")
			}
			dot = true
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			dig = true
		default:
			return l.error("number")
		}
	}
	if !dig {
		return l.error("number")
	}
	return nil
}

func (l *lexer) error(kind string) error {
	return &LexError{
		Text: l.buf.String(),
		Kind: kind,
		Col:  l.rune - 1,
	}
}

// LexError indicates an invalid token. It implements SyntaxError.
type LexError struct {
	// Text is the token the lexer was scanning when the invalid rune was
	// encountered, plus the invalid rune.
	Text string
	// Kind is the type of token the lexer was scanning. This is "number" or
	// the empty string (if a token kind hadn't been decided).
	Kind string
	// Col is the column of the invalid rune.
	Col int
}

func (err *LexError) Error() string {
	pos := "column " + strconv.Itoa(err.Col)
	if err.Kind == "" {
		return "invalid token at " + pos + ": " + strconv.Quote(err.Text)
	}
	return "invalid " + err.Kind + " token at " + pos + ": " + strconv.Quote(err.Text)
}

func (err *LexError) Pos() int {
	return err.Col
}

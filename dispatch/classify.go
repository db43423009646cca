package dispatch

import (
	"strings"
	"unicode"

	"github.com/zephyrtronium/rulebot/expr"
)

// Kind is the classification of a line of input.
type Kind int

const (
	// FreeText is conversational input for canned responses.
	FreeText Kind = iota
	// CommandLine is a slash command.
	CommandLine
	// Expression is input for the calculator.
	Expression
)

func (k Kind) String() string {
	switch k {
	case FreeText:
		return "free text"
	case CommandLine:
		return "command"
	case Expression:
		return "expression"
	default:
		return "invalid kind"
	}
}

// Class is a classified line of input.
type Class struct {
	Kind Kind
	// Command is the command of a CommandLine. For an unrecognized verb, it is
	// Unknown.
	Command Command
	// Verb is the command name as typed, without the slash.
	Verb string
	// Arg is the text following the verb of a CommandLine.
	Arg string
	// Text is the expression source of an Expression or the trimmed input of
	// FreeText.
	Text string
}

// Classify determines how a line of input should be handled. A line beginning
// with / is a command. A line that the calculator can tokenize, or that begins
// with "calc " or "calc:", is an expression. Anything else, including an empty
// line, is free text.
func Classify(line string) Class {
	line = strings.TrimSpace(line)
	if verb, ok := strings.CutPrefix(line, "/"); ok {
		var arg string
		if i := strings.IndexFunc(verb, unicode.IsSpace); i >= 0 {
			verb, arg = verb[:i], verb[i:]
		}
		return Class{
			Kind:    CommandLine,
			Command: LookupCommand(verb),
			Verb:    verb,
			Arg:     strings.TrimSpace(arg),
		}
	}
	if src, ok := calcPrefix(line); ok {
		return Class{Kind: Expression, Text: src}
	}
	if toks, err := expr.Tokenize(line); err == nil && len(toks) > 0 {
		return Class{Kind: Expression, Text: line}
	}
	return Class{Kind: FreeText, Text: line}
}

// calcPrefix strips a leading "calc" followed by spaces or a colon.
func calcPrefix(line string) (string, bool) {
	const p = "calc"
	if len(line) <= len(p) || !strings.EqualFold(line[:len(p)], p) {
		return "", false
	}
	rest := line[len(p):]
	trimmed := strings.TrimLeft(rest, ": \t")
	if len(trimmed) == len(rest) {
		// "calculate", "calc2", etc.
		return "", false
	}
	return trimmed, true
}

// Package dispatch routes lines of chat input to slash commands, the
// calculator, or a responder for canned replies.
package dispatch

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/zephyrtronium/rulebot/expr"
)

// ResultKind is the kind of outcome of dispatching a line.
type ResultKind int

const (
	_ ResultKind = iota
	// CommandExecuted means a command handler ran, or an unknown command was
	// rejected.
	CommandExecuted
	// ExpressionEvaluated means the calculator ran.
	ExpressionEvaluated
	// PlainResponse means the responder produced a canned reply.
	PlainResponse
)

func (k ResultKind) String() string {
	switch k {
	case CommandExecuted:
		return "CommandExecuted"
	case ExpressionEvaluated:
		return "ExpressionEvaluated"
	case PlainResponse:
		return "PlainResponse"
	default:
		return "ResultKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Result is the outcome of dispatching one line of input.
type Result struct {
	Kind ResultKind
	// Command is the command that ran, for CommandExecuted.
	Command Command
	// Value is the calculator result, for ExpressionEvaluated.
	Value float64
	// Text is the handler output or the canned reply.
	Text string
	// End is whether the conversation should end after this result.
	End bool
}

// Handler executes a command. arg is the text after the command verb. The
// returned text is shown to the user.
type Handler func(arg string) (string, error)

// Responder selects canned replies for free text. end reports whether the
// reply closes the conversation.
type Responder interface {
	Respond(text string) (reply string, end bool)
}

// Dispatcher routes lines of input to the calculator, command handlers, and a
// responder. It holds no state between calls other than its configuration.
type Dispatcher struct {
	handlers map[Command]Handler
	replies  Responder
	prec     uint
	log      *zap.Logger
}

// Option is an option used when creating a dispatcher.
type Option interface {
	dispatchOption(*Dispatcher)
}

type (
	handleropt struct {
		cmd Command
		h   Handler
	}
	handlersopt map[Command]Handler
	replyopt    struct{ r Responder }
	precopt     uint
	logopt      struct{ l *zap.Logger }
)

func (o handleropt) dispatchOption(d *Dispatcher) { d.handlers[o.cmd] = o.h }
func (o handlersopt) dispatchOption(d *Dispatcher) {
	for k, v := range o {
		d.handlers[k] = v
	}
}
func (o replyopt) dispatchOption(d *Dispatcher) { d.replies = o.r }
func (o precopt) dispatchOption(d *Dispatcher)  { d.prec = uint(o) }
func (o logopt) dispatchOption(d *Dispatcher)   { d.log = o.l }

// WithHandler sets the handler for a command. A nil handler removes it.
func WithHandler(cmd Command, h Handler) Option {
	return handleropt{cmd, h}
}

// WithHandlers sets handlers for any number of commands.
func WithHandlers(hs map[Command]Handler) Option {
	return handlersopt(hs)
}

// WithResponder sets the responder for free text.
func WithResponder(r Responder) Option {
	return replyopt{r}
}

// WithPrec sets the precision in bits of calculator evaluations.
func WithPrec(prec uint) Option {
	return precopt(prec)
}

// WithLogger sets the logger. The default logs nothing.
func WithLogger(l *zap.Logger) Option {
	return logopt{l}
}

// New creates a dispatcher.
func New(opts ...Option) *Dispatcher {
	d := Dispatcher{
		handlers: make(map[Command]Handler),
		replies:  fallback{},
		prec:     expr.DefaultPrec,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt.dispatchOption(&d)
	}
	for k, v := range d.handlers {
		if v == nil {
			delete(d.handlers, k)
		}
	}
	return &d
}

// Dispatch classifies and routes one line of input. Errors carry messages
// meant for the user and never mean that the conversation must stop; in
// particular, an unknown command returns a CommandExecuted result for Unknown
// alongside an *UnknownCommandError, and calculator failures return an
// ExpressionEvaluated result alongside an error wrapping the expr.SyntaxError
// or *expr.ArithmeticError.
func (d *Dispatcher) Dispatch(line string) (Result, error) {
	c := Classify(line)
	d.log.Debug("classified input", zap.Stringer("kind", c.Kind), zap.Stringer("command", c.Command))
	switch c.Kind {
	case CommandLine:
		return d.command(c)
	case Expression:
		return d.evaluate(c.Text)
	default:
		text, end := d.replies.Respond(c.Text)
		return Result{Kind: PlainResponse, Text: text, End: end}, nil
	}
}

func (d *Dispatcher) command(c Class) (Result, error) {
	r := Result{Kind: CommandExecuted, Command: c.Command}
	if c.Command == Unknown {
		return r, &UnknownCommandError{Verb: c.Verb}
	}
	h := d.handlers[c.Command]
	if h == nil {
		return r, fmt.Errorf("/%v is not available", c.Command)
	}
	text, err := h(c.Arg)
	r.Text = text
	r.End = c.Command == Exit
	if err != nil {
		d.log.Warn("command failed", zap.Stringer("command", c.Command), zap.Error(err))
		return r, fmt.Errorf("/%v: %w", c.Command, err)
	}
	return r, nil
}

func (d *Dispatcher) evaluate(src string) (Result, error) {
	r := Result{Kind: ExpressionEvaluated}
	v, err := EvaluateExpression(src, d.prec)
	if err != nil {
		d.log.Debug("calculator error", zap.String("expr", src), zap.Error(err))
		return r, fmt.Errorf("calculator error: %w", err)
	}
	r.Value = v
	return r, nil
}

// EvaluateExpression evaluates src with the calculator at the given precision.
func EvaluateExpression(src string, prec uint) (float64, error) {
	return expr.EvalString(src, expr.Prec(prec))
}

// FormatValue renders a calculator result with a fmt verb such as %g. An
// empty verb means %g.
func FormatValue(v float64, verb string) string {
	if verb == "" {
		verb = "%g"
	}
	return fmt.Sprintf(verb, v)
}

// UnknownCommandError is the error for a slash command that is not in the
// vocabulary.
type UnknownCommandError struct {
	// Verb is the command as typed, without the slash.
	Verb string
}

func (err *UnknownCommandError) Error() string {
	return "unknown command /" + err.Verb + ", type /help for available commands"
}

// fallback is the responder used when none is configured.
type fallback struct{}

func (fallback) Respond(string) (string, bool) {
	return "Sorry, I didn't understand that. Try /help to see options.", false
}

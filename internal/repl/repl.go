// Package repl runs the interactive chat loop.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/zephyrtronium/rulebot/dispatch"
	"github.com/zephyrtronium/rulebot/history"
	"github.com/zephyrtronium/rulebot/internal/config"
	"github.com/zephyrtronium/rulebot/quiz"
	"github.com/zephyrtronium/rulebot/reply"
)

// Session is one interactive conversation.
type Session struct {
	cfg       *config.Config
	in        io.Reader
	out       io.Writer
	tw        io.Writer
	log       *zap.Logger
	hist      *history.Log
	replies   dispatch.Responder
	questions []quiz.Question
}

// Option is an option used when creating a session.
type Option interface {
	sessionOption(*Session)
}

type (
	logopt      struct{ l *zap.Logger }
	histopt     struct{ h *history.Log }
	replyopt    struct{ r dispatch.Responder }
	questionopt []quiz.Question
)

func (o logopt) sessionOption(s *Session)      { s.log = o.l }
func (o histopt) sessionOption(s *Session)     { s.hist = o.h }
func (o replyopt) sessionOption(s *Session)    { s.replies = o.r }
func (o questionopt) sessionOption(s *Session) { s.questions = o }

// WithLogger sets the logger. The default logs nothing.
func WithLogger(l *zap.Logger) Option {
	return logopt{l}
}

// WithHistory sets the conversation log.
func WithHistory(h *history.Log) Option {
	return histopt{h}
}

// WithResponder sets the responder for free text, overriding the configured
// rules file.
func WithResponder(r dispatch.Responder) Option {
	return replyopt{r}
}

// WithQuestions sets the quiz questions, overriding the configured quiz file.
func WithQuestions(qs []quiz.Question) Option {
	return questionopt(qs)
}

// New creates a session reading from in and writing to out. Rules and quiz
// files named in cfg are loaded unless options replace them.
func New(cfg *config.Config, in io.Reader, out io.Writer, opts ...Option) (*Session, error) {
	s := Session{
		cfg: cfg,
		in:  in,
		out: out,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt.sessionOption(&s)
	}
	if s.hist == nil {
		s.hist = history.NewLog()
	}
	if s.replies == nil {
		if cfg.Chat.RulesFile == "" {
			s.replies = reply.Default()
		} else {
			r, err := reply.Load(cfg.Chat.RulesFile)
			if err != nil {
				return nil, err
			}
			s.replies = r
		}
	}
	if s.questions == nil {
		if cfg.Chat.QuizFile == "" {
			s.questions = quiz.Default
		} else {
			qs, err := quiz.Load(cfg.Chat.QuizFile)
			if err != nil {
				return nil, err
			}
			s.questions = qs
		}
	}
	s.log = s.log.With(zap.String("session", s.hist.Session()))
	s.tw = newTypewriter(out, cfg.GetTypingDelay())
	return &s, nil
}

// History returns the session's conversation log.
func (s *Session) History() *history.Log {
	return s.hist
}

// Run converses until input ends, a reply ends the conversation, or ctx is
// canceled. The history is saved to the configured file before returning.
// Errors from individual lines are shown to the user; Run itself only fails
// if reading input fails.
func (s *Session) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	p := &prompter{ctx: ctx, out: s.out, lines: readLines(s.in, done)}
	d := s.dispatcher(p)
	s.log.Info("session started")

	s.say("Hello! I'm " + s.cfg.Name + " - your friendly rule-based assistant.")
	fmt.Fprintln(s.tw, "Type '/help' for a list of commands. Type '/exit' or 'bye' to quit.")
	fmt.Fprintln(s.tw)

	for {
		line, err := p.Prompt(s.cfg.Chat.Prompt)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			fmt.Fprintln(s.out)
			s.save()
			return nil
		case ctx.Err() != nil:
			fmt.Fprintln(s.out)
			fmt.Fprintln(s.out)
			s.say("Received keyboard interrupt. Saving conversation and exiting...")
			s.save()
			return nil
		default:
			s.save()
			return fmt.Errorf("failed to read input: %w", err)
		}
		if s.handle(d, line) {
			s.save()
			return nil
		}
	}
}

// handle processes one line and reports whether the conversation is over.
func (s *Session) handle(d *dispatch.Dispatcher, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		s.hist.Append(history.User, "")
		r, _ := d.Dispatch("")
		s.say(r.Text)
		return false
	}
	s.hist.Append(history.User, line)
	r, err := d.Dispatch(line)
	if err != nil {
		s.reply(upper(err.Error()), true)
		return r.End
	}
	switch r.Kind {
	case dispatch.CommandExecuted:
		switch r.Command {
		case dispatch.History:
			// The listing is not itself part of the conversation.
			fmt.Fprintln(s.out, r.Text)
		case dispatch.Exit:
			s.reply(r.Text, true)
		default:
			s.reply(r.Text, false)
		}
	case dispatch.ExpressionEvaluated:
		s.log.Debug("evaluated", zap.String("expr", line), zap.Float64("value", r.Value))
		s.reply("Result: "+dispatch.FormatValue(r.Value, s.cfg.Calc.Format), true)
	case dispatch.PlainResponse:
		s.reply(r.Text, true)
		if r.End {
			s.say("It was great chatting. I'll save this conversation to disk.")
		}
	}
	return r.End
}

// reply records text as a bot entry and shows it, with the bot's name if
// named is set.
func (s *Session) reply(text string, named bool) {
	s.hist.Append(history.Bot, text)
	if named {
		s.say(text)
		return
	}
	fmt.Fprintln(s.tw, text)
}

// say shows text as spoken by the bot.
func (s *Session) say(text string) {
	fmt.Fprintf(s.tw, "🤖 %s: %s\n", s.cfg.Name, text)
}

// save writes the history to the configured file.
func (s *Session) save() {
	if err := history.Save(s.cfg.History.File, s.hist.Entries()); err != nil {
		s.log.Warn("autosave failed", zap.Error(err))
		s.say(err.Error())
		return
	}
	s.log.Info("history saved", zap.String("file", s.cfg.History.File), zap.Int("entries", s.hist.Len()))
}

// upper capitalizes the first letter of an ASCII message.
func upper(msg string) string {
	if msg == "" || msg[0] < 'a' || msg[0] > 'z' {
		return msg
	}
	return string(msg[0]-'a'+'A') + msg[1:]
}

type line struct {
	text string
	err  error
}

// readLines sends lines from r until it ends or done is closed. The channel
// is closed when reading stops.
func readLines(r io.Reader, done <-chan struct{}) <-chan line {
	lines := make(chan line)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- line{text: sc.Text()}:
			case <-done:
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case lines <- line{err: err}:
			case <-done:
			}
		}
	}()
	return lines
}

// prompter reads lines for the loop and the quiz alike.
type prompter struct {
	ctx   context.Context
	out   io.Writer
	lines <-chan line
}

func (p *prompter) Prompt(prompt string) (string, error) {
	io.WriteString(p.out, prompt)
	select {
	case l, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	case <-p.ctx.Done():
		return "", p.ctx.Err()
	}
}

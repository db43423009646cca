package repl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zephyrtronium/rulebot/dispatch"
	"github.com/zephyrtronium/rulebot/history"
	"github.com/zephyrtronium/rulebot/quiz"
)

// dispatcher creates the dispatcher for a run, with command handlers bound to
// the session and to p for quiz input.
func (s *Session) dispatcher(p quiz.Prompter) *dispatch.Dispatcher {
	return dispatch.New(
		dispatch.WithHandlers(map[dispatch.Command]dispatch.Handler{
			dispatch.Help:    s.help,
			dispatch.History: s.history,
			dispatch.Save:    s.saveTo,
			dispatch.Load:    s.loadFrom,
			dispatch.Quiz:    func(string) (string, error) { return s.quiz(p) },
			dispatch.Clear:   s.clear,
			dispatch.Exit:    s.exit,
		}),
		dispatch.WithResponder(s.replies),
		dispatch.WithPrec(s.cfg.Calc.Prec),
		dispatch.WithLogger(s.log),
	)
}

func (s *Session) help(string) (string, error) {
	return dispatch.Usage(), nil
}

func (s *Session) history(string) (string, error) {
	es := s.hist.Tail(s.cfg.History.Recent)
	lines := make([]string, len(es))
	for i, e := range es {
		lines[i] = history.Format(e)
	}
	return strings.Join(lines, "\n"), nil
}

// path picks the history file for /save and /load.
func (s *Session) path(arg string) string {
	if arg != "" {
		return arg
	}
	return s.cfg.History.File
}

func (s *Session) saveTo(arg string) (string, error) {
	path := s.path(arg)
	if err := history.Save(path, s.hist.Entries()); err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved history to %s.", path), nil
}

func (s *Session) loadFrom(arg string) (string, error) {
	es, err := history.Load(s.path(arg))
	if err != nil {
		return "", err
	}
	s.hist.Merge(es)
	return fmt.Sprintf("Loaded and merged %d entries from file.", len(es)), nil
}

func (s *Session) quiz(p quiz.Prompter) (string, error) {
	s.hist.Append(history.Bot, "Starting quiz.")
	score, err := quiz.Run(p, s.tw, s.questions, s.hist)
	if errors.Is(err, quiz.ErrAborted) {
		return fmt.Sprintf("Quiz stopped after %d of %d questions. Score: %v", score.Asked, score.Total, score), nil
	}
	if err != nil {
		return "", err
	}
	return "Quiz finished. Score: " + score.String(), nil
}

func (s *Session) clear(string) (string, error) {
	s.hist.Clear()
	return "In-memory history cleared.", nil
}

func (s *Session) exit(string) (string, error) {
	return "Goodbye!", nil
}

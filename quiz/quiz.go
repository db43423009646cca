// Package quiz runs a short question-and-answer game.
package quiz

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zephyrtronium/rulebot/history"
)

// Question is a quiz item.
type Question struct {
	Q string `yaml:"q"`
	A string `yaml:"a"`
}

// Default is the built-in question set.
var Default = []Question{
	{Q: "What is the output of 2 + 2?", A: "4"},
	{Q: "Which language is this bot written in?", A: "go"},
	{Q: "What year has 365 days? (type: year)", A: "any non-leap year"},
}

// Load reads a YAML list of questions.
func Load(path string) ([]Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quiz: %w", err)
	}
	var qs []Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("failed to parse quiz: %w", err)
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("quiz %s has no questions", path)
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Q) == "" || strings.TrimSpace(q.A) == "" {
			return nil, fmt.Errorf("quiz %s: question %d needs both q and a", path, i+1)
		}
	}
	return qs, nil
}

// Score is the result of a quiz.
type Score struct {
	Correct int
	// Asked is the number of questions answered or skipped.
	Asked int
	Total int
}

func (s Score) String() string {
	return strconv.Itoa(s.Correct) + "/" + strconv.Itoa(s.Total)
}

// Prompter asks the user for one line of input.
type Prompter interface {
	Prompt(prompt string) (string, error)
}

// ErrAborted is the error returned by Run when input ends before the last
// question.
var ErrAborted = errors.New("quiz aborted")

// skip is the answer that skips a question.
const skip = "skip"

// Run asks each question through p, writing feedback to out and recording
// answers to log if it is not nil. Answers match case-insensitively. If the
// prompter fails, the partial score is returned with an error wrapping both
// ErrAborted and the prompter's error.
func Run(p Prompter, out io.Writer, qs []Question, log *history.Log) (Score, error) {
	s := Score{Total: len(qs)}
	record := func(user, bot string) {
		if log != nil {
			log.Append(history.User, user)
			log.Append(history.Bot, bot)
		}
	}
	fmt.Fprintln(out, "Starting a mini-quiz. Answer the questions. Type 'skip' to skip a question.")
	for i, q := range qs {
		n := i + 1
		fmt.Fprintf(out, "Q%d: %s\n", n, q.Q)
		line, err := p.Prompt("Your answer: ")
		if err != nil {
			return s, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		s.Asked++
		answer := strings.ToLower(strings.TrimSpace(line))
		switch {
		case answer == skip:
			fmt.Fprintln(out, "Skipped.")
			record(fmt.Sprintf("quiz q%d skip", n), "Question skipped.")
		case answer == strings.ToLower(strings.TrimSpace(q.A)):
			fmt.Fprintln(out, "Correct! ✅")
			record(fmt.Sprintf("quiz q%d %s", n, answer), "Correct!")
			s.Correct++
		default:
			fmt.Fprintf(out, "Not quite. The expected answer was: %s\n", q.A)
			record(fmt.Sprintf("quiz q%d %s", n, answer), "Answer: "+q.A)
		}
	}
	fmt.Fprintf(out, "Quiz complete. Score: %v\n", s)
	return s, nil
}

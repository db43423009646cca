// Package reply selects canned responses for conversational input by simple
// pattern matching.
package reply

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule is a canned-response rule.
type Rule struct {
	// Name identifies the rule in errors and logs.
	Name string `yaml:"name"`
	// Match is a regular expression tested against the lowercased input.
	Match string `yaml:"match,omitempty"`
	// Contains lists substrings, any of which selects the rule.
	Contains []string `yaml:"contains,omitempty"`
	// Replies are the candidate responses. One is chosen at random.
	Replies []string `yaml:"replies"`
	// End marks a rule whose reply closes the conversation.
	End bool `yaml:"end,omitempty"`
}

// Table is the serialized form of a rule set.
type Table struct {
	Rules []Rule `yaml:"rules"`
	// Fallback are the replies used when no rule applies.
	Fallback []string `yaml:"fallback"`
	// Empty is the reply to empty input.
	Empty string `yaml:"empty"`
}

//go:embed rules.yaml
var defaultRules []byte

// Responder chooses replies from a compiled table. It is not safe for
// concurrent use when its random source is not.
type Responder struct {
	rules    []rule
	fallback []string
	empty    string
	intn     func(int) int
	now      func() time.Time
}

type rule struct {
	Rule
	re *regexp.Regexp
}

// Option is an option used when creating a responder.
type Option interface {
	replyOption(*Responder)
}

type (
	randopt  struct{ r *rand.Rand }
	clockopt func() time.Time
)

func (o randopt) replyOption(r *Responder)  { r.intn = o.r.IntN }
func (o clockopt) replyOption(r *Responder) { r.now = o }

// WithRand sets the source of reply choices. The default is the global source.
func WithRand(r *rand.Rand) Option {
	return randopt{r}
}

// WithClock sets the clock used to expand {time} and {date}.
func WithClock(now func() time.Time) Option {
	return clockopt(now)
}

// New compiles a table into a responder.
func New(t Table, opts ...Option) (*Responder, error) {
	if len(t.Fallback) == 0 {
		return nil, errors.New("reply table has no fallback replies")
	}
	r := Responder{
		rules:    make([]rule, 0, len(t.Rules)),
		fallback: t.Fallback,
		empty:    t.Empty,
		intn:     rand.IntN,
		now:      time.Now,
	}
	for i, ru := range t.Rules {
		if ru.Name == "" {
			ru.Name = fmt.Sprintf("#%d", i+1)
		}
		if len(ru.Replies) == 0 {
			return nil, fmt.Errorf("rule %s has no replies", ru.Name)
		}
		if ru.Match == "" && len(ru.Contains) == 0 {
			return nil, fmt.Errorf("rule %s has neither match nor contains", ru.Name)
		}
		c := rule{Rule: ru}
		if ru.Match != "" {
			re, err := regexp.Compile(ru.Match)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", ru.Name, err)
			}
			c.re = re
		}
		r.rules = append(r.rules, c)
	}
	for _, opt := range opts {
		opt.replyOption(&r)
	}
	return &r, nil
}

// Parse decodes a YAML table and compiles it.
func Parse(data []byte, opts ...Option) (*Responder, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse reply rules: %w", err)
	}
	return New(t, opts...)
}

// Load reads a YAML rule file.
func Load(path string, opts ...Option) (*Responder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reply rules: %w", err)
	}
	return Parse(data, opts...)
}

// Default returns a responder for the built-in rules.
func Default(opts ...Option) *Responder {
	r, err := Parse(defaultRules, opts...)
	if err != nil {
		panic("reply: invalid built-in rules: " + err.Error())
	}
	return r
}

// DefaultTable returns a copy of the built-in rules, e.g. to write out for
// editing.
func DefaultTable() Table {
	var t Table
	if err := yaml.Unmarshal(defaultRules, &t); err != nil {
		panic("reply: invalid built-in rules: " + err.Error())
	}
	return t
}

// Respond returns the reply to text and whether it ends the conversation.
func (r *Responder) Respond(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return r.empty, false
	}
	if ru := r.find(lower); ru != nil {
		return r.expand(r.pick(ru.Replies)), ru.End
	}
	return r.expand(r.pick(r.fallback)), false
}

// Rule returns the name of the rule that applies to text, or "" if the
// fallback replies would be used.
func (r *Responder) Rule(text string) string {
	if ru := r.find(strings.ToLower(strings.TrimSpace(text))); ru != nil {
		return ru.Name
	}
	return ""
}

func (r *Responder) find(lower string) *rule {
	if lower == "" {
		return nil
	}
	for i := range r.rules {
		ru := &r.rules[i]
		if ru.re != nil && ru.re.MatchString(lower) {
			return ru
		}
		for _, s := range ru.Contains {
			if strings.Contains(lower, strings.ToLower(s)) {
				return ru
			}
		}
	}
	return nil
}

func (r *Responder) pick(replies []string) string {
	if len(replies) == 1 {
		return replies[0]
	}
	return replies[r.intn(len(replies))]
}

func (r *Responder) expand(s string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	now := r.now()
	return strings.NewReplacer(
		"{time}", now.Format("03:04 PM"),
		"{date}", now.Format("January 02, 2006"),
	).Replace(s)
}

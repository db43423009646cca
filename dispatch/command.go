package dispatch

import (
	"strconv"
	"strings"
)

// Command is a recognized slash command.
type Command int

const (
	// Unknown is any slash input that is not in the vocabulary.
	Unknown Command = iota
	Help
	History
	Save
	Load
	Quiz
	Clear
	Exit
)

// vocabulary lists the commands in the order help shows them.
var vocabulary = []struct {
	cmd  Command
	name string
	arg  string
	desc string
}{
	{Help, "help", "", "Show this help message"},
	{History, "history", "", "Show recent conversation history in memory"},
	{Save, "save", "[file]", "Save conversation history to a file"},
	{Load, "load", "[file]", "Load conversation history from a file (merges into current session)"},
	{Quiz, "quiz", "", "Start a mini quiz"},
	{Clear, "clear", "", "Clear in-memory conversation history"},
	{Exit, "exit", "", "Exit the chatbot"},
}

// Commands returns the recognized commands in help order.
func Commands() []Command {
	r := make([]Command, len(vocabulary))
	for i, v := range vocabulary {
		r[i] = v.cmd
	}
	return r
}

// LookupCommand finds a command by its name, without the slash, ignoring
// case. The result is Unknown if there is no such command.
func LookupCommand(name string) Command {
	for _, v := range vocabulary {
		if strings.EqualFold(v.name, name) {
			return v.cmd
		}
	}
	return Unknown
}

// String returns the command's name without the slash.
func (c Command) String() string {
	for _, v := range vocabulary {
		if v.cmd == c {
			return v.name
		}
	}
	if c == Unknown {
		return "unknown"
	}
	return "Command(" + strconv.Itoa(int(c)) + ")"
}

// Usage renders the command vocabulary for users.
func Usage() string {
	var b strings.Builder
	b.WriteString("Commands and Usage\n")
	b.WriteString("------------------\n")
	b.WriteString("General chat: type messages naturally, e.g. \"hello\", \"your name\", \"tell me a joke\".\n\n")
	b.WriteString("Slash commands:\n")
	for _, v := range vocabulary {
		u := "/" + v.name
		if v.arg != "" {
			u += " " + v.arg
		}
		b.WriteString("  ")
		b.WriteString(u)
		b.WriteString(strings.Repeat(" ", max(2, 16-len(u))))
		b.WriteString(v.desc)
		b.WriteByte('\n')
	}
	b.WriteString("\nCalculator:\n")
	b.WriteString("  calc <expr>     Evaluate arithmetic, e.g. \"calc 2+3*4\" or just \"2+3*4\"\n")
	b.WriteString("                  Supported: + - * / % ^ and parentheses.")
	return b.String()
}

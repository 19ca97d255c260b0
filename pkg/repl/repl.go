// Package repl provides the trigger-based read-eval-print loop that the
// database CLI is assembled from.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"wrendb/pkg/config"

	"github.com/google/uuid"
)

// ReplCommand is the action run for a trigger. It receives the whole input
// line and the per-client config, and returns the output to display.
type ReplCommand func(payload string, replConfig *REPLConfig) (output string, err error)

const (
	// Trigger for the help meta-command that prints out all help strings
	TriggerHelpMetacommand = ".help"

	// Trigger for the quit meta-command that ends the session
	TriggerQuitMetacommand = ".quit"

	// String prepended to any error before it is sent to the output writer
	ErrorPrependStr = "ERROR: "
)

var (
	ErrOverlappingCommands = errors.New("found overlapping commands")
	ErrCommandNotFound     = errors.New("command not found")
)

// REPL struct.
type REPL struct {
	commands map[string]ReplCommand
	help     map[string]string
}

// REPLConfig identifies the client a command is running on behalf of.
type REPLConfig struct {
	clientId uuid.UUID
}

// Get address.
func (replConfig *REPLConfig) GetAddr() uuid.UUID {
	return replConfig.clientId
}

// Construct an empty REPL.
func NewRepl() *REPL {
	return &REPL{
		commands: make(map[string]ReplCommand),
		help:     make(map[string]string),
	}
}

// CombineRepls combines a slice of REPLs into one.
// Errors if two REPLs define the same trigger.
func CombineRepls(repls []*REPL) (*REPL, error) {
	newrepl := NewRepl()
	for _, r := range repls {
		for trigger, action := range r.commands {
			if _, exists := newrepl.commands[trigger]; exists {
				return nil, ErrOverlappingCommands
			}
			newrepl.AddCommand(trigger, action, r.help[trigger])
		}
	}
	return newrepl, nil
}

// Get commands.
func (r *REPL) GetCommands() map[string]ReplCommand {
	return r.commands
}

// Get help.
func (r *REPL) GetHelp() map[string]string {
	return r.help
}

// Add a command, along with its help string, to the set of commands.
// Meta-command triggers are reserved; an existing command with the same
// trigger is overwritten.
func (r *REPL) AddCommand(trigger string, action ReplCommand, help string) {
	if trigger == TriggerHelpMetacommand || trigger == TriggerQuitMetacommand {
		return
	}
	r.commands[trigger] = action
	r.help[trigger] = help
}

// Return all REPL commands' help strings as one string.
func (r *REPL) HelpString() string {
	var sb strings.Builder
	for k, v := range r.help {
		sb.WriteString(fmt.Sprintf("%s: %s\n", k, v))
	}
	sb.WriteString(fmt.Sprintf("%s: End the session.\n", TriggerQuitMetacommand))
	return sb.String()
}

// Run writes the welcome banner and dispatches input lines until the input
// is exhausted or the client quits. Input and output default to stdin and
// stdout if nil.
func (r *REPL) Run(clientId uuid.UUID, prompt string, input io.Reader, output io.Writer) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}
	replConfig := &REPLConfig{clientId: clientId}
	fmt.Fprintf(output, "Welcome to the %s REPL! Please type '.help' to see the list of available commands.\n", config.DBName)

	scanner := bufio.NewScanner(input)
	for {
		io.WriteString(output, prompt)
		if !scanner.Scan() {
			// Print an additional line if we encountered an EOF character.
			io.WriteString(output, "\n")
			return
		}
		if quit := r.runLine(scanner.Text(), replConfig, output); quit {
			return
		}
	}
}

// runLine parses and dispatches one input line, reporting whether the client
// asked to end the session.
func (r *REPL) runLine(payload string, replConfig *REPLConfig, output io.Writer) (quit bool) {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return false
	}
	switch trigger := fields[0]; trigger {
	case TriggerHelpMetacommand:
		io.WriteString(output, r.HelpString())
	case TriggerQuitMetacommand:
		return true
	default:
		command, exists := r.commands[trigger]
		if !exists {
			fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, ErrCommandNotFound)
			return false
		}
		// The command receives the entire payload, trigger included.
		result, err := command(payload, replConfig)
		if err != nil {
			fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, err)
			return false
		}
		if len(result) != 0 && !strings.HasSuffix(result, "\n") {
			result += "\n"
		}
		io.WriteString(output, result)
	}
	return false
}

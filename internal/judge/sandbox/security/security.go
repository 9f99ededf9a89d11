// Package security guards the process invocation surface. Every external
// command built from user- or problem-derived data passes through Validate
// before it is spawned. Containerization is the primary isolation; this
// gate catches accidental privileged invocations in trusted code paths.
package security

import (
	"strings"

	"github.com/google/shlex"

	appErr "nanoj/pkg/errors"
)

// Command is a typed process invocation. Building commands as argv slices
// (never shell strings) keeps the validator's view identical to what is
// executed.
type Command struct {
	Program string
	Args    []string
}

// Argv returns the full argument vector.
func (c Command) Argv() []string {
	return append([]string{c.Program}, c.Args...)
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// deniedPrograms are programs never spawned by the judge, regardless of
// arguments.
var deniedPrograms = map[string]struct{}{
	"rm": {}, "rmdir": {}, "del": {}, "format": {}, "mkfs": {}, "dd": {},
	"shred": {}, "sudo": {}, "su": {}, "chmod": {}, "chown": {},
	"mount": {}, "umount": {}, "iptables": {}, "firewall": {},
	"service": {}, "systemctl": {}, "ssh": {}, "scp": {}, "wget": {},
	"curl": {}, "nc": {}, "telnet": {}, "docker": {}, "kubectl": {}, "helm": {},
}

// deniedFlags are arguments denied both as exact matches and as substrings
// of any flag argument.
var deniedFlags = []string{
	"-rf", "--recursive", "--force", "--no-preserve-root",
	"--preserve-root=0", "-exec", "-ok", "-delete", "--privileged",
}

// Parse tokenizes a command template into a typed Command.
func Parse(cmdline string) (Command, error) {
	fields, err := shlex.Split(cmdline)
	if err != nil {
		return Command{}, appErr.Wrapf(err, appErr.InvalidParams, "parse command failed")
	}
	if len(fields) == 0 {
		return Command{}, appErr.New(appErr.InvalidParams).WithMessage("command is empty")
	}
	return Command{Program: fields[0], Args: fields[1:]}, nil
}

// Validate allows a command iff its program is not in the deny-set and no
// argument matches a denied flag, exactly or as a substring of a flag.
// The check is conservative: it denies known-bad patterns only.
func Validate(cmd Command) error {
	program := strings.ToLower(cmd.Program)
	if program == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("command is empty")
	}
	if _, denied := deniedPrograms[baseName(program)]; denied {
		return appErr.Newf(appErr.Forbidden, "denied program: %s", cmd.Program)
	}
	for _, arg := range cmd.Args {
		lower := strings.ToLower(arg)
		for _, flag := range deniedFlags {
			if lower == flag {
				return appErr.Newf(appErr.Forbidden, "denied argument: %s", arg)
			}
			if strings.HasPrefix(lower, "-") && strings.Contains(lower, flag) {
				return appErr.Newf(appErr.Forbidden, "denied flag pattern: %s", arg)
			}
		}
	}
	return nil
}

// ValidateLine tokenizes and validates a whole command line.
func ValidateLine(cmdline string) error {
	cmd, err := Parse(cmdline)
	if err != nil {
		return err
	}
	return Validate(cmd)
}

func baseName(program string) string {
	if i := strings.LastIndexByte(program, '/'); i >= 0 {
		return program[i+1:]
	}
	return program
}

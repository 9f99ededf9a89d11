// Package sandbox defines the execution interface used by the judge
// orchestrator: one request in, one raw run outcome out. The docker
// subpackage provides the hardened implementation; local provides the
// degraded fallback used when no container runtime is present.
package sandbox

import (
	"context"
	"strings"

	"nanoj/internal/judge/model"
)

// Request describes one sandboxed run of user code against one input.
type Request struct {
	Language  *model.Language
	Code      string
	Stdin     string
	TimeLimit float64 // seconds
	MemoryMB  int
	RunID     string
}

// Run is the raw outcome of one execution. Status is AC when the program
// ran cleanly; the answer check happens upstream.
type Run struct {
	Status    model.Verdict
	TimeUsed  float64 // seconds
	MemoryMB  int
	Stdout    string
	ErrorText string
}

// Executor runs untrusted code. Implementations must release every
// resource they acquire (scratch directory, image, container) on all exit
// paths, and must not let a child process outlive the call.
type Executor interface {
	// Execute performs one run. Expected judging outcomes (CE, TLE, MLE,
	// RE) are encoded in the Run; a non-nil error means an infrastructure
	// fault and maps to UNK upstream.
	Execute(ctx context.Context, req Request) (Run, error)

	// Available reports whether the executor's runtime is usable.
	Available() bool

	// Name identifies the executor in logs.
	Name() string
}

// ExpandCommand substitutes source and binary paths into a language
// command template. Templates use {src} and {bin} placeholders.
func ExpandCommand(tpl, src, bin string) string {
	out := strings.ReplaceAll(tpl, "{src}", src)
	return strings.ReplaceAll(out, "{bin}", bin)
}

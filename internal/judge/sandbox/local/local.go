// Package local is the degraded fallback executor used when no container
// runtime is present. It spawns submissions directly on the host, so it
// compensates with a source-text screen and aggressive process teardown.
// Every run is logged with sandbox=fallback so degraded judging is visible.
package local

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"nanoj/internal/judge/model"
	"nanoj/internal/judge/sandbox"
	"nanoj/internal/judge/sandbox/security"
	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/logger"
)

// dangerousOps are source substrings refused outright on the fallback
// path. Without a container there is no second line of defense.
var dangerousOps = []string{
	"import os",
	"import subprocess",
	"os.system",
	"subprocess.call",
	"subprocess.run",
	"eval(",
	"exec(",
	"__import__",
}

const compileTimeout = 30 * time.Second

// Executor implements sandbox.Executor by direct process spawn.
type Executor struct{}

// NewExecutor returns the fallback executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Available always holds: the fallback is the floor of the executor chain.
func (e *Executor) Available() bool {
	return true
}

// Name identifies the executor in logs.
func (e *Executor) Name() string {
	return "fallback"
}

// Execute screens the source, materializes it in a scratch dir, compiles
// when the language requires it, and runs the program under the time
// limit with stdin piped directly.
func (e *Executor) Execute(ctx context.Context, req sandbox.Request) (sandbox.Run, error) {
	if req.Language == nil || req.Language.RunCmd == "" {
		return sandbox.Run{}, appErr.ValidationError("language", "required")
	}

	logger.Warn(ctx, "executing without container isolation",
		zap.String("sandbox", "fallback"),
		zap.String("run_id", req.RunID),
		zap.String("language", req.Language.Name))

	if op := ScreenSource(req.Code); op != "" {
		return sandbox.Run{Status: model.VerdictRE, ErrorText: "检测到危险操作: " + op}, nil
	}

	scratch, err := os.MkdirTemp("", "nanoj-fallback-")
	if err != nil {
		return sandbox.Run{}, appErr.Wrapf(err, appErr.JudgeSystemError, "create scratch dir failed")
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Warn(ctx, "remove scratch dir failed", zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()

	// Command templates expand against names relative to the scratch dir,
	// which becomes the working directory of every spawned process.
	srcName := "main" + req.Language.FileExt
	binName := "main"
	if err := os.WriteFile(filepath.Join(scratch, srcName), []byte(req.Code), 0o644); err != nil {
		return sandbox.Run{}, appErr.Wrapf(err, appErr.JudgeSystemError, "write source failed")
	}

	if req.Language.CompileCmd != "" {
		if run, ok := e.compile(ctx, req, scratch, srcName, binName); !ok {
			return run, nil
		}
	}

	return e.run(ctx, req, scratch, srcName, binName)
}

// compile builds the submission. ok is false when the returned Run is the
// final outcome (a CE).
func (e *Executor) compile(ctx context.Context, req sandbox.Request, scratch, srcName, binName string) (sandbox.Run, bool) {
	line := sandbox.ExpandCommand(req.Language.CompileCmd, srcName, binName)
	cmd, err := security.Parse(line)
	if err != nil {
		return sandbox.Run{Status: model.VerdictCE, ErrorText: appErr.GetError(err).Message}, false
	}
	if err := security.Validate(cmd); err != nil {
		return sandbox.Run{Status: model.VerdictCE, ErrorText: "编译命令不安全: " + appErr.GetError(err).Message}, false
	}

	compileCtx, cancel := context.WithTimeout(ctx, compileTimeout)
	defer cancel()
	proc := exec.CommandContext(compileCtx, cmd.Program, cmd.Args...)
	proc.Dir = scratch
	var stderr bytes.Buffer
	proc.Stderr = &stderr
	if err := proc.Run(); err != nil {
		return sandbox.Run{Status: model.VerdictCE, ErrorText: lossyUTF8(stderr.Bytes())}, false
	}
	return sandbox.Run{}, true
}

func (e *Executor) run(ctx context.Context, req sandbox.Request, scratch, srcName, binName string) (sandbox.Run, error) {
	line := sandbox.ExpandCommand(req.Language.RunCmd, srcName, binName)
	cmd, err := security.Parse(line)
	if err != nil {
		return sandbox.Run{Status: model.VerdictRE, ErrorText: appErr.GetError(err).Message}, nil
	}
	if err := security.Validate(cmd); err != nil {
		return sandbox.Run{Status: model.VerdictRE, ErrorText: "运行命令不安全: " + appErr.GetError(err).Message}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(req.TimeLimit*float64(time.Second)))
	defer cancel()

	proc := exec.CommandContext(runCtx, cmd.Program, cmd.Args...)
	proc.Dir = scratch
	proc.Stdin = strings.NewReader(req.Stdin)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	start := time.Now()
	runErr := proc.Run()
	elapsed := time.Since(start).Seconds()

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return sandbox.Run{Status: model.VerdictTLE, TimeUsed: req.TimeLimit}, nil
	}
	if ctx.Err() != nil {
		return sandbox.Run{}, appErr.Wrapf(ctx.Err(), appErr.Timeout, "judge cancelled during run")
	}

	memUsed := peakMemoryMB(proc)
	if req.MemoryMB > 0 && memUsed > req.MemoryMB {
		return sandbox.Run{Status: model.VerdictMLE, TimeUsed: elapsed, MemoryMB: memUsed}, nil
	}
	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			return sandbox.Run{}, appErr.Wrapf(runErr, appErr.JudgeSystemError, "spawn failed")
		}
		return sandbox.Run{
			Status:    model.VerdictRE,
			TimeUsed:  elapsed,
			MemoryMB:  memUsed,
			ErrorText: lossyUTF8(stderr.Bytes()),
		}, nil
	}
	return sandbox.Run{
		Status:   model.VerdictAC,
		TimeUsed: elapsed,
		MemoryMB: memUsed,
		Stdout:   lossyUTF8(stdout.Bytes()),
	}, nil
}

// ScreenSource returns the first dangerous operation found in the source,
// or the empty string when none matches.
func ScreenSource(code string) string {
	for _, op := range dangerousOps {
		if strings.Contains(code, op) {
			return op
		}
	}
	return ""
}

func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

package spj

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/logger"
)

// Checker statuses on the wire.
const (
	StatusAC       = "AC"
	StatusWA       = "WA"
	StatusSPJError = "SPJ_ERROR"
)

// Result is a checker verdict.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Score   int    `json:"score,omitempty"`
}

// RunnerConfig holds checker execution settings.
type RunnerConfig struct {
	// PythonBin runs python checkers.
	PythonBin string `yaml:"pythonBin"`

	// CppCompiler compiles cpp checkers.
	CppCompiler string `yaml:"cppCompiler"`

	// Timeout caps one checker run. Checkers are trusted but still bounded.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultRunnerConfig returns the checker runner defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		PythonBin:   "python3",
		CppCompiler: "g++",
		Timeout:     10 * time.Second,
	}
}

// Runner executes stored checkers against one test case outcome.
type Runner struct {
	store *Store
	cfg   RunnerConfig
}

// NewRunner creates a checker runner over the given store.
func NewRunner(store *Store, cfg RunnerConfig) *Runner {
	def := DefaultRunnerConfig()
	if cfg.PythonBin == "" {
		cfg.PythonBin = def.PythonBin
	}
	if cfg.CppCompiler == "" {
		cfg.CppCompiler = def.CppCompiler
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Runner{store: store, cfg: cfg}
}

// checkerInput is the stdin payload for python checkers.
type checkerInput struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
}

// Run evaluates one case with the problem's checker. A missing checker is
// an error; every checker-side failure comes back as an SPJ_ERROR result
// so the caller can fall back to text comparison.
func (r *Runner) Run(ctx context.Context, problemID, input, expected, actual string) (Result, error) {
	script, err := r.store.Load(ctx, problemID)
	if err != nil {
		return Result{}, err
	}

	scratch, err := os.MkdirTemp("", "nanoj-spj-")
	if err != nil {
		return Result{}, appErr.Wrapf(err, appErr.CheckerRunFailed, "create scratch dir failed")
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Warn(ctx, "remove checker scratch failed", zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()

	var argv []string
	var stdin string
	switch script.Language {
	case model.CheckerCpp:
		srcPath := filepath.Join(scratch, "checker.cpp")
		exePath := filepath.Join(scratch, "checker")
		if err := os.WriteFile(srcPath, script.Source, 0o644); err != nil {
			return Result{}, appErr.Wrapf(err, appErr.CheckerRunFailed, "write checker failed")
		}
		if res, ok := r.compileCpp(ctx, srcPath, exePath); !ok {
			return res, nil
		}
		argv = []string{exePath}
		stdin = input + "\n" + expected + "\n" + actual + "\n"
	default:
		srcPath := filepath.Join(scratch, "checker.py")
		if err := os.WriteFile(srcPath, script.Source, 0o644); err != nil {
			return Result{}, appErr.Wrapf(err, appErr.CheckerRunFailed, "write checker failed")
		}
		payload, err := json.Marshal(checkerInput{Input: input, ExpectedOutput: expected, ActualOutput: actual})
		if err != nil {
			return Result{}, appErr.Wrapf(err, appErr.CheckerRunFailed, "encode checker input failed")
		}
		argv = []string{r.cfg.PythonBin, srcPath}
		stdin = string(payload)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return Result{Status: StatusSPJError, Message: "checker timed out"}, nil
	}
	if ctx.Err() != nil {
		return Result{}, appErr.Wrapf(ctx.Err(), appErr.Timeout, "judge cancelled during checker run")
	}

	exitCode := 0
	if runErr != nil {
		exitErr, isExit := runErr.(*exec.ExitError)
		if !isExit {
			return Result{}, appErr.Wrapf(runErr, appErr.CheckerRunFailed, "spawn checker failed")
		}
		exitCode = exitErr.ExitCode()
	}
	return decodeResult(script.Language, stdout.Bytes(), stderr.Bytes(), exitCode), nil
}

func (r *Runner) compileCpp(ctx context.Context, srcPath, exePath string) (Result, bool) {
	compileCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	cmd := exec.CommandContext(compileCtx, r.cfg.CppCompiler, "-o", exePath, srcPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{Status: StatusSPJError, Message: "checker compile failed: " + stderr.String()}, false
	}
	return Result{}, true
}

// decodeResult interprets one finished checker run. The primary protocol
// is a JSON object on stdout. For cpp checkers without JSON output,
// testlib-style exit codes are honored: 0 accept, 1 reject, anything
// else checker error. A python checker must print JSON; a silent exit 0
// is a broken checker, not an accept.
func decodeResult(lang model.CheckerLanguage, stdout, stderr []byte, exitCode int) Result {
	var res Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout), &res); err == nil && res.Status != "" {
		return normalizeStatus(res)
	}
	if lang != model.CheckerCpp {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = "malformed checker output"
		}
		return Result{Status: StatusSPJError, Message: msg}
	}
	switch exitCode {
	case 0:
		if len(bytes.TrimSpace(stdout)) > 0 {
			return Result{Status: StatusSPJError, Message: "malformed checker output"}
		}
		return Result{Status: StatusAC}
	case 1:
		return Result{Status: StatusWA, Message: strings.TrimSpace(string(stderr))}
	default:
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = "checker exited abnormally"
		}
		return Result{Status: StatusSPJError, Message: msg}
	}
}

// normalizeStatus folds legacy status spellings into the fixed vocabulary.
func normalizeStatus(res Result) Result {
	switch strings.ToUpper(strings.TrimSpace(res.Status)) {
	case StatusAC, "ACCEPTED":
		res.Status = StatusAC
	case StatusWA, "WRONG_ANSWER":
		res.Status = StatusWA
	case StatusSPJError:
		res.Status = StatusSPJError
	default:
		res = Result{Status: StatusSPJError, Message: "unknown checker status: " + res.Status}
	}
	return res
}

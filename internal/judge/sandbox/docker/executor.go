// Package docker runs untrusted submissions inside per-run Docker
// containers built from a generated Dockerfile. Each run gets a fresh
// image and container; both are removed on every exit path.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nanoj/internal/judge/model"
	"nanoj/internal/judge/sandbox"
	"nanoj/internal/judge/sandbox/security"
	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/logger"
)

const (
	containerPrefix = "oj_judge_"
	sourceBaseName  = "main"
	inputFileName   = "input.txt"
	dockerfileName  = "Dockerfile"
)

// Config holds Docker executor settings.
type Config struct {
	// Binary is the Docker CLI path.
	Binary string `yaml:"binary"`

	// Images maps a language name to its base image.
	Images map[string]string `yaml:"images"`

	// WorkDir is the working directory inside the container.
	WorkDir string `yaml:"workDir"`

	// BuildTimeout caps one image build.
	BuildTimeout time.Duration `yaml:"buildTimeout"`

	// PrePull pulls missing base images at startup.
	PrePull bool `yaml:"prePull"`
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		Binary:  "docker",
		WorkDir: "/workspace",
		Images: map[string]string{
			"python": "python:3.9-slim",
			"cpp":    "gcc:11",
		},
		BuildTimeout: 30 * time.Second,
		PrePull:      true,
	}
}

// Executor implements sandbox.Executor on the Docker CLI.
type Executor struct {
	cfg       Config
	available bool
}

// NewExecutor probes the Docker runtime and, when available, sweeps
// leftover judge containers and optionally pre-pulls base images. A
// missing runtime is not an error; Available reports it.
func NewExecutor(ctx context.Context, cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = def.WorkDir
	}
	if len(cfg.Images) == 0 {
		cfg.Images = def.Images
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = def.BuildTimeout
	}

	e := &Executor{cfg: cfg}
	e.available = e.probe(ctx)
	if !e.available {
		logger.Warn(ctx, "docker runtime unavailable, sandbox degraded")
		return e
	}
	e.SweepOrphans(ctx)
	if cfg.PrePull {
		e.ensureImages(ctx)
	}
	return e
}

// Available reports whether the Docker CLI answered the startup probe.
func (e *Executor) Available() bool {
	return e.available
}

// Name identifies the executor in logs.
func (e *Executor) Name() string {
	return "docker"
}

// Execute performs one sandboxed run: scratch dir, generated Dockerfile,
// image build, constrained container run, verdict mapping. Expected
// judging outcomes come back in the Run; a non-nil error is an
// infrastructure fault.
func (e *Executor) Execute(ctx context.Context, req sandbox.Request) (sandbox.Run, error) {
	if !e.available {
		return sandbox.Run{}, appErr.New(appErr.SandboxUnavailable)
	}
	if req.Language == nil || req.Language.RunCmd == "" {
		return sandbox.Run{}, appErr.ValidationError("language", "required")
	}

	baseImage, ok := e.cfg.Images[req.Language.Name]
	if !ok {
		return sandbox.Run{}, appErr.Newf(appErr.LanguageNotSupported, "no base image for language %q", req.Language.Name)
	}

	srcName := sourceBaseName + req.Language.FileExt
	runLine := sandbox.ExpandCommand(req.Language.RunCmd, srcName, sourceBaseName)
	compileLine := ""
	if req.Language.CompileCmd != "" {
		compileLine = sandbox.ExpandCommand(req.Language.CompileCmd, srcName, sourceBaseName)
	}

	// Gate the language-derived command lines before anything touches disk.
	if compileLine != "" {
		if err := security.ValidateLine(compileLine); err != nil {
			return sandbox.Run{Status: model.VerdictCE, ErrorText: "编译命令不安全: " + appErr.GetError(err).Message}, nil
		}
	}
	if err := security.ValidateLine(runLine); err != nil {
		return sandbox.Run{Status: model.VerdictCE, ErrorText: "运行命令不安全: " + appErr.GetError(err).Message}, nil
	}

	scratch, err := os.MkdirTemp("", "nanoj-run-")
	if err != nil {
		return sandbox.Run{}, appErr.Wrapf(err, appErr.JudgeSystemError, "create scratch dir failed")
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			logger.Warn(ctx, "remove scratch dir failed", zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()

	if err := os.WriteFile(filepath.Join(scratch, srcName), []byte(req.Code), 0o644); err != nil {
		return sandbox.Run{}, appErr.Wrapf(err, appErr.JudgeSystemError, "write source failed")
	}
	if err := os.WriteFile(filepath.Join(scratch, inputFileName), []byte(req.Stdin), 0o644); err != nil {
		return sandbox.Run{}, appErr.Wrapf(err, appErr.JudgeSystemError, "write input failed")
	}

	dockerfile := renderDockerfile(imageRecipe{
		BaseImage:  baseImage,
		WorkDir:    e.cfg.WorkDir,
		SourceName: srcName,
		InputName:  inputFileName,
		CompileCmd: compileLine,
		RunCmd:     runLine,
	})
	dockerfilePath := filepath.Join(scratch, dockerfileName)
	if err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0o644); err != nil {
		return sandbox.Run{}, appErr.Wrapf(err, appErr.JudgeSystemError, "write dockerfile failed")
	}

	container := newContainerName()
	image := container + "_image"

	run, built, err := e.buildImage(ctx, image, dockerfilePath, scratch)
	if built {
		defer e.removeImage(ctx, image)
	}
	if err != nil || run.Status != "" {
		return run, err
	}

	return e.runContainer(ctx, req, container, image)
}

// buildImage builds the per-run image. built reports whether an image may
// exist and must be removed regardless of the outcome.
func (e *Executor) buildImage(ctx context.Context, image, dockerfilePath, contextDir string) (run sandbox.Run, built bool, err error) {
	buildCtx, cancel := context.WithTimeout(ctx, e.cfg.BuildTimeout)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, e.cfg.Binary, "build", "-t", image, "-f", dockerfilePath, contextDir)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	buildErr := cmd.Run()
	built = true
	if buildErr == nil {
		return sandbox.Run{}, built, nil
	}
	if buildCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return sandbox.Run{Status: model.VerdictCE, ErrorText: "build timeout"}, built, nil
	}
	if ctx.Err() != nil {
		return sandbox.Run{}, built, appErr.Wrapf(ctx.Err(), appErr.Timeout, "judge cancelled during build")
	}
	if _, isExit := buildErr.(*exec.ExitError); isExit {
		return sandbox.Run{Status: model.VerdictCE, ErrorText: lossyUTF8(out.Bytes())}, built, nil
	}
	return sandbox.Run{}, built, appErr.Wrapf(buildErr, appErr.SandboxUnavailable, "docker build failed to start")
}

func (e *Executor) runContainer(ctx context.Context, req sandbox.Request, container, image string) (sandbox.Run, error) {
	wall := time.Duration((req.TimeLimit + 1.0) * float64(time.Second))
	runCtx, cancel := context.WithTimeout(ctx, wall)
	defer cancel()

	args := []string{
		"run",
		"--name", container,
		"--rm",
		"--network", "none",
		"--memory", fmt.Sprintf("%dm", req.MemoryMB),
		"--cpus", strconv.FormatFloat(req.TimeLimit, 'f', -1, 64),
		"--pids-limit", "50",
		"--ulimit", "nofile=64:64",
		"--security-opt", "no-new-privileges",
		"--cap-drop", "ALL",
		"--read-only",
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=100m",
		"--tmpfs", "/var/tmp:rw,noexec,nosuid,size=32m",
		image,
	}

	cmd := exec.CommandContext(runCtx, e.cfg.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// The container can survive the CLI process, so a timed-out attach is
	// followed by an explicit docker kill.
	defer e.removeContainer(ctx, container)

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start).Seconds()

	if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		e.killContainer(ctx, container)
		return sandbox.Run{Status: model.VerdictTLE, TimeUsed: req.TimeLimit}, nil
	}
	if ctx.Err() != nil {
		e.killContainer(context.WithoutCancel(ctx), container)
		return sandbox.Run{}, appErr.Wrapf(ctx.Err(), appErr.Timeout, "judge cancelled during run")
	}
	if runErr != nil {
		if _, isExit := runErr.(*exec.ExitError); !isExit {
			return sandbox.Run{}, appErr.Wrapf(runErr, appErr.SandboxUnavailable, "docker run failed to start")
		}
		return sandbox.Run{
			Status:    model.VerdictRE,
			TimeUsed:  elapsed,
			ErrorText: lossyUTF8(stderr.Bytes()),
		}, nil
	}

	memUsed := e.readMemoryMB(ctx, container)
	if memUsed > req.MemoryMB {
		return sandbox.Run{Status: model.VerdictMLE, TimeUsed: elapsed, MemoryMB: memUsed}, nil
	}
	return sandbox.Run{
		Status:   model.VerdictAC,
		TimeUsed: elapsed,
		MemoryMB: memUsed,
		Stdout:   lossyUTF8(stdout.Bytes()),
	}, nil
}

// readMemoryMB samples container memory via docker stats. Best effort: the
// container has usually exited already, in which case this reports zero
// and the memory cap enforced by the runtime remains the real guard.
func (e *Executor) readMemoryMB(ctx context.Context, container string) int {
	statsCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	out, err := exec.CommandContext(statsCtx, e.cfg.Binary,
		"stats", "--no-stream", "--format", "{{.MemUsage}}", container).Output()
	if err != nil {
		return 0
	}
	mb, err := parseMemUsageMB(strings.TrimSpace(string(out)))
	if err != nil {
		return 0
	}
	return mb
}

func (e *Executor) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return exec.CommandContext(probeCtx, e.cfg.Binary, "--version").Run() == nil
}

// ensureImages pulls any configured base image not present locally.
func (e *Executor) ensureImages(ctx context.Context) {
	for lang, image := range e.cfg.Images {
		listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		out, err := exec.CommandContext(listCtx, e.cfg.Binary, "images", "-q", image).Output()
		cancel()
		if err == nil && strings.TrimSpace(string(out)) != "" {
			continue
		}
		logger.Info(ctx, "pulling base image", zap.String("language", lang), zap.String("image", image))
		pullCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		pullErr := exec.CommandContext(pullCtx, e.cfg.Binary, "pull", image).Run()
		cancel()
		if pullErr != nil {
			logger.Warn(ctx, "pull base image failed", zap.String("image", image), zap.Error(pullErr))
		}
	}
}

// SweepOrphans force-removes judge containers left behind by an earlier
// process. Called at startup before any judging begins.
func (e *Executor) SweepOrphans(ctx context.Context) {
	if !e.available {
		return
	}
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(listCtx, e.cfg.Binary,
		"ps", "-a", "--filter", "name="+containerPrefix, "--format", "{{.Names}}").Output()
	if err != nil {
		logger.Warn(ctx, "list orphan containers failed", zap.Error(err))
		return
	}
	for _, name := range strings.Fields(string(out)) {
		logger.Info(ctx, "removing orphan container", zap.String("container", name))
		e.removeContainer(ctx, name)
	}
}

func (e *Executor) killContainer(ctx context.Context, container string) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(killCtx, e.cfg.Binary, "kill", container).Run(); err != nil {
		logger.Warn(ctx, "docker kill failed", zap.String("container", container), zap.Error(err))
	}
}

func (e *Executor) removeContainer(ctx context.Context, container string) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = exec.CommandContext(rmCtx, e.cfg.Binary, "rm", "-f", container).Run()
}

func (e *Executor) removeImage(ctx context.Context, image string) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := exec.CommandContext(rmCtx, e.cfg.Binary, "rmi", "-f", image).Run(); err != nil {
		logger.Warn(ctx, "remove image failed", zap.String("image", image), zap.Error(err))
	}
}

func newContainerName() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return containerPrefix + hex[:8]
}

func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

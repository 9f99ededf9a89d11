// Package service contains the judge orchestrator: it drives one
// submission through the sandbox, the answer check, scoring, and
// persistence, plus the worker pool that schedules submissions.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nanoj/internal/judge/compare"
	"nanoj/internal/judge/model"
	"nanoj/internal/judge/repository"
	"nanoj/internal/judge/sandbox"
	"nanoj/internal/judge/spj"
	appErr "nanoj/pkg/errors"
	"nanoj/pkg/utils/logger"
)

// CheckerRunner is what the orchestrator needs from the special judge.
type CheckerRunner interface {
	Run(ctx context.Context, problemID, input, expected, actual string) (spj.Result, error)
}

// Config holds orchestrator settings.
type Config struct {
	// RequireContainer refuses to judge when no container runtime is
	// available instead of degrading to the fallback executor.
	RequireContainer bool `yaml:"requireContainer"`
}

// JudgeService judges submissions. Executors are tried in order; the
// first available one runs every case of a submission.
type JudgeService struct {
	repo      repository.Repository
	executors []sandbox.Executor
	checker   CheckerRunner
	cfg       Config
}

// NewJudgeService wires the orchestrator.
func NewJudgeService(repo repository.Repository, executors []sandbox.Executor, checker CheckerRunner, cfg Config) (*JudgeService, error) {
	if repo.Submissions == nil || repo.Problems == nil || repo.Languages == nil || repo.Logs == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("repository is incomplete")
	}
	if len(executors) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("at least one executor is required")
	}
	return &JudgeService{repo: repo, executors: executors, checker: checker, cfg: cfg}, nil
}

// Judge runs one full judging pass for a submission. The per-case log is
// written before the submission flips to success; any unhandled fault
// marks the submission error and discards the partial log.
func (s *JudgeService) Judge(ctx context.Context, submissionID string) error {
	sub, err := s.repo.Submissions.Get(ctx, submissionID)
	if err != nil {
		return err
	}

	problem, err := s.repo.Problems.GetProblem(ctx, sub.ProblemID)
	if err != nil {
		return s.failSubmission(ctx, sub, err)
	}
	lang, err := s.repo.Languages.GetLanguage(ctx, sub.Language)
	if err != nil {
		return s.failSubmission(ctx, sub, err)
	}

	executor := s.pickExecutor()
	if executor == nil {
		return s.failSubmission(ctx, sub, appErr.New(appErr.SandboxUnavailable))
	}

	timeLimit := model.EffectiveTimeLimit(problem, lang)
	memoryMB := model.EffectiveMemoryLimit(problem, lang)
	mode := model.EffectiveJudgeMode(problem)

	logger.Info(ctx, "judging submission",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("problem_id", problem.ID),
		zap.String("language", lang.Name),
		zap.String("judge_mode", string(mode)),
		zap.String("executor", executor.Name()))

	score := 0
	outcomes := make([]model.TestCaseOutcome, 0, len(problem.TestCases))
	for i, tc := range problem.TestCases {
		outcome := s.judgeCase(ctx, executor, sub, problem, lang, tc, i, timeLimit, memoryMB, mode)
		if outcome.Verdict == model.VerdictAC {
			score += model.PointsPerCase
		}
		outcomes = append(outcomes, outcome)
	}
	counts := model.PointsPerCase * len(problem.TestCases)

	log := &model.SubmissionLog{
		SubmissionID: sub.SubmissionID,
		UserID:       sub.UserID,
		ProblemID:    sub.ProblemID,
		Language:     sub.Language,
		JudgedAt:     model.NewSubmitTime(time.Now()),
		Score:        score,
		Counts:       counts,
		Cases:        outcomes,
	}
	if err := s.repo.Logs.Write(ctx, log); err != nil {
		return s.failSubmission(ctx, sub, err)
	}

	sub.Status = model.StatusSuccess
	sub.Score = score
	sub.Counts = counts
	if err := s.repo.Submissions.Update(ctx, sub); err != nil {
		return s.failSubmission(ctx, sub, err)
	}

	logger.Info(ctx, "submission judged",
		zap.String("submission_id", sub.SubmissionID),
		zap.Int("score", score),
		zap.Int("counts", counts))
	return nil
}

// judgeCase evaluates one test case. Sandbox-level verdicts pass through
// untouched; a clean run goes to the answer check for the problem's mode.
func (s *JudgeService) judgeCase(
	ctx context.Context,
	executor sandbox.Executor,
	sub *model.Submission,
	problem *model.Problem,
	lang *model.Language,
	tc model.TestCase,
	index int,
	timeLimit float64,
	memoryMB int,
	mode model.JudgeMode,
) model.TestCaseOutcome {
	outcome := model.TestCaseOutcome{
		Index:          index,
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
	}

	run, err := executor.Execute(ctx, sandbox.Request{
		Language:  lang,
		Code:      sub.Code,
		Stdin:     tc.Input,
		TimeLimit: timeLimit,
		MemoryMB:  memoryMB,
		RunID:     uuid.NewString(),
	})
	if err != nil {
		logger.Error(ctx, "sandbox fault",
			zap.String("submission_id", sub.SubmissionID),
			zap.Int("case", index),
			zap.Error(err))
		outcome.Verdict = model.VerdictUNK
		return outcome
	}

	outcome.TimeUsedSeconds = run.TimeUsed
	outcome.MemoryUsedMB = run.MemoryMB
	if run.Status != model.VerdictAC {
		outcome.Verdict = run.Status
		outcome.ActualOutput = run.ErrorText
		return outcome
	}

	outcome.ActualOutput = run.Stdout
	outcome.Verdict = s.checkAnswer(ctx, problem, mode, tc, run.Stdout)
	return outcome
}

// checkAnswer applies the verdict policy for a clean run.
func (s *JudgeService) checkAnswer(ctx context.Context, problem *model.Problem, mode model.JudgeMode, tc model.TestCase, actual string) model.Verdict {
	if mode == model.JudgeModeSPJ && s.checker != nil {
		res, err := s.checker.Run(ctx, problem.ID, tc.Input, tc.ExpectedOutput, actual)
		if err == nil && res.Status != spj.StatusSPJError {
			if res.Status == spj.StatusAC {
				return model.VerdictAC
			}
			return model.VerdictWA
		}
		// Checker unavailable or broken: the standard comparator keeps
		// judging alive.
		logger.Warn(ctx, "checker failed, using standard compare",
			zap.String("problem_id", problem.ID),
			zap.String("checker_message", res.Message),
			zap.Error(err))
	}

	ok := false
	switch mode {
	case model.JudgeModeStrict:
		ok = compare.Strict(tc.ExpectedOutput, actual)
	default:
		ok = compare.Standard(tc.ExpectedOutput, actual)
	}
	if ok {
		return model.VerdictAC
	}
	return model.VerdictWA
}

// pickExecutor returns the first available executor, honoring the
// container requirement.
func (s *JudgeService) pickExecutor() sandbox.Executor {
	for _, e := range s.executors {
		if !e.Available() {
			continue
		}
		if s.cfg.RequireContainer && e.Name() == "fallback" {
			return nil
		}
		return e
	}
	return nil
}

// failSubmission best-effort flips the submission to error.
func (s *JudgeService) failSubmission(ctx context.Context, sub *model.Submission, cause error) error {
	logger.Error(ctx, "judging failed",
		zap.String("submission_id", sub.SubmissionID),
		zap.Error(cause))
	sub.Status = model.StatusError
	if err := s.repo.Submissions.Update(ctx, sub); err != nil {
		logger.Error(ctx, "mark submission error failed",
			zap.String("submission_id", sub.SubmissionID),
			zap.Error(err))
	}
	return cause
}

// Package model defines the judge core data types: problems, languages,
// submissions, per-case outcomes, and submission logs.
package model

import (
	"encoding/json"
	"time"
)

// Verdict is the per-test-case outcome symbol.
type Verdict string

const (
	VerdictAC  Verdict = "AC"
	VerdictWA  Verdict = "WA"
	VerdictTLE Verdict = "TLE"
	VerdictMLE Verdict = "MLE"
	VerdictRE  Verdict = "RE"
	VerdictCE  Verdict = "CE"
	VerdictUNK Verdict = "UNK"
)

// JudgeMode selects the answer-checking policy for a problem.
type JudgeMode string

const (
	JudgeModeStandard JudgeMode = "standard"
	JudgeModeStrict   JudgeMode = "strict"
	JudgeModeSPJ      JudgeMode = "spj"
)

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	StatusPending SubmissionStatus = "pending"
	StatusSuccess SubmissionStatus = "success"
	StatusError   SubmissionStatus = "error"
)

// Judging defaults.
const (
	DefaultTimeLimitSeconds = 3.0
	DefaultMemoryLimitMB    = 128
	PointsPerCase           = 10
)

// TestCase is one input/expected-output pair. Newlines are significant.
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// Problem describes one judgeable problem.
type Problem struct {
	ID               string     `json:"id"`
	Title            string     `json:"title,omitempty"`
	TimeLimitSeconds float64    `json:"time_limit"`
	MemoryLimitMB    int        `json:"memory_limit"`
	TestCases        []TestCase `json:"testcases"`
	JudgeMode        JudgeMode  `json:"judge_mode,omitempty"`
}

// problemAlias breaks the UnmarshalJSON recursion.
type problemAlias Problem

// UnmarshalJSON reads the legacy "test_cases" key as an alias for
// "testcases".
func (p *Problem) UnmarshalJSON(data []byte) error {
	aux := struct {
		*problemAlias
		LegacyCases []TestCase `json:"test_cases"`
	}{problemAlias: (*problemAlias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(p.TestCases) == 0 && len(aux.LegacyCases) > 0 {
		p.TestCases = aux.LegacyCases
	}
	return nil
}

// Language is a language profile: how to materialize, compile, and run
// source code, plus its default limits.
type Language struct {
	Name             string  `json:"name"`
	FileExt          string  `json:"file_ext"`
	CompileCmd       string  `json:"compile_cmd,omitempty"`
	RunCmd           string  `json:"run_cmd"`
	TimeLimitSeconds float64 `json:"time_limit"`
	MemoryLimitMB    int     `json:"memory_limit"`
}

// Submission is one user submission. The orchestrator mutates it exactly
// once, from pending to a terminal state.
type Submission struct {
	SubmissionID string           `json:"submission_id"`
	UserID       string           `json:"user_id"`
	ProblemID    string           `json:"problem_id"`
	Language     string           `json:"language"`
	Code         string           `json:"code"`
	Status       SubmissionStatus `json:"status"`
	Score        int              `json:"score"`
	Counts       int              `json:"counts"`
	SubmitTime   string           `json:"submit_time"`
}

// NewSubmitTime formats a submission timestamp as ISO-8601.
func NewSubmitTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// TestCaseOutcome records the judged result of one test case.
type TestCaseOutcome struct {
	Index           int     `json:"index"`
	Verdict         Verdict `json:"verdict"`
	TimeUsedSeconds float64 `json:"time_used"`
	MemoryUsedMB    int     `json:"memory_used"`
	Input           string  `json:"input"`
	ExpectedOutput  string  `json:"expected_output"`
	ActualOutput    string  `json:"actual_output"`
}

// SubmissionLog is the immutable per-submission judging record. A rejudge
// replaces it atomically.
type SubmissionLog struct {
	SubmissionID string            `json:"submission_id"`
	UserID       string            `json:"user_id"`
	ProblemID    string            `json:"problem_id"`
	Language     string            `json:"language"`
	JudgedAt     string            `json:"judged_at"`
	Score        int               `json:"score"`
	Counts       int               `json:"counts"`
	Cases        []TestCaseOutcome `json:"cases"`
}

// CheckerLanguage is the declared language of a special-judge script.
type CheckerLanguage string

const (
	CheckerPython CheckerLanguage = "python"
	CheckerCpp    CheckerLanguage = "cpp"
)

// CheckerScript is a problem-supplied special judge.
type CheckerScript struct {
	ProblemID string          `json:"problem_id"`
	Language  CheckerLanguage `json:"language"`
	Source    []byte          `json:"source"`
}

// EffectiveTimeLimit resolves the time budget for judging: the problem's
// limit, then the language default, then the global default.
func EffectiveTimeLimit(p *Problem, lang *Language) float64 {
	if p != nil && p.TimeLimitSeconds > 0 {
		return p.TimeLimitSeconds
	}
	if lang != nil && lang.TimeLimitSeconds > 0 {
		return lang.TimeLimitSeconds
	}
	return DefaultTimeLimitSeconds
}

// EffectiveMemoryLimit resolves the memory budget in MiB.
func EffectiveMemoryLimit(p *Problem, lang *Language) int {
	if p != nil && p.MemoryLimitMB > 0 {
		return p.MemoryLimitMB
	}
	if lang != nil && lang.MemoryLimitMB > 0 {
		return lang.MemoryLimitMB
	}
	return DefaultMemoryLimitMB
}

// EffectiveJudgeMode defaults unknown modes to standard.
func EffectiveJudgeMode(p *Problem) JudgeMode {
	if p == nil {
		return JudgeModeStandard
	}
	switch p.JudgeMode {
	case JudgeModeStrict, JudgeModeSPJ:
		return p.JudgeMode
	default:
		return JudgeModeStandard
	}
}

// Package harness runs a program against an ordered list of test cases using
// the remote execution service.
//
// Cases run one at a time in index order. A failing call for one case is
// recorded on that case and the run moves on; it never aborts the run.
package harness

import (
	"context"
	"strings"

	"github.com/agnivade/levenshtein"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/execution"
	"github.com/jxucoder/codegrounds/internal/logx"
)

// ErrorOutput is recorded as the actual output of a case whose execution failed.
const ErrorOutput = "Error"

// Verdict is the outcome of a case's most recent run.
type Verdict string

const (
	VerdictUnknown Verdict = ""
	VerdictPassed  Verdict = "passed"
	VerdictFailed  Verdict = "failed"
)

// TestCase is one user-editable input/expected-output pair.
type TestCase struct {
	Input          string  `json:"input" yaml:"input"`
	ExpectedOutput string  `json:"expectedOutput" yaml:"expectedOutput"`
	Description    string  `json:"description,omitempty" yaml:"description,omitempty"`
	Verdict        Verdict `json:"verdict,omitempty" yaml:"-"`
}

// Blank reports whether the case has neither input nor expected output.
// Blank cases are skipped and do not count toward a run.
func (c TestCase) Blank() bool {
	return c.Input == "" && c.ExpectedOutput == ""
}

// FailureKind says why a case failed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureExecution FailureKind = "execution"
	FailureCompile   FailureKind = "compile"
	FailureMismatch  FailureKind = "mismatch"
)

// Result is the outcome of running one case.
type Result struct {
	Index    int         `json:"index"`
	Input    string      `json:"input"`
	Expected string      `json:"expected"`
	Actual   string      `json:"actual"`
	Passed   bool        `json:"passed"`
	Failure  FailureKind `json:"failure,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	// Distance is the edit distance between trimmed actual and expected output
	// for mismatches.
	Distance int `json:"distance,omitempty"`
}

// Program is the consistent snapshot of source a run executes.
type Program struct {
	Source   string
	Language string
	Version  string
	FileName string
}

// Report aggregates a result list.
type Report struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// AllPassed reports whether every counted case passed.
func (r Report) AllPassed() bool {
	return r.Total > 0 && r.Failed == 0
}

// Summarize derives the aggregate counts from results. It is recomputed from
// the list every time; there are no running counters.
func Summarize(results []Result) Report {
	var rep Report
	for _, r := range results {
		rep.Total++
		if r.Passed {
			rep.Passed++
		} else {
			rep.Failed++
		}
	}
	return rep
}

// Harness executes test cases against an Executor.
type Harness struct {
	exec execution.Executor
	log  pslog.Logger
}

// New creates a Harness. log may be nil.
func New(exec execution.Executor, log pslog.Logger) *Harness {
	return &Harness{exec: exec, log: logx.OrDiscard(log)}
}

// Run executes every non-blank case in index order. onResult, if non-nil, is
// called after each case with the result just produced.
//
// When ctx is cancelled Run stops before the next case, drops the case in
// flight and returns the results produced so far together with ctx.Err().
func (h *Harness) Run(ctx context.Context, prog Program, cases []TestCase, onResult func(Result)) ([]Result, error) {
	results := make([]Result, 0, len(cases))
	for i, tc := range cases {
		if tc.Blank() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		res, err := h.exec.Execute(ctx, execution.Request{
			Source:   prog.Source,
			Language: prog.Language,
			Version:  prog.Version,
			FileName: prog.FileName,
			Stdin:    tc.Input,
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results, ctxErr
		}

		r := evaluate(i, tc, res, err)
		if !r.Passed {
			h.log.Debug("test case failed", "case", i, "failure", string(r.Failure), "detail", r.Detail)
		}
		results = append(results, r)
		if onResult != nil {
			onResult(r)
		}
	}
	return results, nil
}

func evaluate(index int, tc TestCase, res *execution.Result, err error) Result {
	r := Result{Index: index, Input: tc.Input, Expected: tc.ExpectedOutput}
	switch {
	case err != nil:
		r.Actual = ErrorOutput
		r.Failure = FailureExecution
		r.Detail = err.Error()
	case !res.Compiled():
		r.Actual = ErrorOutput
		r.Failure = FailureCompile
		r.Detail = res.CompileError
	default:
		actual := strings.TrimSpace(res.Stdout)
		expected := strings.TrimSpace(tc.ExpectedOutput)
		r.Actual = actual
		r.Expected = expected
		r.Passed = actual == expected
		if !r.Passed {
			r.Failure = FailureMismatch
			r.Distance = levenshtein.ComputeDistance(actual, expected)
			if res.Stderr != "" {
				r.Detail = res.Stderr
			}
		}
	}
	return r
}

// ApplyVerdicts returns a copy of cases with verdicts refreshed from results,
// matched by index. Cases without a result keep VerdictUnknown.
func ApplyVerdicts(cases []TestCase, results []Result) []TestCase {
	out := make([]TestCase, len(cases))
	for i, tc := range cases {
		tc.Verdict = VerdictUnknown
		out[i] = tc
	}
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(out) {
			continue
		}
		if r.Passed {
			out[r.Index].Verdict = VerdictPassed
		} else {
			out[r.Index].Verdict = VerdictFailed
		}
	}
	return out
}

// Package playground implements the coding-session controller: one editor
// buffer with undo history, debounced streaming hints, single runs and test
// runs against the execution service, and the AI assist calls around them.
//
// A Session reads its source once when an operation starts, so edits made
// while a hint streams or a test run is in flight never change that
// operation's input.
package playground

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/assist"
	"github.com/jxucoder/codegrounds/internal/debounce"
	"github.com/jxucoder/codegrounds/internal/execution"
	"github.com/jxucoder/codegrounds/internal/harness"
	"github.com/jxucoder/codegrounds/internal/hint"
	"github.com/jxucoder/codegrounds/internal/history"
	"github.com/jxucoder/codegrounds/internal/language"
	"github.com/jxucoder/codegrounds/internal/logx"
	"github.com/jxucoder/codegrounds/internal/store"
)

var (
	ErrUnknownLanguage = errors.New("unknown language")
	ErrNoSuchTestCase  = errors.New("no such test case")
	ErrNoAssistant     = errors.New("AI assistant is not configured")
	ErrSessionClosed   = errors.New("session is closed")
	ErrTemplateCode    = errors.New("code is the untouched language template")
)

// RunRecorder stores the summary of a finished test run.
type RunRecorder interface {
	AddRun(ctx context.Context, r *store.Run) error
}

// Notifier is told about finished test runs.
type Notifier interface {
	NotifyTestsDone(ctx context.Context, summary RunSummary) error
}

// RunSummary describes a finished test run.
type RunSummary struct {
	SessionID        string         `json:"sessionId"`
	Language         string         `json:"language"`
	ProblemStatement string         `json:"problemStatement"`
	Report           harness.Report `json:"report"`
	Stopped          bool           `json:"stopped"`
}

// Deps are the collaborators shared by sessions. Only Executor and Hints are
// required.
type Deps struct {
	Executor  execution.Executor
	Hints     hint.Service
	Assistant assist.Assistant
	Runs      RunRecorder
	Notifier  Notifier
	Bus       *EventBus
	Logger    pslog.Logger
}

// Options configure a new session.
type Options struct {
	Language         string
	ProblemStatement string
	AIEnabled        bool
	HistoryCapacity  int
	Debounce         time.Duration
	HintTimeout      time.Duration
}

// Session is one coding session.
type Session struct {
	ID        string
	CreatedAt time.Time

	deps  Deps
	log   pslog.Logger
	bus   *EventBus
	delay time.Duration

	history  *history.Buffer
	debounce debounce.Scheduler
	hints    *hint.Client
	runner   *harness.Runner

	mu         sync.Mutex
	lang       language.Language
	problem    string
	aiEnabled  bool
	cases      []harness.TestCase
	results    []harness.Result
	testing    bool
	output     string
	complexity *assist.Complexity
	closed     bool
}

// NewSession creates a session holding the language's template.
func NewSession(deps Deps, opts Options) (*Session, error) {
	langID := opts.Language
	if langID == "" {
		langID = language.Default
	}
	lang, ok := language.Lookup(langID)
	if !ok {
		return nil, ErrUnknownLanguage
	}
	delay := opts.Debounce
	if delay <= 0 {
		delay = debounce.DefaultDelay
	}
	if deps.Bus == nil {
		deps.Bus = NewEventBus()
	}

	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		deps:      deps,
		bus:       deps.Bus,
		delay:     delay,
		history:   history.New(opts.HistoryCapacity),
		runner:    harness.NewRunner(harness.New(deps.Executor, deps.Logger)),
		lang:      lang,
		problem:   opts.ProblemStatement,
		aiEnabled: opts.AIEnabled,
		cases:     []harness.TestCase{{}},
	}
	s.log = logx.WithSession(logx.OrDiscard(deps.Logger), s.ID)
	s.hints = hint.NewClient(deps.Hints, hint.Options{
		Timeout:  opts.HintTimeout,
		Logger:   s.log,
		Observer: func(v hint.View) { s.publish(EventHint, v) },
	})
	s.hints.SetEnabled(opts.AIEnabled)
	s.history.Reset(lang.Template)
	return s, nil
}

func (s *Session) publish(t EventType, data any) {
	s.bus.Publish(s.ID, &Event{SessionID: s.ID, Type: t, Data: data, CreatedAt: time.Now().UTC()})
}

func (s *Session) logCtx(ctx context.Context) context.Context {
	return pslog.ContextWithLogger(ctx, s.log)
}

// CodeState is the editor buffer as seen by a UI.
type CodeState struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	CanUndo  bool   `json:"canUndo"`
	CanRedo  bool   `json:"canRedo"`
}

func (s *Session) codeStateLocked() CodeState {
	code, _ := s.history.Current()
	return CodeState{
		Code:     code,
		Language: s.lang.ID,
		CanUndo:  s.history.CanUndo(),
		CanRedo:  s.history.CanRedo(),
	}
}

// Code returns the current source.
func (s *Session) Code() string {
	code, _ := s.history.Current()
	return code
}

// Language returns the session's language.
func (s *Session) Language() language.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Edit records new source and re-arms the hint debounce.
func (s *Session) Edit(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.history.Push(code)
	s.publish(EventCode, s.codeStateLocked())
	s.scheduleHintLocked()
	return nil
}

func (s *Session) scheduleHintLocked() {
	if !s.aiEnabled || !hasText(s.problem) {
		s.debounce.Cancel()
		return
	}
	code := s.Code()
	s.debounce.Schedule(s.delay, func() { s.debouncedHint(code) })
}

// debouncedHint runs when the quiet period after the last edit elapses. code
// is the source of that edit; later undo or redo does not change it.
func (s *Session) debouncedHint(code string) {
	s.mu.Lock()
	if s.closed || !s.aiEnabled {
		s.mu.Unlock()
		return
	}
	if s.lang.IsTemplate(code) {
		s.mu.Unlock()
		s.log.Trace("skipping hint for untouched template")
		return
	}
	req := hint.Request{ProblemStatement: s.problem, Code: code, Language: s.lang.Name}
	s.mu.Unlock()

	if _, err := s.hints.Start(s.logCtx(context.Background()), req); err != nil {
		s.log.Debug("debounced hint not started", "err", err)
	}
}

// Undo steps back one edit. It reports false at the oldest edit.
func (s *Session) Undo() (CodeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.history.Undo()
	st := s.codeStateLocked()
	if ok {
		s.publish(EventCode, st)
	}
	return st, ok
}

// Redo steps forward one edit. It reports false at the newest edit.
func (s *Session) Redo() (CodeState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.history.Redo()
	st := s.codeStateLocked()
	if ok {
		s.publish(EventCode, st)
	}
	return st, ok
}

// SetProblemStatement replaces the problem statement.
func (s *Session) SetProblemStatement(problem string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.problem = problem
	if !hasText(problem) {
		s.debounce.Cancel()
	}
}

// ProblemStatement returns the current problem statement.
func (s *Session) ProblemStatement() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.problem
}

// SetAIEnabled toggles hints. Disabling drops any pending or active hint.
func (s *Session) SetAIEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiEnabled = enabled
	if !enabled {
		s.debounce.Cancel()
	}
	s.hints.SetEnabled(enabled)
}

// SetLanguage switches language. The buffer and its history restart from the
// language's template; output and the current hint are cleared and any
// in-flight test run is stopped.
func (s *Session) SetLanguage(id string) error {
	lang, ok := language.Lookup(id)
	if !ok {
		return ErrUnknownLanguage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lang = lang
	s.history.Reset(lang.Template)
	s.debounce.Cancel()
	s.hints.Reset()
	s.runner.Stop()
	s.output = ""
	s.publish(EventCode, s.codeStateLocked())
	s.publish(EventOutput, OutputState{})
	return nil
}

// RequestHint starts a hint for the current source outside the debounce. It
// returns hint.ErrSessionActive while another hint is still streaming and
// ErrTemplateCode while the source is the untouched template.
func (s *Session) RequestHint(ctx context.Context) (*hint.Session, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if !s.aiEnabled {
		s.mu.Unlock()
		return nil, hint.ErrDisabled
	}
	code := s.Code()
	if s.lang.IsTemplate(code) {
		s.mu.Unlock()
		return nil, ErrTemplateCode
	}
	req := hint.Request{ProblemStatement: s.problem, Code: code, Language: s.lang.Name}
	s.mu.Unlock()
	return s.hints.RequestManual(s.logCtx(ctx), req)
}

// Hint returns the current hint, if any.
func (s *Session) Hint() (hint.View, bool) {
	cur := s.hints.Current()
	if cur == nil {
		return hint.View{State: hint.StateIdle}, false
	}
	return cur.View(), true
}

// OutputState is the result of a single run.
type OutputState struct {
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration,omitempty"`
	Failed   bool          `json:"failed,omitempty"`
}

func (s *Session) program() harness.Program {
	return harness.Program{
		Source:   s.Code(),
		Language: s.lang.ID,
		Version:  s.lang.Version,
		FileName: s.lang.FileName(),
	}
}

// Run executes the current source once with stdin.
func (s *Session) Run(ctx context.Context, stdin string) (OutputState, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return OutputState{}, ErrSessionClosed
	}
	prog := s.program()
	s.mu.Unlock()

	started := time.Now()
	res, err := s.deps.Executor.Execute(s.logCtx(ctx), execution.Request{
		Source:   prog.Source,
		Language: prog.Language,
		Version:  prog.Version,
		FileName: prog.FileName,
		Stdin:    stdin,
	})
	out := OutputState{Output: execution.Display(res, err), Failed: err != nil}
	if err == nil {
		out.Duration = time.Since(started)
	} else {
		s.log.Warn("run failed", "err", err)
	}

	s.mu.Lock()
	s.output = out.Output
	s.mu.Unlock()
	s.publish(EventOutput, out)
	return out, nil
}

// Output returns the text of the last run.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output
}

// RunTests starts a test run over the current cases, stopping any run already
// in flight. Results are published as they arrive; the returned run can be
// waited on.
func (s *Session) RunTests(ctx context.Context) (*harness.Run, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	prog := s.program()
	cases := append([]harness.TestCase(nil), s.cases...)
	s.results = nil
	s.cases = harness.ApplyVerdicts(s.cases, nil)
	s.testing = true
	langID := s.lang.ID
	problem := s.problem

	runCtx := s.logCtx(context.WithoutCancel(ctx))
	run := s.runner.Start(runCtx, prog, cases, s.recordResult)
	s.mu.Unlock()

	go s.finishRun(runCtx, run, langID, problem)
	return run, nil
}

func (s *Session) recordResult(run *harness.Run, res harness.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.runner.IsCurrent(run) || run.Stopped() {
		return
	}
	s.results = append(s.results, res)
	s.cases = harness.ApplyVerdicts(s.cases, s.results)
	s.publish(EventTestResult, res)
}

func (s *Session) finishRun(ctx context.Context, run *harness.Run, langID, problem string) {
	<-run.Done()
	stopped := errors.Is(run.Err(), harness.ErrStopped)

	s.mu.Lock()
	current := s.runner.IsCurrent(run)
	if current {
		s.testing = false
	}
	s.mu.Unlock()
	if !current {
		return
	}

	summary := RunSummary{
		SessionID:        s.ID,
		Language:         langID,
		ProblemStatement: problem,
		Report:           run.Report(),
		Stopped:          stopped,
	}
	s.publish(EventTestsDone, summary)
	if stopped {
		return
	}
	s.log.Info("test run finished", "passed", summary.Report.Passed, "total", summary.Report.Total)

	if s.deps.Runs != nil {
		err := s.deps.Runs.AddRun(ctx, &store.Run{
			SessionID: s.ID,
			Language:  langID,
			Passed:    summary.Report.Passed,
			Failed:    summary.Report.Failed,
			Total:     summary.Report.Total,
		})
		if err != nil {
			s.log.Warn("recording test run failed", "err", err)
		}
	}
	if s.deps.Notifier != nil && summary.Report.Total > 0 {
		if err := s.deps.Notifier.NotifyTestsDone(ctx, summary); err != nil {
			s.log.Warn("test run notification failed", "err", err)
		}
	}
}

// StopTests stops the in-flight test run. Results produced so far are kept.
func (s *Session) StopTests() {
	s.runner.Stop()
}

// TestState is the test panel as seen by a UI.
type TestState struct {
	Cases   []harness.TestCase `json:"cases"`
	Results []harness.Result   `json:"results"`
	Report  harness.Report     `json:"report"`
	Running bool               `json:"running"`
}

// Tests returns the test cases and the latest results.
func (s *Session) Tests() TestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testStateLocked()
}

func (s *Session) testStateLocked() TestState {
	return TestState{
		Cases:   append([]harness.TestCase(nil), s.cases...),
		Results: append([]harness.Result(nil), s.results...),
		Report:  harness.Summarize(s.results),
		Running: s.testing,
	}
}

// AddTestCase appends a case and returns its index.
func (s *Session) AddTestCase(tc harness.TestCase) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc.Verdict = harness.VerdictUnknown
	s.cases = append(s.cases, tc)
	s.publish(EventTestCases, s.testStateLocked())
	return len(s.cases) - 1
}

// UpdateTestCase edits case i. The case's verdict and result are dropped and
// any in-flight run is stopped.
func (s *Session) UpdateTestCase(i int, input, expected string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.cases) {
		return ErrNoSuchTestCase
	}
	s.runner.Stop()
	s.cases[i].Input = input
	s.cases[i].ExpectedOutput = expected
	kept := s.results[:0:0]
	for _, r := range s.results {
		if r.Index != i {
			kept = append(kept, r)
		}
	}
	s.results = kept
	s.cases = harness.ApplyVerdicts(s.cases, s.results)
	s.publish(EventTestCases, s.testStateLocked())
	return nil
}

// RemoveTestCase deletes case i. Indices shift, so results are cleared and any
// in-flight run is stopped.
func (s *Session) RemoveTestCase(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.cases) {
		return ErrNoSuchTestCase
	}
	s.runner.Stop()
	s.cases = append(s.cases[:i:i], s.cases[i+1:]...)
	s.results = nil
	s.cases = harness.ApplyVerdicts(s.cases, nil)
	s.publish(EventTestCases, s.testStateLocked())
	return nil
}

// SetTestCases replaces every case, clearing results and stopping any
// in-flight run.
func (s *Session) SetTestCases(cases []harness.TestCase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTestCasesLocked(cases)
}

func (s *Session) setTestCasesLocked(cases []harness.TestCase) {
	s.runner.Stop()
	s.cases = harness.ApplyVerdicts(cases, nil)
	s.results = nil
	s.publish(EventTestCases, s.testStateLocked())
}

// Clear puts the template back as a new edit and clears output, hint,
// complexity and test results, stopping any in-flight test run. It does not
// arm the hint debounce.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Push(s.lang.Template)
	s.debounce.Cancel()
	s.hints.Reset()
	s.runner.Stop()
	s.output = ""
	s.complexity = nil
	s.results = nil
	s.cases = harness.ApplyVerdicts(s.cases, nil)
	s.publish(EventCode, s.codeStateLocked())
	s.publish(EventOutput, OutputState{})
	s.publish(EventTestCases, s.testStateLocked())
}

// Format re-indents the source and records it as an edit when it changed.
func (s *Session) Format() CodeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.Code()
	if formatted := language.Format(s.lang.ID, code); formatted != code {
		s.history.Push(formatted)
		s.publish(EventCode, s.codeStateLocked())
	}
	return s.codeStateLocked()
}

// Begin sets the problem statement and replaces the test cases with ones
// generated for it. When generation fails the existing cases are kept and the
// error is returned.
func (s *Session) Begin(ctx context.Context, problem string) ([]harness.TestCase, error) {
	s.SetProblemStatement(problem)
	if s.deps.Assistant == nil {
		return nil, ErrNoAssistant
	}
	langName := s.Language().Name

	cases, err := s.deps.Assistant.GenerateTestCases(s.logCtx(ctx), problem, langName)
	if err != nil {
		s.log.Warn("generating test cases failed", "err", err)
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTestCasesLocked(cases)
	return append([]harness.TestCase(nil), s.cases...), nil
}

// AnalyzeComplexity estimates the complexity of the current source.
func (s *Session) AnalyzeComplexity(ctx context.Context) (*assist.Complexity, error) {
	if s.deps.Assistant == nil {
		return nil, ErrNoAssistant
	}
	s.mu.Lock()
	code, langName := s.Code(), s.lang.Name
	s.mu.Unlock()

	c, err := s.deps.Assistant.AnalyzeComplexity(s.logCtx(ctx), code, langName)
	if err != nil {
		s.log.Warn("complexity analysis failed", "err", err)
		return nil, err
	}

	s.mu.Lock()
	s.complexity = c
	s.mu.Unlock()
	s.publish(EventComplexity, c)
	return c, nil
}

// File returns the session contents as an unsaved file record.
func (s *Session) File(name string) *store.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &store.File{
		Name:             name,
		Language:         s.lang.ID,
		Code:             s.Code(),
		ProblemStatement: s.problem,
	}
}

// Open loads a saved file and stops any in-flight test run. History restarts
// from the file's code. A file without a problem statement keeps the current
// one.
func (s *Session) Open(f *store.File) error {
	lang, ok := language.Lookup(f.Language)
	if !ok {
		return ErrUnknownLanguage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lang = lang
	s.history.Reset(f.Code)
	s.debounce.Cancel()
	s.hints.Reset()
	s.runner.Stop()
	if f.ProblemStatement != "" {
		s.problem = f.ProblemStatement
	}
	s.output = ""
	s.publish(EventCode, s.codeStateLocked())
	return nil
}

// State is a full snapshot of a session.
type State struct {
	ID               string             `json:"id"`
	CreatedAt        time.Time          `json:"createdAt"`
	Language         language.Language  `json:"language"`
	Code             CodeState          `json:"code"`
	ProblemStatement string             `json:"problemStatement"`
	AIEnabled        bool               `json:"aiEnabled"`
	Hint             hint.View          `json:"hint"`
	Output           string             `json:"output"`
	Tests            TestState          `json:"tests"`
	Complexity       *assist.Complexity `json:"complexity,omitempty"`
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	h, _ := s.Hint()
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:               s.ID,
		CreatedAt:        s.CreatedAt,
		Language:         s.lang,
		Code:             s.codeStateLocked(),
		ProblemStatement: s.problem,
		AIEnabled:        s.aiEnabled,
		Hint:             h,
		Output:           s.output,
		Tests:            s.testStateLocked(),
		Complexity:       s.complexity,
	}
}

// Close stops timers and background work. It is safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.debounce.Cancel()
	s.runner.Stop()
	s.mu.Unlock()

	s.hints.Close()
	s.publish(EventClosed, nil)
	s.bus.CloseSession(s.ID)
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}

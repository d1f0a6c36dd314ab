package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jxucoder/codegrounds/internal/language"
	"github.com/jxucoder/codegrounds/internal/playground"
)

// --- Request/Response types ---

type createSessionRequest struct {
	Language         string `json:"language"`
	ProblemStatement string `json:"problemStatement"`
	AIEnabled        *bool  `json:"aiEnabled,omitempty"`
}

type editRequest struct {
	Code string `json:"code"`
}

type problemRequest struct {
	ProblemStatement string `json:"problemStatement"`
}

type languageRequest struct {
	Language string `json:"language"`
}

type aiRequest struct {
	Enabled bool `json:"enabled"`
}

type runRequest struct {
	Stdin string `json:"stdin"`
}

type testCaseRequest struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	Description    string `json:"description,omitempty"`
}

type saveRequest struct {
	Name string `json:"name"`
}

type historyResponse struct {
	playground.CodeState
	Changed bool `json:"changed"`
}

// --- Handlers ---

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, language.All())
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*playground.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	sess, err := s.sessions.Create(playground.Options{
		Language:         req.Language,
		ProblemStatement: req.ProblemStatement,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.AIEnabled != nil {
		sess.SetAIEnabled(*req.AIEnabled)
	}
	s.log.Info("session created", "session", sess.ID, "language", sess.Language().ID)
	writeJSON(w, http.StatusCreated, sess.State())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	out := make([]playground.State, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.State())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.Edit(req.Code); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State().Code)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st, changed := sess.Undo()
	writeJSON(w, http.StatusOK, historyResponse{CodeState: st, Changed: changed})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st, changed := sess.Redo()
	writeJSON(w, http.StatusOK, historyResponse{CodeState: st, Changed: changed})
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Format())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Clear()
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleSetProblem(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req problemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.SetProblemStatement(req.ProblemStatement)
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req languageRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.SetLanguage(req.Language); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleSetAI(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req aiRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.SetAIEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req problemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ProblemStatement == "" {
		writeError(w, http.StatusBadRequest, "problemStatement is required")
		return
	}
	if _, err := sess.Begin(r.Context(), req.ProblemStatement); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Tests())
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	hs, err := sess.RequestHint(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, hs.View())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req runRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	out, err := sess.Run(r.Context(), req.Stdin)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleComplexity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	c, err := sess.AnalyzeComplexity(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetTests(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Tests())
}

// handleRunTests starts a test run. With ?wait=true it responds once the run
// finishes.
func (s *Server) handleRunTests(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	run, err := sess.RunTests(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
		writeJSON(w, http.StatusAccepted, sess.Tests())
		return
	}
	if _, err := run.Wait(r.Context()); err != nil {
		s.log.Debug("test run ended early", "session", sess.ID, "err", err)
	}
	writeJSON(w, http.StatusOK, sess.Tests())
}

func (s *Server) handleStopTests(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.StopTests()
	writeJSON(w, http.StatusOK, sess.Tests())
}

func (s *Server) handleSetTestCases(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req []testCaseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.SetTestCases(harnessCases(req))
	writeJSON(w, http.StatusOK, sess.Tests())
}

func (s *Server) handleAddTestCase(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req testCaseRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	sess.AddTestCase(harnessCases([]testCaseRequest{req})[0])
	writeJSON(w, http.StatusCreated, sess.Tests())
}

func testCaseIndex(r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	return i, err == nil
}

func (s *Server) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	i, ok := testCaseIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid test case index")
		return
	}
	var req testCaseRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.UpdateTestCase(i, req.Input, req.ExpectedOutput); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Tests())
}

func (s *Server) handleRemoveTestCase(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	i, ok := testCaseIndex(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid test case index")
		return
	}
	if err := sess.RemoveTestCase(i); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Tests())
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req saveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	f := sess.File(req.Name)
	if err := s.store.CreateFile(r.Context(), f); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

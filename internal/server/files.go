package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jxucoder/codegrounds/internal/language"
	"github.com/jxucoder/codegrounds/internal/store"
)

type createFileRequest struct {
	Name             string `json:"name"`
	Language         string `json:"language"`
	Code             string `json:"code"`
	ProblemStatement string `json:"problemStatement"`
}

type openFileRequest struct {
	SessionID string `json:"sessionId"`
}

type shareResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if files == nil {
		files = []*store.File{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, ok := language.Lookup(req.Language); !ok {
		writeError(w, http.StatusBadRequest, "unknown language")
		return
	}
	f := &store.File{
		Name:             req.Name,
		Language:         req.Language,
		Code:             req.Code,
		ProblemStatement: req.ProblemStatement,
	}
	if err := s.store.CreateFile(r.Context(), f); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFile(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpenFile(w http.ResponseWriter, r *http.Request) {
	var req openFileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := s.store.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := sess.Open(f); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleShareFile(w http.ResponseWriter, r *http.Request) {
	if s.sharer == nil {
		writeError(w, http.StatusNotImplemented, "sharing is not configured")
		return
	}
	f, err := s.store.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	link, err := s.sharer.ShareFile(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Info("file shared", "file", f.ID, "url", link)
	writeJSON(w, http.StatusOK, shareResponse{URL: link})
}

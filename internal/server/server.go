// Package server provides the codegrounds HTTP API server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"pkt.systems/pslog"

	"github.com/jxucoder/codegrounds/internal/assist"
	"github.com/jxucoder/codegrounds/internal/config"
	"github.com/jxucoder/codegrounds/internal/execution"
	"github.com/jxucoder/codegrounds/internal/github"
	"github.com/jxucoder/codegrounds/internal/harness"
	"github.com/jxucoder/codegrounds/internal/hint"
	"github.com/jxucoder/codegrounds/internal/logx"
	"github.com/jxucoder/codegrounds/internal/playground"
	cgslack "github.com/jxucoder/codegrounds/internal/slack"
	"github.com/jxucoder/codegrounds/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Sharer publishes a saved file and returns a link to it.
type Sharer interface {
	ShareFile(ctx context.Context, f *store.File) (string, error)
}

// Deps are the server's collaborators.
type Deps struct {
	Sessions *playground.Manager
	Store    *store.Store
	Sharer   Sharer // nil disables sharing
	Logger   pslog.Logger
}

// Server is the codegrounds HTTP API server.
type Server struct {
	addr     string
	sessions *playground.Manager
	store    *store.Store
	sharer   Sharer
	log      pslog.Logger
	router   chi.Router
}

// New creates a Server with all dependencies built from cfg.
func New(cfg *config.Config, log pslog.Logger) (*Server, error) {
	log = logx.OrDiscard(log)
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	deps := playground.Deps{
		Executor:  execution.NewClient(cfg.Execution.URL, cfg.Execution.Timeout),
		Hints:     hint.NewHTTPService(cfg.AI.BaseURL, cfg.AI.Token),
		Assistant: assist.NewClient(cfg.AI.BaseURL, cfg.AI.Token, cfg.AI.Timeout),
		Runs:      st,
		Logger:    log,
	}
	if cfg.SlackEnabled() {
		deps.Notifier = cgslack.NewNotifier(cfg.Slack.BotToken, cfg.Slack.Channel, log)
		log.Info("slack reports enabled", "channel", cfg.Slack.Channel)
	}

	var sharer Sharer
	if cfg.GitHubEnabled() {
		sharer = github.NewClient(cfg.GitHub.Token)
		log.Info("gist sharing enabled")
	}

	manager := playground.NewManager(deps, playground.Options{
		AIEnabled:       cfg.Hint.Enabled,
		HistoryCapacity: cfg.History.Capacity,
		Debounce:        cfg.Hint.Debounce,
		HintTimeout:     cfg.AI.Timeout,
	})

	s := NewWithDeps(cfg.Server.Addr, Deps{
		Sessions: manager,
		Store:    st,
		Sharer:   sharer,
		Logger:   log,
	})
	return s, nil
}

// NewWithDeps creates a Server over existing collaborators.
func NewWithDeps(addr string, deps Deps) *Server {
	s := &Server{
		addr:     addr,
		sessions: deps.Sessions,
		store:    deps.Store,
		sharer:   deps.Sharer,
		log:      logx.OrDiscard(deps.Logger),
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves HTTP until ctx is cancelled, then closes every session and the
// store.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:     s.addr,
		Handler:  s.router,
		ErrorLog: pslog.LogLoggerWithLevel(s.log, pslog.ErrorLevel),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("codegrounds server listening", "addr", s.addr)
	err := srv.ListenAndServe()
	s.sessions.CloseAll()
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/languages", s.handleLanguages)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)

			r.Route("/{id}", func(r chi.Router) {
				// Streams must not be cut off by the request timeout.
				r.Get("/events", s.handleSessionEvents)
				r.Get("/ws", s.handleWebSocket)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(2 * time.Minute))
					r.Get("/", s.handleGetSession)
					r.Delete("/", s.handleDeleteSession)

					r.Post("/edit", s.handleEdit)
					r.Post("/undo", s.handleUndo)
					r.Post("/redo", s.handleRedo)
					r.Post("/format", s.handleFormat)
					r.Post("/clear", s.handleClear)

					r.Put("/problem", s.handleSetProblem)
					r.Put("/language", s.handleSetLanguage)
					r.Put("/ai", s.handleSetAI)

					r.Post("/begin", s.handleBegin)
					r.Post("/hint", s.handleHint)
					r.Post("/run", s.handleRun)
					r.Post("/complexity", s.handleComplexity)

					r.Get("/tests", s.handleGetTests)
					r.Post("/tests", s.handleRunTests)
					r.Delete("/tests", s.handleStopTests)

					r.Put("/testcases", s.handleSetTestCases)
					r.Post("/testcases", s.handleAddTestCase)
					r.Put("/testcases/{index}", s.handleUpdateTestCase)
					r.Delete("/testcases/{index}", s.handleRemoveTestCase)

					r.Post("/save", s.handleSaveSession)
				})
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(middleware.Timeout(time.Minute))
			r.Get("/", s.handleListFiles)
			r.Post("/", s.handleCreateFile)
			r.Get("/{id}", s.handleGetFile)
			r.Delete("/{id}", s.handleDeleteFile)
			r.Post("/{id}/open", s.handleOpenFile)
			r.Post("/{id}/share", s.handleShareFile)
		})
	})

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, playground.ErrSessionNotFound), errors.Is(err, store.ErrNotFound),
		errors.Is(err, playground.ErrNoSuchTestCase):
		return http.StatusNotFound
	case errors.Is(err, playground.ErrUnknownLanguage), errors.Is(err, playground.ErrTemplateCode),
		errors.Is(err, hint.ErrMissingProblem), errors.Is(err, hint.ErrMissingSource):
		return http.StatusBadRequest
	case errors.Is(err, hint.ErrSessionActive), errors.Is(err, hint.ErrDisabled),
		errors.Is(err, playground.ErrSessionClosed):
		return http.StatusConflict
	case errors.Is(err, playground.ErrNoAssistant), errors.Is(err, github.ErrNoToken):
		return http.StatusNotImplemented
	case errors.Is(err, assist.ErrUnsuccessful):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, err.Error())
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// harnessCases converts request cases, dropping client-supplied verdicts.
func harnessCases(in []testCaseRequest) []harness.TestCase {
	out := make([]harness.TestCase, len(in))
	for i, tc := range in {
		out[i] = harness.TestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput, Description: tc.Description}
	}
	return out
}

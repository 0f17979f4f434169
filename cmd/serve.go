package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
	"github.com/danyelajunebrown/reparations-pipeline/internal/tracker"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the contribution pipeline HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/sessions", env.handleCreateSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", env.handleGetSession)
				r.Delete("/", env.handleAbandonSession)
				r.Post("/analyze", env.handleAnalyze)
				r.Post("/describe", env.handleDescribe)
				r.Post("/confirm", env.handleConfirm)
				r.Post("/extract", env.handleStartExtraction)
				r.Post("/finalize", env.handleFinalize)
				r.Post("/chat", env.handleChat)
			})
			r.Route("/jobs/{id}", func(r chi.Router) {
				r.Get("/", env.handleJobStatus)
				r.Post("/corrections", env.handleCorrections)
				r.Post("/report", env.handleReport)
				r.Post("/promote", env.handlePromoteJob)
			})
			r.Post("/leads/{id}/promote", env.handlePromoteLead)
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func (pe *pipelineEnv) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL           string `json:"url"`
		ContributorID string `json:"contributor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	sess, err := pe.Sessions.CreateSession(r.Context(), req.URL, req.ContributorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (pe *pipelineEnv) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := pe.Sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (pe *pipelineEnv) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	if err := pe.Sessions.Abandon(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

func (pe *pipelineEnv) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	reply, err := pe.Sessions.AnalyzeURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (pe *pipelineEnv) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	reply, err := pe.Sessions.ProcessDescription(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (pe *pipelineEnv) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Confirmed   bool                 `json:"confirmed"`
		Corrections map[int]model.Column `json:"corrections,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	reply, err := pe.Sessions.ConfirmStructure(r.Context(), chi.URLParam(r, "id"), req.Confirmed, req.Corrections)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (pe *pipelineEnv) handleStartExtraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method  model.ExtractionMethod `json:"method"`
		Options map[string]any         `json:"options,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	reply, err := pe.Sessions.StartExtraction(r.Context(), chi.URLParam(r, "id"), req.Method, req.Options)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (pe *pipelineEnv) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	reply, err := pe.Sessions.Chat(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (pe *pipelineEnv) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, r, model.NewValidationError("session_id query parameter is required"))
		return
	}
	includeDebug := r.URL.Query().Get("debug") == "true"

	status, err := pe.Tracker.GetStatus(r.Context(), chi.URLParam(r, "id"), sessionID, includeDebug)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (pe *pipelineEnv) handleCorrections(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Corrections []model.Correction `json:"corrections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	applied, err := pe.Tracker.SubmitCorrections(r.Context(), chi.URLParam(r, "id"), req.Corrections)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"applied": applied})
}

func (pe *pipelineEnv) handleReport(w http.ResponseWriter, r *http.Request) {
	var report tracker.Report
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	job, err := pe.Tracker.ApplyReport(r.Context(), chi.URLParam(r, "id"), report)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if job.Status == model.JobCompleted {
		if err := pe.Sessions.BeginReview(r.Context(), job.SessionID); err != nil {
			zap.L().Warn("session review transition failed",
				zap.String("session_id", job.SessionID),
				zap.Error(err),
			)
		}
	}
	writeJSON(w, http.StatusOK, job)
}

func (pe *pipelineEnv) handleFinalize(w http.ResponseWriter, r *http.Request) {
	reply, err := pe.Sessions.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (pe *pipelineEnv) handlePromoteJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Channel   string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	result, err := pe.Promoter.PromoteFromJob(r.Context(), req.SessionID, chi.URLParam(r, "id"), req.Channel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (pe *pipelineEnv) handlePromoteLead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reviewer string `json:"reviewer"`
		Channel  string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.NewValidationError("invalid request body"))
		return
	}
	outcome, err := pe.Promoter.PromoteByID(r.Context(), chi.URLParam(r, "id"), req.Reviewer, req.Channel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP status codes. Internal failures
// return a generic message plus the request id for log correlation; the
// error detail stays in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case model.IsValidation(err):
		status = http.StatusBadRequest
	case model.IsNotFound(err):
		status = http.StatusNotFound
	case model.IsRejection(err):
		status = http.StatusUnprocessableEntity
	}

	var upstream *model.UpstreamFetchError
	if errors.As(err, &upstream) {
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		reqID := middleware.GetReqID(r.Context())
		zap.L().Error("request failed",
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		writeJSON(w, status, map[string]string{
			"error":      "internal error",
			"request_id": reqID,
		})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Session handlers for the /v1/session routes.
// ============================================================

// createSessionHandler exchanges an upstream login response for a BFF
// session. This is the only unauthenticated endpoint besides the
// operational ones.
func createSessionHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session")
		defer span.End()

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}

		handle, err := sessions.Create(ctx, json.RawMessage(body))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, handle)
	}
}

func getSessionHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil {
			writeError(w, http.StatusUnauthorized, "no session")
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

func updateDisplayHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/session/display")
		defer span.End()

		session := SessionFromContext(ctx)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "no session")
			return
		}

		var req struct {
			FirstName      string `json:"firstName"`
			ProfilePicture string `json:"profilePicture"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.FirstName == "" {
			req.FirstName = session.FirstName
		}
		if req.ProfilePicture == "" {
			req.ProfilePicture = session.ProfilePicture
		}

		if err := sessions.UpdateDisplay(ctx, session.ID, req.FirstName, req.ProfilePicture); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		session.FirstName = req.FirstName
		session.ProfilePicture = req.ProfilePicture
		writeJSON(w, http.StatusOK, session)
	}
}

// markDashboardVisitedHandler flips the one-shot welcome flag.
func markDashboardVisitedHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session := SessionFromContext(ctx)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "no session")
			return
		}
		if err := sessions.MarkDashboardVisited(ctx, session.ID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// stageAgreementHandler accepts a multipart financial-agreement upload
// and stages it in the session for the next facility creation.
func stageAgreementHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session/agreement")
		defer span.End()

		session := SessionFromContext(ctx)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "no session")
			return
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read uploaded file")
			return
		}

		upload := &domain.AgreementUpload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Content:     content,
		}
		if err := sessions.StageAgreement(ctx, session.ID, upload); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"fileName": upload.FileName,
			"staged":   true,
		})
	}
}

func deleteSessionHandler(sessions *service.SessionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session := SessionFromContext(ctx)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "no session")
			return
		}
		if err := sessions.Delete(ctx, session.ID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Utility authorization
// GET  /v1/utilities
// GET  /v1/utilities/authorization?provider=
// POST /v1/users/{userId}/utilities/green-button
// POST /v1/users/{userId}/utilities/refresh
// ============================================================

func listProvidersHandler(utilities *service.UtilityAuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"providers": utilities.Providers()})
	}
}

func authorizationBranchHandler(utilities *service.UtilityAuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var zoom float64
		if raw := r.URL.Query().Get("zoom"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "zoom must be a number")
				return
			}
			zoom = parsed
		}
		branch, err := utilities.BranchFor(r.URL.Query().Get("provider"), zoom)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, branch)
	}
}

func greenButtonHandler(utilities *service.UtilityAuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/utilities/green-button")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var sub domain.GreenButtonSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := utilities.SubmitGreenButton(ctx, service.Credentials(session), &sub)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// greenButtonRetryHandler redoes only the email-record step after a
// partial submit.
func greenButtonRetryHandler(utilities *service.UtilityAuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/utilities/green-button/email")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := utilities.RetryGreenButtonEmail(ctx, service.Credentials(session), req.Email); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// refreshMetersHandler re-evaluates the stage after an iframe
// authorization completes.
func refreshMetersHandler(utilities *service.UtilityAuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/utilities/refresh")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		result, err := utilities.RefreshMeters(ctx, service.Credentials(session))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

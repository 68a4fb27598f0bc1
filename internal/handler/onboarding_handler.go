package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Onboarding stage + wizard
// GET /v1/users/{userId}/onboarding/stage
// GET /v1/users/{userId}/onboarding/resume
// POST /v1/users/{userId}/onboarding/next
// ============================================================

func getStageHandler(stages *service.StageService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/onboarding/stage")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}
		span.SetAttributes(attribute.String("user.id", session.UserID))

		result, err := stages.Evaluate(ctx, service.Credentials(session))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func resumeHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/onboarding/resume")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		role := domain.CommercialRole(r.URL.Query().Get("role"))
		kind := domain.FacilityKind(r.URL.Query().Get("kind"))
		if kind == "" {
			kind = domain.KindCommercial
		}

		step, stage, err := onboarding.ResumeStep(ctx, service.Credentials(session), role, kind)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"step":  step,
			"stage": stage,
		})
	}
}

func nextStepHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var req struct {
			Current domain.WizardStep     `json:"current"`
			Role    domain.CommercialRole `json:"role"`
			Kind    domain.FacilityKind   `json:"kind"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Kind == "" {
			req.Kind = domain.KindCommercial
		}

		next, err := onboarding.NextStep(req.Current, req.Role, req.Kind)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"step": next})
	}
}

// ============================================================
// Registration writes
// PUT /v1/users/{userId}/role
// PUT /v1/users/{userId}/owner-details
// PUT /v1/users/{userId}/terms
// PUT /v1/users/{userId}/financial-info
// POST /v1/users/{userId}/operators/invite
// ============================================================

func getRegistrationHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}
		user, err := onboarding.Profile(ctx, service.Credentials(session))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if user == nil {
			writeError(w, http.StatusNotFound, "registration not started")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func updateRoleHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/role")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var req struct {
			CommercialRole domain.CommercialRole `json:"commercialRole"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := onboarding.UpdateRole(ctx, service.Credentials(session), req.CommercialRole); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commercialRole": req.CommercialRole})
	}
}

func ownerDetailsHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/owner-details")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var details domain.OwnerDetails
		if err := json.NewDecoder(r.Body).Decode(&details); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := onboarding.SaveOwnerDetails(ctx, service.Credentials(session), &details); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func acceptTermsHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/terms")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var req struct {
			SignatureName string `json:"signatureName"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := onboarding.AcceptTerms(ctx, service.Credentials(session), req.SignatureName); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func financialInfoHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/users/{userId}/financial-info")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var info domain.FinancialInfo
		if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := onboarding.SaveFinancialInfo(ctx, service.Credentials(session), &info); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func inviteOperatorHandler(onboarding *service.OnboardingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/operators/invite")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		var invite domain.OperatorInvite
		if err := json.NewDecoder(r.Body).Decode(&invite); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := onboarding.InviteOperator(ctx, service.Credentials(session), &invite); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invited": invite.Email})
	}
}

package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Facilities
// GET  /v1/users/{userId}/facilities
// POST /v1/users/{userId}/facilities
// PUT  /v1/facilities/{facilityId}/financial-agreement
// ============================================================

func listFacilitiesHandler(facilities *service.FacilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/users/{userId}/facilities")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}

		list, err := facilities.List(ctx, service.Credentials(session))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"facilities": list})
	}
}

func createFacilityHandler(facilities *service.FacilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/users/{userId}/facilities")
		defer span.End()

		session := requireUserMatch(w, r, chi.URLParam(r, "userId"), logger)
		if session == nil {
			return
		}
		span.SetAttributes(attribute.String("user.id", session.UserID))

		var form domain.FacilityForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := facilities.Create(ctx, service.Credentials(session), session.ID, &form)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		// 201 even when the agreement attach failed: the facility exists.
		writeJSON(w, http.StatusCreated, result)
	}
}

// attachAgreementHandler is the retry path after a partial create.
func attachAgreementHandler(facilities *service.FacilityService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/facilities/{facilityId}/financial-agreement")
		defer span.End()

		session := SessionFromContext(ctx)
		if session == nil {
			writeError(w, http.StatusUnauthorized, "no session")
			return
		}
		facilityID := chi.URLParam(r, "facilityId")
		if facilityID == "" {
			writeError(w, http.StatusBadRequest, "facility id is required")
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
		if err := facilities.AttachAgreement(ctx, service.Credentials(session), facilityID, upload); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

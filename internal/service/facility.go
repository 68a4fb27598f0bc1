package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var facilityTracer = otel.Tracer("service/facility")

// FacilityService lists and creates facilities and attaches staged
// financial agreements.
type FacilityService struct {
	upstream port.OnboardingStore
	sessions port.SessionStore
	stages   *StageService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewFacilityService(upstream port.OnboardingStore, sessions port.SessionStore, stages *StageService, metrics *observability.Metrics, logger *zap.Logger) *FacilityService {
	return &FacilityService{
		upstream: upstream,
		sessions: sessions,
		stages:   stages,
		metrics:  metrics,
		logger:   logger,
	}
}

// List returns the user's facilities.
func (s *FacilityService) List(ctx context.Context, creds port.Credentials) ([]domain.Facility, error) {
	return s.upstream.ListFacilities(ctx, creds)
}

// CreateResult is the facility-creation outcome. AttachmentError is set
// when the facility was created but the staged financial agreement could
// not be attached; the facility itself is committed either way.
type CreateResult struct {
	Facility        *domain.Facility `json:"facility"`
	AttachmentError string           `json:"attachmentError,omitempty"`
}

// Create validates the form, creates the facility upstream and then, if
// the session has a staged agreement, attaches it in a second call. The
// two calls are not atomic: a failed attach still returns the created
// facility, with the error surfaced so the dashboard can offer a retry.
func (s *FacilityService) Create(ctx context.Context, creds port.Credentials, sessionID string, form *domain.FacilityForm) (*CreateResult, error) {
	ctx, span := facilityTracer.Start(ctx, "FacilityService.Create")
	defer span.End()

	staged, err := s.sessions.TakeStagedAgreement(ctx, sessionID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read staged agreement: %w", err)
		}
		staged = nil
	}

	form.AgreementStaged = staged != nil
	if !form.CanSubmit() {
		// Put the consumed document back so a corrected resubmit still
		// finds it.
		if staged != nil {
			if err := s.sessions.StageAgreement(ctx, sessionID, staged); err != nil {
				s.logger.Warn("could not re-stage agreement after validation failure", zap.Error(err))
			}
		}
		return nil, &domain.ErrValidation{
			Field:   "form",
			Message: "all fields are required, and non-cash financing needs an agreement document",
		}
	}

	facility, err := s.upstream.CreateFacility(ctx, creds, form)
	if err != nil {
		// Restore the consumed document so a retry of the same
		// submission still has it.
		if staged != nil {
			if restageErr := s.sessions.StageAgreement(ctx, sessionID, staged); restageErr != nil {
				s.logger.Warn("could not re-stage agreement after create failure", zap.Error(restageErr))
			}
		}
		return nil, fmt.Errorf("create facility: %w", err)
	}
	s.stages.Invalidate(creds.UserID)
	s.logger.Info("facility created",
		zap.String("user_id", creds.UserID),
		zap.String("facility_id", facility.ID),
	)

	result := &CreateResult{Facility: facility}
	if staged != nil {
		if err := s.upstream.AttachFinancialAgreement(ctx, creds, facility.ID, staged); err != nil {
			s.logger.Error("financial agreement attach failed after facility create",
				zap.String("facility_id", facility.ID),
				zap.Error(err),
			)
			s.metrics.IncrUpstreamError("attach_financial_agreement")
			result.AttachmentError = fmt.Sprintf("facility %s created, but the financial agreement was not attached", facility.ID)
		}
	}
	return result, nil
}

// AttachAgreement attaches a document to an existing facility. This is
// the retry path after a partial create.
func (s *FacilityService) AttachAgreement(ctx context.Context, creds port.Credentials, facilityID string, upload *domain.AgreementUpload) error {
	ctx, span := facilityTracer.Start(ctx, "FacilityService.AttachAgreement")
	defer span.End()

	if err := domain.ValidateAgreementUpload(*upload); err != nil {
		return err
	}
	if err := s.upstream.AttachFinancialAgreement(ctx, creds, facilityID, upload); err != nil {
		return fmt.Errorf("attach financial agreement: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/utility"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var utilityTracer = otel.Tracer("service/utilityauth")

// UtilityAuthService decides the authorization branch for a utility
// provider and runs the Green Button email sequence.
type UtilityAuthService struct {
	upstream port.OnboardingStore
	catalog  *utility.Catalog
	stages   *StageService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewUtilityAuthService(upstream port.OnboardingStore, catalog *utility.Catalog, stages *StageService, metrics *observability.Metrics, logger *zap.Logger) *UtilityAuthService {
	return &UtilityAuthService{
		upstream: upstream,
		catalog:  catalog,
		stages:   stages,
		metrics:  metrics,
		logger:   logger,
	}
}

// Providers lists the catalog's provider names for the selection dropdown.
func (s *UtilityAuthService) Providers() []string {
	return s.catalog.Names()
}

// Branch is what the authorization step renders for a provider: either
// the Green Button email form or an embedded iframe of the provider's
// authorization page with zoom controls.
type Branch struct {
	Provider    string  `json:"provider"`
	GreenButton bool    `json:"greenButton"`
	AuthURL     string  `json:"authUrl,omitempty"`
	Zoom        float64 `json:"zoom,omitempty"`
	ZoomMin     float64 `json:"zoomMin,omitempty"`
	ZoomMax     float64 `json:"zoomMax,omitempty"`
	ZoomStep    float64 `json:"zoomStep,omitempty"`
}

// BranchFor resolves a provider name to its authorization branch. The
// Green Button match is exact and case sensitive; everything else goes
// through the iframe with the provider's (or the fallback) URL. The
// requested zoom is snapped to the step grid inside the bounds; zero
// means no preference and renders at 1.0.
func (s *UtilityAuthService) BranchFor(provider string, zoom float64) (*Branch, error) {
	if provider == "" {
		return nil, &domain.ErrValidation{Field: "provider", Message: "provider is required"}
	}
	if s.catalog.IsGreenButton(provider) {
		return &Branch{Provider: provider, GreenButton: true}, nil
	}
	if zoom == 0 {
		zoom = 1.0
	}
	return &Branch{
		Provider: provider,
		AuthURL:  s.catalog.AuthURL(provider),
		Zoom:     utility.ClampZoom(zoom),
		ZoomMin:  utility.ZoomMin,
		ZoomMax:  utility.ZoomMax,
		ZoomStep: utility.ZoomStep,
	}, nil
}

// SubmitGreenButton runs the two-call Green Button sequence: enqueue the
// authorization, then record the email against the user. The calls are
// not atomic; when the second fails the enqueue id is surfaced in an
// ErrPartialSuccess so the record step can be retried without a second
// enqueue.
func (s *UtilityAuthService) SubmitGreenButton(ctx context.Context, creds port.Credentials, sub *domain.GreenButtonSubmission) (*domain.GreenButtonResult, error) {
	ctx, span := utilityTracer.Start(ctx, "UtilityAuthService.SubmitGreenButton")
	defer span.End()

	if !s.catalog.IsGreenButton(sub.UtilityProvider) {
		return nil, &domain.ErrValidation{Field: "utilityProvider", Message: "provider does not use Green Button authorization"}
	}
	if _, err := mail.ParseAddress(sub.Email); err != nil {
		return nil, &domain.ErrValidation{Field: "email", Message: "invalid email address"}
	}

	enqueueID, err := s.upstream.EnqueueGreenButtonAuth(ctx, creds, sub)
	if err != nil {
		return nil, fmt.Errorf("enqueue green button authorization: %w", err)
	}

	if err := s.upstream.RecordGreenButtonEmail(ctx, creds, sub.Email); err != nil {
		s.logger.Error("green button email record failed after enqueue",
			zap.String("user_id", creds.UserID),
			zap.String("enqueue_id", enqueueID),
			zap.Error(err),
		)
		s.metrics.IncrUpstreamError("record_green_button_email")
		return &domain.GreenButtonResult{EnqueueID: enqueueID}, &domain.ErrPartialSuccess{
			Operation: "green_button_submit",
			Ref:       enqueueID,
			Err:       err,
		}
	}

	s.stages.Invalidate(creds.UserID)
	return &domain.GreenButtonResult{EnqueueID: enqueueID, EmailRecorded: true}, nil
}

// RetryGreenButtonEmail redoes only the record step after a partial
// submit.
func (s *UtilityAuthService) RetryGreenButtonEmail(ctx context.Context, creds port.Credentials, email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return &domain.ErrValidation{Field: "email", Message: "invalid email address"}
	}
	if err := s.upstream.RecordGreenButtonEmail(ctx, creds, email); err != nil {
		return fmt.Errorf("record green button email: %w", err)
	}
	s.stages.Invalidate(creds.UserID)
	return nil
}

// RefreshMeters forces a fresh stage evaluation after the user completes
// an authorization in the embedded iframe.
func (s *UtilityAuthService) RefreshMeters(ctx context.Context, creds port.Credentials) (*domain.StageResult, error) {
	s.stages.Invalidate(creds.UserID)
	return s.stages.Evaluate(ctx, creds)
}

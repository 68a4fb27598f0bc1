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

var onboardingTracer = otel.Tracer("service/onboarding")

// OnboardingService drives the registration wizard: role selection,
// owner details, terms, financial info and the operator invite. Every
// successful write invalidates the cached stage.
type OnboardingService struct {
	upstream port.OnboardingStore
	stages   *StageService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

func NewOnboardingService(upstream port.OnboardingStore, stages *StageService, metrics *observability.Metrics, logger *zap.Logger) *OnboardingService {
	return &OnboardingService{
		upstream: upstream,
		stages:   stages,
		metrics:  metrics,
		logger:   logger,
	}
}

// Profile returns the upstream commercial registration, or nil when the
// user has not started registration yet.
func (s *OnboardingService) Profile(ctx context.Context, creds port.Credentials) (*domain.CommercialUser, error) {
	user, err := s.upstream.GetCommercialUser(ctx, creds)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UpdateRole records the commercial role. Switching role is refused once
// facilities exist; the wizard paths diverge too far to migrate.
func (s *OnboardingService) UpdateRole(ctx context.Context, creds port.Credentials, role domain.CommercialRole) error {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.UpdateRole")
	defer span.End()

	if !role.Valid() {
		return &domain.ErrValidation{Field: "commercialRole", Message: "role must be owner or both"}
	}

	current, err := s.Profile(ctx, creds)
	if err != nil {
		return fmt.Errorf("load registration: %w", err)
	}
	if current != nil && current.CommercialRole.Valid() && current.CommercialRole != role {
		facilities, err := s.upstream.ListFacilities(ctx, creds)
		if err != nil {
			return fmt.Errorf("check facilities before role switch: %w", err)
		}
		if len(facilities) > 0 {
			return &domain.ErrConflict{Message: "commercial role cannot change after a facility is registered"}
		}
	}

	update := &domain.CommercialUser{CommercialRole: role}
	if current != nil {
		update = current
		update.CommercialRole = role
	}
	if err := s.upstream.UpdateCommercialRegistration(ctx, creds, update); err != nil {
		return fmt.Errorf("update commercial role: %w", err)
	}

	s.stages.Invalidate(creds.UserID)
	s.logger.Info("commercial role updated",
		zap.String("user_id", creds.UserID),
		zap.String("role", string(role)),
	)
	return nil
}

// SaveOwnerDetails validates ownership percentages, flattens the address
// and writes the commercial registration upstream. Validation failures
// never reach the upstream API.
func (s *OnboardingService) SaveOwnerDetails(ctx context.Context, creds port.Credentials, details *domain.OwnerDetails) error {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.SaveOwnerDetails")
	defer span.End()

	if details.FullName == "" {
		return &domain.ErrValidation{Field: "fullName", Message: "full name is required"}
	}
	address := details.FlattenAddress()
	if address == "" {
		return &domain.ErrValidation{Field: "address", Message: "address is required"}
	}
	if err := domain.ValidateOwnership(details.OwnershipPercentage, details.CoOwners); err != nil {
		return err
	}

	current, err := s.Profile(ctx, creds)
	if err != nil {
		return fmt.Errorf("load registration: %w", err)
	}
	update := &domain.CommercialUser{}
	if current != nil {
		update = current
	}
	update.EntityType = details.EntityType
	update.OwnerFullName = details.FullName
	update.OwnerAddress = address
	update.OwnerWebsite = details.Website
	update.OwnershipPercentage = details.OwnershipPercentage
	update.MultipleUsers = details.CoOwners

	if err := s.upstream.UpdateCommercialRegistration(ctx, creds, update); err != nil {
		return fmt.Errorf("save owner details: %w", err)
	}

	s.stages.Invalidate(creds.UserID)
	return nil
}

// AcceptTerms records the signed agreement upstream.
func (s *OnboardingService) AcceptTerms(ctx context.Context, creds port.Credentials, signatureName string) error {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.AcceptTerms")
	defer span.End()

	if signatureName == "" {
		return &domain.ErrValidation{Field: "signatureName", Message: "signature name is required"}
	}
	if err := s.upstream.AcceptTerms(ctx, creds, signatureName); err != nil {
		return fmt.Errorf("accept terms: %w", err)
	}
	s.stages.Invalidate(creds.UserID)
	return nil
}

// SaveFinancialInfo records the finance type and installer upstream.
func (s *OnboardingService) SaveFinancialInfo(ctx context.Context, creds port.Credentials, info *domain.FinancialInfo) error {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.SaveFinancialInfo")
	defer span.End()

	if info.FinanceType == "" {
		return &domain.ErrValidation{Field: "financeType", Message: "finance type is required"}
	}
	if info.Installer == "" {
		return &domain.ErrValidation{Field: "installer", Message: "installer is required"}
	}
	if err := s.upstream.PutFinancialInfo(ctx, creds, info); err != nil {
		return fmt.Errorf("save financial info: %w", err)
	}
	s.stages.Invalidate(creds.UserID)
	return nil
}

// InviteOperator asks the upstream to invite an operator. This closes the
// Owner path; the invited operator completes utility authorization.
func (s *OnboardingService) InviteOperator(ctx context.Context, creds port.Credentials, invite *domain.OperatorInvite) error {
	ctx, span := onboardingTracer.Start(ctx, "OnboardingService.InviteOperator")
	defer span.End()

	if invite.Email == "" {
		return &domain.ErrValidation{Field: "email", Message: "operator email is required"}
	}
	if err := s.upstream.InviteOperator(ctx, creds, invite); err != nil {
		return fmt.Errorf("invite operator: %w", err)
	}
	s.logger.Info("operator invited",
		zap.String("user_id", creds.UserID),
		zap.String("facility_name", invite.FacilityName),
	)
	return nil
}

// NextStep advances the wizard one modal along the (role, kind) path.
func (s *OnboardingService) NextStep(current domain.WizardStep, role domain.CommercialRole, kind domain.FacilityKind) (domain.WizardStep, error) {
	if !kind.Valid() {
		return "", &domain.ErrValidation{Field: "kind", Message: "kind must be commercial or residential"}
	}
	next := domain.NextStep(current, role, kind)
	s.metrics.IncrWizardStep(string(next))
	return next, nil
}

// ResumeStep maps an evaluated stage to the modal that works on it.
func (s *OnboardingService) ResumeStep(ctx context.Context, creds port.Credentials, role domain.CommercialRole, kind domain.FacilityKind) (domain.WizardStep, *domain.StageResult, error) {
	if !kind.Valid() {
		return "", nil, &domain.ErrValidation{Field: "kind", Message: "kind must be commercial or residential"}
	}
	result, err := s.stages.Evaluate(ctx, creds)
	if err != nil {
		return "", nil, err
	}
	step := domain.ResumeStep(result.NextStage, role, kind)
	s.metrics.IncrWizardStep(string(step))
	return step, result, nil
}

package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/cache"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"go.uber.org/zap"
)

func newOnboardingService(up *mockUpstream) *service.OnboardingService {
	metrics := observability.NewMetrics()
	stages := service.NewStageService(up, cache.New[*domain.StageResult](time.Minute), metrics, zap.NewNop())
	return service.NewOnboardingService(up, stages, metrics, zap.NewNop())
}

func TestUpdateRole_FirstSelection(t *testing.T) {
	up := &mockUpstream{userErr: notFoundErr}
	svc := newOnboardingService(up)

	if err := svc.UpdateRole(context.Background(), creds(), domain.RoleOwner); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if up.updatedUser == nil || up.updatedUser.CommercialRole != domain.RoleOwner {
		t.Errorf("expected role write, got %+v", up.updatedUser)
	}
}

func TestUpdateRole_InvalidRole(t *testing.T) {
	svc := newOnboardingService(&mockUpstream{})

	err := svc.UpdateRole(context.Background(), creds(), "operator")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateRole_SwitchBlockedByFacility(t *testing.T) {
	up := &mockUpstream{
		user:       &domain.CommercialUser{CommercialRole: domain.RoleOwner},
		facilities: []domain.Facility{{ID: "fac-1"}},
	}
	svc := newOnboardingService(up)

	err := svc.UpdateRole(context.Background(), creds(), domain.RoleOwnerOperator)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict error, got %v", err)
	}
	if up.updatedUser != nil {
		t.Error("role write must not reach upstream on conflict")
	}
}

func TestUpdateRole_SwitchAllowedWithoutFacility(t *testing.T) {
	up := &mockUpstream{
		user: &domain.CommercialUser{CommercialRole: domain.RoleOwner, OwnerFullName: "Ada"},
	}
	svc := newOnboardingService(up)

	if err := svc.UpdateRole(context.Background(), creds(), domain.RoleOwnerOperator); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if up.updatedUser.CommercialRole != domain.RoleOwnerOperator {
		t.Errorf("expected role both, got %q", up.updatedUser.CommercialRole)
	}
	if up.updatedUser.OwnerFullName != "Ada" {
		t.Error("role switch must preserve the rest of the registration")
	}
}

func TestSaveOwnerDetails_FlattensAddress(t *testing.T) {
	up := &mockUpstream{userErr: notFoundErr}
	svc := newOnboardingService(up)

	details := &domain.OwnerDetails{
		FullName:   "Ada Lovelace",
		EntityType: domain.EntityIndividual,
		Street:     "12 Solar Way",
		City:       "Fresno",
		State:      "CA",
		Zip:        "93650",
	}
	if err := svc.SaveOwnerDetails(context.Background(), creds(), details); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := "12 Solar Way, Fresno, CA, 93650"
	if up.updatedUser.OwnerAddress != want {
		t.Errorf("expected address %q, got %q", want, up.updatedUser.OwnerAddress)
	}
}

func TestSaveOwnerDetails_OwnershipMustTotalHundred(t *testing.T) {
	up := &mockUpstream{userErr: notFoundErr}
	svc := newOnboardingService(up)

	details := &domain.OwnerDetails{
		FullName:            "Ada Lovelace",
		Street:              "12 Solar Way",
		OwnershipPercentage: 60,
		CoOwners: []domain.CoOwner{
			{FullName: "Grace Hopper", Email: "grace@example.test", OwnershipPercentage: 30},
		},
	}
	err := svc.SaveOwnerDetails(context.Background(), creds(), details)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if up.updatedUser != nil {
		t.Error("invalid ownership must not reach upstream")
	}
}

func TestAcceptTerms_RequiresSignature(t *testing.T) {
	up := &mockUpstream{}
	svc := newOnboardingService(up)

	var validation *domain.ErrValidation
	if err := svc.AcceptTerms(context.Background(), creds(), ""); !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := svc.AcceptTerms(context.Background(), creds(), "Ada Lovelace"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if up.acceptedName != "Ada Lovelace" {
		t.Errorf("expected signature forwarded, got %q", up.acceptedName)
	}
}

func TestNextStep_OwnerPathNeverCreatesFacility(t *testing.T) {
	svc := newOnboardingService(&mockUpstream{})

	step := domain.WizardStep(domain.StepClosed)
	for i := 0; i < 10; i++ {
		next, err := svc.NextStep(step, domain.RoleOwner, domain.KindCommercial)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if next == domain.StepFacilityCreate {
			t.Fatal("owner path must never reach facility creation")
		}
		if next == domain.StepSuccess {
			return
		}
		step = next
	}
	t.Fatal("owner path never terminated")
}

func TestResumeStep_StageFourOpensFinance(t *testing.T) {
	// Terms accepted, finance missing: evaluated stage 3, next stage 4.
	up := &mockUpstream{
		user:      &domain.CommercialUser{OwnerAddress: "12 Solar Way"},
		agreement: &domain.Agreement{TermsAccepted: true},
		finErr:    notFoundErr,
	}
	svc := newOnboardingService(up)

	step, result, err := svc.ResumeStep(context.Background(), creds(), domain.RoleOwner, domain.KindCommercial)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.NextStage != domain.StageFinancialInfo {
		t.Fatalf("expected next stage 4, got %d", result.NextStage)
	}
	if step != domain.StepFinance {
		t.Errorf("expected resume at finance, got %q", step)
	}
}

func TestResumeStep_InvalidKind(t *testing.T) {
	svc := newOnboardingService(&mockUpstream{})

	_, _, err := svc.ResumeStep(context.Background(), creds(), domain.RoleOwner, "industrial")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

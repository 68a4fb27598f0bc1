package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/cache"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/infra/observability"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/service"

	"go.uber.org/zap"
)

// --- Mock upstream ---

type mockUpstream struct {
	user       *domain.CommercialUser
	userErr    error
	agreement  *domain.Agreement
	agreeErr   error
	finInfo    *domain.FinancialInfo
	finErr     error
	meters     []domain.UserMeterEntry
	metersErr  error
	facilities []domain.Facility
	facErr     error

	updatedUser   *domain.CommercialUser
	updateErr     error
	acceptedName  string
	acceptErr     error
	savedFinance  *domain.FinancialInfo
	saveFinErr    error
	invite        *domain.OperatorInvite
	inviteErr     error
	createdForm   *domain.FacilityForm
	created       *domain.Facility
	createErr     error
	attachedTo    string
	attachErr     error
	enqueueID     string
	enqueueErr    error
	recordedEmail string
	recordErr     error
}

func (m *mockUpstream) GetCommercialUser(_ context.Context, _ port.Credentials) (*domain.CommercialUser, error) {
	return m.user, m.userErr
}
func (m *mockUpstream) GetAgreement(_ context.Context, _ port.Credentials) (*domain.Agreement, error) {
	return m.agreement, m.agreeErr
}
func (m *mockUpstream) GetFinancialInfo(_ context.Context, _ port.Credentials) (*domain.FinancialInfo, error) {
	return m.finInfo, m.finErr
}
func (m *mockUpstream) ListUserMeters(_ context.Context, _ port.Credentials) ([]domain.UserMeterEntry, error) {
	return m.meters, m.metersErr
}
func (m *mockUpstream) ListFacilities(_ context.Context, _ port.Credentials) ([]domain.Facility, error) {
	return m.facilities, m.facErr
}
func (m *mockUpstream) UpdateCommercialRegistration(_ context.Context, _ port.Credentials, u *domain.CommercialUser) error {
	m.updatedUser = u
	return m.updateErr
}
func (m *mockUpstream) AcceptTerms(_ context.Context, _ port.Credentials, signatureName string) error {
	m.acceptedName = signatureName
	return m.acceptErr
}
func (m *mockUpstream) PutFinancialInfo(_ context.Context, _ port.Credentials, info *domain.FinancialInfo) error {
	m.savedFinance = info
	return m.saveFinErr
}
func (m *mockUpstream) InviteOperator(_ context.Context, _ port.Credentials, invite *domain.OperatorInvite) error {
	m.invite = invite
	return m.inviteErr
}
func (m *mockUpstream) CreateFacility(_ context.Context, _ port.Credentials, form *domain.FacilityForm) (*domain.Facility, error) {
	m.createdForm = form
	return m.created, m.createErr
}
func (m *mockUpstream) AttachFinancialAgreement(_ context.Context, _ port.Credentials, facilityID string, _ *domain.AgreementUpload) error {
	m.attachedTo = facilityID
	return m.attachErr
}
func (m *mockUpstream) EnqueueGreenButtonAuth(_ context.Context, _ port.Credentials, _ *domain.GreenButtonSubmission) (string, error) {
	return m.enqueueID, m.enqueueErr
}
func (m *mockUpstream) RecordGreenButtonEmail(_ context.Context, _ port.Credentials, email string) error {
	m.recordedEmail = email
	return m.recordErr
}

var notFoundErr = &domain.ErrNotFound{Resource: "record", ID: "user-1"}

func creds() port.Credentials {
	return port.Credentials{UserID: "user-1", AuthToken: "tok"}
}

func newStageService(up *mockUpstream) *service.StageService {
	return service.NewStageService(up,
		cache.New[*domain.StageResult](time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

// --- Tests ---

func TestEvaluate_FreshUserIsStageOne(t *testing.T) {
	up := &mockUpstream{
		userErr:  notFoundErr,
		agreeErr: notFoundErr,
		finErr:   notFoundErr,
	}
	svc := newStageService(up)

	result, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stage != domain.StageRegistered {
		t.Errorf("expected stage 1, got %d", result.Stage)
	}
	if result.NextStage != domain.StageOwnerAddress {
		t.Errorf("expected next stage 2, got %d", result.NextStage)
	}
	if result.Degraded {
		t.Error("404 probes must not mark the result degraded")
	}
	if result.HasFacility {
		t.Error("expected no facility")
	}
}

func TestEvaluate_MeterAloneYieldsStageFive(t *testing.T) {
	meter := domain.UserMeterEntry{}
	meter.Meters.Meters = []domain.MeterDescriptor{{MeterNumber: "m-1"}}
	up := &mockUpstream{
		userErr:  notFoundErr,
		agreeErr: notFoundErr,
		finErr:   notFoundErr,
		meters:   []domain.UserMeterEntry{meter},
	}
	svc := newStageService(up)

	result, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stage != domain.StageMeterAttached {
		t.Errorf("expected stage 5 from attached meter alone, got %d", result.Stage)
	}
}

func TestEvaluate_FullProgress(t *testing.T) {
	meter := domain.UserMeterEntry{}
	meter.Meters.Meters = []domain.MeterDescriptor{{MeterNumber: "m-1"}}
	up := &mockUpstream{
		user:       &domain.CommercialUser{OwnerAddress: "12 Solar Way, Fresno, CA"},
		agreement:  &domain.Agreement{TermsAccepted: true},
		finInfo:    &domain.FinancialInfo{FinanceType: "loan"},
		meters:     []domain.UserMeterEntry{meter},
		facilities: []domain.Facility{{ID: "fac-1"}},
	}
	svc := newStageService(up)

	result, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stage != domain.StageMeterAttached {
		t.Errorf("expected stage 5, got %d", result.Stage)
	}
	if result.NextStage != domain.StageMeterAttached {
		t.Errorf("next stage must cap at 5, got %d", result.NextStage)
	}
	if !result.HasFacility {
		t.Error("expected has facility")
	}
}

func TestEvaluate_ProbeFailureDegradesNotFails(t *testing.T) {
	up := &mockUpstream{
		user:     &domain.CommercialUser{OwnerAddress: "12 Solar Way"},
		agreeErr: &domain.ErrExternalService{Service: "dcarbon", Err: errors.New("boom")},
		finErr:   notFoundErr,
	}
	svc := newStageService(up)

	result, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("a failed probe must not fail the evaluation, got %v", err)
	}
	if result.Stage != domain.StageOwnerAddress {
		t.Errorf("expected stage 2 with terms probe down, got %d", result.Stage)
	}
	if !result.Degraded {
		t.Error("expected degraded flag when a probe failed")
	}
}

func TestEvaluate_CachesCleanResults(t *testing.T) {
	up := &mockUpstream{
		user:     &domain.CommercialUser{OwnerAddress: "12 Solar Way"},
		agreeErr: notFoundErr,
		finErr:   notFoundErr,
	}
	svc := newStageService(up)

	first, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Upstream moves on, but the cached result is served until
	// invalidation.
	up.agreement = &domain.Agreement{TermsAccepted: true}
	up.agreeErr = nil

	second, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if second.Stage != first.Stage {
		t.Errorf("expected cached stage %d, got %d", first.Stage, second.Stage)
	}

	svc.Invalidate("user-1")
	third, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if third.Stage != domain.StageTermsAccepted {
		t.Errorf("expected stage 3 after invalidation, got %d", third.Stage)
	}
}

func TestEvaluate_DegradedResultsAreNotCached(t *testing.T) {
	up := &mockUpstream{
		userErr:  &domain.ErrExternalService{Service: "dcarbon", Err: errors.New("down")},
		agreeErr: notFoundErr,
		finErr:   notFoundErr,
	}
	svc := newStageService(up)

	first, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !first.Degraded {
		t.Fatal("expected degraded result")
	}

	// Probe recovers; the next evaluation must re-probe, not replay the
	// degraded answer.
	up.userErr = nil
	up.user = &domain.CommercialUser{OwnerAddress: "12 Solar Way"}

	second, err := svc.Evaluate(context.Background(), creds())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if second.Degraded {
		t.Error("expected clean result after probe recovered")
	}
	if second.Stage != domain.StageOwnerAddress {
		t.Errorf("expected stage 2, got %d", second.Stage)
	}
}

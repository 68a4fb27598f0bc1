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

// --- Mock session store ---

type mockSessionStore struct {
	sessions map[string]*domain.Session
	staged   map[string]*domain.AgreementUpload
}

func newMockSessionStore() *mockSessionStore {
	return &mockSessionStore{
		sessions: make(map[string]*domain.Session),
		staged:   make(map[string]*domain.AgreementUpload),
	}
}

func (m *mockSessionStore) Create(_ context.Context, s *domain.Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *mockSessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	return s, nil
}

func (m *mockSessionStore) UpdateDisplay(_ context.Context, sessionID, firstName, profilePicture string) error {
	s, ok := m.sessions[sessionID]
	if !ok {
		return &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	s.FirstName = firstName
	s.ProfilePicture = profilePicture
	return nil
}

func (m *mockSessionStore) MarkDashboardVisited(_ context.Context, sessionID string) error {
	s, ok := m.sessions[sessionID]
	if !ok {
		return &domain.ErrNotFound{Resource: "session", ID: sessionID}
	}
	s.HasVisitedDashboard = true
	return nil
}

func (m *mockSessionStore) StageAgreement(_ context.Context, sessionID string, upload *domain.AgreementUpload) error {
	m.staged[sessionID] = upload
	return nil
}

func (m *mockSessionStore) TakeStagedAgreement(_ context.Context, sessionID string) (*domain.AgreementUpload, error) {
	u, ok := m.staged[sessionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "staged agreement", ID: sessionID}
	}
	delete(m.staged, sessionID)
	return u, nil
}

func (m *mockSessionStore) Delete(_ context.Context, sessionID string) error {
	delete(m.sessions, sessionID)
	delete(m.staged, sessionID)
	return nil
}

func newFacilityService(up *mockUpstream, sessions *mockSessionStore) *service.FacilityService {
	metrics := observability.NewMetrics()
	stages := service.NewStageService(up, cache.New[*domain.StageResult](time.Minute), metrics, zap.NewNop())
	return service.NewFacilityService(up, sessions, stages, metrics, zap.NewNop())
}

func validForm() *domain.FacilityForm {
	return &domain.FacilityForm{
		Nickname:        "Rooftop West",
		Address:         "12 Solar Way, Fresno, CA",
		UtilityProvider: "Duke Energy",
		MeterIDs:        []string{"m-1"},
		Installer:       "SunCo",
		FinanceType:     "loan",
	}
}

func pdfUpload() *domain.AgreementUpload {
	return &domain.AgreementUpload{
		FileName:    "agreement.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.7"),
	}
}

func TestCreateFacility_AttachesStagedAgreement(t *testing.T) {
	up := &mockUpstream{created: &domain.Facility{ID: "fac-1"}}
	sessions := newMockSessionStore()
	sessions.staged["sess-1"] = pdfUpload()
	svc := newFacilityService(up, sessions)

	result, err := svc.Create(context.Background(), creds(), "sess-1", validForm())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Facility.ID != "fac-1" {
		t.Errorf("unexpected facility %+v", result.Facility)
	}
	if result.AttachmentError != "" {
		t.Errorf("expected clean attach, got %q", result.AttachmentError)
	}
	if up.attachedTo != "fac-1" {
		t.Errorf("expected agreement attached to fac-1, got %q", up.attachedTo)
	}
	if _, ok := sessions.staged["sess-1"]; ok {
		t.Error("staged agreement must be consumed")
	}
}

func TestCreateFacility_CashSkipsAgreement(t *testing.T) {
	up := &mockUpstream{created: &domain.Facility{ID: "fac-1"}}
	svc := newFacilityService(up, newMockSessionStore())

	form := validForm()
	form.FinanceType = domain.FinanceCash

	result, err := svc.Create(context.Background(), creds(), "sess-1", form)
	if err != nil {
		t.Fatalf("cash financing must submit without an agreement, got %v", err)
	}
	if up.attachedTo != "" {
		t.Error("no attach call expected without a staged agreement")
	}
	if result.AttachmentError != "" {
		t.Errorf("unexpected attachment error %q", result.AttachmentError)
	}
}

func TestCreateFacility_NonCashWithoutAgreementRejected(t *testing.T) {
	up := &mockUpstream{created: &domain.Facility{ID: "fac-1"}}
	svc := newFacilityService(up, newMockSessionStore())

	_, err := svc.Create(context.Background(), creds(), "sess-1", validForm())
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if up.createdForm != nil {
		t.Error("invalid form must not reach upstream")
	}
}

func TestCreateFacility_AttachFailureStillReturnsFacility(t *testing.T) {
	up := &mockUpstream{
		created:   &domain.Facility{ID: "fac-1"},
		attachErr: &domain.ErrExternalService{Service: "dcarbon", Err: errors.New("boom")},
	}
	sessions := newMockSessionStore()
	sessions.staged["sess-1"] = pdfUpload()
	svc := newFacilityService(up, sessions)

	result, err := svc.Create(context.Background(), creds(), "sess-1", validForm())
	if err != nil {
		t.Fatalf("attach failure must not fail the create, got %v", err)
	}
	if result.Facility.ID != "fac-1" {
		t.Errorf("expected created facility, got %+v", result.Facility)
	}
	if result.AttachmentError == "" {
		t.Error("expected attachment error surfaced")
	}
}

func TestCreateFacility_ValidationFailureRestagesAgreement(t *testing.T) {
	up := &mockUpstream{}
	sessions := newMockSessionStore()
	sessions.staged["sess-1"] = pdfUpload()
	svc := newFacilityService(up, sessions)

	form := validForm()
	form.Nickname = ""

	_, err := svc.Create(context.Background(), creds(), "sess-1", form)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := sessions.staged["sess-1"]; !ok {
		t.Error("staged agreement must survive a rejected submit")
	}
}

func TestCreateFacility_CreateFailureRestagesAgreement(t *testing.T) {
	up := &mockUpstream{
		createErr: &domain.ErrExternalService{Service: "dcarbon", Err: errors.New("boom")},
	}
	sessions := newMockSessionStore()
	sessions.staged["sess-1"] = pdfUpload()
	svc := newFacilityService(up, sessions)

	_, err := svc.Create(context.Background(), creds(), "sess-1", validForm())
	if err == nil {
		t.Fatal("expected create error")
	}
	if _, ok := sessions.staged["sess-1"]; !ok {
		t.Fatal("staged agreement must survive a failed create")
	}

	up.createErr = nil
	up.created = &domain.Facility{ID: "fac-1"}

	result, err := svc.Create(context.Background(), creds(), "sess-1", validForm())
	if err != nil {
		t.Fatalf("retry after transient failure must succeed, got %v", err)
	}
	if up.attachedTo != "fac-1" {
		t.Errorf("expected agreement attached on retry, got %q", up.attachedTo)
	}
	if result.AttachmentError != "" {
		t.Errorf("unexpected attachment error %q", result.AttachmentError)
	}
}

func TestAttachAgreement_RejectsBadContentType(t *testing.T) {
	svc := newFacilityService(&mockUpstream{}, newMockSessionStore())

	upload := pdfUpload()
	upload.ContentType = "application/zip"

	err := svc.AttachAgreement(context.Background(), creds(), "fac-1", upload)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

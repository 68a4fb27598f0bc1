// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
)

// Credentials carries the caller's identity for upstream calls. Every
// upstream request is made on behalf of a user with that user's bearer
// token; the BFF holds no upstream credentials of its own.
type Credentials struct {
	UserID    string
	AuthToken string
}

// OnboardingStore is the upstream DCarbon API seen through the operations
// the onboarding flow needs. Implemented by the dcarbon adapter.
type OnboardingStore interface {
	// Stage probes (read-only)
	GetCommercialUser(ctx context.Context, creds Credentials) (*domain.CommercialUser, error)
	GetAgreement(ctx context.Context, creds Credentials) (*domain.Agreement, error)
	GetFinancialInfo(ctx context.Context, creds Credentials) (*domain.FinancialInfo, error)
	ListUserMeters(ctx context.Context, creds Credentials) ([]domain.UserMeterEntry, error)
	ListFacilities(ctx context.Context, creds Credentials) ([]domain.Facility, error)

	// Registration writes
	UpdateCommercialRegistration(ctx context.Context, creds Credentials, user *domain.CommercialUser) error
	AcceptTerms(ctx context.Context, creds Credentials, signatureName string) error
	PutFinancialInfo(ctx context.Context, creds Credentials, info *domain.FinancialInfo) error
	InviteOperator(ctx context.Context, creds Credentials, invite *domain.OperatorInvite) error

	// Facility
	CreateFacility(ctx context.Context, creds Credentials, form *domain.FacilityForm) (*domain.Facility, error)
	AttachFinancialAgreement(ctx context.Context, creds Credentials, facilityID string, upload *domain.AgreementUpload) error

	// Green Button
	EnqueueGreenButtonAuth(ctx context.Context, creds Credentials, sub *domain.GreenButtonSubmission) (string, error)
	RecordGreenButtonEmail(ctx context.Context, creds Credentials, email string) error
}

// SessionStore persists dashboard sessions server-side.
type SessionStore interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateDisplay(ctx context.Context, sessionID, firstName, profilePicture string) error
	MarkDashboardVisited(ctx context.Context, sessionID string) error
	StageAgreement(ctx context.Context, sessionID string, upload *domain.AgreementUpload) error
	TakeStagedAgreement(ctx context.Context, sessionID string) (*domain.AgreementUpload, error)
	Delete(ctx context.Context, sessionID string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

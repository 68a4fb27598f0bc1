// Package service holds the BFF use cases: session lifecycle, onboarding
// stage evaluation, the registration wizard, facility creation and the
// utility-authorization branch.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var sessionTracer = otel.Tracer("service/session")

// SessionClaims is the BFF-issued access token payload. Sub is the
// upstream user id, SID the server-side session row.
type SessionClaims struct {
	Sub  string `json:"sub"`
	SID  string `json:"sid"`
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// SessionService exchanges an upstream login response for a server-side
// session plus a BFF access token, and resolves tokens back to sessions.
type SessionService struct {
	store      port.SessionStore
	jwtSecret  []byte
	accessTTL  time.Duration
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewSessionService(store port.SessionStore, jwtSecret []byte, accessTTL, sessionTTL time.Duration, logger *zap.Logger) *SessionService {
	return &SessionService{
		store:      store,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// SessionHandle is what the dashboard gets back from session creation:
// the session view plus the token it must present on every later call.
type SessionHandle struct {
	Session     *domain.Session `json:"session"`
	AccessToken string          `json:"accessToken"`
}

// Create validates an upstream login response and persists a session from
// it. The upstream bearer token and the raw login blob are stored server
// side and never leave the BFF again.
func (s *SessionService) Create(ctx context.Context, raw json.RawMessage) (*SessionHandle, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Create")
	defer span.End()

	var login domain.LoginResponse
	if err := json.Unmarshal(raw, &login); err != nil {
		return nil, &domain.ErrValidation{Field: "loginResponse", Message: "malformed login response"}
	}
	if login.Status != "success" {
		return nil, &domain.ErrValidation{Field: "loginResponse", Message: "login response status is not success"}
	}
	if login.Data.Token == "" || login.Data.User.ID == "" {
		return nil, &domain.ErrValidation{Field: "loginResponse", Message: "login response is missing token or user id"}
	}

	now := time.Now()
	session := &domain.Session{
		ID:             uuid.NewString(),
		UserID:         login.Data.User.ID,
		AuthToken:      login.Data.Token,
		FirstName:      login.Data.User.FirstName,
		ProfilePicture: login.Data.User.ProfilePicture,
		LoginResponse:  raw,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := s.signAccessToken(session.UserID, session.ID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("user_id", session.UserID),
	)
	return &SessionHandle{Session: session, AccessToken: token}, nil
}

// Get returns the session behind an access token.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.Get(ctx, sessionID)
}

// Resolve validates a BFF access token and loads its session. Handlers
// use the result both as identity and as the upstream credentials.
func (s *SessionService) Resolve(ctx context.Context, tokenString string) (*domain.Session, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Get(ctx, claims.SID)
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "session expired or revoked"}
	}
	return session, nil
}

// UpdateDisplay replaces the session's display name and profile picture.
func (s *SessionService) UpdateDisplay(ctx context.Context, sessionID, firstName, profilePicture string) error {
	return s.store.UpdateDisplay(ctx, sessionID, firstName, profilePicture)
}

// MarkDashboardVisited records the first dashboard render so the welcome
// toast is shown exactly once per session.
func (s *SessionService) MarkDashboardVisited(ctx context.Context, sessionID string) error {
	return s.store.MarkDashboardVisited(ctx, sessionID)
}

// StageAgreement stores a financial-agreement document on the session,
// to be consumed by the next facility creation.
func (s *SessionService) StageAgreement(ctx context.Context, sessionID string, upload *domain.AgreementUpload) error {
	if err := domain.ValidateAgreementUpload(*upload); err != nil {
		return err
	}
	return s.store.StageAgreement(ctx, sessionID, upload)
}

// Delete is logout. The upstream token is discarded with the row.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	return s.store.Delete(ctx, sessionID)
}

// Credentials builds the upstream credentials carried by a session.
func Credentials(session *domain.Session) port.Credentials {
	return port.Credentials{UserID: session.UserID, AuthToken: session.AuthToken}
}

// ValidateAccessToken parses and verifies a BFF access token.
func (s *SessionService) ValidateAccessToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	return claims, nil
}

func (s *SessionService) signAccessToken(userID, sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Sub:  userID,
		SID:  sessionID,
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "dcarbon-bff",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

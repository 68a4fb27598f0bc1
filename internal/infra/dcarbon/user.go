package dcarbon

import (
	"context"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"
)

// --- User / registration operations (implements part of port.OnboardingStore) ---

// GetCommercialUser fetches the commercial registration record. A missing
// record comes back as *domain.ErrNotFound.
func (c *Client) GetCommercialUser(ctx context.Context, creds port.Credentials) (*domain.CommercialUser, error) {
	var user domain.CommercialUser
	err := c.call(ctx, "GetCommercialUser", http.MethodGet,
		"/api/user/get-commercial-user/"+creds.UserID, creds, nil, &user)
	if err != nil {
		return nil, err
	}
	user.UserID = creds.UserID
	return &user, nil
}

// GetAgreement fetches the terms-acceptance record.
func (c *Client) GetAgreement(ctx context.Context, creds port.Credentials) (*domain.Agreement, error) {
	var agreement domain.Agreement
	err := c.call(ctx, "GetAgreement", http.MethodGet,
		"/api/user/agreement/"+creds.UserID, creds, nil, &agreement)
	if err != nil {
		return nil, err
	}
	agreement.UserID = creds.UserID
	return &agreement, nil
}

// GetFinancialInfo fetches the finance/installer record.
func (c *Client) GetFinancialInfo(ctx context.Context, creds port.Credentials) (*domain.FinancialInfo, error) {
	var info domain.FinancialInfo
	err := c.call(ctx, "GetFinancialInfo", http.MethodGet,
		"/api/user/financial-info/"+creds.UserID, creds, nil, &info)
	if err != nil {
		return nil, err
	}
	info.UserID = creds.UserID
	return &info, nil
}

// ListUserMeters fetches every utility authorization with its nested
// meters list.
func (c *Client) ListUserMeters(ctx context.Context, creds port.Credentials) ([]domain.UserMeterEntry, error) {
	var entries []domain.UserMeterEntry
	err := c.call(ctx, "ListUserMeters", http.MethodGet,
		"/api/auth/user-meters/"+creds.UserID, creds, nil, &entries)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// UpdateCommercialRegistration upserts role and owner details. The
// upstream treats this PUT as idempotent.
func (c *Client) UpdateCommercialRegistration(ctx context.Context, creds port.Credentials, user *domain.CommercialUser) error {
	return c.call(ctx, "UpdateCommercialRegistration", http.MethodPut,
		"/api/user/commercial-registration/"+creds.UserID, creds, user, nil)
}

// AcceptTerms records terms acceptance.
func (c *Client) AcceptTerms(ctx context.Context, creds port.Credentials, signatureName string) error {
	payload := map[string]any{
		"termsAccepted": true,
		"signatureName": signatureName,
	}
	return c.call(ctx, "AcceptTerms", http.MethodPut,
		"/api/user/accept-user-agreement-terms/"+creds.UserID, creds, payload, nil)
}

// PutFinancialInfo upserts the finance/installer record.
func (c *Client) PutFinancialInfo(ctx context.Context, creds port.Credentials, info *domain.FinancialInfo) error {
	return c.call(ctx, "PutFinancialInfo", http.MethodPut,
		"/api/user/financial-info/"+creds.UserID, creds, info, nil)
}

// InviteOperator asks the upstream to e-mail an operator invitation.
func (c *Client) InviteOperator(ctx context.Context, creds port.Credentials, invite *domain.OperatorInvite) error {
	return c.call(ctx, "InviteOperator", http.MethodPost,
		"/api/user/invite-operator/"+creds.UserID, creds, invite, nil)
}

package dcarbon

import (
	"context"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"
)

// --- Facility operations ---

// ListFacilities returns the user's registered facilities. An empty list
// is a normal answer, not an error.
func (c *Client) ListFacilities(ctx context.Context, creds port.Credentials) ([]domain.Facility, error) {
	var data struct {
		Facilities []domain.Facility `json:"facilities"`
	}
	err := c.call(ctx, "ListFacilities", http.MethodGet,
		"/api/facility/get-user-facilities-by-userId/"+creds.UserID, creds, nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Facilities, nil
}

// CreateFacility creates a new facility from the submitted form.
func (c *Client) CreateFacility(ctx context.Context, creds port.Credentials, form *domain.FacilityForm) (*domain.Facility, error) {
	var facility domain.Facility
	err := c.call(ctx, "CreateFacility", http.MethodPost,
		"/api/facility/create-new-facility/"+creds.UserID, creds, form, &facility)
	if err != nil {
		return nil, err
	}
	return &facility, nil
}

// AttachFinancialAgreement uploads the financial-agreement document for
// a facility as multipart form data.
func (c *Client) AttachFinancialAgreement(ctx context.Context, creds port.Credentials, facilityID string, upload *domain.AgreementUpload) error {
	return c.doMultipart(ctx, "AttachFinancialAgreement", http.MethodPut,
		"/api/facility/update-facility-financial-agreement/"+facilityID, creds, upload)
}

package dcarbon

import (
	"context"
	"net/http"

	"github.com/gloriousnetworker/dcarbon-bff-go/internal/domain"
	"github.com/gloriousnetworker/dcarbon-bff-go/internal/port"
)

// --- Green Button operations ---

// EnqueueGreenButtonAuth starts an asynchronous Green Button
// authorization and returns the upstream authorization id.
func (c *Client) EnqueueGreenButtonAuth(ctx context.Context, creds port.Credentials, sub *domain.GreenButtonSubmission) (string, error) {
	var data struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, "EnqueueGreenButtonAuth", http.MethodPost,
		"/api/utility-auth/green-button", creds, sub, &data)
	if err != nil {
		return "", err
	}
	return data.ID, nil
}

// RecordGreenButtonEmail records which e-mail address the user used on
// the utility's external authorization page.
func (c *Client) RecordGreenButtonEmail(ctx context.Context, creds port.Credentials, email string) error {
	payload := map[string]string{"utilityAuthEmail": email}
	return c.call(ctx, "RecordGreenButtonEmail", http.MethodPost,
		"/api/user/submit-green-button-email/"+creds.UserID, creds, payload, nil)
}

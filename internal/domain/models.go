// Package domain holds the core models for the DCarbon onboarding BFF:
// sessions, commercial users, facilities, meters and the pure onboarding
// stage/wizard logic.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Session is the server-side replacement for the dashboard's local-storage
// state. It is created from an upstream login response and read on nearly
// every request to supply the user id and upstream bearer token.
type Session struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	AuthToken           string          `json:"-"`
	FirstName           string          `json:"firstName"`
	ProfilePicture      string          `json:"profilePicture"`
	HasVisitedDashboard bool            `json:"hasVisitedDashboard"`
	LoginResponse       json.RawMessage `json:"-"`
	CreatedAt           time.Time       `json:"createdAt"`
	ExpiresAt           time.Time       `json:"expiresAt"`
}

// LoginResponse is the upstream login payload the dashboard hands over
// when it opens a session with the BFF. Only the fields the BFF needs are
// typed; the full blob is kept verbatim in the session.
type LoginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
		User  struct {
			ID             string `json:"id"`
			FirstName      string `json:"firstName"`
			ProfilePicture string `json:"profilePicture"`
		} `json:"user"`
	} `json:"data"`
}

// CommercialRole selects one of the two wizard sequences.
type CommercialRole string

const (
	RoleOwner         CommercialRole = "owner"
	RoleOwnerOperator CommercialRole = "both"
)

// Valid reports whether r is one of the known roles.
func (r CommercialRole) Valid() bool {
	return r == RoleOwner || r == RoleOwnerOperator
}

// EntityType distinguishes individual from company owners.
type EntityType string

const (
	EntityIndividual EntityType = "individual"
	EntityCompany    EntityType = "company"
)

// CoOwner is an additional owner declared on a commercial registration.
type CoOwner struct {
	FullName            string  `json:"fullName"`
	Email               string  `json:"email"`
	OwnershipPercentage float64 `json:"ownershipPercentage"`
}

// CommercialUser is the upstream commercial registration record.
// OwnerAddress is the flattened comma-joined street/city/state/zip string;
// a non-empty value is what marks onboarding stage 2 complete.
type CommercialUser struct {
	UserID              string         `json:"userId"`
	CommercialRole      CommercialRole `json:"commercialRole"`
	EntityType          EntityType     `json:"entityType"`
	OwnerFullName       string         `json:"ownerFullName"`
	OwnerAddress        string         `json:"ownerAddress"`
	OwnerWebsite        string         `json:"ownerWebsite"`
	OwnershipPercentage float64        `json:"ownershipPercentage"`
	MultipleUsers       []CoOwner      `json:"multipleUsers"`
}

// OwnerDetails is the wizard's owner-details submission before flattening.
type OwnerDetails struct {
	FullName            string     `json:"fullName"`
	EntityType          EntityType `json:"entityType"`
	Website             string     `json:"website"`
	Street              string     `json:"street"`
	Street2             string     `json:"street2"`
	City                string     `json:"city"`
	State               string     `json:"state"`
	Zip                 string     `json:"zip"`
	OwnershipPercentage float64    `json:"ownershipPercentage"`
	CoOwners            []CoOwner  `json:"coOwners"`
}

// FlattenAddress joins the structured address parts into the comma-joined
// string the upstream API stores. Empty parts are skipped.
func (d OwnerDetails) FlattenAddress() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{d.Street, d.Street2, d.City, d.State, d.Zip} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	return strings.Join(parts, ", ")
}

// Facility is a registered solar generation site.
type Facility struct {
	ID                      string         `json:"id"`
	UserID                  string         `json:"userId"`
	Nickname                string         `json:"nickname"`
	Address                 string         `json:"address"`
	UtilityProvider         string         `json:"utilityProvider"`
	MeterIDs                []string       `json:"meterIds"`
	CommercialRole          CommercialRole `json:"commercialRole"`
	EntityType              EntityType     `json:"entityType"`
	FacilityTypeNamingCode  int            `json:"facilityTypeNamingCode"`
	UtilityProviderNamingCode int          `json:"utilityProviderNamingCode"`
	InstallerNamingCode     int            `json:"installerNamingCode"`
	FinanceNamingCode       int            `json:"financeNamingCode"`
	Status                  string         `json:"status"`
	CreatedAt               time.Time      `json:"createdAt"`
}

// Agreement is the terms-acceptance record behind stage 3.
type Agreement struct {
	UserID        string `json:"userId"`
	TermsAccepted bool   `json:"termsAccepted"`
	SignatureName string `json:"signatureName"`
}

// FinancialInfo is the finance/installer record behind stage 4.
type FinancialInfo struct {
	UserID        string `json:"userId"`
	FinanceType   string `json:"financeType"`
	FinanceCompany string `json:"financeCompany"`
	Installer     string `json:"installer"`
}

// MeterDescriptor describes a single utility meter returned by the
// user-meters endpoint.
type MeterDescriptor struct {
	MeterNumber    string `json:"meterNumber"`
	ServiceAddress string `json:"serviceAddress"`
	BillingAddress string `json:"billingAddress"`
}

// UserMeterEntry mirrors the upstream shape: one utility authorization
// with a nested meters list. Stage 5 requires at least one entry whose
// nested list is non-empty.
type UserMeterEntry struct {
	UtilityAuthEmail string `json:"utilityAuthEmail"`
	UtilityProvider  string `json:"utilityProvider"`
	Meters           struct {
		Meters []MeterDescriptor `json:"meters"`
	} `json:"meters"`
}

// HasMeters reports whether the entry carries at least one meter.
func (e UserMeterEntry) HasMeters() bool {
	return len(e.Meters.Meters) > 0
}

// AgreementUpload is a financial-agreement document staged in the session
// before being attached to a facility.
type AgreementUpload struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"-"`
}

// GreenButtonSubmission is the email-based authorization request for
// Green Button utilities.
type GreenButtonSubmission struct {
	UtilityProvider string `json:"utilityProvider"`
	Email           string `json:"email"`
}

// GreenButtonResult reports the outcome of the two-call Green Button
// sequence. EnqueueID identifies the authorization created by the first
// call; EmailRecorded is false when the second call failed.
type GreenButtonResult struct {
	EnqueueID     string `json:"enqueueId"`
	EmailRecorded bool   `json:"emailRecorded"`
}

// OperatorInvite asks the upstream to invite an operator to complete the
// utility authorization on the owner's behalf.
type OperatorInvite struct {
	Email        string `json:"email"`
	FacilityName string `json:"facilityName"`
	Message      string `json:"message"`
}

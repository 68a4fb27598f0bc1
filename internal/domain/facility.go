package domain

import "math"

// ownershipTolerance absorbs float drift when co-owner percentages are
// summed; anything further than this from 100 is a data-entry error.
const ownershipTolerance = 0.01

// ValidateOwnership checks that the primary owner's percentage plus all
// co-owner percentages totals 100. Only enforced when co-owners are
// declared; a sole owner submits without percentages. Runs before any
// upstream call.
func ValidateOwnership(primary float64, coOwners []CoOwner) error {
	if len(coOwners) == 0 {
		return nil
	}
	total := primary
	for _, co := range coOwners {
		if co.OwnershipPercentage <= 0 {
			return &ErrValidation{
				Field:   "ownershipPercentage",
				Message: "co-owner percentage must be positive",
			}
		}
		total += co.OwnershipPercentage
	}
	if math.Abs(total-100) > ownershipTolerance {
		return &ErrValidation{
			Field:   "ownershipPercentage",
			Message: "ownership percentages must total 100",
		}
	}
	return nil
}

// FinanceCash is the only finance type that does not require a financial
// agreement document.
const FinanceCash = "cash"

// FacilityForm is the facility-creation submission.
type FacilityForm struct {
	Nickname        string   `json:"nickname"`
	Address         string   `json:"address"`
	UtilityProvider string   `json:"utilityProvider"`
	MeterIDs        []string `json:"meterIds"`
	Installer       string   `json:"installer"`
	FinanceType     string   `json:"financeType"`
	// AgreementStaged mirrors the dashboard's uploadSuccess flag: a
	// financial-agreement document has been staged in the session.
	AgreementStaged bool `json:"agreementStaged"`
}

// CanSubmit is the submit-enablement rule, a pure function of the form.
// Every field must be present, and any finance type other than cash
// additionally requires a staged agreement document.
func (f FacilityForm) CanSubmit() bool {
	if f.Nickname == "" || f.Address == "" || f.UtilityProvider == "" ||
		len(f.MeterIDs) == 0 || f.Installer == "" || f.FinanceType == "" {
		return false
	}
	return f.FinanceType == FinanceCash || f.AgreementStaged
}

// agreementContentTypes is the client-side MIME allow-list for the
// financial-agreement upload.
var agreementContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
}

// ValidateAgreementUpload rejects empty or disallowed uploads.
func ValidateAgreementUpload(u AgreementUpload) error {
	if len(u.Content) == 0 {
		return &ErrValidation{Field: "file", Message: "file is empty"}
	}
	if !agreementContentTypes[u.ContentType] {
		return &ErrValidation{Field: "file", Message: "file type must be PDF, PNG or JPEG"}
	}
	return nil
}

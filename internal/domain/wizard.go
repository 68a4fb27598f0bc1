package domain

// WizardStep is one modal in the registration wizard.
type WizardStep string

const (
	StepClosed               WizardStep = "closed"
	StepRoleSelect           WizardStep = "role_select"
	StepOwnerDetails         WizardStep = "owner_details"
	StepOwnerOperatorDetails WizardStep = "owner_operator_details"
	StepTerms                WizardStep = "terms"
	StepFinance              WizardStep = "finance"
	StepUtilityNotice        WizardStep = "utility_notice"
	StepUtilityAuth          WizardStep = "utility_auth"
	StepInviteOperator       WizardStep = "invite_operator"
	StepFacilityCreate       WizardStep = "facility_create"
	StepSuccess              WizardStep = "success"
)

// FacilityKind distinguishes the commercial and residential dashboards.
type FacilityKind string

const (
	KindCommercial  FacilityKind = "commercial"
	KindResidential FacilityKind = "residential"
)

// Valid reports whether k is a known facility kind.
func (k FacilityKind) Valid() bool {
	return k == KindCommercial || k == KindResidential
}

// The original dashboard kept three near-duplicate modal hierarchies
// (Owner, Owner&Operator, Residential). Here there is exactly one table,
// indexed by (role, kind). The Owner path hands utility authorization to
// an invited operator and never shows facility creation; the
// Owner&Operator path self-serves authorization and creates the facility.
// Residential follows the Owner&Operator sequence.
var (
	ownerSequence = []WizardStep{
		StepRoleSelect,
		StepOwnerDetails,
		StepTerms,
		StepFinance,
		StepUtilityNotice,
		StepInviteOperator,
		StepSuccess,
	}
	ownerOperatorSequence = []WizardStep{
		StepRoleSelect,
		StepOwnerOperatorDetails,
		StepTerms,
		StepFinance,
		StepUtilityAuth,
		StepFacilityCreate,
		StepSuccess,
	}
)

func sequenceFor(role CommercialRole, kind FacilityKind) []WizardStep {
	if kind == KindResidential || role == RoleOwnerOperator {
		return ownerOperatorSequence
	}
	return ownerSequence
}

// NextStep returns the step that follows current on the (role, kind) path.
// Closed opens the wizard at role selection; Success is terminal. A step
// that does not belong to the path restarts at role selection rather than
// guessing.
func NextStep(current WizardStep, role CommercialRole, kind FacilityKind) WizardStep {
	if current == StepClosed {
		return StepRoleSelect
	}
	seq := sequenceFor(role, kind)
	for i, s := range seq {
		if s != current {
			continue
		}
		if i+1 < len(seq) {
			return seq[i+1]
		}
		return StepSuccess
	}
	return StepRoleSelect
}

// ResumeStep maps an onboarding stage to the modal that works on it:
// stage 2 is the details modal, stage 3 terms, stage 4 finance, stage 5
// the utility step for the path. Resuming at stage 4 therefore opens
// Finance directly, skipping the already-completed modals.
func ResumeStep(stage int, role CommercialRole, kind FacilityKind) WizardStep {
	seq := sequenceFor(role, kind)
	switch {
	case stage <= StageRegistered:
		return StepRoleSelect
	case stage == StageOwnerAddress:
		return seq[1] // owner or owner&operator details
	case stage == StageTermsAccepted:
		return StepTerms
	case stage == StageFinancialInfo:
		return StepFinance
	default:
		return seq[4] // utility notice or self-service auth
	}
}

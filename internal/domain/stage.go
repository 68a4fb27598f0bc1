package domain

// Onboarding stages. A stage is never stored; it is recomputed from four
// upstream completion checks on every evaluation.
const (
	StageRegistered    = 1 // account exists, nothing else done
	StageOwnerAddress  = 2 // commercial user has a non-empty owner address
	StageTermsAccepted = 3 // agreement record has termsAccepted=true
	StageFinancialInfo = 4 // financial-info record exists
	StageMeterAttached = 5 // at least one user-meter entry has meters
)

// StageSnapshot is one fetched view of the four completion checks.
// Fetching and reduction are kept separate so the reduction stays pure.
type StageSnapshot struct {
	OwnerAddressSet bool
	TermsAccepted   bool
	FinancialInfo   bool
	MeterAttached   bool

	// Degraded is set when any probe failed and its check was counted as
	// not-completed. The stage may understate actual progress.
	Degraded bool
}

// StageResult is what the dashboard consumes to render the progress bar
// and decide where the wizard resumes.
type StageResult struct {
	Stage       int  `json:"stage"`
	NextStage   int  `json:"nextStage"`
	HasFacility bool `json:"hasFacility"`
	Degraded    bool `json:"degraded"`
}

// ComputeStage reduces a snapshot to the highest stage whose check passed,
// scanning in increasing order. The scan is last-success-wins: a later
// check passing reports its stage even when earlier checks failed, so e.g.
// an attached meter alone yields stage 5. This mirrors the dashboard's
// long-standing behavior and is pinned by a regression test; do not make
// it monotonic without a product decision.
func ComputeStage(s StageSnapshot) int {
	stage := StageRegistered
	if s.OwnerAddressSet {
		stage = StageOwnerAddress
	}
	if s.TermsAccepted {
		stage = StageTermsAccepted
	}
	if s.FinancialInfo {
		stage = StageFinancialInfo
	}
	if s.MeterAttached {
		stage = StageMeterAttached
	}
	return stage
}

// NextStage returns the stage after s, capped at the final stage.
func NextStage(s int) int {
	if s >= StageMeterAttached {
		return StageMeterAttached
	}
	return s + 1
}

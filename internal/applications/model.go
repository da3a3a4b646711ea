// Package applications screens rental applications: a compliance guard, additive
// scoring rules and a decision policy, orchestrated by Service.
package applications

import (
	"strings"
	"time"
)

type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusEvaluating Status = "evaluating"
	StatusApproved   Status = "approved"
	StatusDenied     Status = "denied"
	// StatusPendingReview holds a decision that needs an individualized assessment
	// by a person before anyone contacts the applicant.
	StatusPendingReview Status = "pending_review"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusSubmitted, StatusEvaluating, StatusApproved, StatusDenied, StatusPendingReview}
}

func (s Status) rank() int {
	switch s {
	case StatusSubmitted:
		return 0
	case StatusEvaluating:
		return 1
	case StatusApproved, StatusDenied, StatusPendingReview:
		return 2
	default:
		return -1
	}
}

func (s Status) Valid() bool { return s.rank() >= 0 }

// Final reports whether the application has a decision.
func (s Status) Final() bool { return s.rank() == 2 }

type Outcome string

const (
	OutcomeApproved    Outcome = "approved"
	OutcomeConditional Outcome = "conditional"
	OutcomeDenied      Outcome = "denied"
	OutcomePending     Outcome = "pending"
)

// Status maps a decision outcome to the record status it settles on. A conditional
// approval is still an approval.
func (o Outcome) Status() Status {
	switch o {
	case OutcomeApproved, OutcomeConditional:
		return StatusApproved
	case OutcomePending:
		return StatusPendingReview
	default:
		return StatusDenied
	}
}

type Household struct {
	Adults            int `json:"adults"`
	Children          int `json:"children"`
	BedroomsRequested int `json:"bedrooms_requested"`
}

type RentalHistory struct {
	Evictions    int `json:"evictions"`
	LatePayments int `json:"late_payments"`
}

type CriminalClassification string

const (
	ViolentFelony    CriminalClassification = "violent_felony"
	NonViolentFelony CriminalClassification = "non_violent_felony"
	Misdemeanor      CriminalClassification = "misdemeanor"
)

func (c CriminalClassification) Valid() bool {
	switch c {
	case ViolentFelony, NonViolentFelony, Misdemeanor:
		return true
	}
	return false
}

// CriminalRecord is one conviction reported by the background screen.
type CriminalRecord struct {
	Classification CriminalClassification `json:"classification"`
	YearsSince     int                    `json:"years_since"`
}

// Application is the submitted input. Money amounts are whole dollars per month.
type Application struct {
	ApplicantID   string    `json:"applicant_id"`
	UnitID        string    `json:"unit_id"`
	ApplicantName string    `json:"applicant_name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Household     Household `json:"household"`
	MonthlyIncome int       `json:"monthly_income"`
	// VerifiedIncomeSources names the income documents on file, e.g. "paystub".
	VerifiedIncomeSources []string          `json:"verified_income_sources,omitempty"`
	CreditScore           *int              `json:"credit_score,omitempty"`
	RentalHistory         RentalHistory     `json:"rental_history"`
	CriminalHistory       []CriminalRecord  `json:"criminal_history,omitempty"`
	VoucherMonthly        int               `json:"voucher_monthly,omitempty"`
	RequestedRent         int               `json:"requested_rent"`
	DepositAmount         int               `json:"deposit_amount"`
	Jurisdiction          string            `json:"jurisdiction,omitempty"`
	Screening             map[string]string `json:"screening,omitempty"`
}

type Factor string

const (
	FactorRentToIncome   Factor = "rent_to_income"
	FactorCreditScore    Factor = "credit_score"
	FactorRentalHistory  Factor = "rental_history"
	FactorLatePayments   Factor = "late_payments"
	FactorVoucher        Factor = "voucher_coverage"
	FactorDepositWithCap Factor = "deposit_compliance"
)

// ScoreComponent is one rule's contribution. HardFail forces a denial.
type ScoreComponent struct {
	Factor        Factor `json:"factor"`
	Points        int    `json:"points"`
	Justification string `json:"justification"`
	HardFail      bool   `json:"hard_fail,omitempty"`
}

type Decision struct {
	Outcome         Outcome  `json:"outcome"`
	Rationale       string   `json:"rationale"`
	TotalScore      int      `json:"total_score"`
	RequiredActions []string `json:"required_actions,omitempty"`
}

// Record is the full internal view of an application. Never render it externally
// without Redacted.
type Record struct {
	ID          string           `json:"id"`
	Application Application      `json:"application"`
	Status      Status           `json:"status"`
	Components  []ScoreComponent `json:"components"`
	Decision    *Decision        `json:"decision,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	EvaluatedAt *time.Time       `json:"evaluated_at,omitempty"`
}

// PublicView is the only shape that leaves the service boundary for applicants.
type PublicView struct {
	ApplicationID     string `json:"application_id"`
	Status            Status `json:"status"`
	DecisionRationale string `json:"decision_rationale"`
	TotalScore        int    `json:"total_score"`
}

const pendingRationale = "pending evaluation"

func (r Record) Public() PublicView {
	v := PublicView{ApplicationID: r.ID, Status: r.Status, DecisionRationale: pendingRationale}
	if r.Decision != nil {
		v.DecisionRationale = r.Decision.Rationale
		v.TotalScore = r.Decision.TotalScore
	}
	return v
}

// Redacted masks contact details and drops screening answers and criminal history.
func (r Record) Redacted() Record {
	out := r
	out.Application.ApplicantName = maskName(r.Application.ApplicantName)
	out.Application.Email = maskEmail(r.Application.Email)
	out.Application.Phone = maskPhone(r.Application.Phone)
	out.Application.Screening = nil
	out.Application.CriminalHistory = nil
	out.Application.VerifiedIncomeSources = append([]string(nil), r.Application.VerifiedIncomeSources...)
	if r.Application.CreditScore != nil {
		v := *r.Application.CreditScore
		out.Application.CreditScore = &v
	}
	out.Components = append([]ScoreComponent(nil), r.Components...)
	if r.Decision != nil {
		d := *r.Decision
		d.RequiredActions = append([]string(nil), r.Decision.RequiredActions...)
		out.Decision = &d
	}
	return out
}

func maskName(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	return string([]rune(v)[:1]) + "***"
}

func maskEmail(v string) string {
	at := strings.LastIndex(v, "@")
	if at <= 0 {
		return maskName(v)
	}
	return string([]rune(v)[:1]) + "***" + v[at:]
}

func maskPhone(v string) string {
	digits := make([]rune, 0, len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		if v == "" {
			return ""
		}
		return "***"
	}
	return "***-***-" + string(digits[len(digits)-4:])
}

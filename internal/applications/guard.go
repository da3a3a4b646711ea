package applications

import (
	"fmt"
	"sort"
	"strings"

	"vacancyline/internal/domain"
)

// protectedFields are screening keys that must never be collected, normalized to
// lower snake case.
var protectedFields = map[string]bool{
	"race":               true,
	"color":              true,
	"religion":           true,
	"creed":              true,
	"sex":                true,
	"national_origin":    true,
	"familial_status":    true,
	"disability":         true,
	"sexual_orientation": true,
	"gender_identity":    true,
	"age":                true,
	"marital_status":     true,
}

var fieldKeyReplacer = strings.NewReplacer(" ", "_", "-", "_")

func screeningKey(k string) string {
	return fieldKeyReplacer.Replace(strings.ToLower(strings.TrimSpace(k)))
}

// Guard checks an application before any scoring happens.
func Guard(app Application, cfg Config) error {
	var missing []string
	if strings.TrimSpace(app.ApplicantID) == "" {
		missing = append(missing, "applicant_id")
	}
	if strings.TrimSpace(app.UnitID) == "" {
		missing = append(missing, "unit_id")
	}
	if app.Household.Adults < 1 {
		missing = append(missing, "household.adults")
	}
	if app.MonthlyIncome <= 0 {
		missing = append(missing, "monthly_income")
	}
	if app.RequestedRent <= 0 {
		missing = append(missing, "requested_rent")
	}
	if len(missing) > 0 {
		return &IncompleteApplicationError{Missing: missing}
	}

	var protected []string
	for k := range app.Screening {
		if key := screeningKey(k); protectedFields[key] {
			protected = append(protected, key)
		}
	}
	if len(protected) > 0 {
		sort.Strings(protected)
		return &ComplianceViolationError{
			Rule:   "protected_class_inquiry",
			Detail: "screening captured protected characteristics: " + strings.Join(protected, ", "),
		}
	}

	if cfg.RequireIncomeDocumentation && !hasVerifiedIncome(app) {
		return &ComplianceViolationError{
			Rule:   "missing_income_documentation",
			Detail: "no verified income documentation on file",
		}
	}

	for i, rec := range app.CriminalHistory {
		if !rec.Classification.Valid() || rec.YearsSince < 0 {
			return &domain.ValidationError{
				Field:   fmt.Sprintf("criminal_history[%d]", i),
				Message: fmt.Sprintf("unknown classification %q or negative years_since", rec.Classification),
			}
		}
	}

	if cfg.conditionOnDeposit() {
		return nil
	}
	if limit, ok := cfg.depositCap(app.Jurisdiction, app.RequestedRent); ok && app.DepositAmount > limit {
		return &ComplianceViolationError{
			Rule:   "security_deposit_cap",
			Detail: fmt.Sprintf("deposit %d exceeds cap %d", app.DepositAmount, limit),
		}
	}
	return nil
}

func hasVerifiedIncome(app Application) bool {
	for _, src := range app.VerifiedIncomeSources {
		if strings.TrimSpace(src) != "" {
			return true
		}
	}
	return false
}

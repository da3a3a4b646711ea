package applications

import (
	"fmt"
	"math"
	"strings"
)

// DepositCapAction decides what happens to a deposit above the jurisdiction cap.
type DepositCapAction string

const (
	// DepositCapReject refuses the application at the guard.
	DepositCapReject DepositCapAction = "reject"
	// DepositCapCondition lets it through and approves only on condition the
	// deposit is lowered.
	DepositCapCondition DepositCapAction = "condition"
)

// Config holds the screening thresholds. Deposit caps are rent multipliers keyed by
// upper-case jurisdiction code.
type Config struct {
	MaxRentToIncome            float64            `yaml:"max_rent_to_income" json:"max_rent_to_income"`
	MinCreditScore             int                `yaml:"min_credit_score" json:"min_credit_score"`
	MaxEvictions               int                `yaml:"max_evictions" json:"max_evictions"`
	MaxLatePayments            int                `yaml:"max_late_payments" json:"max_late_payments"`
	ApprovalMinScore           int                `yaml:"approval_min_score" json:"approval_min_score"`
	ViolentFelonyLookbackYears int                `yaml:"violent_felony_lookback_years" json:"violent_felony_lookback_years"`
	RequireIncomeDocumentation bool               `yaml:"require_income_documentation" json:"require_income_documentation"`
	DefaultJurisdiction        string             `yaml:"default_jurisdiction" json:"default_jurisdiction"`
	DepositCapMultipliers      map[string]float64 `yaml:"deposit_cap_multipliers" json:"deposit_cap_multipliers"`
	DepositCapAction           DepositCapAction   `yaml:"deposit_cap_action" json:"deposit_cap_action"`
}

func DefaultConfig() Config {
	return Config{
		MaxRentToIncome:            0.28,
		MinCreditScore:             650,
		MaxEvictions:               0,
		MaxLatePayments:            2,
		ApprovalMinScore:           50,
		ViolentFelonyLookbackYears: 7,
		RequireIncomeDocumentation: true,
		DefaultJurisdiction:        "IA",
		DepositCapMultipliers:      map[string]float64{"IA": 2.0},
		DepositCapAction:           DepositCapReject,
	}
}

func (c Config) Validate() error {
	if c.MaxRentToIncome <= 0 || c.MaxRentToIncome > 1 {
		return fmt.Errorf("max_rent_to_income must be within (0, 1]")
	}
	if c.MinCreditScore < 0 {
		return fmt.Errorf("min_credit_score must be >= 0")
	}
	if c.MaxEvictions < 0 || c.MaxLatePayments < 0 {
		return fmt.Errorf("rental history allowances must be >= 0")
	}
	if c.ViolentFelonyLookbackYears < 0 {
		return fmt.Errorf("violent_felony_lookback_years must be >= 0")
	}
	switch c.DepositCapAction {
	case "", DepositCapReject, DepositCapCondition:
	default:
		return fmt.Errorf("deposit_cap_action must be reject or condition, got %q", c.DepositCapAction)
	}
	for code, m := range c.DepositCapMultipliers {
		if m <= 0 {
			return fmt.Errorf("deposit cap multiplier for %s must be > 0", code)
		}
	}
	return nil
}

// conditionOnDeposit reports whether an over-cap deposit becomes an approval
// condition instead of a guard rejection.
func (c Config) conditionOnDeposit() bool {
	return c.DepositCapAction == DepositCapCondition
}

var jurisdictionNames = map[string]string{
	"IA": "Iowa",
	"IL": "Illinois",
	"MN": "Minnesota",
	"NE": "Nebraska",
	"WI": "Wisconsin",
}

// JurisdictionName returns the state name for an upper-case jurisdiction code.
func JurisdictionName(code string) (string, bool) {
	name, ok := jurisdictionNames[code]
	return name, ok
}

// JurisdictionName returns the display name for a jurisdiction code, falling back
// to the default jurisdiction when code is blank and to the code itself when the
// name is unknown.
func (c Config) JurisdictionName(code string) string {
	code = c.jurisdictionCode(code)
	if name, ok := JurisdictionName(code); ok {
		return name
	}
	return code
}

// JurisdictionCode resolves a blank code to the default jurisdiction.
func (c Config) JurisdictionCode(code string) string { return c.jurisdictionCode(code) }

func (c Config) jurisdictionCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = strings.ToUpper(strings.TrimSpace(c.DefaultJurisdiction))
	}
	return code
}

// DepositCapMultiplier returns the rent multiplier capping deposits in the
// jurisdiction, or false when none is known.
func (c Config) DepositCapMultiplier(jurisdiction string) (float64, bool) {
	m, ok := c.DepositCapMultipliers[c.jurisdictionCode(jurisdiction)]
	return m, ok
}

// depositCap returns the statutory cap for the jurisdiction, or false when none is known.
func (c Config) depositCap(jurisdiction string, rent int) (int, bool) {
	m, ok := c.DepositCapMultiplier(jurisdiction)
	if !ok {
		return 0, false
	}
	return int(math.Ceil(float64(rent) * m)), true
}

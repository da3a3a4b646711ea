package applications

import (
	"fmt"
	"math"
	"strings"
)

// Rule scores one lawful factor. A rule that does not apply returns false.
type Rule func(app Application, cfg Config) (ScoreComponent, bool)

// Rules lists every scoring rule. Order only affects component display order.
func Rules() []Rule {
	return []Rule{
		rentToIncomeRule,
		creditRule,
		evictionRule,
		latePaymentRule,
		voucherRule,
		depositRule,
	}
}

// RentToIncome is the share of income spent on rent after the voucher. It is not
// rounded; justifications round for display only.
func RentToIncome(app Application) float64 {
	if app.MonthlyIncome <= 0 {
		return math.Inf(1)
	}
	portion := app.RequestedRent - app.VoucherMonthly
	if portion < 0 {
		portion = 0
	}
	return float64(portion) / float64(app.MonthlyIncome)
}

func rentToIncomeRule(app Application, cfg Config) (ScoreComponent, bool) {
	ratio := RentToIncome(app)
	if ratio >= cfg.MaxRentToIncome {
		return ScoreComponent{
			Factor:        FactorRentToIncome,
			Points:        -40,
			Justification: fmt.Sprintf("rent-to-income ratio %.4f meets or exceeds maximum %.2f", ratio, cfg.MaxRentToIncome),
			HardFail:      true,
		}, true
	}
	// Truncated so a ratio just under the maximum never prints as equal to it.
	shown := math.Floor(ratio*10000) / 10000
	return ScoreComponent{
		Factor:        FactorRentToIncome,
		Points:        30,
		Justification: fmt.Sprintf("rent-to-income ratio %.4f below maximum %.2f", shown, cfg.MaxRentToIncome),
	}, true
}

func creditRule(app Application, cfg Config) (ScoreComponent, bool) {
	if app.CreditScore == nil {
		return ScoreComponent{Factor: FactorCreditScore, Points: -10, Justification: "no credit history on file"}, true
	}
	score := *app.CreditScore
	if score < cfg.MinCreditScore {
		return ScoreComponent{
			Factor:        FactorCreditScore,
			Points:        -25,
			Justification: fmt.Sprintf("credit score %d below minimum %d", score, cfg.MinCreditScore),
			HardFail:      true,
		}, true
	}
	return ScoreComponent{
		Factor:        FactorCreditScore,
		Points:        20,
		Justification: fmt.Sprintf("credit score %d meets minimum %d", score, cfg.MinCreditScore),
	}, true
}

func evictionRule(app Application, cfg Config) (ScoreComponent, bool) {
	n := app.RentalHistory.Evictions
	switch {
	case n == 0:
		return ScoreComponent{Factor: FactorRentalHistory, Points: 10, Justification: "no prior evictions"}, true
	case n <= cfg.MaxEvictions:
		return ScoreComponent{
			Factor:        FactorRentalHistory,
			Points:        -10,
			Justification: fmt.Sprintf("%d eviction(s) within allowance %d", n, cfg.MaxEvictions),
		}, true
	default:
		return ScoreComponent{
			Factor:        FactorRentalHistory,
			Points:        -25,
			Justification: fmt.Sprintf("%d eviction(s) exceed allowance %d", n, cfg.MaxEvictions),
			HardFail:      true,
		}, true
	}
}

func latePaymentRule(app Application, cfg Config) (ScoreComponent, bool) {
	n := app.RentalHistory.LatePayments
	if n <= cfg.MaxLatePayments {
		return ScoreComponent{}, false
	}
	return ScoreComponent{
		Factor:        FactorLatePayments,
		Points:        -5,
		Justification: fmt.Sprintf("%d late payment(s) exceed allowance %d", n, cfg.MaxLatePayments),
	}, true
}

func voucherRule(app Application, _ Config) (ScoreComponent, bool) {
	if app.VoucherMonthly <= 0 {
		return ScoreComponent{}, false
	}
	coverage := 100 * float64(app.VoucherMonthly) / float64(app.RequestedRent)
	return ScoreComponent{
		Factor:        FactorVoucher,
		Points:        5,
		Justification: fmt.Sprintf("voucher covers %.0f%% of rent", math.Min(coverage, 100)),
	}, true
}

func depositRule(app Application, cfg Config) (ScoreComponent, bool) {
	limit, ok := cfg.depositCap(app.Jurisdiction, app.RequestedRent)
	if !ok || app.DepositAmount > limit {
		return ScoreComponent{}, false
	}
	return ScoreComponent{
		Factor:        FactorDepositWithCap,
		Points:        5,
		Justification: fmt.Sprintf("deposit %d within cap %d", app.DepositAmount, limit),
	}, true
}

// Score runs every rule and returns the components with their sum.
func Score(app Application, cfg Config) ([]ScoreComponent, int) {
	components := []ScoreComponent{}
	total := 0
	for _, rule := range Rules() {
		c, ok := rule(app, cfg)
		if !ok {
			continue
		}
		components = append(components, c)
		total += c.Points
	}
	return components, total
}

// recentViolentFelony returns the most recent violent felony inside the lookback
// window.
func recentViolentFelony(app Application, cfg Config) (CriminalRecord, bool) {
	var found CriminalRecord
	ok := false
	for _, rec := range app.CriminalHistory {
		if rec.Classification != ViolentFelony || rec.YearsSince > cfg.ViolentFelonyLookbackYears {
			continue
		}
		if !ok || rec.YearsSince < found.YearsSince {
			found, ok = rec, true
		}
	}
	return found, ok
}

// Decide maps scored components to a decision. A violent felony inside the lookback
// window is never decided automatically and goes to manual review. Otherwise any
// hard failure denies, naming each failing factor, and the total is compared with
// the approval minimum. An approval with a deposit above the cap is conditional.
func Decide(app Application, components []ScoreComponent, total int, cfg Config) Decision {
	if rec, ok := recentViolentFelony(app, cfg); ok {
		return Decision{
			Outcome: OutcomePending,
			Rationale: fmt.Sprintf("manual review required: violent felony %d year(s) ago is within the %d-year lookback; "+
				"an individualized assessment is required before a decision", rec.YearsSince, cfg.ViolentFelonyLookbackYears),
			TotalScore: total,
		}
	}
	var failures []string
	for _, c := range components {
		if c.HardFail {
			failures = append(failures, c.Justification)
		}
	}
	if len(failures) > 0 {
		return Decision{Outcome: OutcomeDenied, Rationale: strings.Join(failures, "; "), TotalScore: total}
	}
	if total < cfg.ApprovalMinScore {
		return Decision{
			Outcome:    OutcomeDenied,
			Rationale:  fmt.Sprintf("total score %d below approval minimum %d", total, cfg.ApprovalMinScore),
			TotalScore: total,
		}
	}
	rationale := fmt.Sprintf("total score %d meets approval minimum %d", total, cfg.ApprovalMinScore)
	if limit, ok := cfg.depositCap(app.Jurisdiction, app.RequestedRent); ok && app.DepositAmount > limit {
		action := fmt.Sprintf("Adjust deposit to %s cap", cfg.JurisdictionName(app.Jurisdiction))
		return Decision{
			Outcome:         OutcomeConditional,
			Rationale:       fmt.Sprintf("%s; conditional on: %s (%d)", rationale, action, limit),
			TotalScore:      total,
			RequiredActions: []string{action},
		}
	}
	return Decision{Outcome: OutcomeApproved, Rationale: rationale, TotalScore: total}
}

// Evaluate scores and decides in one pure step.
func Evaluate(app Application, cfg Config) ([]ScoreComponent, Decision) {
	components, total := Score(app, cfg)
	return components, Decide(app, components, total, cfg)
}

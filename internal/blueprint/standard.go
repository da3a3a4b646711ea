package blueprint

import "vacancyline/internal/domain"

// Standard returns the turnover blueprint used for every vacancy unless a caller
// supplies its own.
func Standard() *Blueprint {
	bp, err := New(StandardVersion, standardTemplates())
	if err != nil {
		panic(err)
	}
	return bp
}

func standardTemplates() []domain.TaskTemplate {
	return []domain.TaskTemplate{
		{
			ID:    "marketing_publish_listing",
			Name:  "Create and Publish Listing",
			Stage: domain.StageMarketing,
			Role:  domain.RoleLeasingAgent,
			Due:   domain.DaysFromVacancy(0),
			Deliverables: []string{
				"Draft a fresh listing that highlights unit features, affordability programs, and rent ready date.",
				"Upload current listing photos or virtual tour links before publishing.",
				"Syndicate to Zillow, Apartments.com, social media, and capture marketing URLs for reporting.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "Iowa Code § 562A.29 reasonable re-rental efforts",
				Detail: "Document every marketing channel touch to evidence reasonable efforts to re-rent (Iowa Code § 562A.29).",
			}},
		},
		{
			ID:    "marketing_update_appfolio",
			Name:  "Update Vacancy Status in AppFolio",
			Stage: domain.StageMarketing,
			Role:  domain.RoleLeasingAgent,
			Due:   domain.DaysFromVacancy(0),
			Deliverables: []string{
				`Switch the unit status from "Turnover" to "Vacant" in AppFolio immediately after make-ready sign-off.`,
				"Confirm listing syndication triggers fired for all partner channels.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "System of record accuracy",
				Detail: "Accurate AppFolio statuses keep vacancy analytics, owner reporting, and marketing automation in sync.",
			}},
		},
		{
			ID:    "screening_manage_inquiries",
			Name:  "Manage Inquiries and Schedule Showings",
			Stage: domain.StageScreening,
			Role:  domain.RoleLeasingAgent,
			Due:   domain.DaysFromVacancy(0),
			Deliverables: []string{
				"Respond to every inquiry within one business day using standardized messaging to preserve Fair Housing parity.",
				"Capture pre-screen answers covering move timeline, household composition, pets, and program eligibility.",
				"Offer pre-defined showing blocks via scheduling links to minimize back-and-forth.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "Fair Housing and Iowa Civil Rights Act parity",
				Detail: "Consistent response cadences prevent disparate treatment across protected classes and leave an audit trail.",
			}},
		},
		{
			ID:    "screening_process_applications",
			Name:  "Process Rental Applications",
			Stage: domain.StageScreening,
			Role:  domain.RoleLeasingAgent,
			Due:   domain.DaysFromVacancy(2),
			Deliverables: []string{
				"Review each application within 48 hours and request missing fields immediately.",
				"Collect income, asset, and household documentation aligned with LIHTC and program requirements.",
				"Complete credit, background, and landlord verifications before rendering a decision.",
			},
			Compliance: []domain.ComplianceNote{
				{
					Topic:  "Documented screening criteria",
					Detail: "Apply published screening criteria uniformly and retain documentation for adverse action defense.",
				},
				{
					Topic:  "LIHTC source-of-income verification",
					Detail: "Secure third-party income documentation to support Tenant Income Certification (TIC) files.",
				},
			},
		},
		{
			ID:    "screening_notify_applicants",
			Name:  "Notify Applicants of Status",
			Stage: domain.StageScreening,
			Role:  domain.RoleLeasingAgent,
			Due:   domain.DaysFromVacancy(2),
			Deliverables: []string{
				"Send approvals with next-step instructions and payment expectations.",
				"Issue denials with compliant adverse action language and timestamp outcomes in the CRM.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "Adverse action documentation",
				Detail: "Retain copies of denial notices and credit disclosures to satisfy Fair Credit Reporting Act obligations.",
			}},
		},
		{
			ID:    "leasing_prepare_agreement",
			Name:  "Prepare Lease Agreement",
			Stage: domain.StageLeasing,
			Role:  domain.RoleLeasingAgent,
			Due:   domain.DaysFromVacancy(5),
			Deliverables: []string{
				"Merge approved terms into the LIHTC-compliant lease packet and distribute for e-signature.",
				"Confirm all addenda (e.g., VAWA, house rules) are attached before sending.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "Lease artifact completeness",
				Detail: "Incomplete lease packets jeopardize move-in readiness and downstream LIHTC audits.",
			}},
		},
		{
			ID:    "leasing_collect_funds",
			Name:  "Collect Move-In Funds",
			Stage: domain.StageLeasing,
			Role:  domain.RolePropertyManagerAccounting,
			Due:   domain.DaysBeforeMoveIn(5),
			Deliverables: []string{
				"Collect prorated rent, deposits, and fees; post receipts to the resident ledger.",
				"Confirm deposit amounts stay within Iowa caps (≤ two months rent).",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "Security deposit limits",
				Detail: "Deposits exceeding state limits expose the portfolio to statutory penalties.",
			}},
			Critical: true,
		},
		{
			ID:    "leasing_conduct_move_in_inspection",
			Name:  "Conduct Move-In Inspection",
			Stage: domain.StageLeasing,
			Role:  domain.RolePropertyManager,
			Due:   domain.OnMoveIn(),
			Deliverables: []string{
				"Complete digital inspection checklist with tenant present and capture photos of every room.",
				"Upload signed inspection and media to AppFolio for permanent recordkeeping.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "Move-in condition documentation",
				Detail: "Thorough inspections limit security deposit disputes and support future turn charges.",
			}},
		},
		{
			ID:    "leasing_lihtc_certification",
			Name:  "Complete LIHTC Initial Certification",
			Stage: domain.StageLeasing,
			Role:  domain.RoleComplianceCoordinator,
			Due:   domain.DaysBeforeMoveIn(3),
			Deliverables: []string{
				"Collect signed Tenant Income Certification (TIC) and applicable student status affidavits.",
				"Verify income against current IFA limits and retain third-party documentation.",
				"Issue VAWA notices and ensure household files are audit ready.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "LIHTC eligibility lock-in",
				Detail: "Certification must be finalized at least three days before move-in to maintain LIHTC compliance.",
			}},
			Critical: true,
		},
		{
			ID:    "handoff_start_new_resident_workflow",
			Name:  "Handoff to New Resident Workflow",
			Stage: domain.StageHandoff,
			Role:  domain.RolePropertyManager,
			Due:   domain.OnMoveIn(),
			Deliverables: []string{
				`Update the unit status from "Vacant" to "Occupied" in AppFolio once keys are released.`,
				"Trigger the New Resident onboarding workflow with welcome communications and follow-up tasks.",
			},
			Compliance: []domain.ComplianceNote{{
				Topic:  "Operational handoff completeness",
				Detail: "Transitioning to onboarding ensures services, compliance tracking, and resident engagement continue seamlessly.",
			}},
		},
	}
}

// HandoffTaskID is the task whose completion closes a vacancy workflow.
const HandoffTaskID = "handoff_start_new_resident_workflow"

package marketing

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"vacancyline/internal/applications"
	"vacancyline/internal/domain"
)

// Publisher builds listing plans. Prospects are screened with Config so listing
// copy and screening never disagree about the published criteria.
type Publisher struct {
	Gateway Gateway
	Config  applications.Config
}

func NewPublisher(g Gateway, cfg applications.Config) *Publisher {
	return &Publisher{Gateway: g, Config: cfg}
}

// Prepare builds the plan for one listing. Prospects are screened before the draft
// document is created, so a rejected prospect leaves nothing behind in the store.
func (p *Publisher) Prepare(ctx context.Context, in Input) (Plan, error) {
	listing := in.Listing
	available, err := validateListing(listing)
	if err != nil {
		return Plan{}, err
	}

	media, err := p.Gateway.ListUnitMedia(ctx, listing.MediaFolderID)
	if err != nil {
		return Plan{}, errors.Wrap(err, "list unit media")
	}
	photos := Images(media)

	outcomes, err := p.screen(listing, in.Prospects)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Description:       Description(listing, available, len(photos) > 0, p.Config),
		SelectedPhotos:    photos,
		MissingPhotos:     len(photos) == 0,
		ComplianceSummary: ComplianceSummary(listing.Jurisdiction, p.Config),
		ProspectOutcomes:  outcomes,
	}
	body, err := renderDocument(listing, available, plan)
	if err != nil {
		return Plan{}, err
	}
	title := fmt.Sprintf("%s %s Listing Marketing Draft", listing.PropertyName, listing.UnitID)
	plan.DocumentID, err = p.Gateway.CreateListingDocument(ctx, title, body, listing.MediaFolderID)
	if err != nil {
		return Plan{}, errors.Wrap(err, "create listing document")
	}
	return plan, nil
}

func validateListing(l ListingContext) (time.Time, error) {
	if strings.TrimSpace(l.UnitID) == "" {
		return time.Time{}, &domain.ValidationError{Field: "listing.unit_id", Message: "listing.unit_id is required"}
	}
	if l.Rent <= 0 {
		return time.Time{}, &domain.ValidationError{Field: "listing.rent", Message: "listing.rent must be > 0"}
	}
	if l.Deposit < 0 {
		return time.Time{}, &domain.ValidationError{Field: "listing.deposit", Message: "listing.deposit must be >= 0"}
	}
	return domain.ParseDate("listing.available_on", l.AvailableOn)
}

// Images keeps the media that can be shown as listing photos, in folder order.
func Images(media []Media) []Media {
	out := []Media{}
	for _, m := range media {
		if m.IsImage() {
			out = append(out, m)
		}
	}
	return out
}

func (p *Publisher) screen(listing ListingContext, prospects []Prospect) ([]ProspectOutcome, error) {
	out := make([]ProspectOutcome, 0, len(prospects))
	for _, pr := range prospects {
		app := pr.Application
		if strings.TrimSpace(app.ApplicantID) == "" {
			app.ApplicantID = ProspectID(pr.Name)
		}
		if strings.TrimSpace(app.UnitID) == "" {
			app.UnitID = listing.UnitID
		}
		if app.RequestedRent == 0 {
			app.RequestedRent = listing.Rent
		}
		if app.DepositAmount == 0 {
			app.DepositAmount = listing.Deposit
		}
		if strings.TrimSpace(app.Jurisdiction) == "" {
			app.Jurisdiction = listing.Jurisdiction
		}
		if err := applications.Guard(app, p.Config); err != nil {
			return nil, fmt.Errorf("prospect %s: %w", pr.Name, err)
		}
		_, decision := applications.Evaluate(app, p.Config)
		out = append(out, ProspectOutcome{
			Name:        pr.Name,
			ApplicantID: app.ApplicantID,
			Outcome:     decision.Outcome,
			Summary:     decisionSummary(decision),
			Rationale:   prospectRationale(decision, app),
			TotalScore:  decision.TotalScore,
		})
	}
	return out, nil
}

func decisionSummary(d applications.Decision) string {
	switch d.Outcome {
	case applications.OutcomeApproved:
		return "application approved"
	case applications.OutcomeConditional:
		return "conditional approval: " + strings.Join(d.RequiredActions, ", ")
	case applications.OutcomePending:
		return "manual review required"
	default:
		return "application denied"
	}
}

func prospectRationale(d applications.Decision, app applications.Application) string {
	var core string
	switch d.Outcome {
	case applications.OutcomeApproved:
		core = fmt.Sprintf("Approved with composite score %d; applicant meets published lawful factors.", d.TotalScore)
	case applications.OutcomeConditional:
		core = fmt.Sprintf("Conditional approval (score %d): %s.", d.TotalScore, strings.Join(d.RequiredActions, ", "))
	case applications.OutcomePending:
		core = fmt.Sprintf("Manual review required (score %d): %s.", d.TotalScore, d.Rationale)
	default:
		core = fmt.Sprintf("Denied (score %d): %s.", d.TotalScore, d.Rationale)
	}
	core += " Decision is communicated with Fair Housing-compliant adverse action language when necessary."
	if len(app.CriminalHistory) > 0 {
		core += " Criminal background reviewed in accordance with HUD disparate impact guidance."
	}
	return core
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// ProspectID derives a readable applicant id from a prospect name, e.g.
// "José Núñez" becomes "demo-jose-nunez".
func ProspectID(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, stripMarks, norm.NFC), name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "demo-applicant"
	}
	return "demo-" + slug
}

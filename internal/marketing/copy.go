package marketing

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/pkg/errors"

	"vacancyline/internal/applications"
)

const availableLayout = "January 2, 2006"

func headline(l ListingContext, available time.Time) string {
	return fmt.Sprintf("%s %s, available %s", l.PropertyName, l.UnitID, available.Format(availableLayout))
}

func incomeRequirement(cfg applications.Config) string {
	if cfg.MaxRentToIncome <= 0 {
		return "steady verifiable income meeting published criteria"
	}
	return fmt.Sprintf("steady verifiable income of at least %.1fx rent", 1/cfg.MaxRentToIncome)
}

func fairHousingLaws(jurisdiction string, cfg applications.Config) string {
	if name, ok := applications.JurisdictionName(cfg.JurisdictionCode(jurisdiction)); ok {
		return "the Fair Housing Act and the " + name + " Civil Rights Act"
	}
	return "the Fair Housing Act and applicable state fair housing law"
}

// Description renders the listing copy. Prequalifiers are derived from the
// screening config so advertised criteria match the ones applied.
func Description(l ListingContext, available time.Time, hasPhotos bool, cfg applications.Config) string {
	var b strings.Builder
	fmt.Fprintln(&b, headline(l, available))
	fmt.Fprintf(&b, "Address: %s\n", l.Address)
	fmt.Fprintf(&b, "%d bedroom / %.1f bath | %d sq ft | $%d per month\n", l.Bedrooms, l.Bathrooms, l.SquareFeet, l.Rent)
	b.WriteByte('\n')

	if len(l.Amenities) > 0 {
		fmt.Fprintf(&b, "Amenities: %s\n", strings.Join(l.Amenities, ", "))
	}
	if len(l.NeighborhoodHighlights) > 0 {
		fmt.Fprintf(&b, "Neighborhood highlights: %s\n", strings.Join(l.NeighborhoodHighlights, ", "))
	}
	if len(l.NearbySchools) > 0 {
		fmt.Fprintf(&b, "Nearby schools: %s\n", strings.Join(l.NearbySchools, ", "))
	}
	if hasPhotos {
		fmt.Fprintln(&b, "Marketing assets: Refreshed photo set pulled from the unit media folder.")
	} else {
		fmt.Fprintln(&b, "Marketing assets: Requesting refreshed photography to keep the listing current.")
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "Prequalifiers: No smoking, no pets (service animals always welcome), %s, "+
		"no violent criminal history within the past %d years, and applicants must not be on any sex offender registry.\n",
		incomeRequirement(cfg), cfg.ViolentFelonyLookbackYears)
	fmt.Fprintf(&b, "We proudly comply with %s. Marketing language focuses on unit features and availability "+
		"without steering or excluding protected classes.\n", fairHousingLaws(l.Jurisdiction, cfg))
	return b.String()
}

// ComplianceSummary states the guard rails applied to the listing's jurisdiction.
func ComplianceSummary(jurisdiction string, cfg applications.Config) string {
	deposit := "no statutory deposit cap on file for " + cfg.JurisdictionName(jurisdiction)
	if m, ok := cfg.DepositCapMultiplier(jurisdiction); ok {
		deposit = fmt.Sprintf("deposit capped at %.1fx rent", m)
	}
	parts := []string{
		fmt.Sprintf("Compliance guard rails: %s honored", fairHousingLaws(jurisdiction, cfg)),
		deposit,
		fmt.Sprintf("violent felonies screened within %d years", cfg.ViolentFelonyLookbackYears),
	}
	if cfg.RequireIncomeDocumentation {
		parts = append(parts, "verified income documentation required")
	}
	parts = append(parts, "smoking and pet policies applied uniformly with service animals accommodated")
	return strings.Join(parts, "; ") + "."
}

var documentTemplate = template.Must(template.New("listing").Parse(`<h1>{{.Headline}}</h1>
<p>{{.Address}}</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Photos}}<h2>Selected Media</h2><ul>
{{range .Photos}}{{if .WebViewLink}}<li><a href="{{.WebViewLink}}">{{.Name}}</a></li>{{else}}<li>{{.Name}}</li>{{end}}
{{end}}</ul>
{{end}}<p><em>{{.Compliance}}</em></p>
`))

func renderDocument(l ListingContext, available time.Time, plan Plan) (string, error) {
	var paragraphs []string
	for _, line := range strings.Split(plan.Description, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	var buf bytes.Buffer
	err := documentTemplate.Execute(&buf, map[string]any{
		"Headline":   headline(l, available),
		"Address":    l.Address,
		"Paragraphs": paragraphs,
		"Photos":     plan.SelectedPhotos,
		"Compliance": plan.ComplianceSummary,
	})
	if err != nil {
		return "", errors.Wrap(err, "render listing document")
	}
	return buf.String(), nil
}

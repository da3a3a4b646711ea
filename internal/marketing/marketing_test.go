package marketing

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacancyline/internal/applications"
	"vacancyline/internal/domain"
)

type document struct {
	title, body, folder string
}

type memoryGateway struct {
	media   []Media
	listErr error
	docs    []document
}

func (g *memoryGateway) ListUnitMedia(_ context.Context, _ string) ([]Media, error) {
	return g.media, g.listErr
}

func (g *memoryGateway) CreateListingDocument(_ context.Context, title, body, folder string) (string, error) {
	g.docs = append(g.docs, document{title: title, body: body, folder: folder})
	return "doc-1", nil
}

func intPtr(v int) *int { return &v }

func listing() ListingContext {
	return ListingContext{
		UnitID:        "4B",
		PropertyName:  "Maple Court",
		Address:       "120 Maple St, Des Moines, IA",
		Bedrooms:      2,
		Bathrooms:     1,
		SquareFeet:    860,
		Rent:          1200,
		Deposit:       1200,
		Amenities:     []string{"Washer & dryer", "Off-street parking"},
		NearbySchools: []string{"Roosevelt High"},
		MediaFolderID: "folder-4b",
		Jurisdiction:  "IA",
		AvailableOn:   "2025-10-08",
	}
}

func prospect(name string, credit int) Prospect {
	return Prospect{Name: name, Application: applications.Application{
		Household:             applications.Household{Adults: 1},
		MonthlyIncome:         5000,
		VerifiedIncomeSources: []string{"paystub"},
		CreditScore:           intPtr(credit),
	}}
}

func TestPrepareSelectsImagesAndScreensProspects(t *testing.T) {
	gw := &memoryGateway{media: []Media{
		{FileID: "1", Name: "kitchen.jpg", MimeType: "image/jpeg", WebViewLink: "https://drive.example.com/1"},
		{FileID: "2", Name: "floorplan.pdf", MimeType: "application/pdf"},
		{FileID: "3", Name: "living-room"},
	}}
	p := NewPublisher(gw, applications.DefaultConfig())

	plan, err := p.Prepare(context.Background(), Input{
		Listing:   listing(),
		Prospects: []Prospect{prospect("Ana María", 720), prospect("Sam Lee", 600)},
	})
	require.NoError(t, err)

	assert.False(t, plan.MissingPhotos)
	require.Len(t, plan.SelectedPhotos, 2)
	assert.Equal(t, "kitchen.jpg", plan.SelectedPhotos[0].Name)
	assert.Equal(t, "living-room", plan.SelectedPhotos[1].Name)

	assert.True(t, strings.HasPrefix(plan.Description, "Maple Court 4B, available October 8, 2025\n"))
	assert.Contains(t, plan.Description, "2 bedroom / 1.0 bath | 860 sq ft | $1200 per month")
	assert.Contains(t, plan.Description, "steady verifiable income of at least 3.6x rent")
	assert.Contains(t, plan.Description, "no violent criminal history within the past 7 years")
	assert.Contains(t, plan.Description, "the Fair Housing Act and the Iowa Civil Rights Act")
	assert.NotContains(t, plan.Description, "Neighborhood highlights")
	assert.Equal(t, "Compliance guard rails: the Fair Housing Act and the Iowa Civil Rights Act honored; "+
		"deposit capped at 2.0x rent; violent felonies screened within 7 years; verified income documentation required; "+
		"smoking and pet policies applied uniformly with service animals accommodated.", plan.ComplianceSummary)

	require.Len(t, plan.ProspectOutcomes, 2)
	ana := plan.ProspectOutcomes[0]
	assert.Equal(t, "demo-ana-maria", ana.ApplicantID)
	assert.Equal(t, applications.OutcomeApproved, ana.Outcome)
	assert.Equal(t, 65, ana.TotalScore)
	assert.Equal(t, "application approved", ana.Summary)
	assert.True(t, strings.HasPrefix(ana.Rationale, "Approved with composite score 65"))
	sam := plan.ProspectOutcomes[1]
	assert.Equal(t, applications.OutcomeDenied, sam.Outcome)
	assert.Contains(t, sam.Rationale, "credit score 600 below minimum 650")

	assert.Equal(t, "doc-1", plan.DocumentID)
	require.Len(t, gw.docs, 1)
	doc := gw.docs[0]
	assert.Equal(t, "Maple Court 4B Listing Marketing Draft", doc.title)
	assert.Equal(t, "folder-4b", doc.folder)
	assert.Contains(t, doc.body, "<h1>Maple Court 4B, available October 8, 2025</h1>")
	assert.Contains(t, doc.body, "Washer &amp; dryer")
	assert.Contains(t, doc.body, `<li><a href="https://drive.example.com/1">kitchen.jpg</a></li>`)
	assert.Contains(t, doc.body, "<li>living-room</li>")
	assert.NotContains(t, doc.body, "floorplan.pdf")
}

func TestPrepareFlagsMissingPhotos(t *testing.T) {
	gw := &memoryGateway{media: []Media{{FileID: "2", Name: "lease.pdf", MimeType: "application/pdf"}}}
	plan, err := NewPublisher(gw, applications.DefaultConfig()).Prepare(context.Background(), Input{Listing: listing()})
	require.NoError(t, err)
	assert.True(t, plan.MissingPhotos)
	assert.Empty(t, plan.SelectedPhotos)
	assert.NotNil(t, plan.SelectedPhotos)
	assert.Empty(t, plan.ProspectOutcomes)
	assert.Contains(t, plan.Description, "Requesting refreshed photography")
	require.Len(t, gw.docs, 1)
	assert.NotContains(t, gw.docs[0].body, "Selected Media")
}

func TestPrepareRoutesRecentViolentFelonyToReview(t *testing.T) {
	pr := prospect("Lee Park", 720)
	pr.Application.CriminalHistory = []applications.CriminalRecord{{Classification: applications.ViolentFelony, YearsSince: 2}}
	plan, err := NewPublisher(&memoryGateway{}, applications.DefaultConfig()).Prepare(context.Background(), Input{
		Listing: listing(), Prospects: []Prospect{pr},
	})
	require.NoError(t, err)
	require.Len(t, plan.ProspectOutcomes, 1)
	out := plan.ProspectOutcomes[0]
	assert.Equal(t, applications.OutcomePending, out.Outcome)
	assert.Equal(t, "manual review required", out.Summary)
	assert.Contains(t, out.Rationale, "HUD disparate impact guidance")
}

func TestPrepareRejectsProspectFailingGuard(t *testing.T) {
	gw := &memoryGateway{}
	pr := prospect("Kim", 720)
	pr.Application.Screening = map[string]string{"age": "34"}

	_, err := NewPublisher(gw, applications.DefaultConfig()).Prepare(context.Background(), Input{
		Listing: listing(), Prospects: []Prospect{pr},
	})
	var violation *applications.ComplianceViolationError
	require.ErrorAs(t, err, &violation)
	assert.Contains(t, err.Error(), "prospect Kim")
	assert.Empty(t, gw.docs)
}

func TestPrepareValidatesListing(t *testing.T) {
	p := NewPublisher(&memoryGateway{}, applications.DefaultConfig())
	l := listing()
	l.AvailableOn = "10/08/2025"
	_, err := p.Prepare(context.Background(), Input{Listing: l})
	var invalid *domain.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "listing.available_on", invalid.Field)

	l = listing()
	l.Rent = 0
	_, err = p.Prepare(context.Background(), Input{Listing: l})
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "listing.rent", invalid.Field)
}

func TestPrepareWrapsGatewayErrors(t *testing.T) {
	gw := &memoryGateway{listErr: errors.New("quota exceeded")}
	_, err := NewPublisher(gw, applications.DefaultConfig()).Prepare(context.Background(), Input{Listing: listing()})
	assert.ErrorContains(t, err, "list unit media: quota exceeded")
}

func TestComplianceSummaryWithoutKnownCap(t *testing.T) {
	got := ComplianceSummary("ZZ", applications.DefaultConfig())
	assert.Contains(t, got, "applicable state fair housing law")
	assert.Contains(t, got, "no statutory deposit cap on file for ZZ")
}

func TestProspectID(t *testing.T) {
	cases := map[string]string{
		"Ana María":        "demo-ana-maria",
		"  José  Núñez  ":  "demo-jose-nunez",
		"O'Brien, Pat":     "demo-o-brien-pat",
		"!!!":              "demo-applicant",
		"Unit 4B Prospect": "demo-unit-4b-prospect",
	}
	for in, want := range cases {
		assert.Equal(t, want, ProspectID(in), in)
	}
}

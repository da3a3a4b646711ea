// Package marketing prepares the listing plan for a vacant unit: listing copy, the
// photo selection, a fair housing compliance summary and sample prospects screened
// with the same rules real applications go through.
package marketing

import (
	"context"
	"strings"

	"vacancyline/internal/applications"
)

// ListingContext describes the unit being advertised. Money amounts are whole
// dollars per month.
type ListingContext struct {
	UnitID                 string   `json:"unit_id"`
	PropertyCode           string   `json:"property_code,omitempty"`
	PropertyName           string   `json:"property_name"`
	Address                string   `json:"address"`
	Bedrooms               int      `json:"bedrooms"`
	Bathrooms              float64  `json:"bathrooms"`
	SquareFeet             int      `json:"square_feet"`
	Rent                   int      `json:"rent"`
	Deposit                int      `json:"deposit"`
	Amenities              []string `json:"amenities,omitempty"`
	NeighborhoodHighlights []string `json:"neighborhood_highlights,omitempty"`
	NearbySchools          []string `json:"nearby_schools,omitempty"`
	MediaFolderID          string   `json:"media_folder_id,omitempty"`
	Jurisdiction           string   `json:"jurisdiction,omitempty"`
	AvailableOn            string   `json:"available_on" example:"2025-10-08"`
}

// Media is one file in the unit's media folder. A blank MimeType is treated as an
// image.
type Media struct {
	FileID      string `json:"file_id"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type,omitempty"`
	WebViewLink string `json:"web_view_link,omitempty"`
}

func (m Media) IsImage() bool {
	return m.MimeType == "" || strings.HasPrefix(m.MimeType, "image/")
}

// Prospect is a sample applicant screened against the listing. Blank unit, rent,
// deposit and jurisdiction are taken from the listing.
type Prospect struct {
	Name        string                   `json:"name"`
	Application applications.Application `json:"application"`
}

type ProspectOutcome struct {
	Name        string               `json:"name"`
	ApplicantID string               `json:"applicant_id"`
	Outcome     applications.Outcome `json:"outcome"`
	Summary     string               `json:"summary"`
	Rationale   string               `json:"rationale"`
	TotalScore  int                  `json:"total_score"`
}

type Input struct {
	Listing   ListingContext `json:"listing"`
	Prospects []Prospect     `json:"prospects,omitempty"`
}

type Plan struct {
	Description       string            `json:"description"`
	DocumentID        string            `json:"document_id"`
	SelectedPhotos    []Media           `json:"selected_photos"`
	MissingPhotos     bool              `json:"missing_photos"`
	ComplianceSummary string            `json:"compliance_summary"`
	ProspectOutcomes  []ProspectOutcome `json:"prospect_outcomes"`
}

// Gateway is the document store that holds unit media and receives listing
// drafts. A hosted drive is one implementation; the engine records drafts in the
// event log.
type Gateway interface {
	ListUnitMedia(ctx context.Context, folderID string) ([]Media, error)
	CreateListingDocument(ctx context.Context, title, htmlBody, folderID string) (string, error)
}

package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vacancyline/internal/events"
	"vacancyline/internal/marketing"
)

// draftLog serves listing media from the request and keeps rendered drafts in the
// event log, where the publishing integration picks them up.
type draftLog struct {
	events  events.Writer
	media   []marketing.Media
	unitID  string
	actorID string
}

func (d draftLog) ListUnitMedia(_ context.Context, _ string) ([]marketing.Media, error) {
	return d.media, nil
}

func (d draftLog) CreateListingDocument(ctx context.Context, title, htmlBody, folderID string) (string, error) {
	id := uuid.NewString()
	err := d.events.AppendNow(ctx, events.ListingDrafted, "listing", id, d.actorID, events.EventPayload{
		"unit_id":   d.unitID,
		"title":     title,
		"folder_id": folderID,
		"html":      htmlBody,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// PrepareListing builds the marketing plan for a unit, screening sample prospects
// with the workspace criteria. media is the content of the unit's media folder.
func (e Engine) PrepareListing(ctx context.Context, in marketing.Input, media []marketing.Media, actorID string) (marketing.Plan, error) {
	gw := draftLog{events: e.Events, media: media, unitID: in.Listing.UnitID, actorID: actorID}
	plan, err := marketing.NewPublisher(gw, e.Apps.Config).Prepare(ctx, in)
	if err != nil {
		return marketing.Plan{}, err
	}
	e.logger().WithFields(logrus.Fields{
		"unit_id":        in.Listing.UnitID,
		"document_id":    plan.DocumentID,
		"photos":         len(plan.SelectedPhotos),
		"prospects":      len(plan.ProspectOutcomes),
		"missing_photos": plan.MissingPhotos,
	}).Info("listing drafted")
	return plan, nil
}

package engine

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"vacancyline/internal/applications"
	"vacancyline/internal/events"
)

// SubmitApplication stores a new application. For a repeat submission it returns the
// stored record and a *applications.DuplicateApplicationError.
func (e Engine) SubmitApplication(ctx context.Context, app applications.Application, actorID string) (applications.Record, error) {
	rec, err := e.Apps.Submit(ctx, app)
	if err != nil {
		return rec, err
	}
	// Only the id and unit go to the audit log; the record holds the PII.
	if err := e.Events.AppendNow(ctx, events.ApplicationCreated, "application", rec.ID, actorID, events.EventPayload{
		"unit_id": rec.Application.UnitID,
		"status":  string(rec.Status),
	}); err != nil {
		return rec, err
	}
	return rec, nil
}

// EvaluateApplication scores a submitted application. When only the alert could not
// be recorded the decided record is returned together with the error.
func (e Engine) EvaluateApplication(ctx context.Context, id, actorID string) (applications.Record, error) {
	before, err := e.Apps.Get(ctx, id)
	if err != nil {
		return applications.Record{}, err
	}
	rec, err := e.Apps.Evaluate(ctx, id)
	if err != nil {
		if rec.Decision != nil {
			e.logger().WithField("application_id", id).WithError(err).Error("decision stored but alert not recorded")
		}
		return rec, err
	}
	if before.Status.Final() || rec.Decision == nil {
		return rec, nil
	}
	if err := e.Events.AppendNow(ctx, events.ApplicationDecided, "application", rec.ID, actorID, events.EventPayload{
		"status":      string(rec.Status),
		"total_score": rec.Decision.TotalScore,
	}); err != nil {
		return rec, err
	}
	e.logger().WithFields(logrus.Fields{"application_id": rec.ID, "status": rec.Status, "total_score": rec.Decision.TotalScore}).Info("application evaluated")
	return rec, nil
}

func (e Engine) GetApplication(ctx context.Context, id string) (applications.Record, error) {
	return e.Apps.Get(ctx, id)
}

func (e Engine) ListApplications(ctx context.Context, status applications.Status, limit int) ([]applications.Record, error) {
	return e.Apps.ListByStatus(ctx, status, limit)
}

// IsDuplicate unwraps a duplicate submission error.
func IsDuplicate(err error) (*applications.DuplicateApplicationError, bool) {
	var dup *applications.DuplicateApplicationError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}

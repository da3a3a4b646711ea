package applications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"vacancyline/internal/syncutil"
)

// ErrConflict is returned by a Repository when a record with the same id exists.
var ErrConflict = errors.New("application already exists")

type Repository interface {
	Create(ctx context.Context, rec Record) error
	Update(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]Record, error)
}

const (
	AlertApplicantApproved     = "applicant_approved"
	AlertApplicantDenied       = "applicant_denied"
	AlertApplicantManualReview = "applicant_manual_review"
)

// KnownAlertTemplate reports whether template is one the service publishes.
func KnownAlertTemplate(template string) bool {
	switch template {
	case AlertApplicantApproved, AlertApplicantDenied, AlertApplicantManualReview:
		return true
	}
	return false
}

func alertTemplate(status Status) string {
	switch status {
	case StatusApproved:
		return AlertApplicantApproved
	case StatusPendingReview:
		return AlertApplicantManualReview
	default:
		return AlertApplicantDenied
	}
}

// Alert is an outbound notification about a decision. It never carries PII.
type Alert struct {
	Template      string            `json:"template"`
	ApplicationID string            `json:"application_id"`
	Details       map[string]string `json:"details"`
	TS            time.Time         `json:"ts"`
}

type AlertPublisher interface {
	Publish(ctx context.Context, alert Alert) error
}

type Service struct {
	Repo   Repository
	Alerts AlertPublisher
	Config Config
	Now    func() time.Time

	locks syncutil.KeyedMutex
}

func NewService(repo Repository, alerts AlertPublisher, cfg Config) *Service {
	return &Service{Repo: repo, Alerts: alerts, Config: cfg}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

var applicationNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("vacancyline/applications"))

// ApplicationID derives the stable id for an applicant and unit pair.
func ApplicationID(applicantID, unitID string) string {
	key := strings.TrimSpace(applicantID) + "\x00" + strings.TrimSpace(unitID)
	return uuid.NewSHA1(applicationNamespace, []byte(key)).String()
}

// Submit guards and stores a new application. A repeat submission for the same
// applicant and unit returns the stored record with a *DuplicateApplicationError.
func (s *Service) Submit(ctx context.Context, app Application) (Record, error) {
	if err := Guard(app, s.Config); err != nil {
		return Record{}, err
	}
	id := ApplicationID(app.ApplicantID, app.UnitID)
	unlock := s.locks.Lock(id)
	defer unlock()

	existing, err := s.Repo.Get(ctx, id)
	switch {
	case err == nil:
		return existing, &DuplicateApplicationError{Existing: existing}
	case !errors.Is(err, ErrNotFound):
		return Record{}, err
	}

	rec := Record{
		ID:          id,
		Application: app,
		Status:      StatusSubmitted,
		Components:  []ScoreComponent{},
		SubmittedAt: s.now(),
	}
	if err := s.Repo.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrConflict) {
			existing, getErr := s.Repo.Get(ctx, id)
			if getErr != nil {
				return Record{}, getErr
			}
			return existing, &DuplicateApplicationError{Existing: existing}
		}
		return Record{}, err
	}
	return rec, nil
}

// Evaluate moves a submitted application through evaluating to a decision. An
// already decided application, including one held for manual review, is returned
// as stored.
func (s *Service) Evaluate(ctx context.Context, id string) (Record, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	rec, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if rec.Status.Final() {
		return rec, nil
	}
	if err := Guard(rec.Application, s.Config); err != nil {
		return rec, err
	}

	rec.Status = StatusEvaluating
	if err := s.Repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}

	components, decision := Evaluate(rec.Application, s.Config)
	evaluatedAt := s.now()
	rec.Components = components
	rec.Decision = &decision
	rec.EvaluatedAt = &evaluatedAt
	rec.Status = decision.Outcome.Status()
	template := alertTemplate(rec.Status)
	if err := s.Repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}

	if s.Alerts != nil {
		alert := Alert{
			Template:      template,
			ApplicationID: rec.ID,
			Details: map[string]string{
				"decision":    string(decision.Outcome),
				"total_score": strconv.Itoa(decision.TotalScore),
				"unit_id":     rec.Application.UnitID,
			},
			TS: evaluatedAt,
		}
		if err := s.Alerts.Publish(ctx, alert); err != nil {
			return rec, fmt.Errorf("publish %s alert: %w", template, err)
		}
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.Repo.Get(ctx, id)
}

func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]Record, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("unknown application status %q", status)
	}
	return s.Repo.ListByStatus(ctx, status, limit)
}

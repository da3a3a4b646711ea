package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacancyline/internal/applications"
	"vacancyline/internal/config"
	"vacancyline/internal/db"
	"vacancyline/internal/events"
	"vacancyline/internal/migrate"
	"vacancyline/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

type received struct {
	headers http.Header
	body    alertBody
}

type sink struct {
	mu     sync.Mutex
	got    []received
	status atomic.Int32
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if code := int(s.status.Load()); code != 0 {
		w.WriteHeader(code)
		_, _ = io.WriteString(w, "unavailable")
		return
	}
	var body alertBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	s.mu.Lock()
	s.got = append(s.got, received{headers: r.Header.Clone(), body: body})
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *sink) deliveries() []received {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]received(nil), s.got...)
}

func publish(t *testing.T, r repo.Repo, template, id string) {
	t.Helper()
	out := Outbox{Events: events.Writer{DB: r.DB}}
	err := out.Publish(context.Background(), applications.Alert{
		Template:      template,
		ApplicationID: id,
		Details:       map[string]string{"decision": "denied", "total_score": "-5", "unit_id": "unit-4b"},
		TS:            time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestDispatcherDeliversFilteredAlerts(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	s := &sink{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	publish(t, r, applications.AlertApplicantDenied, "before-start")

	d := NewDispatcher(r, config.AlertSettings{Webhooks: []config.Webhook{
		{ID: "leasing", URL: srv.URL, Secret: "s3cret", Templates: []string{applications.AlertApplicantDenied}},
	}})
	assert.Equal(t, 0, d.DispatchOnce(ctx), "a new webhook starts at the end of the log")

	publish(t, r, applications.AlertApplicantApproved, "app-1")
	publish(t, r, applications.AlertApplicantDenied, "app-2")
	assert.Equal(t, 1, d.DispatchOnce(ctx))
	assert.Equal(t, 0, d.DispatchOnce(ctx))

	got := s.deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "applicant_denied", got[0].headers.Get("X-Vacancyline-Alert"))
	assert.Equal(t, "s3cret", got[0].headers.Get("X-Vacancyline-Secret"))
	assert.Equal(t, "app-2", got[0].body.ApplicationID)
	assert.Equal(t, "applicant_denied", got[0].body.Template)
	assert.Equal(t, "2025-10-01T12:00:00Z", got[0].body.TS)
	assert.Equal(t, map[string]string{"decision": "denied", "total_score": "-5", "unit_id": "unit-4b"}, got[0].body.Details)
}

func TestDispatcherRetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	s := &sink{}
	s.status.Store(http.StatusServiceUnavailable)
	srv := httptest.NewServer(s)
	defer srv.Close()

	d := NewDispatcher(r, config.AlertSettings{RatePerSecond: 50, Burst: 1, Webhooks: []config.Webhook{{ID: "ops", URL: srv.URL}}})
	d.DispatchOnce(ctx)
	publish(t, r, applications.AlertApplicantApproved, "app-1")

	assert.Equal(t, 0, d.DispatchOnce(ctx))
	s.status.Store(0)
	assert.Equal(t, 1, d.DispatchOnce(ctx))

	got := s.deliveries()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].headers.Get("X-Vacancyline-Secret"))

	// A fresh dispatcher resumes from the persisted cursor.
	again := NewDispatcher(r, config.AlertSettings{Webhooks: []config.Webhook{{ID: "ops", URL: srv.URL}}})
	assert.Equal(t, 0, again.DispatchOnce(ctx))
}

func TestTemplateMapping(t *testing.T) {
	assert.Equal(t, "alert.applicant_approved", EventType(applications.AlertApplicantApproved))
	assert.Equal(t, "applicant_approved", Template("alert.applicant_approved"))
	assert.True(t, newTemplateFilter(nil).match("anything"))
	assert.False(t, newTemplateFilter([]string{"applicant_denied"}).match("applicant_approved"))
}

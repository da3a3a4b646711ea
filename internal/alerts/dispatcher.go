package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vacancyline/internal/config"
	"vacancyline/internal/domain"
	"vacancyline/internal/events"
	"vacancyline/internal/log"
	"vacancyline/internal/repo"
)

const (
	defaultInterval = 2 * time.Second
	defaultTimeout  = 5 * time.Second
	defaultBatch    = 100
)

// Dispatcher polls the outbox and POSTs alerts to webhooks. Each webhook keeps its
// own persisted cursor; a failed delivery is retried on the next tick.
type Dispatcher struct {
	Repo     repo.Repo
	Webhooks []config.Webhook
	Client   *http.Client
	Limiter  *rate.Limiter
	Interval time.Duration
	Log      *logrus.Logger
}

func NewDispatcher(r repo.Repo, settings config.AlertSettings) *Dispatcher {
	timeout := defaultTimeout
	if settings.TimeoutSeconds > 0 {
		timeout = time.Duration(settings.TimeoutSeconds) * time.Second
	}
	limit := rate.Inf
	if settings.RatePerSecond > 0 {
		limit = rate.Limit(settings.RatePerSecond)
	}
	burst := settings.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Dispatcher{
		Repo:     r,
		Webhooks: settings.Webhooks,
		Client:   &http.Client{Timeout: timeout},
		Limiter:  rate.NewLimiter(limit, burst),
		Interval: defaultInterval,
		Log:      log.GetLogger(),
	}
}

// Run dispatches until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	if len(d.Webhooks) == 0 {
		return
	}
	interval := d.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DispatchOnce makes one delivery pass over every webhook and returns how many
// alerts were delivered.
func (d *Dispatcher) DispatchOnce(ctx context.Context) int {
	delivered := 0
	for _, hook := range d.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		n, err := d.dispatchWebhook(ctx, hook)
		delivered += n
		if err != nil {
			d.logger().WithFields(logrus.Fields{"webhook": hook.ID, "url": hook.URL}).WithError(err).Warn("alert delivery failed")
		}
	}
	return delivered
}

func (d *Dispatcher) logger() *logrus.Logger {
	if d.Log != nil {
		return d.Log
	}
	return log.GetLogger()
}

func (d *Dispatcher) dispatchWebhook(ctx context.Context, hook config.Webhook) (int, error) {
	cursor, err := d.cursorFor(ctx, hook)
	if err != nil {
		return 0, err
	}
	evts, err := d.Repo.EventsAfter(ctx, defaultBatch, cursor, repo.EventFilters{TypePrefix: events.AlertPrefix})
	if err != nil {
		return 0, fmt.Errorf("fetch alerts: %w", err)
	}
	filter := newTemplateFilter(hook.Templates)
	delivered := 0
	for _, evt := range evts {
		if filter.match(Template(evt.Type)) {
			if err := d.post(ctx, hook, evt); err != nil {
				return delivered, err
			}
			delivered++
		}
		if err := d.Repo.SetAlertCursor(ctx, hook.ID, evt.ID); err != nil {
			return delivered, fmt.Errorf("store cursor: %w", err)
		}
	}
	return delivered, nil
}

// cursorFor starts a webhook seen for the first time at the current end of the log.
func (d *Dispatcher) cursorFor(ctx context.Context, hook config.Webhook) (int64, error) {
	cur, err := d.Repo.AlertCursor(ctx, hook.ID)
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	cur, err = d.Repo.LatestEventID(ctx)
	if err != nil {
		return 0, fmt.Errorf("init cursor: %w", err)
	}
	if err := d.Repo.SetAlertCursor(ctx, hook.ID, cur); err != nil {
		return 0, fmt.Errorf("init cursor: %w", err)
	}
	return cur, nil
}

type alertBody struct {
	Template      string            `json:"template"`
	ApplicationID string            `json:"application_id"`
	Details       map[string]string `json:"details"`
	TS            string            `json:"ts"`
}

func (d *Dispatcher) post(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	var body alertBody
	if evt.Payload != "" {
		if err := json.Unmarshal([]byte(evt.Payload), &body); err != nil {
			return fmt.Errorf("decode alert %d: %w", evt.ID, err)
		}
	}
	if body.Template == "" {
		body.Template = Template(evt.Type)
	}
	if body.ApplicationID == "" {
		body.ApplicationID = evt.EntityID
	}
	if body.TS == "" {
		body.TS = evt.TS
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Vacancyline-Alert", body.Template)
	req.Header.Set("X-Vacancyline-Delivery", strconv.FormatInt(evt.ID, 10))
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Vacancyline-Secret", hook.Secret)
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	d.logger().WithFields(logrus.Fields{"webhook": hook.ID, "template": body.Template, "event_id": evt.ID}).Debug("alert delivered")
	return nil
}

type templateFilter struct {
	all bool
	set map[string]struct{}
}

func newTemplateFilter(templates []string) templateFilter {
	set := make(map[string]struct{}, len(templates))
	for _, t := range templates {
		if key := strings.TrimSpace(t); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return templateFilter{all: true}
	}
	return templateFilter{set: set}
}

func (f templateFilter) match(template string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[template]
	return ok
}

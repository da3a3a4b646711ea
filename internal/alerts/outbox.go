// Package alerts records application decision alerts in the event log and delivers
// them to configured webhooks.
package alerts

import (
	"context"
	"strings"
	"time"

	"vacancyline/internal/applications"
	"vacancyline/internal/events"
)

// Outbox publishes alerts by appending them to the event log. The dispatcher picks
// them up from there, so a decision is never lost when a webhook is down.
type Outbox struct {
	Events  events.Writer
	ActorID string
}

func (o Outbox) Publish(ctx context.Context, alert applications.Alert) error {
	actor := o.ActorID
	if actor == "" {
		actor = "system"
	}
	details := alert.Details
	if details == nil {
		details = map[string]string{}
	}
	return o.Events.AppendNow(ctx, EventType(alert.Template), "application", alert.ApplicationID, actor, events.EventPayload{
		"template":       alert.Template,
		"application_id": alert.ApplicationID,
		"details":        details,
		"ts":             alert.TS.UTC().Format(time.RFC3339),
	})
}

// EventType maps an alert template to its outbox event type.
func EventType(template string) string {
	return events.AlertPrefix + template
}

// Template recovers the alert template from an outbox event type.
func Template(eventType string) string {
	return strings.TrimPrefix(eventType, events.AlertPrefix)
}

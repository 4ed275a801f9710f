// Package notifier is the webhook notification capability. Each tenant
// configures a webhook URL and optionally a body template; the template is
// rendered with sprig functions and POSTed as JSON.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"switchboard/internal/api"
	"switchboard/internal/capability"
	"switchboard/internal/template"
)

// Name is the implementation name stored in bindings.
const Name = "notifier"

// Public configuration keys.
const (
	ConfigWebhookURL   = "webhook_url"
	ConfigBodyTemplate = "body_template"
	ConfigHeaders      = "headers"
	ConfigDefaults     = "defaults"
)

// CredentialToken is the sensitive configuration key of the bearer token.
const CredentialToken = "token"

// DefaultBodyTemplate renders every notification field as JSON.
const DefaultBodyTemplate = `{"tenant":{{ .tenant | toJson }},"channel":{{ .channel | toJson }},` +
	`"severity":{{ .severity | toJson }},"subject":{{ .subject | toJson }},` +
	`"message":{{ .message | toJson }},"fields":{{ .fields | toJson }}}`

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4096
)

var severities = map[string]bool{"info": true, "warning": true, "critical": true}

var engine = template.New()

// knownVariables are always present when headers are rendered. Headers may
// reference these and the configured defaults.
var knownVariables = map[string]interface{}{
	"tenant": "", "subject": "", "message": "", "severity": "", "channel": "", "fields": nil,
}

// Definition registers the capability.
func Definition() capability.Definition {
	return capability.Definition{
		Name:        Name,
		Description: "Templated webhook notifications",
		Prototype:   &Notifier{},
		New: func(cfg api.ImplementationConfig) (capability.Implementation, error) {
			return New(cfg, nil)
		},
	}
}

// Notifier posts notifications to the tenant's webhook.
type Notifier struct {
	webhookURL   string
	bodyTemplate string
	headers      map[string]interface{}
	defaults     map[string]interface{}
	client       *http.Client
}

// New creates a Notifier from the tenant's public configuration. client may
// be nil.
func New(cfg api.ImplementationConfig, client *http.Client) (*Notifier, error) {
	webhookURL, _ := cfg.Public[ConfigWebhookURL].(string)
	if webhookURL == "" {
		return nil, fmt.Errorf("%s is not configured", ConfigWebhookURL)
	}

	n := &Notifier{
		webhookURL:   webhookURL,
		bodyTemplate: DefaultBodyTemplate,
		headers:      map[string]interface{}{},
		defaults:     map[string]interface{}{},
		client:       client,
	}
	if n.client == nil {
		n.client = &http.Client{Timeout: defaultTimeout}
	}
	if tmpl, ok := cfg.Public[ConfigBodyTemplate].(string); ok && tmpl != "" {
		n.bodyTemplate = tmpl
	}
	if headers, ok := cfg.Public[ConfigHeaders].(map[string]interface{}); ok {
		for k, v := range headers {
			n.headers[k] = fmt.Sprint(v)
		}
	}
	if defaults, ok := cfg.Public[ConfigDefaults].(map[string]interface{}); ok {
		n.defaults = defaults
	}
	if err := engine.ValidateContext(n.headers, template.Overlay(n.defaults, knownVariables)); err != nil {
		return nil, fmt.Errorf("%s: %w", ConfigHeaders, err)
	}
	return n, nil
}

// OperationDocs lists the callable operations.
func (n *Notifier) OperationDocs() map[string]string {
	return map[string]string{
		"send_notification": "Send a notification to the tenant's configured webhook.",
	}
}

// SendNotificationArgs are the arguments of send_notification.
type SendNotificationArgs struct {
	Subject  string                 `json:"subject" desc:"Short notification subject"`
	Message  string                 `json:"message" desc:"Notification body text"`
	Severity string                 `json:"severity" default:"info" desc:"One of info, warning, critical"`
	Channel  string                 `json:"channel" default:"" desc:"Destination channel, if the webhook supports several"`
	Fields   map[string]interface{} `json:"fields" default:"null" desc:"Additional structured fields"`
}

// SendNotification renders the body template and POSTs it.
func (n *Notifier) SendNotification(ctx context.Context, ec *api.ExecutionContext, args SendNotificationArgs) (interface{}, error) {
	severity := strings.ToLower(args.Severity)
	if !severities[severity] {
		return nil, fmt.Errorf("severity must be one of info, warning, critical, got %q", args.Severity)
	}

	data := template.Overlay(n.defaults, map[string]interface{}{
		"tenant":   ec.TenantID,
		"subject":  args.Subject,
		"message":  args.Message,
		"severity": severity,
		"fields":   args.Fields,
	})
	if args.Channel != "" || data["channel"] == nil {
		data["channel"] = args.Channel
	}

	if err := engine.ValidateContext(n.bodyTemplate, data); err != nil {
		return nil, fmt.Errorf("body template: %w", err)
	}
	body, err := engine.Render(n.bodyTemplate, data)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("body template did not render valid JSON")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewBufferString(body))
	if err != nil {
		return nil, err
	}
	headers, err := engine.Replace(n.headers, data)
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers.(map[string]interface{}) {
		req.Header.Set(k, fmt.Sprint(v))
	}
	if token, ok := ec.Credential(CredentialToken); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	return map[string]interface{}{
		"delivered": true,
		"status":    resp.StatusCode,
		"channel":   data["channel"],
	}, nil
}

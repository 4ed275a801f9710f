package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchboard/internal/api"
)

type webhook struct {
	status  int
	headers http.Header
	body    []byte
}

func newWebhook(t *testing.T, status int) (*webhook, string) {
	t.Helper()
	w := &webhook{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.headers = r.Header.Clone()
		w.body, _ = io.ReadAll(r.Body)
		rw.WriteHeader(w.status)
		if w.status >= 300 {
			_, _ = rw.Write([]byte("rejected"))
		}
	}))
	t.Cleanup(srv.Close)
	return w, srv.URL
}

func execContext(creds map[string]interface{}) *api.ExecutionContext {
	return &api.ExecutionContext{TenantID: "acme", SessionID: "s-1", Implementation: Name, Credentials: creds}
}

func TestNew_RequiresWebhookURL(t *testing.T) {
	_, err := New(api.ImplementationConfig{TenantID: "acme"}, nil)
	assert.ErrorContains(t, err, "webhook_url is not configured")
}

func TestNotifier_DefaultTemplate(t *testing.T) {
	hook, url := newWebhook(t, http.StatusAccepted)
	n, err := New(api.ImplementationConfig{Public: map[string]interface{}{
		ConfigWebhookURL: url,
		ConfigHeaders:    map[string]interface{}{"X-Source": "switchboard"},
	}}, nil)
	require.NoError(t, err)

	out, err := n.SendNotification(context.Background(), execContext(map[string]interface{}{CredentialToken: "hook-token"}), SendNotificationArgs{
		Subject:  "Deploy finished",
		Message:  `Release "v2" is live`,
		Severity: "INFO",
		Channel:  "ops",
		Fields:   map[string]interface{}{"release": "v2"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"delivered": true, "status": http.StatusAccepted, "channel": "ops"}, out)

	assert.Equal(t, "application/json", hook.headers.Get("Content-Type"))
	assert.Equal(t, "Bearer hook-token", hook.headers.Get("Authorization"))
	assert.Equal(t, "switchboard", hook.headers.Get("X-Source"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(hook.body, &body))
	assert.Equal(t, map[string]interface{}{
		"tenant":   "acme",
		"channel":  "ops",
		"severity": "info",
		"subject":  "Deploy finished",
		"message":  `Release "v2" is live`,
		"fields":   map[string]interface{}{"release": "v2"},
	}, body)
}

func TestNotifier_TemplatedHeaders(t *testing.T) {
	hook, url := newWebhook(t, http.StatusOK)
	n, err := New(api.ImplementationConfig{Public: map[string]interface{}{
		ConfigWebhookURL: url,
		ConfigHeaders: map[string]interface{}{
			"X-Severity": "{{ .severity | upper }}",
			"X-Team":     "{{ .team }}",
		},
		ConfigDefaults: map[string]interface{}{"team": "platform"},
	}}, nil)
	require.NoError(t, err)

	_, err = n.SendNotification(context.Background(), execContext(nil), SendNotificationArgs{
		Subject:  "Disk full",
		Severity: "critical",
	})
	require.NoError(t, err)
	assert.Equal(t, "CRITICAL", hook.headers.Get("X-Severity"))
	assert.Equal(t, "platform", hook.headers.Get("X-Team"))

	_, err = New(api.ImplementationConfig{Public: map[string]interface{}{
		ConfigWebhookURL: url,
		ConfigHeaders:    map[string]interface{}{"X-Owner": "{{ .owner }}"},
	}}, nil)
	assert.EqualError(t, err, "headers: missing required variables: owner")
}

func TestNotifier_CustomTemplateAndDefaults(t *testing.T) {
	hook, url := newWebhook(t, http.StatusOK)
	n, err := New(api.ImplementationConfig{Public: map[string]interface{}{
		ConfigWebhookURL:   url,
		ConfigBodyTemplate: `{"text":{{ printf "[%s] %s" (.severity | upper) .subject | toJson }},"room":{{ .channel | toJson }}}`,
		ConfigDefaults:     map[string]interface{}{"channel": "general"},
	}}, nil)
	require.NoError(t, err)

	_, err = n.SendNotification(context.Background(), execContext(nil), SendNotificationArgs{
		Subject:  "Disk full",
		Severity: "critical",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"[CRITICAL] Disk full","room":"general"}`, string(hook.body))
	assert.Empty(t, hook.headers.Get("Authorization"))
}

func TestNotifier_Errors(t *testing.T) {
	_, url := newWebhook(t, http.StatusBadGateway)

	tests := []struct {
		name     string
		template string
		args     SendNotificationArgs
		wantErr  string
	}{
		{
			name:    "webhook failure",
			args:    SendNotificationArgs{Subject: "s", Severity: "info"},
			wantErr: "webhook returned 502: rejected",
		},
		{
			name:    "unknown severity",
			args:    SendNotificationArgs{Subject: "s", Severity: "panic"},
			wantErr: "severity must be one of",
		},
		{
			name:     "template references unknown variable",
			template: `{"x":{{ .nope | toJson }}}`,
			args:     SendNotificationArgs{Subject: "s", Severity: "info"},
			wantErr:  "missing required variables: nope",
		},
		{
			name:     "template renders invalid JSON",
			template: `not json {{ .subject }}`,
			args:     SendNotificationArgs{Subject: "s", Severity: "info"},
			wantErr:  "did not render valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			public := map[string]interface{}{ConfigWebhookURL: url}
			if tt.template != "" {
				public[ConfigBodyTemplate] = tt.template
			}
			n, err := New(api.ImplementationConfig{Public: public}, nil)
			require.NoError(t, err)

			_, err = n.SendNotification(context.Background(), execContext(nil), tt.args)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

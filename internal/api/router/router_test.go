package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sms-email-bridge/internal/bridge"
	"github.com/wolfman30/sms-email-bridge/internal/http/handlers"
	"github.com/wolfman30/sms-email-bridge/internal/preflight"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

type stubRouter struct {
	smsCalls   int
	emailCalls int
}

func (s *stubRouter) RouteSMS(ctx context.Context, in bridge.InboundSMS) (*bridge.OutboundEmail, error) {
	s.smsCalls++
	return &bridge.OutboundEmail{}, nil
}

func (s *stubRouter) RouteEmail(ctx context.Context, in bridge.InboundEmail) (*bridge.OutboundSMS, error) {
	s.emailCalls++
	return &bridge.OutboundSMS{MessageID: "SM1"}, nil
}

func newTestRouter(t *testing.T, report preflight.Report) (http.Handler, *stubRouter) {
	t.Helper()
	logger := logging.NewWithWriter(&bytes.Buffer{}, "info")
	core := &stubRouter{}
	reg := prometheus.NewRegistry()

	return New(&Config{
		Logger:         logger,
		Webhooks:       handlers.NewWebhookHandler(handlers.WebhookConfig{Router: core, Logger: logger}),
		Diagnostic:     handlers.NewDiagnosticHandler(report, "", logger),
		Preflight:      report,
		ParseToken:     "tok",
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}), core
}

func post(h http.Handler, target string, values url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var (
	smsForm = url.Values{
		"From": {"+14155551213"},
		"To":   {"+14155551212"},
		"Body": {"hi"},
	}
	emailForm = url.Values{
		"to":       {"14155551213@sms.example.com"},
		"envelope": {`{"from":"alice@example.com"}`},
		"text":     {"hi"},
	}
)

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, preflight.Report{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, preflight.Report{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterSMSWebhook(t *testing.T) {
	router, core := newTestRouter(t, preflight.Report{})

	rr := post(router, "/handle-sms", smsForm, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "<Response></Response>", rr.Body.String())
	assert.Equal(t, 1, core.smsCalls)
}

func TestRouterEmailWebhookRequiresToken(t *testing.T) {
	router, core := newTestRouter(t, preflight.Report{})

	rr := post(router, "/handle-email", emailForm, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = post(router, "/handle-email?token=wrong", emailForm, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, 0, core.emailCalls)

	rr = post(router, "/handle-email?token=tok", emailForm, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "SM1", rr.Body.String())

	rr = post(router, "/handle-email", emailForm, map[string]string{"X-Parse-Token": "tok"})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, core.emailCalls)
}

func TestRouterPreflightBlocksWebhooks(t *testing.T) {
	report := preflight.Report{Missing: []string{"SENDGRID_API_KEY"}}
	router, core := newTestRouter(t, report)

	rr := post(router, "/handle-sms", smsForm, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "The following settings are missing: SENDGRID_API_KEY", rr.Body.String())

	rr = post(router, "/handle-email?token=tok", emailForm, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	assert.Zero(t, core.smsCalls)
	assert.Zero(t, core.emailCalls)
}

func TestRequireParseToken_EmptyExpectedRejects(t *testing.T) {
	h := requireParseToken("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/handle-email?token=", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

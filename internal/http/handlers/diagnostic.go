package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"

	"github.com/wolfman30/sms-email-bridge/internal/preflight"
	"github.com/wolfman30/sms-email-bridge/pkg/logging"
)

const (
	SMSWebhookPath   = "/handle-sms"
	EmailWebhookPath = "/handle-email"

	// emailWebhookQuery is shown with a placeholder so the parse token never
	// appears on the page.
	emailWebhookQuery = "?token=<SENDGRID_PARSE_TOKEN>"
)

// DiagnosticHandler serves the operator landing page.
type DiagnosticHandler struct {
	report        preflight.Report
	publicBaseURL string
	logger        *logging.Logger
}

func NewDiagnosticHandler(report preflight.Report, publicBaseURL string, logger *logging.Logger) *DiagnosticHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DiagnosticHandler{report: report, publicBaseURL: publicBaseURL, logger: logger}
}

// ServeHTTP reports configuration problems, or the webhook URLs to paste into
// the SendGrid and Twilio consoles when there are none.
func (h *DiagnosticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.report.OK() {
		problem := h.report.Problem()
		h.logger.Warn(problem)
		writeText(w, http.StatusInternalServerError, problem)
		return
	}
	base := html.EscapeString(baseURL(r, h.publicBaseURL))
	body := fmt.Sprintf("Congratulations, this software appears to be configured correctly."+
		"<br/><br/>"+
		"Use the following URLs to configure SendGrid and Twilio:"+
		"<br/><br/>"+
		"SendGrid Inbound Parse Webhook URL: %s"+
		"<br/>"+
		"Twilio Messaging Request URL: %s",
		base+EmailWebhookPath+html.EscapeString(emailWebhookQuery), base+SMSWebhookPath)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// Health reports liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

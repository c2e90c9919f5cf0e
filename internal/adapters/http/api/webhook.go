package api

import (
	"io"
	"net"
	"net/http"
	"strings"

	service "github.com/okian/triage/internal/app"
	"github.com/okian/triage/internal/domain/auth"
	"github.com/okian/triage/pkg/logger"
)

// WebhookHandler handles inbound change-event deliveries.
type WebhookHandler struct {
	pipeline   Pipeline
	trustProxy bool
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(pipeline Pipeline) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline}
}

// HandleWebhook handles POST /webhook requests. The raw body is read before
// any parsing because the signature covers the exact bytes on the wire.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   ErrBadRequest.Error(),
			Details: "unreadable body",
		})
		return
	}

	d := service.Delivery{
		SourceIP:   h.sourceIP(r),
		DeliveryID: r.Header.Get(DeliveryHeader),
		EventType:  r.Header.Get(EventTypeHeader),
		Signature:  r.Header.Get(auth.SignatureHeader),
		Body:       body,
	}

	res := h.pipeline.Handle(r.Context(), d)
	switch res.Status {
	case service.StatusDispatched:
		writeJSON(w, http.StatusOK, webhookResponse{
			Message:    "OK",
			Details:    res.Detail,
			TaskResult: res.TaskResult,
		})

	case service.StatusIgnored, service.StatusDuplicate:
		writeJSON(w, http.StatusOK, webhookResponse{Message: "OK", Details: res.Detail})

	case service.StatusAuthFailed:
		writeJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   "Invalid webhook request",
			Details: res.Detail,
		})

	case service.StatusPayloadFault:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   ErrInternal.Error(),
			Details: res.Detail,
			Type:    "payload",
		})

	case service.StatusDispatchFailed:
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   ErrInternal.Error(),
			Details: res.Detail,
			Type:    "dispatch",
		})

	default:
		logger.Named("api").Error(r.Context(), "unhandled pipeline status",
			logger.Int("status", int(res.Status)),
			logger.Error(NewKind(op, ErrInternal)),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: ErrInternal.Error()})
	}
}

// sourceIP extracts the originating client address. X-Forwarded-For is
// honored only in trusted-proxy mode: a direct caller can forge the header,
// which would defeat the source allowlist. Otherwise the connection peer is
// used.
func (h *WebhookHandler) sourceIP(r *http.Request) string {
	if h.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			parts := strings.Split(fwd, ",")
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/triage/internal/app"
)

// Request headers carrying delivery metadata. The signature header is owned
// by the auth package; these two identify the delivery.
const (
	DeliveryHeader  = "linear-delivery"
	EventTypeHeader = "linear-event"
)

// maxBodyBytes bounds an inbound delivery body.
const maxBodyBytes = 1 << 20

// Pipeline is the single dependency of the HTTP layer.
type Pipeline interface {
	Handle(ctx context.Context, d service.Delivery) service.Result
}

// Server wires HTTP routes for the webhook API.
type Server struct {
	webhookHandler *WebhookHandler
	healthHandler  *HealthHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithTrustedProxy honors X-Forwarded-For when resolving the source address.
// Off by default: without a trusted proxy in front, any direct caller could
// forge the header and pass the source allowlist.
func WithTrustedProxy() Option {
	return func(s *Server) {
		s.webhookHandler.trustProxy = true
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(pipeline Pipeline, opts ...Option) *Server {
	s := &Server{
		webhookHandler: NewWebhookHandler(pipeline),
		healthHandler:  NewHealthHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", MetricsMiddleware(s.webhookHandler.HandleWebhook, "webhook"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
}

// webhookResponse is the success shape for POST /webhook.
type webhookResponse struct {
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	TaskResult string `json:"taskResult,omitempty"`
}

// errorResponse is the failure shape for POST /webhook.
type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Type    string `json:"type,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

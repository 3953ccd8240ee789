// Package handler exposes the token endpoint over HTTP.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"qplace/internal/platform/metrics"
	"qplace/internal/platform/middleware"
	dErrors "qplace/pkg/domain-errors"
	"qplace/pkg/platform/httputil"
)

// Service defines the token issuing operation.
type Service interface {
	IssueToken(clientID, clientSecret string) (string, time.Duration, error)
}

// TokenRequest is the POST /v1/token payload.
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Validate rejects requests missing either credential.
func (r *TokenRequest) Validate() error {
	if r.ClientID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "client_id is required")
	}
	if r.ClientSecret == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "client_secret is required")
	}
	return nil
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Handler handles the token endpoint.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
}

// New creates a token Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		metrics: m,
	}
}

// Register registers the token route with the chi router. The endpoint is
// what authenticates clients, so it carries no RequireAuth itself.
func (h *Handler) Register(r chi.Router) {
	r.With(
		middleware.Recovery(h.logger),
		middleware.RequestID,
		middleware.Logger(h.logger),
		middleware.Timeout(10*time.Second),
		middleware.ContentTypeJSON,
		middleware.Latency(h.metrics),
	).Post("/token", h.handleToken)
}

// handleToken exchanges client credentials for a bearer token.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	token, ttl, err := h.service.IssueToken(req.ClientID, req.ClientSecret)
	if err != nil {
		if dErrors.Is(err, dErrors.CodeUnauthorized) {
			h.logger.WarnContext(ctx, "token request rejected",
				"request_id", requestID,
				"client_id", req.ClientID,
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to issue token",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to issue token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	})
}

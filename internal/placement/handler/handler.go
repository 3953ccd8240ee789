// Package handler exposes the placement service over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"qplace/internal/placement/models"
	"qplace/internal/platform/metrics"
	"qplace/internal/platform/middleware"
	dErrors "qplace/pkg/domain-errors"
	"qplace/pkg/platform/httputil"
	"qplace/pkg/requestcontext"
)

// Service defines the interface for placement operations.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitRequest, by models.SubmittedBy) (*models.Job, error)
	Get(ctx context.Context, jobID string) (*models.Job, error)
	Result(ctx context.Context, jobID string) (*models.Result, error)
	Evaluate(ctx context.Context, req *models.EvaluateRequest) (*models.EvaluateResponse, error)
	Strategies(ctx context.Context) models.StrategiesResponse
}

// Handler handles placement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

// New creates a placement Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   m,
		validator: validator,
	}
}

// Register registers the placement routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	placementRouter := chi.NewRouter()
	placementRouter.Use(middleware.Recovery(h.logger))
	placementRouter.Use(middleware.RequestID)
	placementRouter.Use(middleware.RequestTime)
	placementRouter.Use(middleware.ClientInfo)
	placementRouter.Use(middleware.Logger(h.logger))
	placementRouter.Use(middleware.Timeout(30 * time.Second))
	placementRouter.Use(middleware.ContentTypeJSON)
	placementRouter.Use(middleware.Latency(h.metrics))
	placementRouter.Use(middleware.RequireAuth(h.validator, h.logger))
	placementRouter.Post("/jobs", h.handleSubmitJob)
	placementRouter.Get("/jobs/{id}", h.handleGetJob)
	placementRouter.Get("/jobs/{id}/result", h.handleGetResult)
	placementRouter.Get("/strategies", h.handleStrategies)
	placementRouter.Post("/evaluate", h.handleEvaluate)

	r.Mount("/", placementRouter)
}

// handleSubmitJob accepts a placement request and queues it as a job.
func (h *Handler) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	// The middleware has already validated the token and set the client id.
	clientID := middleware.GetClientID(ctx)
	if clientID == "" {
		h.logger.ErrorContext(ctx, "client id missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	info := requestcontext.Client(ctx)
	by := models.SubmittedBy{
		ClientID:  clientID,
		Addr:      info.IP,
		UserAgent: info.UserAgent,
		Browser:   info.Browser,
		OS:        info.OS,
	}

	job, err := h.service.Submit(ctx, req, by)
	if err != nil {
		if clientFault(err) || dErrors.Is(err, dErrors.CodeUnavailable) {
			h.logger.WarnContext(ctx, "placement job rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to submit placement job",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to submit job"))
		return
	}

	h.logger.InfoContext(ctx, "placement job submitted",
		"request_id", requestID,
		"job_id", job.ID,
		"strategy", job.Strategy,
	)
	httputil.WriteJSON(w, http.StatusAccepted, job)
}

// handleGetJob returns the current state of a job.
func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	jobID := chi.URLParam(r, "id")

	job, err := h.service.Get(ctx, jobID)
	if err != nil {
		if clientFault(err) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to load job",
			"request_id", requestID,
			"job_id", jobID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load job"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, job)
}

// handleGetResult returns the placement result of a completed job.
func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	jobID := chi.URLParam(r, "id")

	result, err := h.service.Result(ctx, jobID)
	if err != nil {
		if clientFault(err) {
			h.logger.WarnContext(ctx, "placement result unavailable",
				"request_id", requestID,
				"job_id", jobID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to load result",
			"request_id", requestID,
			"job_id", jobID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load result"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// handleStrategies lists the supported strategies, refiners and pruners.
func (h *Handler) handleStrategies(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Strategies(r.Context()))
}

// handleEvaluate scores a caller-supplied mapping without queueing a job.
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp, err := h.service.Evaluate(ctx, req)
	if err != nil {
		if clientFault(err) || dErrors.Is(err, dErrors.CodeUnavailable) {
			h.logger.WarnContext(ctx, "evaluate request rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "failed to evaluate mapping",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to evaluate mapping"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// clientFault reports whether the error describes a problem with the
// request rather than a service failure. Client faults pass through to the
// response with their description intact.
func clientFault(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidInput, dErrors.CodeValidation, dErrors.CodeConfiguration,
		dErrors.CodeUnsupportedCondition, dErrors.CodeNotFound, dErrors.CodeConflict,
		dErrors.CodeNotEvaluated, dErrors.CodeMappingFailed, dErrors.CodeUnauthorized:
		return true
	}
	return false
}

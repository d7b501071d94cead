package server

import (
	"context"
	"encoding/json"
	"net/http"

	"shlrec/internal/errors"
	"shlrec/internal/observability"
	"shlrec/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// createRecommendHandler wraps the recommend handler with observability
func (s *Server) createRecommendHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("shlrec.api")
		ctx, span := tracer.Start(ctx, "api.recommend")
		defer span.End()

		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Parse request
		var req RecommendRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.Int("request.text_length", len(req.Text)),
			attribute.Int("request.max_results", req.MaxResults),
			attribute.Int("request.max_duration", req.MaxDuration),
			attribute.String("operation", "recommend"),
		)

		input := types.RecommendInput{
			Text:        req.Text,
			MaxResults:  req.MaxResults,
			MaxDuration: req.MaxDuration,
		}

		// Track the query as an embedding operation with metrics
		metrics := om.GetMetrics()
		var result *types.RecommendOutput
		err := metrics.TrackEmbeddingOperation(ctx, "query", func(ctx context.Context) *observability.EmbeddingOperationResult {
			output, recErr := s.Recommender.Recommend(ctx, input)
			result = output
			return &observability.EmbeddingOperationResult{
				Error:     recErr,
				BatchSize: 1,
			}
		}, om)

		if err != nil {
			status, label := statusForError(err)
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", label))
			metrics.RecordBusinessMetric(ctx, "recommendation_served", false, om,
				attribute.String("error", label))
			s.Logger.LogError(err, "Recommendation request failed",
				"status", status,
				"endpoint", r.URL.Path)
			writeErrorResponse(w, label, userMessage(err), status)
			return
		}

		// Record success metrics
		metrics.RecordBusinessMetric(ctx, "recommendation_served", true, om,
			attribute.Int("result_count", len(result.Recommendations)))
		metrics.RecordResultCount(ctx, len(result.Recommendations), om)

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.result_count", len(result.Recommendations)),
		)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			span.RecordError(err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// statusForError maps an application error to an HTTP status and short label
func statusForError(err error) (int, string) {
	appErr, ok := errors.IsAppError(err)
	if !ok {
		return http.StatusInternalServerError, "Internal error"
	}

	// The no-matches code outranks its validation type
	if appErr.Code == errors.ErrCodeNoMatches {
		return http.StatusNotFound, "No matching assessments"
	}

	switch appErr.Type {
	case errors.ErrorTypeValidation:
		return http.StatusBadRequest, "Invalid request"
	case errors.ErrorTypeEmbedding, errors.ErrorTypeNetwork:
		return http.StatusBadGateway, "Embedding provider unavailable"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// userMessage extracts a client-safe message from an error
func userMessage(err error) string {
	if appErr, ok := errors.IsAppError(err); ok {
		return appErr.Message
	}
	return "An unexpected error occurred"
}

// createRateLimitMiddleware adds observability to rate limiting
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return originalMiddleware(func(w http.ResponseWriter, r *http.Request) {
			// Check if this request was rate limited by examining the response
			// We'll wrap the ResponseWriter to detect rate limit responses
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: 200}

			next(wrapper, r)

			// If rate limited, record metric
			if wrapper.statusCode == http.StatusTooManyRequests {
				metrics := om.GetMetrics()
				metrics.RecordBusinessMetric(r.Context(), "rate_limit_hit", true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		})
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

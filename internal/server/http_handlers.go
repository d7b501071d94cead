package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// circuitBreakerStats is implemented by embedding providers that expose
// circuit breaker state for health checks.
type circuitBreakerStats interface {
	GetCircuitBreakerStats() map[string]any
}

// rootHandler returns a welcome message describing the service
func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"message": "SHL Assessment Recommendation API",
		"version": s.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode welcome response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	return s.AppConfig.Observability.HealthCheck.Timeout
}

// healthHandler provides a health check endpoint including embedding model status
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "healthy",
		"service": "shlrec",
		"version": s.Version,
	}

	overallHealthy := true

	// Check embedding model availability
	modelStatus := s.checkEmbeddingModelHealth()
	response["embedding_model"] = modelStatus
	if available, ok := modelStatus["available"].(bool); ok && !available {
		overallHealthy = false
	}

	// Check circuit breaker status
	response["circuit_breakers"] = s.checkCircuitBreakerHealth()

	// Check catalog readiness
	catalogStatus := s.checkCatalogHealth()
	response["catalog"] = catalogStatus
	if ready, ok := catalogStatus["ready"].(bool); ok && !ready {
		overallHealthy = false
	}

	if !overallHealthy {
		response["status"] = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		log.Printf("Failed to encode health response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// checkEmbeddingModelHealth checks the availability of the embedding model
func (s *Server) checkEmbeddingModelHealth() map[string]any {
	if s.Embedder == nil {
		return map[string]any{
			"available": false,
			"error":     "embedding service not configured",
		}
	}

	// Use configurable health check timeout
	timeout := s.getHealthCheckTimeout()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	info := s.Embedder.GetModelInfo(ctx)
	status := map[string]any{
		"name":      info.Name,
		"available": info.Available,
		"provider":  s.AppConfig.Embedding.Provider,
	}
	if info.DisplayName != "" {
		status["display_name"] = info.DisplayName
	}
	if info.Version != "" {
		status["version"] = info.Version
	}
	if info.Error != "" {
		status["error"] = info.Error
	}
	return status
}

// checkCircuitBreakerHealth reports circuit breaker state for the embedding provider
func (s *Server) checkCircuitBreakerHealth() map[string]any {
	if s.Embedder == nil {
		return map[string]any{"available": false}
	}

	if provider, ok := s.Embedder.Provider.(circuitBreakerStats); ok {
		return provider.GetCircuitBreakerStats()
	}

	return map[string]any{
		"available": false,
		"message":   fmt.Sprintf("provider %s does not expose circuit breaker stats", s.AppConfig.Embedding.Provider),
	}
}

// checkCatalogHealth reports whether the assessment index is ready to serve
func (s *Server) checkCatalogHealth() map[string]any {
	if s.Recommender == nil {
		return map[string]any{"ready": false}
	}

	stats := s.Recommender.Stats()
	status := map[string]any{
		"ready":       stats.Ready,
		"assessments": stats.CatalogSize,
		"dimension":   stats.Dimension,
	}
	if !stats.LastReload.IsZero() {
		status["last_reload"] = stats.LastReload
	}
	return status
}

// statsHandler provides server statistics including index and rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service": "shlrec",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
	}

	if s.Recommender != nil {
		response["recommender"] = s.Recommender.Stats()
	}

	// Add rate limiting stats if enabled
	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	// Add configuration info
	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		log.Printf("Failed to encode stats response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   error,
		Message: message,
	}

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		log.Printf("Failed to encode error response: %v", err)
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

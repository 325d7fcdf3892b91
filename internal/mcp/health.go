package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore string `json:"vector_store"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// HealthChecker is implemented by every vector store backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It answers 503 when the vector store is unreachable.
func NewHealthHandler(store HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:      "healthy",
			VectorStore: "connected",
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK

		if err := store.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.VectorStore = "disconnected"
			response.Error = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(response)
	}
}

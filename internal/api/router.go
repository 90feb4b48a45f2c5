package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ejames/nowcast/internal/api/handlers"
	"github.com/ejames/nowcast/pkg/logger"
)

// NewRouter creates and configures the HTTP router
func NewRouter(nowcastHandler *handlers.NowcastHandler, collectHandler *handlers.CollectHandler, hub *Hub, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Live metrics stream
	r.HandleFunc("/ws", hub.HandleWebSocket).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Metrics endpoints
	api.HandleFunc("/metrics/latest", nowcastHandler.GetLatestMetrics).Methods("GET")
	api.HandleFunc("/metrics/history", nowcastHandler.GetMetricsHistory).Methods("GET")

	// Data snapshots
	api.HandleFunc("/attention", nowcastHandler.GetAttention).Methods("GET")
	api.HandleFunc("/features", nowcastHandler.GetFeatures).Methods("GET")

	// Pipeline triggers
	api.HandleFunc("/run", nowcastHandler.Run).Methods("POST")
	api.HandleFunc("/collect", collectHandler.Collect).Methods("POST")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "nowcast-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

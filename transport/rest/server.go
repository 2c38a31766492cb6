package rest

import (
	"fmt"
	"net/http"
	"time"
)

// Start - serves the health endpoint. Game traffic runs over the WebSocket
// server on its own port.
func Start(port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", pingHandler)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

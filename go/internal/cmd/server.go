package main

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"github.com/tarekmz/stopgame/go/internal/coordinator"
	"github.com/tarekmz/stopgame/go/internal/gateway"
)

func setupServer(cfg *Config, wsHandler *gateway.Handler, coord *coordinator.Coordinator) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	wsHandler.RegisterRoutes(mux)
	setupHealthCheck(mux, coord)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: c.Handler(mux),
	}
}

func setupHealthCheck(mux *http.ServeMux, coord *coordinator.Coordinator) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","rooms":%d}`, coord.Registry().Count())
	})
}

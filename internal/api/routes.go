package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and operational endpoints
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/ws", handler.ServeWS).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/dashboard", handler.GetDashboard).Methods("GET")

	// Watchlist routes
	api.HandleFunc("/stocks", handler.GetWatchlist).Methods("GET")
	api.HandleFunc("/stocks", handler.AddStock).Methods("POST")
	api.HandleFunc("/stocks/{symbol}", handler.RemoveStock).Methods("DELETE")

	// Transaction routes
	api.HandleFunc("/stocks/{symbol}/transactions", handler.GetTransactions).Methods("GET")
	api.HandleFunc("/stocks/{symbol}/transactions", handler.AddTransaction).Methods("POST")
	api.HandleFunc("/stocks/{symbol}/transactions/{id}", handler.UpdateTransaction).Methods("PUT")
	api.HandleFunc("/stocks/{symbol}/transactions/{id}", handler.DeleteTransaction).Methods("DELETE")

	// Alert rule routes
	api.HandleFunc("/stocks/{symbol}/alerts", handler.AddAlert).Methods("POST")
	api.HandleFunc("/stocks/{symbol}/alerts/{key}", handler.RemoveAlert).Methods("DELETE")

	// Quote cache routes
	api.HandleFunc("/quotes/{symbol}", handler.GetQuote).Methods("GET")

	// Funds routes
	api.HandleFunc("/funds", handler.GetFunds).Methods("GET")
	api.HandleFunc("/funds", handler.UpdateFunds).Methods("PUT")

	// Snapshot routes
	api.HandleFunc("/snapshots", handler.ListSnapshots).Methods("GET")
	api.HandleFunc("/snapshots/{date}", handler.GetSnapshot).Methods("GET")

	return r
}

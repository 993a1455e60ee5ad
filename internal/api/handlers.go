package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/database"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/kafka"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/poller"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/portfolio"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/realtime"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/redis"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db       *database.DB
	watcher  *poller.Poller
	hub      *realtime.Hub
	producer *kafka.Producer
	redis    *redis.Client
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, watcher *poller.Poller, hub *realtime.Hub, producer *kafka.Producer, redisClient *redis.Client) *Handler {
	return &Handler{
		db:       db,
		watcher:  watcher,
		hub:      hub,
		producer: producer,
		redis:    redisClient,
	}
}

// GetDashboard handles GET /dashboard
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.watcher.Dashboard())
}

// GetWatchlist handles GET /stocks
func (h *Handler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, cfg.Stocks)
}

// AddStock handles POST /stocks
func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol    string   `json:"symbol"`
		Name      string   `json:"name"`
		AlertUp   *float64 `json:"alert_up"`
		AlertDown *float64 `json:"alert_down"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, ok := cfg.Stocks[req.Symbol]; ok {
		http.Error(w, "symbol already watched", http.StatusConflict)
		return
	}

	entry := &models.StockEntry{
		Name:      req.Name,
		AlertUp:   req.AlertUp,
		AlertDown: req.AlertDown,
	}
	cfg.Stocks[req.Symbol] = entry
	cfg.Normalize()

	if err := h.saveAndReload(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

// RemoveStock handles DELETE /stocks/{symbol}
func (h *Handler) RemoveStock(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, ok := cfg.Stocks[symbol]; !ok {
		http.Error(w, "symbol not watched", http.StatusNotFound)
		return
	}
	delete(cfg.Stocks, symbol)

	if err := h.db.DeleteSymbolTransactions(r.Context(), symbol); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.saveAndReload(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTransactions handles GET /stocks/{symbol}/transactions
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	txs, err := h.db.LoadTransactions(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

// AddTransaction handles POST /stocks/{symbol}/transactions
func (h *Handler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if tx.Time == "" {
		tx.Time = time.Now().Format("2006-01-02 15:04:05")
	}
	if err := tx.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.db.LoadTransactions(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := portfolio.CheckAppend(existing, tx); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.db.AppendTransaction(r.Context(), symbol, &tx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, ok := cfg.Stocks[symbol]; !ok {
		cfg.Stocks[symbol] = &models.StockEntry{Name: symbol}
	}
	cfg.Funds = portfolio.ApplyFunds(cfg.Funds, tx)

	if err := h.saveAndReload(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /stocks/{symbol}/transactions/{id}.
// The entry is replaced in place, keeping its position in the ledger.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]

	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tx.ID = vars["id"]
	if err := tx.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.db.LoadTransactions(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	replaced := make([]models.Transaction, 0, len(existing))
	found := false
	for _, t := range existing {
		if t.ID == tx.ID {
			replaced = append(replaced, tx)
			found = true
		} else {
			replaced = append(replaced, t)
		}
	}
	if !found {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}
	if portfolio.NetQuantity(replaced).IsNegative() {
		http.Error(w, "edit would oversell the position", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateTransaction(r.Context(), symbol, tx); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.watcher.Reload(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /stocks/{symbol}/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.db.DeleteTransaction(r.Context(), vars["symbol"], vars["id"]); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.watcher.Reload(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddAlert handles POST /stocks/{symbol}/alerts
func (h *Handler) AddAlert(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var rule models.AlertRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !rule.Valid() {
		http.Error(w, "alert type must be up or down and price must be positive", http.StatusBadRequest)
		return
	}

	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	entry, ok := cfg.Stocks[symbol]
	if !ok {
		http.Error(w, "symbol not watched", http.StatusNotFound)
		return
	}
	for _, existing := range entry.Alerts {
		if existing.Key() == rule.Key() {
			http.Error(w, "alert already exists", http.StatusConflict)
			return
		}
	}
	entry.Alerts = append(entry.Alerts, rule)

	if err := h.saveAndReload(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

// RemoveAlert handles DELETE /stocks/{symbol}/alerts/{key}
func (h *Handler) RemoveAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]
	key := vars["key"]

	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	entry, ok := cfg.Stocks[symbol]
	if !ok {
		http.Error(w, "symbol not watched", http.StatusNotFound)
		return
	}

	kept := entry.Alerts[:0]
	found := false
	for _, rule := range entry.Alerts {
		if rule.Key() == key {
			found = true
			continue
		}
		kept = append(kept, rule)
	}
	if !found {
		http.Error(w, "alert not found", http.StatusNotFound)
		return
	}
	entry.Alerts = kept

	if err := h.saveAndReload(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetQuote handles GET /quotes/{symbol}, serving the cached last quote.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		http.Error(w, "quote cache not configured", http.StatusServiceUnavailable)
		return
	}
	symbol := mux.Vars(r)["symbol"]

	q, err := h.redis.GetQuote(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if q == nil {
		http.Error(w, "no cached quote for symbol", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// GetFunds handles GET /funds
func (h *Handler) GetFunds(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, cfg.Funds)
}

// UpdateFunds handles PUT /funds
func (h *Handler) UpdateFunds(w http.ResponseWriter, r *http.Request) {
	var funds models.Funds
	if err := json.NewDecoder(r.Body).Decode(&funds); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := h.loadConfig(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cfg.Funds = funds

	if err := h.saveAndReload(r.Context(), cfg); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, cfg.Funds)
}

// ListSnapshots handles GET /snapshots
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	dates, err := h.db.ListSnapshotDates(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

// GetSnapshot handles GET /snapshots/{date}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	snapshot, err := h.db.LoadSnapshot(r.Context(), date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snapshot == nil {
		http.Error(w, "no snapshot for date", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	// Check database
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	// Check Redis
	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	// Check Kafka producer
	if h.producer != nil {
		services["kafka"] = "configured"
	} else {
		services["kafka"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

// loadConfig fetches the stored config, falling back to an empty default
// before any config has been written.
func (h *Handler) loadConfig(ctx context.Context) (*models.HoldingsConfig, error) {
	cfg, err := h.db.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = models.DefaultHoldingsConfig()
	}
	return cfg, nil
}

// saveAndReload persists the config and pushes it into the running watcher
// so edits take effect on the next tick instead of the next refresh.
func (h *Handler) saveAndReload(ctx context.Context, cfg *models.HoldingsConfig) error {
	if err := h.db.SaveConfig(ctx, cfg); err != nil {
		return err
	}
	return h.watcher.Reload(ctx)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
